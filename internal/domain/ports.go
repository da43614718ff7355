package domain

import (
	"context"
	"time"
)

type SessionStore interface {
	// GetActiveSession returns ErrNotFound when the chat has no search in progress.
	GetActiveSession(ctx context.Context, chatID int64) (Session, error)
	AddSession(ctx context.Context, s Session) (Session, error)
	// UpdateSession writes the changed attributes and bumps s.Version.
	// A stale s.Version yields ErrConflict.
	UpdateSession(ctx context.Context, s *Session, changed ...Step) error
	// CompleteSession archives s. A session that changed since it was read,
	// or was already completed or cancelled, yields ErrConflict.
	CompleteSession(ctx context.Context, s *Session) error
	CancelSession(ctx context.Context, chatID int64) error
	ListCompletedSessions(ctx context.Context, chatID int64, limit int) ([]Session, error)
	ListSearchResults(ctx context.Context, sessionID int64) ([]SearchResult, error)
}

type LocationStore interface {
	GetLocationsByName(ctx context.Context, name string, limit int) ([]Location, error)
	GetLocation(ctx context.Context, destinationID int64) (Location, error)
	// AddLocation succeeds when the location already exists.
	AddLocation(ctx context.Context, l Location) error
}

type HotelStore interface {
	// AddHotel succeeds when the hotel already exists.
	AddHotel(ctx context.Context, h Hotel) error
	AddSearchResult(ctx context.Context, r SearchResult) error
	GetHotelPhotos(ctx context.Context, hotelID int64, limit int) ([]HotelPhoto, error)
	AddHotelPhotos(ctx context.Context, ps []HotelPhoto) error
}

type Repository interface {
	SessionStore
	LocationStore
	HotelStore
}

// HotelsProvider is the remote hotel search service. Payloads stay raw;
// mapping into domain types happens in the app layer.
type HotelsProvider interface {
	SearchLocations(ctx context.Context, query string) ([]map[string]any, error)
	SearchHotels(ctx context.Context, q HotelQuery) (HotelPage, error)
	GetHotelPhotos(ctx context.Context, hotelID int64) ([]map[string]any, error)
}

type SortOrder string

const (
	SortPrice             SortOrder = "PRICE"
	SortPriceHighestFirst SortOrder = "PRICE_HIGHEST_FIRST"
)

type HotelQuery struct {
	DestinationID int64
	Page          int // 1-based
	PageSize      int
	CheckIn       time.Time
	CheckOut      time.Time
	Sort          SortOrder
	PriceMin      *float64
	PriceMax      *float64
}

type HotelPage struct {
	TotalCount int // 0 when the provider does not say
	Results    []map[string]any
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker serializes work per key. Lock blocks until the key is free or ctx
// is done, in which case it returns ErrLocked.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, err error)
}
