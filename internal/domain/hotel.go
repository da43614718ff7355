package domain

import "strings"

type Hotel struct {
	ID         int64
	Name       string
	Address    string
	StarRating int
	Distance   float64 // km to the city centre landmark
}

// SearchResult links a session to an accepted hotel.
type SearchResult struct {
	SessionID int64
	Hotel     Hotel
	Price     float64
	URL       string
}

type HotelPhoto struct {
	ImageID int64
	HotelID int64
	BaseURL string // contains a {size} placeholder
}

// URL renders the photo template for the given size code.
func (p HotelPhoto) URL(size string) string {
	return strings.ReplaceAll(p.BaseURL, "{size}", size)
}
