package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hotelbot/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	sessions  map[int64]domain.Session
	locations map[int64]domain.Location
	hotels    map[int64]domain.Hotel
	results   map[int64][]domain.SearchResult
	photos    map[int64][]domain.HotelPhoto

	failUpdate  error
	failAddHtl  error
	failGetSess error
	// concurrentWrite bumps the stored version right after a session is read,
	// as if another turn had written it in between
	concurrentWrite bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions:  map[int64]domain.Session{},
		locations: map[int64]domain.Location{},
		hotels:    map[int64]domain.Hotel{},
		results:   map[int64][]domain.SearchResult{},
		photos:    map[int64][]domain.HotelPhoto{},
	}
}

func (f *fakeRepo) GetActiveSession(ctx context.Context, chatID int64) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGetSess != nil {
		return domain.Session{}, f.failGetSess
	}
	for id, s := range f.sessions {
		if s.ChatID == chatID && !s.Complete && !s.Cancelled {
			if f.concurrentWrite {
				bumped := s
				bumped.Version++
				f.sessions[id] = bumped
			}
			return s, nil
		}
	}
	return domain.Session{}, domain.ErrNotFound
}

func (f *fakeRepo) AddSession(ctx context.Context, s domain.Session) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeRepo) UpdateSession(ctx context.Context, s *domain.Session, changed ...domain.Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate != nil {
		return f.failUpdate
	}
	cur, ok := f.sessions[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != s.Version {
		return domain.ErrConflict
	}
	s.Version++
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeRepo) CompleteSession(ctx context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.sessions[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Version != s.Version || cur.Cancelled {
		return domain.ErrConflict
	}
	s.Complete = true
	s.Version++
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeRepo) CancelSession(ctx context.Context, chatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.ChatID == chatID && !s.Complete && !s.Cancelled {
			s.Cancelled = true
			f.sessions[id] = s
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRepo) ListCompletedSessions(ctx context.Context, chatID int64, limit int) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		if s.ChatID == chatID && s.Complete {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) ListSearchResults(ctx context.Context, sessionID int64) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SearchResult(nil), f.results[sessionID]...), nil
}

func (f *fakeRepo) GetLocationsByName(ctx context.Context, name string, limit int) ([]domain.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := domain.NormalizeName(name)
	var exact, like []domain.Location
	for _, l := range f.locations {
		switch {
		case l.NameLower == key:
			exact = append(exact, l)
		case strings.Contains(strings.ToLower(l.Caption), strings.ToLower(strings.TrimSpace(name))):
			like = append(like, l)
		}
	}
	out := exact
	if len(out) == 0 {
		out = like
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DestinationID < out[j].DestinationID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepo) GetLocation(ctx context.Context, id int64) (domain.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[id]
	if !ok {
		return domain.Location{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) AddLocation(ctx context.Context, l domain.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.locations[l.DestinationID]; !ok {
		f.locations[l.DestinationID] = l
	}
	return nil
}

func (f *fakeRepo) AddHotel(ctx context.Context, h domain.Hotel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAddHtl != nil {
		return f.failAddHtl
	}
	if _, ok := f.hotels[h.ID]; !ok {
		f.hotels[h.ID] = h
	}
	return nil
}

func (f *fakeRepo) AddSearchResult(ctx context.Context, r domain.SearchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.results[r.SessionID] {
		if x.Hotel.ID == r.Hotel.ID {
			return nil
		}
	}
	f.results[r.SessionID] = append(f.results[r.SessionID], r)
	return nil
}

func (f *fakeRepo) GetHotelPhotos(ctx context.Context, hotelID int64, limit int) ([]domain.HotelPhoto, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.photos[hotelID]
	if limit > 0 && len(ps) > limit {
		ps = ps[:limit]
	}
	return append([]domain.HotelPhoto(nil), ps...), nil
}

func (f *fakeRepo) AddHotelPhotos(ctx context.Context, ps []domain.HotelPhoto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range ps {
		f.photos[p.HotelID] = append(f.photos[p.HotelID], p)
	}
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	locations map[string][]map[string]any
	locErr    error
	pages     map[int]domain.HotelPage
	pageErr   map[int]error
	photos    map[int64][]map[string]any

	queries    []domain.HotelQuery
	locCalls   int
	photoCalls int
}

func (p *fakeProvider) SearchLocations(ctx context.Context, query string) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locCalls++
	if p.locErr != nil {
		return nil, p.locErr
	}
	return p.locations[strings.ToLower(query)], nil
}

func (p *fakeProvider) SearchHotels(ctx context.Context, q domain.HotelQuery) (domain.HotelPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, q)
	if err := p.pageErr[q.Page]; err != nil {
		return domain.HotelPage{}, err
	}
	return p.pages[q.Page], nil
}

func (p *fakeProvider) GetHotelPhotos(ctx context.Context, hotelID int64) ([]map[string]any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photoCalls++
	return p.photos[hotelID], nil
}

// fakeCache round-trips through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocked, key)
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

// ---- payload builders ----

func rawHotel(id int64, price, distKm float64) map[string]any {
	return map[string]any{
		"id":         float64(id),
		"name":       fmt.Sprintf("Hotel %d", id),
		"starRating": 4.0,
		"address": map[string]any{
			"streetAddress": "Via Roma 1",
			"locality":      "Rome",
			"countryName":   "Italy",
		},
		"landmarks": []any{
			map[string]any{"label": "Airport", "distance": "20 km"},
			map[string]any{"label": "City center", "distance": fmt.Sprintf("%.2f km", distKm)},
		},
		"ratePlan": map[string]any{"price": map[string]any{"exactCurrent": price}},
	}
}

func rawCity(id int64, name, caption string) map[string]any {
	return map[string]any{
		"destinationId": fmt.Sprint(id),
		"geoId":         fmt.Sprint(id * 10),
		"type":          "CITY",
		"name":          name,
		"caption":       caption,
	}
}

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func testMachine() *domain.Machine {
	return domain.NewMachine(domain.Limits{MaxResults: 5, MaxPhotos: 5}, func() time.Time { return testNow })
}

func ptr[T any](v T) *T { return &v }

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}
