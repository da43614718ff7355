package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"hotelbot/internal/app"
	"hotelbot/internal/domain"
)

func searchCfg() app.SearchConfig {
	return app.SearchConfig{PageSize: 25, MaxPages: 10, Timeout: time.Second, BookingBase: "https://www.hotels.com", Currency: "RUB"}
}

func bestDealSession(results int) domain.Session {
	return domain.Session{
		ID:          11,
		ChatID:      1,
		Command:     domain.CommandBestDeal,
		LocationID:  ptr(int64(118894)),
		CheckIn:     date("2024-05-10"),
		CheckOut:    date("2024-05-12"),
		PriceMin:    ptr(5000.0),
		PriceMax:    ptr(8000.0),
		DistanceMin: ptr(0.5),
		DistanceMax: ptr(1.0),
		ResultsNum:  ptr(results),
		PhotosNum:   ptr(0),
	}
}

func TestSearch_PaginationBound(t *testing.T) {
	page1 := make([]map[string]any, 0, 25)
	for i := 0; i < 25; i++ {
		if i < 3 {
			page1 = append(page1, rawHotel(int64(100+i), 6000, 0.7))
		} else {
			page1 = append(page1, rawHotel(int64(100+i), 6000, 5)) // too far
		}
	}
	page2 := make([]map[string]any, 0, 10)
	for i := 0; i < 10; i++ {
		page2 = append(page2, rawHotel(int64(200+i), 7000, 0.9))
	}
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 500, Results: page1},
		2: {TotalCount: 500, Results: page2},
		3: {TotalCount: 500, Results: page2},
	}}

	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), bestDealSession(5))
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %d", len(got))
	}
	if len(p.queries) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(p.queries))
	}
	if got[3].Hotel.ID != 200 || got[4].Hotel.ID != 201 {
		t.Fatalf("unexpected order: %d %d", got[3].Hotel.ID, got[4].Hotel.ID)
	}
}

func TestSearch_BestDealScenario(t *testing.T) {
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 6, Results: []map[string]any{
			rawHotel(1, 4999, 0.7), // too cheap
			rawHotel(2, 5000, 0.5),
			rawHotel(3, 6500, 1.2), // too far
			{"id": 4.0, "name": "No landmarks", "price": 6000.0},
			rawHotel(5, 8000, 1.0),
			rawHotel(6, 7000, 0.6),
		}},
	}}

	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), bestDealSession(3))
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for _, r := range got {
		if r.Price < 5000 || r.Price > 8000 || r.Hotel.Distance < 0.5 || r.Hotel.Distance > 1.0 {
			t.Fatalf("result outside filters: %+v", r)
		}
		if r.SessionID != 11 {
			t.Fatalf("session id not set: %+v", r)
		}
		if !strings.Contains(r.URL, "q-check-in=2024-05-10") || !strings.Contains(r.URL, "q-check-out=2024-05-12") {
			t.Fatalf("booking url lacks dates: %s", r.URL)
		}
		if !strings.HasPrefix(r.URL, "https://www.hotels.com/ho") || !strings.Contains(r.URL, "cur=RUB") {
			t.Fatalf("unexpected booking url: %s", r.URL)
		}
	}
	if got[0].Hotel.Address != "Via Roma 1, Rome, Italy" || got[0].Hotel.StarRating != 4 {
		t.Fatalf("hotel not parsed: %+v", got[0].Hotel)
	}

	q := p.queries[0]
	if q.Sort != domain.SortPrice || q.PriceMin == nil || *q.PriceMin != 5000 || *q.PriceMax != 8000 {
		t.Fatalf("server-side pre-filter missing: %+v", q)
	}
	if q.DestinationID != 118894 || q.PageSize != 25 || q.Page != 1 {
		t.Fatalf("unexpected query: %+v", q)
	}
	// total count of 6 fits one page
	if len(p.queries) != 1 {
		t.Fatalf("expected a single request, got %d", len(p.queries))
	}
}

func TestSearch_StopsOnRemoteError(t *testing.T) {
	p := &fakeProvider{
		pages:   map[int]domain.HotelPage{1: {Results: []map[string]any{rawHotel(1, 100, 1)}}},
		pageErr: map[int]error{2: domain.ErrRemoteRequest},
	}
	s := domain.Session{
		ID: 1, Command: domain.CommandLowPrice,
		LocationID: ptr(int64(1)), CheckIn: date("2024-05-10"), CheckOut: date("2024-05-11"),
		ResultsNum: ptr(5), PhotosNum: ptr(0),
	}

	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), s)
	if len(got) != 1 || len(p.queries) != 2 {
		t.Fatalf("expected partial result after error, got %d results / %d requests", len(got), len(p.queries))
	}
}

func TestSearch_StopsOnUnparseablePage(t *testing.T) {
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 1000, Results: []map[string]any{{"id": "x"}, {"name": "nameless"}}},
		2: {TotalCount: 1000, Results: []map[string]any{rawHotel(1, 1, 1)}},
	}}
	s := domain.Session{
		Command:    domain.CommandHighPrice,
		LocationID: ptr(int64(1)), CheckIn: date("2024-05-10"), CheckOut: date("2024-05-11"),
		ResultsNum: ptr(2), PhotosNum: ptr(0),
	}

	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), s)
	if len(got) != 0 || len(p.queries) != 1 {
		t.Fatalf("expected stop after unparseable page, got %d results / %d requests", len(got), len(p.queries))
	}
	if p.queries[0].Sort != domain.SortPriceHighestFirst || p.queries[0].PriceMin != nil {
		t.Fatalf("unexpected query for highprice: %+v", p.queries[0])
	}
}

func TestSearch_StopsWhenTotalExhausted(t *testing.T) {
	far := make([]map[string]any, 0, 25)
	for i := 0; i < 25; i++ {
		far = append(far, rawHotel(int64(i+1), 6000, 30))
	}
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 50, Results: far},
		2: {TotalCount: 50, Results: far},
		3: {TotalCount: 50, Results: far},
	}}

	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), bestDealSession(3))
	if len(got) != 0 {
		t.Fatalf("expected nothing accepted, got %d", len(got))
	}
	if len(p.queries) != 2 {
		t.Fatalf("expected 2 requests for 50 results, got %d", len(p.queries))
	}
}

func TestSearch_MaxPagesCap(t *testing.T) {
	far := []map[string]any{rawHotel(1, 6000, 30)}
	pages := map[int]domain.HotelPage{}
	for i := 1; i <= 5; i++ {
		pages[i] = domain.HotelPage{Results: far}
	}
	p := &fakeProvider{pages: pages}
	cfg := searchCfg()
	cfg.MaxPages = 3

	_ = app.NewAggregator(p, cfg).Search(context.Background(), bestDealSession(1))
	if len(p.queries) != 3 {
		t.Fatalf("expected page cap of 3, got %d", len(p.queries))
	}
}

func TestSearch_IncompleteSession(t *testing.T) {
	p := &fakeProvider{pageErr: map[int]error{1: errors.New("should not be called")}}
	got := app.NewAggregator(p, searchCfg()).Search(context.Background(), domain.Session{Command: domain.CommandLowPrice})
	if got != nil || len(p.queries) != 0 {
		t.Fatalf("incomplete session must not search")
	}
}

func TestSearch_HotelRepeatedAcrossPagesCountsOnce(t *testing.T) {
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 100, Results: []map[string]any{rawHotel(1, 100, 1), rawHotel(2, 110, 1)}},
		2: {TotalCount: 100, Results: []map[string]any{rawHotel(2, 110, 1), rawHotel(3, 120, 1)}},
	}}
	s := domain.Session{
		ID: 5, Command: domain.CommandLowPrice,
		LocationID: ptr(int64(1)), CheckIn: date("2024-05-10"), CheckOut: date("2024-05-11"),
		ResultsNum: ptr(3), PhotosNum: ptr(0),
	}
	cfg := searchCfg()
	cfg.PageSize = 2

	got := app.NewAggregator(p, cfg).Search(context.Background(), s)
	var ids []int64
	for _, r := range got {
		ids = append(ids, r.Hotel.ID)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected hotels [1 2 3], got %v", ids)
	}
	if len(p.queries) != 2 {
		t.Fatalf("expected 2 page requests, got %d", len(p.queries))
	}
}

func TestSearch_DisplayPriceIsNotRead(t *testing.T) {
	h := rawHotel(9, 0, 1)
	h["ratePlan"] = map[string]any{"price": map[string]any{"current": "1,234"}}
	p := &fakeProvider{pages: map[int]domain.HotelPage{
		1: {TotalCount: 1, Results: []map[string]any{h}},
	}}
	s := domain.Session{
		Command:    domain.CommandLowPrice,
		LocationID: ptr(int64(1)), CheckIn: date("2024-05-10"), CheckOut: date("2024-05-11"),
		ResultsNum: ptr(1), PhotosNum: ptr(0),
	}

	if got := app.NewAggregator(p, searchCfg()).Search(context.Background(), s); len(got) != 0 {
		t.Fatalf("hotel priced from a display string: %+v", got)
	}
}
