package hotels_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hotelbot/internal/adapters/hotels"
	"hotelbot/internal/domain"
)

func newClient(t *testing.T, url string) *hotels.Client {
	t.Helper()
	cl, err := hotels.New(hotels.Options{BaseURL: url, Host: "hotels4.test", Key: "test-key", RPS: 100})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestClient_SearchHotels_RetriesThenSuccess(t *testing.T) {
	var hits int32
	var got *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			// two transient failures
			w.WriteHeader(500)
		default:
			got = r
			w.WriteHeader(200)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{"body": map[string]any{"searchResults": map[string]any{
					"totalCount": 60.0,
					"results":    []any{map[string]any{"id": 1.0}, "junk", map[string]any{"id": 2.0}},
				}}},
			})
		}
	}))
	defer ts.Close()

	cl := newClient(t, ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	pmin, pmax := 5000.0, 8000.0
	page, err := cl.SearchHotels(ctx, domain.HotelQuery{
		DestinationID: 118894,
		Page:          2,
		PageSize:      25,
		CheckIn:       time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC),
		Sort:          domain.SortPrice,
		PriceMin:      &pmin,
		PriceMax:      &pmax,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if page.TotalCount != 60 || len(page.Results) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}

	q := got.URL.Query()
	want := map[string]string{
		"destinationId": "118894",
		"pageNumber":    "2",
		"pageSize":      "25",
		"checkIn":       "2024-05-10",
		"checkOut":      "2024-05-12",
		"sortOrder":     "PRICE",
		"minPrice":      "5000",
		"maxPrice":      "8000",
		"locale":        "ru_RU",
		"currency":      "RUB",
		"adults1":       "1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Fatalf("param %s: got %q want %q", k, q.Get(k), v)
		}
	}
	if got.Header.Get("X-RapidAPI-Key") != "test-key" || got.Header.Get("X-RapidAPI-Host") != "hotels4.test" {
		t.Fatalf("missing rapidapi headers: %v", got.Header)
	}
}

func TestClient_SearchLocations_CityGroupOnly(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/locations/v2/search" || r.URL.Query().Get("query") != "Rome" {
			w.WriteHeader(404)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"suggestions": []any{
				map[string]any{"group": "CITY_GROUP", "entities": []any{
					map[string]any{"destinationId": "118894", "type": "CITY"},
				}},
				map[string]any{"group": "HOTEL_GROUP", "entities": []any{
					map[string]any{"destinationId": "1", "type": "HOTEL"},
				}},
			},
		})
	}))
	defer ts.Close()

	out, err := newClient(t, ts.URL).SearchLocations(context.Background(), "Rome")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(out) != 1 || out[0]["destinationId"] != "118894" {
		t.Fatalf("unexpected entities: %+v", out)
	}
}

func TestClient_Malformed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer ts.Close()

	_, err := newClient(t, ts.URL).GetHotelPhotos(context.Background(), 7)
	if !errors.Is(err, domain.ErrRemoteMalformed) {
		t.Fatalf("expected ErrRemoteMalformed, got %v", err)
	}
}

func TestClient_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := newClient(t, ts.URL).GetHotelPhotos(ctx, 1)
	if !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("expected ErrRemoteRequest for 404, got %v", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := hotels.New(hotels.Options{BaseURL: "http://x"}); err == nil {
		t.Fatalf("expected error without key")
	}
}
