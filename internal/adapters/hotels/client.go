// internal/adapters/hotels/client.go
package hotels

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"hotelbot/internal/adapters/observability"
	"hotelbot/internal/domain"
)

const cityGroup = "CITY_GROUP"

type Options struct {
	BaseURL  string
	Host     string // x-rapidapi-host
	Key      string
	Locale   string
	Currency string
	RPS      int
	Timeout  time.Duration
}

type Client struct {
	base     string
	host     string
	key      string
	locale   string
	currency string
	hc       *http.Client
	rl       *rate.Limiter
}

func New(o Options) (*Client, error) {
	if o.Key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.Locale == "" {
		o.Locale = "ru_RU"
	}
	if o.Currency == "" {
		o.Currency = "RUB"
	}
	return &Client{
		base:     strings.TrimRight(o.BaseURL, "/"),
		host:     o.Host,
		key:      o.Key,
		locale:   o.Locale,
		currency: o.Currency,
		hc:       &http.Client{Timeout: o.Timeout},
		rl:       rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
	}, nil
}

// ---- Public API ----

// SearchLocations returns the raw entities of the city suggestion group.
func (c *Client) SearchLocations(ctx context.Context, query string) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("locale", c.locale)
	q.Set("currency", c.currency)

	var out map[string]any
	if err := c.get(ctx, "locations", "/locations/v2/search", q, &out); err != nil {
		return nil, err
	}
	suggestions, ok := out["suggestions"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: locations: no suggestions", domain.ErrRemoteMalformed)
	}
	var entities []map[string]any
	for _, s := range suggestions {
		group, _ := s.(map[string]any)
		if group == nil || !strings.EqualFold(fmt.Sprint(group["group"]), cityGroup) {
			continue
		}
		entities = append(entities, objects(group["entities"])...)
	}
	return entities, nil
}

// SearchHotels fetches one result page.
func (c *Client) SearchHotels(ctx context.Context, hq domain.HotelQuery) (domain.HotelPage, error) {
	q := url.Values{}
	q.Set("destinationId", strconv.FormatInt(hq.DestinationID, 10))
	q.Set("pageNumber", strconv.Itoa(hq.Page))
	q.Set("pageSize", strconv.Itoa(hq.PageSize))
	q.Set("checkIn", hq.CheckIn.Format(domain.DateLayout))
	q.Set("checkOut", hq.CheckOut.Format(domain.DateLayout))
	q.Set("adults1", "1")
	q.Set("sortOrder", string(hq.Sort))
	q.Set("locale", c.locale)
	q.Set("currency", c.currency)
	if hq.PriceMin != nil {
		q.Set("minPrice", strconv.FormatFloat(*hq.PriceMin, 'f', -1, 64))
	}
	if hq.PriceMax != nil {
		q.Set("maxPrice", strconv.FormatFloat(*hq.PriceMax, 'f', -1, 64))
	}

	var out map[string]any
	if err := c.get(ctx, "properties_list", "/properties/list", q, &out); err != nil {
		return domain.HotelPage{}, err
	}
	sr, ok := dig(out, "data", "body", "searchResults").(map[string]any)
	if !ok {
		return domain.HotelPage{}, fmt.Errorf("%w: properties: no searchResults", domain.ErrRemoteMalformed)
	}
	raw, ok := sr["results"].([]any)
	if !ok {
		return domain.HotelPage{}, fmt.Errorf("%w: properties: no results", domain.ErrRemoteMalformed)
	}
	page := domain.HotelPage{Results: objects(raw)}
	if n, ok := sr["totalCount"].(float64); ok {
		page.TotalCount = int(n)
	}
	return page, nil
}

// GetHotelPhotos returns the raw hotelImages entries.
func (c *Client) GetHotelPhotos(ctx context.Context, hotelID int64) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(hotelID, 10))

	var out map[string]any
	if err := c.get(ctx, "hotel_photos", "/properties/get-hotel-photos", q, &out); err != nil {
		return nil, err
	}
	raw, ok := out["hotelImages"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: photos: no hotelImages", domain.ErrRemoteMalformed)
	}
	return objects(raw), nil
}

// ---- Internals ----

func dig(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[p]
	}
	return cur
}

func objects(v any) []map[string]any {
	raw, _ := v.([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, it := range raw {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRemoteRequest, err)
	}
	u := c.base + path + "?" + q.Encode()

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-RapidAPI-Key", c.key)
		if c.host != "" {
			req.Header.Set("X-RapidAPI-Host", c.host)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "hotelbot/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("hotels", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %v", domain.ErrRemoteRequest, ctx.Err())
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return fmt.Errorf("%w: %v", domain.ErrRemoteRequest, lastErr)
		}
		observability.ObserveExternal("hotels", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: %s: %v", domain.ErrRemoteMalformed, endpoint, err)
			}
			return nil

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			return fmt.Errorf("%w: %v", domain.ErrRemoteRequest, lastErr)

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("%w: bad status %d: %s", domain.ErrRemoteRequest, resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return fmt.Errorf("%w: %v", domain.ErrRemoteRequest, lastErr)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms doubling per attempt plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
