package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotelbot/internal/domain"
)

// PhotoService resolves photo URLs per hotel: redis, then the store, then the
// provider (whose answer is persisted for next time). Failures yield no photos.
type PhotoService struct {
	store   domain.HotelStore
	remote  domain.HotelsProvider
	cache   domain.Cache
	size    string
	ttl     time.Duration
	timeout time.Duration
	workers int64
}

func NewPhotoService(s domain.HotelStore, p domain.HotelsProvider, c domain.Cache, size string, workers int, ttl, timeout time.Duration) *PhotoService {
	if workers <= 0 {
		workers = 4
	}
	return &PhotoService{store: s, remote: p, cache: c, size: size, ttl: ttl, timeout: timeout, workers: int64(workers)}
}

func (p *PhotoService) Photos(ctx context.Context, hotelID int64, n int) []string {
	if n <= 0 {
		return nil
	}
	key := fmt.Sprintf("photos:%d:%d:%s", hotelID, n, p.size)
	var urls []string
	if p.cache != nil {
		if ok, _ := p.cache.Get(ctx, key, &urls); ok {
			return urls
		}
	}

	l := log.With().Int64("hotel_id", hotelID).Logger()
	stored, err := p.store.GetHotelPhotos(ctx, hotelID, n)
	if err != nil {
		l.Warn().Err(err).Msg("stored photos lookup failed")
		return nil
	}
	if len(stored) == 0 {
		stored = p.fetch(ctx, hotelID)
		if len(stored) > n {
			stored = stored[:n]
		}
	}

	urls = make([]string, 0, len(stored))
	for _, ph := range stored {
		urls = append(urls, ph.URL(p.size))
	}
	if p.cache != nil && len(urls) > 0 {
		_ = p.cache.Set(ctx, key, urls, int(p.ttl.Seconds()))
	}
	return urls
}

func (p *PhotoService) fetch(ctx context.Context, hotelID int64) []domain.HotelPhoto {
	l := log.With().Int64("hotel_id", hotelID).Logger()
	rctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	raw, err := p.remote.GetHotelPhotos(rctx, hotelID)
	if err != nil {
		l.Warn().Err(err).Msg("remote photos lookup failed")
		return nil
	}
	out := make([]domain.HotelPhoto, 0, len(raw))
	for _, r := range raw {
		ph, err := mapPhoto(hotelID, r)
		if err != nil {
			l.Debug().Err(err).Msg("skip photo")
			continue
		}
		out = append(out, ph)
	}
	if len(out) > 0 {
		if err := p.store.AddHotelPhotos(ctx, out); err != nil {
			l.Warn().Err(err).Msg("persist photos failed")
		}
	}
	return out
}

// Decorate resolves up to n photos for every result with bounded concurrency.
func (p *PhotoService) Decorate(ctx context.Context, results []domain.SearchResult, n int) map[int64][]string {
	out := make(map[int64][]string, len(results))
	if n <= 0 || len(results) == 0 {
		return out
	}
	sem := semaphore.NewWeighted(p.workers)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, r := range results {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(hotelID int64) {
			defer wg.Done()
			defer sem.Release(1)
			urls := p.Photos(ctx, hotelID, n)
			mu.Lock()
			out[hotelID] = urls
			mu.Unlock()
		}(r.Hotel.ID)
	}
	wg.Wait()
	return out
}
