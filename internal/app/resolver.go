package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbot/internal/domain"
)

// Resolver turns free text into candidate locations: local store first,
// then the redis cache of remote answers, then the remote provider.
type Resolver struct {
	store   domain.LocationStore
	remote  domain.HotelsProvider
	cache   domain.Cache
	ttl     time.Duration
	timeout time.Duration
	limit   int
}

func NewResolver(s domain.LocationStore, p domain.HotelsProvider, c domain.Cache, ttl, timeout time.Duration) *Resolver {
	return &Resolver{store: s, remote: p, cache: c, ttl: ttl, timeout: timeout, limit: 10}
}

func (r *Resolver) Resolve(ctx context.Context, text string) ([]domain.Location, error) {
	text = strings.TrimSpace(text)
	key := domain.NormalizeName(text)
	if key == "" {
		return nil, nil
	}

	local, err := r.store.GetLocationsByName(ctx, text, r.limit)
	if err != nil {
		return nil, fmt.Errorf("locations by name: %w", err)
	}
	if len(local) > 0 {
		return local, nil
	}

	ck := "locations:" + key
	var cached []domain.Location
	if r.cache != nil {
		if ok, _ := r.cache.Get(ctx, ck, &cached); ok {
			return cached, nil
		}
	}

	rctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	entities, err := r.remote.SearchLocations(rctx, text)
	if err != nil {
		log.Warn().Err(err).Str("query", text).Msg("remote location lookup failed")
		return nil, nil
	}

	out := make([]domain.Location, 0, len(entities))
	for _, e := range entities {
		loc, ok, err := mapLocation(e)
		if err != nil {
			log.Debug().Err(err).Str("query", text).Msg("skip location entity")
			continue
		}
		if !ok {
			continue
		}
		if err := r.store.AddLocation(ctx, loc); err != nil {
			return nil, fmt.Errorf("add location %d: %w", loc.DestinationID, err)
		}
		out = append(out, loc)
		if len(out) == r.limit {
			break
		}
	}

	if r.cache != nil {
		_ = r.cache.Set(ctx, ck, out, int(r.ttl.Seconds()))
	}
	return out, nil
}

// Pick narrows candidates to one when the text names a caption or city exactly.
func Pick(text string, locs []domain.Location) (domain.Location, bool) {
	if len(locs) == 1 {
		return locs[0], true
	}
	key := domain.NormalizeName(text)
	var hit *domain.Location
	for i := range locs {
		l := &locs[i]
		if domain.NormalizeName(l.Caption) == key || l.NameLower == key {
			if hit != nil && hit.DestinationID != l.DestinationID {
				return domain.Location{}, false
			}
			hit = l
		}
	}
	if hit == nil {
		return domain.Location{}, false
	}
	return *hit, true
}
