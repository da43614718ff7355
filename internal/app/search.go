package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hotelbot/internal/adapters/observability"
	"hotelbot/internal/domain"
)

type SearchConfig struct {
	PageSize    int
	MaxPages    int
	Timeout     time.Duration // per page request
	BookingBase string
	Currency    string
}

// Aggregator pages through the provider until the session's result count is met.
type Aggregator struct {
	remote domain.HotelsProvider
	cfg    SearchConfig
}

func NewAggregator(p domain.HotelsProvider, cfg SearchConfig) *Aggregator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Aggregator{remote: p, cfg: cfg}
}

func sortFor(c domain.Command) domain.SortOrder {
	if c == domain.CommandHighPrice {
		return domain.SortPriceHighestFirst
	}
	return domain.SortPrice
}

// Search never fails: remote errors end pagination and whatever was
// collected so far is returned.
func (a *Aggregator) Search(ctx context.Context, s domain.Session) []domain.SearchResult {
	if s.LocationID == nil || s.CheckIn == nil || s.CheckOut == nil || s.ResultsNum == nil {
		return nil
	}
	want := *s.ResultsNum
	filters := s.Filters()
	cmd := string(s.Command)
	l := log.With().Int64("session_id", s.ID).Str("command", cmd).Logger()

	q := domain.HotelQuery{
		DestinationID: *s.LocationID,
		PageSize:      a.cfg.PageSize,
		CheckIn:       *s.CheckIn,
		CheckOut:      *s.CheckOut,
		Sort:          sortFor(s.Command),
	}
	if s.Command.Constrained() {
		q.PriceMin, q.PriceMax = s.PriceMin, s.PriceMax
	}

	out := make([]domain.SearchResult, 0, want)
	// result sets shift between page requests; a hotel counts once
	seen := make(map[int64]struct{}, want)
	defer func() { observability.ObserveSearchResults(cmd, len(out)) }()

	for page := 1; page <= a.cfg.MaxPages; page++ {
		q.Page = page
		pctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		res, err := a.remote.SearchHotels(pctx, q)
		cancel()
		if err != nil {
			observability.ObserveSearchPage(cmd, "error")
			l.Warn().Err(err).Int("page", page).Msg("search page failed")
			return out
		}

		parsed := 0
		for _, raw := range res.Results {
			h, price, err := mapHotel(raw)
			if err != nil {
				l.Debug().Err(err).Int("page", page).Msg("skip hotel")
				continue
			}
			parsed++
			if _, dup := seen[h.ID]; dup {
				continue
			}
			if !filters.Accept(price, h.Distance) {
				continue
			}
			seen[h.ID] = struct{}{}
			out = append(out, domain.SearchResult{
				SessionID: s.ID,
				Hotel:     h,
				Price:     price,
				URL:       bookingURL(a.cfg.BookingBase, a.cfg.Currency, h.ID, s),
			})
			if len(out) == want {
				observability.ObserveSearchPage(cmd, "ok")
				return out
			}
		}
		if parsed == 0 {
			observability.ObserveSearchPage(cmd, "empty")
			return out
		}
		observability.ObserveSearchPage(cmd, "ok")
		if res.TotalCount > 0 && page*a.cfg.PageSize >= res.TotalCount {
			return out
		}
	}
	l.Info().Int("pages", a.cfg.MaxPages).Int("found", len(out)).Msg("search page cap reached")
	return out
}
