// Command warmer resolves a list of city names ahead of traffic so the
// location table and cache are populated before users ask.
package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotelbot/internal/adapters/hotels"
	"hotelbot/internal/adapters/observability"
	redisad "hotelbot/internal/adapters/redis"
	"hotelbot/internal/app"
	"hotelbot/internal/shared"
	mysqlrepo "hotelbot/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	log.Info().
		Str("base", cfg.HotelsBase).
		Int("workers", cfg.WarmWorkers).
		Int("cities", len(cfg.WarmLocations)).
		Msg("warmer starting")
	if len(cfg.WarmLocations) == 0 {
		log.Warn().Msg("WARM_LOCATIONS is empty, nothing to do")
		return
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	client, err := hotels.New(hotels.Options{
		BaseURL:  cfg.HotelsBase,
		Host:     cfg.HotelsHost,
		Key:      cfg.HotelsKey,
		Locale:   cfg.HotelsLocale,
		Currency: cfg.HotelsCurrency,
		RPS:      cfg.HotelsRPS,
		Timeout:  cfg.RemoteTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize hotels client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()

	resolver := app.NewResolver(repo, client, cache, cfg.CacheTTL, cfg.RemoteTimeout)
	sem := semaphore.NewWeighted(int64(cfg.WarmWorkers))
	var (
		wg     sync.WaitGroup
		misses atomic.Int32
	)

	for _, name := range cfg.WarmLocations {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			defer sem.Release(1)

			locs, err := resolver.Resolve(ctx, city)
			if err != nil {
				misses.Add(1)
				log.Warn().Str("city", city).Err(err).Msg("warm failed")
				return
			}
			if len(locs) == 0 {
				misses.Add(1)
				log.Warn().Str("city", city).Msg("no locations found")
				return
			}
			log.Info().Str("city", city).Int("locations", len(locs)).Msg("warm ok")
		}(name)
	}

	wg.Wait()
	log.Info().Int32("misses", misses.Load()).Msg("warming completed")
}
