package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "hotelbot/internal/adapters/http_server"
	"hotelbot/internal/adapters/hotels"
	"hotelbot/internal/adapters/observability"
	redisad "hotelbot/internal/adapters/redis"
	"hotelbot/internal/app"
	"hotelbot/internal/domain"
	"hotelbot/internal/shared"
	mysqlrepo "hotelbot/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// redis
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}
	locker := redisad.NewLocker(cache.Client())

	// remote
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

	// deps
	repo := mysqlrepo.New(db)
	machine := domain.NewMachine(domain.Limits{MaxResults: cfg.MaxResults, MaxPhotos: cfg.MaxPhotos}, nil)
	resolver := app.NewResolver(repo, client, cache, cfg.CacheTTL, cfg.RemoteTimeout)
	search := app.NewAggregator(client, app.SearchConfig{
		PageSize:    cfg.PageSize,
		MaxPages:    cfg.MaxPages,
		Timeout:     cfg.RemoteTimeout,
		BookingBase: cfg.BookingBase,
		Currency:    cfg.HotelsCurrency,
	})
	photos := app.NewPhotoService(repo, client, cache, cfg.PhotoSize, cfg.PhotoWorker, cfg.CacheTTL, cfg.RemoteTimeout)
	conv := app.NewConversation(repo, machine, resolver, search, photos, locker, app.ConversationConfig{
		LockTTL:      cfg.LockTTL,
		HistoryLimit: cfg.HistoryLimit,
		Currency:     cfg.HotelsCurrency,
	})

	// http
	srv := server.New(cfg.HTTPTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(server.NewHandlers(conv))

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}
