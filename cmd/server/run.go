package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/callmatch/internal/adapters/http"
	"github.com/dkeye/callmatch/internal/adapters/rtc"
	"github.com/dkeye/callmatch/internal/adapters/signal"
	"github.com/dkeye/callmatch/internal/admission"
	"github.com/dkeye/callmatch/internal/app"
	"github.com/dkeye/callmatch/internal/config"
	"github.com/dkeye/callmatch/internal/core"
	"github.com/dkeye/callmatch/internal/metrics"
	"github.com/dkeye/callmatch/internal/profile"
)

func newAdmission(ctx context.Context, cfg config.Admission) (core.Admission, func(), error) {
	switch cfg.Backend {
	case "none":
		return core.AllowAll{}, func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		log.Info().Str("module", "main").Str("addr", cfg.RedisAddr).Msg("connected to redis")
		return admission.NewFixedWindow(rdb, cfg.Limit, cfg.Interval), func() { rdb.Close() }, nil
	default:
		return admission.NewSlidingWindow(cfg.Limit, cfg.Interval), func() {}, nil
	}
}

func newProfiles(ctx context.Context, cfg config.Profile) (core.ProfileDirectory, *sql.DB, error) {
	if cfg.DSN == "" {
		return nil, nil, nil
	}
	db, err := profile.Open(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return profile.NewPostgres(db), db, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	adm, closeAdm, err := newAdmission(ctx, cfg.Admission)
	if err != nil {
		return err
	}
	defer closeAdm()

	profiles, db, err := newProfiles(ctx, cfg.Profile)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	ice, err := rtc.ICEServers(cfg.ICEServers)
	if err != nil {
		return err
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	opts := app.Options{
		RingTimeout:    cfg.RingTimeout,
		ProfileTimeout: cfg.Profile.Timeout,
		Admission:      adm,
		Policy:         app.SimplePolicy{},
	}
	if profiles != nil {
		opts.Profiles = profiles
	}
	sb := app.NewSwitchboard(opts)

	ctl := signal.NewSignalWSController(sb, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		WriteWait:  cfg.WriteWait,
		SendBuffer: cfg.SendBuffer,
		ICEServers: ice,
	})
	r := router.SetupRouter(ctx, cfg, router.Deps{
		Switchboard: sb,
		Signal:      ctl,
		ICEServers:  ice,
		Gatherer:    prometheus.DefaultGatherer,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("mode", cfg.Mode).Msg("callmatch server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("Shutting down")
	sb.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
