package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/phuslu/log"

	"realty-engine/internal/config"
	"realty-engine/internal/events"
	"realty-engine/internal/httpapi"
	"realty-engine/internal/poll"
	"realty-engine/internal/store"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	dataDir := envOr("REALTY_DATA_DIR", ".")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("data_dir", dataDir).Msg("data dir")
	}

	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatal().Err(err).Msg("data dir lock")
	}
	if !locked {
		log.Fatal().Str("data_dir", dataDir).Msg("another engine is already using this data dir")
	}
	defer func() { _ = lock.Unlock() }()

	defaultCfgPath := envOr("REALTY_CONFIG", filepath.Join("config", "config.yml"))
	userCfgPath, err := config.EnsureUserConfig(dataDir, defaultCfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config bootstrap failed")
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		cfg, err := config.Load(userCfgPath)
		if err != nil {
			return cfg, err
		}
		if err := config.OverlayLocations(&cfg, filepath.Join(dataDir, "locations.yml")); err != nil {
			return cfg, fmt.Errorf("locations.yml: %w", err)
		}
		return cfg, config.Validate(cfg)
	}
	cfg, err := loadCfg()
	if err != nil {
		log.Fatal().Err(err).Str("path", userCfgPath).Msg("config load failed")
	}
	cfgVal.Store(cfg)
	setupLogger(cfg)

	dsn := cfg.Store.DSN
	if cfg.Store.Driver == store.DriverSQLite && dsn == "" {
		dsn = filepath.Join(dataDir, "realty.db")
	}
	db, err := store.Open(cfg.Store.Driver, dsn)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store open failed")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	hub := events.NewHub()
	runner := poll.NewRunner(ctx, &cfgVal, db, hub)

	if once, _ := strconv.ParseBool(os.Getenv("REALTY_RUN_ONCE")); once {
		rep, err := runner.RunOnce(ctx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rep)
		if err != nil {
			log.Error().Err(err).Msg("run failed")
			os.Exit(1)
		}
		return
	}

	go func() {
		if err := poll.StartPoller(ctx, &cfgVal, runner); err != nil {
			log.Error().Err(err).Msg("poller stopped")
		}
	}()

	addr := envOr("REALTY_ADDR", fmt.Sprintf("127.0.0.1:%d", cfg.App.Port))
	mux := httpapi.NewMux(httpapi.Deps{
		Store:       db,
		Hub:         hub,
		Runs:        runner,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.Chain(mux, httpapi.RequestID, httpapi.Recover, httpapi.AccessLog, httpapi.Cors),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info().Str("addr", "http://"+addr).Str("driver", cfg.Store.Driver).Str("config", userCfgPath).Msg("engine listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("http server")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
