package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/chart-exerciser/internal/candle"
	"github.com/amirphl/chart-exerciser/internal/config"
	"github.com/amirphl/chart-exerciser/internal/db"
	"github.com/amirphl/chart-exerciser/internal/db/conf"
	"github.com/amirphl/chart-exerciser/internal/exchange"
	"github.com/amirphl/chart-exerciser/internal/market"
	"github.com/amirphl/chart-exerciser/internal/scheduler"
	"github.com/amirphl/chart-exerciser/internal/server"
	"github.com/amirphl/chart-exerciser/internal/session"
	"github.com/amirphl/chart-exerciser/internal/utils"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// openSource builds the raw history source named by the config. The returned
// cleanup releases database handles once loading is done.
func openSource(cfg config.Config) (db.Source, func(), error) {
	noop := func() {}
	switch cfg.Data.Source {
	case config.SourceCSV:
		return db.NewCSVSource(cfg.Data.Dir), noop, nil

	case config.SourcePostgres:
		dbConfig, err := conf.NewConfig(cfg.Data.PostgresDSN, cfg.Data.DBMaxOpen, cfg.Data.DBMaxIdle)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create DB config: %w", err)
		}
		return db.NewPostgresSource(*dbConfig, "5m"), func() { dbConfig.DB.Close() }, nil

	case config.SourceSQLite:
		src, err := db.OpenSQLite(cfg.Data.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { src.Close() }, nil

	case config.SourceWallex:
		from, to, err := cfg.Data.WallexRange()
		if err != nil {
			return nil, nil, err
		}
		return exchange.NewWallexSource(cfg.Data.WallexAPIKey, cfg.Data.WallexSymbols, from, to), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// snapshotImport stores a Wallex import in SQLite when a path is configured,
// so the next start can use the sqlite source instead of the API.
func snapshotImport(ctx context.Context, cfg config.Config, store *db.MemoryStore) error {
	if cfg.Data.Source != config.SourceWallex || cfg.Data.SQLitePath == "" {
		return nil
	}
	dst, err := db.OpenSQLite(cfg.Data.SQLitePath)
	if err != nil {
		return err
	}
	defer dst.Close()
	return db.Snapshot(ctx, store, dst)
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	utils.InitLogger(cfg.Logging)
	logger := utils.GetLogger("main")
	logger.Info().Str("source", cfg.Data.Source).Msg("Starting chart exerciser")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load all price data before accepting any connection
	src, closeSrc, err := openSource(cfg)
	if err != nil {
		return err
	}
	store := db.NewMemory()
	started := time.Now()
	n, err := db.Load(ctx, store, src)
	closeSrc()
	if err != nil {
		return fmt.Errorf("failed to load price data: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no price data loaded from %s source", cfg.Data.Source)
	}
	logger.Info().Int("tickers", n).Dur("took", time.Since(started)).Msg("Price data loaded")

	if err := snapshotImport(ctx, cfg, store); err != nil {
		logger.Error().Err(err).Str("path", cfg.Data.SQLitePath).Msg("Failed to snapshot import")
	}

	meta, err := market.LoadTickerMeta(cfg.Data.TickersInfo)
	if err != nil {
		logger.Warn().Err(err).Msg("Serving tickers without metadata")
		meta = nil
	}
	catalog, err := market.NewCatalog(store, meta)
	if err != nil {
		return err
	}

	protocol := session.NewProtocol(store, catalog, candle.NewRandomTimer(cfg.Session.Seed))
	srv := server.New(cfg.Server, protocol)

	sched := scheduler.NewScheduler(store, srv)
	if cfg.Stats.Schedule != "" {
		if err := sched.RegisterStats(cfg.Stats.Schedule); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Received signal, shutting down...")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Chart exerciser failed")
	}
}
