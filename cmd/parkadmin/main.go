package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vbonduro/parkadmin/internal/config"
	"github.com/vbonduro/parkadmin/internal/db"
	"github.com/vbonduro/parkadmin/internal/gate"
	"github.com/vbonduro/parkadmin/internal/identity"
	"github.com/vbonduro/parkadmin/internal/identity/google"
	"github.com/vbonduro/parkadmin/internal/logging"
	"github.com/vbonduro/parkadmin/internal/photostore"
	"github.com/vbonduro/parkadmin/internal/photostore/local"
	"github.com/vbonduro/parkadmin/internal/photostore/s3"
	"github.com/vbonduro/parkadmin/internal/service"
	"github.com/vbonduro/parkadmin/internal/session"
	"github.com/vbonduro/parkadmin/internal/store"
	"github.com/vbonduro/parkadmin/internal/vision"
	claudevision "github.com/vbonduro/parkadmin/internal/vision/claude"
	ollamavision "github.com/vbonduro/parkadmin/internal/vision/ollama"
	"github.com/vbonduro/parkadmin/internal/web"
	"github.com/vbonduro/parkadmin/internal/web/templates"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("parkadmin stopped", "error", err)
		cleanup()
		os.Exit(1)
	}
	cleanup()
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, dialect, feed, closeDB, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	records := store.NewRestrictionStore(database, dialect)
	roles := store.NewRoleStore(database, dialect)

	sessions, err := session.NewRedisStore(cfg.Redis.URL, cfg.Auth.SessionTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Error("failed to close session store", "error", err)
		}
	}()

	photos, err := newPhotoStore(cfg.Photos)
	if err != nil {
		return fmt.Errorf("failed to initialize photo store: %w", err)
	}

	registry := workbench.NewRegistry(records, feed, cfg.Maps.Center(), logger,
		workbench.WithIdleTimeout(cfg.Auth.WorkbenchIdle))
	defer registry.CloseAll()
	// Tabs that never connected a live view, or lost it, hold a feed subscription until swept.
	go registry.SweepEvery(ctx, time.Minute)

	probes := map[string]web.Pinger{"store": records, "sessions": sessions}
	if p, ok := photos.(web.Pinger); ok {
		probes["photos"] = p
	}

	server := web.NewServer(web.Deps{
		Gate:        gate.New(sessions, roles, logger),
		Sessions:    sessions,
		Roles:       roles,
		Identity:    google.NewProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleRedirectURI, logger),
		States:      identity.NewStateSigner(cfg.Auth.StateSecret),
		Workbenches: registry,
		Photos:      service.NewPhotoService(photos, newVisionAnalyzer(cfg.Vision, logger), logger),
		Probes:      probes,
	}, web.Settings{
		MapsAPIKey:      cfg.Maps.APIKey,
		MapZoom:         cfg.Maps.Zoom,
		SessionTTL:      cfg.Auth.SessionTTL,
		CookieSecure:    cfg.Auth.CookieSecure,
		BootstrapAdmins: cfg.Auth.BootstrapAdmins,
	}, templates.FS, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.ListenAddr, "store", cfg.Store.Driver)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// Shutdown does not track hijacked websocket connections. Closing the
	// workbenches closes their watch channels, which ends each live handler.
	registry.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore opens the configured backend and its change feed.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, store.Dialect, workbench.Feed, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		pg, err := db.OpenPostgres(connectCtx, cfg.Store.PostgresDSN, cfg.Store.MaxConns)
		if err != nil {
			return nil, 0, nil, nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		closeFn := func() {
			if err := pg.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
		return pg.DB, store.Postgres, store.NewPostgresFeed(pg.Pool, logger), closeFn, nil
	default:
		database, err := db.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, 0, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		closeFn := func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
		return database, store.SQLite, store.NewSQLiteFeed(database, cfg.Store.PollInterval, logger), closeFn, nil
	}
}

func newPhotoStore(cfg config.PhotoConfig) (photostore.PhotoStore, error) {
	if cfg.Backend == "minio" {
		ps, err := s3.NewPhotoStore(s3.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Region:    cfg.MinioRegion,
		})
		if err != nil {
			return nil, err
		}
		return ps, nil
	}
	ps, err := local.NewLocalPhotoStore(cfg.LocalPath)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// newVisionAnalyzer returns nil when sign reading is disabled.
func newVisionAnalyzer(cfg config.VisionConfig, logger *slog.Logger) vision.VisionAnalyzer {
	switch cfg.Backend {
	case "claude":
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel, logger)
	default:
		logger.Info("sign reading disabled")
		return nil
	}
}
