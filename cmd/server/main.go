package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	httpserver "github.com/Clark-Hu/movie-catalog/internal/http"
	"github.com/Clark-Hu/movie-catalog/internal/movies"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/storage"
	"github.com/Clark-Hu/movie-catalog/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	backend, closeBackend := openBackend(ctx, cfg, logger)
	defer closeBackend()

	kv := storage.New(ctx, backend, logger)
	repo := repository.New(kv)
	if cfg.ResetStorage {
		logger.Printf("storage: RESET_STORAGE set, dropping persisted list")
		repo.Movies.Clear(ctx)
	}

	catalogClient, err := catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogAPIKey, cfg.CatalogAPIHost, time.Duration(cfg.CatalogTimeoutSecs)*time.Second, logger)
	if err != nil {
		log.Fatalf("init catalog client: %v", err)
	}

	st := movies.New(ctx, repo.Movies, catalogClient, movies.Options{
		Logger: logger,
		Query: catalog.Query{
			Type:  cfg.CatalogType,
			Genre: cfg.CatalogGenre,
			Rows:  cfg.CatalogRows,
		},
	})
	server := httpserver.New(cfg, st, kv, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()
	logger.Printf("listening on :%s (storage=%s, available=%t)", cfg.Port, cfg.StorageBackend, kv.Available())
	if cfg.RefreshOnStart {
		refreshInBackground(ctx, st)
	}

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logger.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("graceful shutdown error: %v", err)
	}
}

// refreshInBackground loads the remote list without holding up the listener.
// Failure is logged by the store; the cached list keeps serving. The returned
// channel closes when the refresh finishes or ctx is cancelled.
func refreshInBackground(ctx context.Context, st *movies.Store) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = st.RefreshFromRemote(ctx)
	}()
	return done
}

// newLogger writes to stdout, and also to a rotating file when LOG_FILE is set.
func newLogger(cfg config.Config) (*log.Logger, func()) {
	const prefix = "[movie-catalog] "
	const flags = log.LstdFlags | log.Lshortfile
	if cfg.LogFile == "" {
		return log.New(os.Stdout, prefix, flags), func() {}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}
	return log.New(io.MultiWriter(os.Stdout, rotator), prefix, flags), func() { _ = rotator.Close() }
}

// openBackend returns a nil backend when storage is disabled or cannot be
// opened; the adapter then runs every call as a logged no-op.
func openBackend(ctx context.Context, cfg config.Config, logger *log.Logger) (storage.Backend, func()) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.BackendBolt:
		db, err := storage.OpenBolt(cfg.StoragePath)
		if err != nil {
			logger.Printf("storage: open bolt %s: %v", cfg.StoragePath, err)
			return nil, noop
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Printf("storage: close bolt: %v", err)
			}
		}
	case config.BackendFile:
		return storage.NewFileBackend(afero.NewOsFs(), cfg.StoragePath), noop
	case config.BackendPostgres:
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		st, err := store.New(dbCtx, cfg.DBURL, store.Options{
			MaxConns:               int32(cfg.DBMaxConns),
			MinConns:               int32(cfg.DBMinConns),
			MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
			MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
			ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
			StatementCacheCapacity: cfg.DBStatementCache,
			Logger:                 logger,
		})
		if err != nil {
			logger.Printf("storage: connect database: %v", err)
			return nil, noop
		}
		return st, st.Close
	case config.BackendMemory:
		return storage.NewMemoryBackend(), noop
	default:
		return nil, noop
	}
}
