// Package app wires configuration into a ready client: storage backend, gateway,
// API client, session store and progress tracker.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/and161185/learnhub-client/internal/api"
	"github.com/and161185/learnhub-client/internal/config"
	"github.com/and161185/learnhub-client/internal/gateway"
	"github.com/and161185/learnhub-client/internal/migrate"
	"github.com/and161185/learnhub-client/internal/progress"
	"github.com/and161185/learnhub-client/internal/routes"
	"github.com/and161185/learnhub-client/internal/session"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/and161185/learnhub-client/internal/storage/file"
	"github.com/and161185/learnhub-client/internal/storage/memory"
	"github.com/and161185/learnhub-client/internal/storage/postgres"
	redisstore "github.com/and161185/learnhub-client/internal/storage/redis"
	"github.com/and161185/learnhub-client/internal/ui"
)

// App is a wired client. Close releases the storage backend.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	Routes   *routes.Table
	Location *ui.Router
	Storage  storage.Storage
	Gateway  *gateway.Gateway
	API      *api.Client
	Session  *session.Store
	Progress *progress.Tracker
	Registry *prometheus.Registry

	closers []func()
}

// NewLogger builds a production logger at level writing to stderr.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// New builds the client. notifier receives user-facing notifications; nil logs them instead.
// log may be nil, in which case one is built from cfg.LogLevel.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, notifier ui.Notifier) (*App, error) {
	if log == nil {
		l, err := NewLogger(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		log = l
	}
	if notifier == nil {
		notifier = ui.LogNotifier{Log: log}
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Routes:   routes.Default(),
		Location: ui.NewRouter(cfg.Path),
		Registry: prometheus.NewRegistry(),
	}

	st, closeStore, err := OpenStorage(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	a.Storage = st
	a.closers = append(a.closers, closeStore)

	metrics, err := gateway.NewMetrics(a.Registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	gw, err := gateway.New(cfg.APIURL, st, a.Routes,
		gateway.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		gateway.WithLogger(log.Named("gateway")),
		gateway.WithLocation(a.Location),
		gateway.WithNavigator(a.Location),
		gateway.WithNotifier(notifier),
		gateway.WithMetrics(metrics),
		gateway.WithRateLimit(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = gw
	a.API = api.New(gw)

	sess, err := session.New(ctx, a.API, st, a.Routes,
		session.WithLogger(log.Named("session")),
		session.WithLocation(a.Location),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	gw.OnSessionExpired(sess.Expire)
	a.Session = sess
	a.Progress = progress.New(st, log.Named("progress"))
	return a, nil
}

// OpenStorage opens the configured backend. The returned func releases it.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Storage, func(), error) {
	nop := func() {}
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nop, nil

	case config.BackendFile, "":
		dir := cfg.Dir
		if dir == "" {
			dir = file.DefaultDir()
		}
		if cfg.Passphrase != "" {
			st, err := file.NewSealed(dir, cfg.Passphrase)
			if err != nil {
				return nil, nil, fmt.Errorf("open sealed storage: %w", err)
			}
			return st, nop, nil
		}
		st, err := file.New(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open storage: %w", err)
		}
		return st, nop, nil

	case config.BackendRedis:
		client, err := redisstore.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis storage: %w", err)
		}
		return redisstore.NewStore(client, "learnhub:"+cfg.Namespace+":"), func() {
			if err := client.Close(); err != nil {
				log.Warn("close redis", zap.Error(err))
			}
		}, nil

	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.PostgresDSN, log.Named("migrate")); err != nil {
			return nil, nil, fmt.Errorf("migrate storage: %w", err)
		}
		db, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return postgres.NewStore(db, cfg.Namespace), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Navigate moves the client to path, as a UI router would before running a guard.
func (a *App) Navigate(ctx context.Context, path string) {
	a.Location.Navigate(ctx, path)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.Log.Sync()
}
