// Package app builds the long-lived services behind each command from a loaded Config.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/distcrawl/internal/api"
	"github.com/JakeFAU/distcrawl/internal/clock/system"
	"github.com/JakeFAU/distcrawl/internal/config"
	"github.com/JakeFAU/distcrawl/internal/crawler"
	collyfetcher "github.com/JakeFAU/distcrawl/internal/fetcher/colly"
	"github.com/JakeFAU/distcrawl/internal/fetcher/stream"
	md5hash "github.com/JakeFAU/distcrawl/internal/hash/md5"
	"github.com/JakeFAU/distcrawl/internal/id/uuid"
	"github.com/JakeFAU/distcrawl/internal/orchestrator"
	"github.com/JakeFAU/distcrawl/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/distcrawl/internal/publisher/pubsub"
	"github.com/JakeFAU/distcrawl/internal/site"
	memorystore "github.com/JakeFAU/distcrawl/internal/storage/memory"
	"github.com/JakeFAU/distcrawl/internal/storage/postgres"
	"github.com/JakeFAU/distcrawl/internal/storage/scratch"
	"github.com/JakeFAU/distcrawl/internal/worker"
)

// App holds the shared services for one process and releases them on Close.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	closers []func() error
}

// New creates an App for cfg.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{cfg: cfg, logger: logger}
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Worker wires a single worker run for the configured identity. An identity with no
// profile binding gets a runner without a crawler, which reports an empty batch.
func (a *App) Worker() (*worker.Runner, error) {
	identity := a.cfg.Identity()
	logger := a.logger.Named("worker").With(zap.String("worker_id", identity))

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:     a.cfg.Crawler.UserAgent,
		RespectRobots: a.cfg.Crawler.RespectRobots,
		Timeout:       a.cfg.Timeout(),
		Delay:         a.cfg.Delay(),
	})
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	var (
		seedCrawler worker.SeedCrawler
		store       crawler.ScratchStore
	)
	profile, ok, err := a.cfg.ProfileFor(identity)
	if err != nil {
		return nil, fmt.Errorf("resolve site profile: %w", err)
	}
	if ok {
		scratchStore, err := scratch.New(scratch.Config{
			BaseDir: filepath.Clean(a.cfg.Worker.ScratchRoot),
			Name:    profile.ScratchDir,
		})
		if err != nil {
			return nil, fmt.Errorf("init scratch store: %w", err)
		}
		s, err := site.New(profile, site.Deps{
			Fetcher: fetcher,
			Stream: stream.New(stream.Config{
				UserAgent: a.cfg.Crawler.UserAgent,
				Timeout:   a.cfg.Timeout(),
				Pacer:     ratelimit.New(ratelimit.Config{Delay: a.cfg.Delay()}),
			}),
			Store:  scratchStore,
			Hasher: md5hash.New(),
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init site %s: %w", profile.Kind, err)
		}
		seedCrawler = crawler.NewSiteCrawler(s, logger)
		store = scratchStore
		logger.Info("site profile bound", zap.String("profile", string(profile.Kind)), zap.String("scratch", scratchStore.Dir()))
	} else {
		logger.Warn("no site profile bound to identity")
	}

	return worker.New(
		worker.Config{
			Identity:          identity,
			MaxReportAttempts: a.cfg.Worker.MaxReportAttempts,
			PushURL:           a.cfg.Metrics.PushURL,
		},
		orchestrator.NewAssignmentClient(a.cfg.Orchestrator.URL, fetcher),
		seedCrawler,
		store,
		orchestrator.NewCollectorClient(a.cfg.Orchestrator.URL, fetcher),
		logger,
	), nil
}

// Orchestrator wires the assignment service and result collector.
func (a *App) Orchestrator(ctx context.Context) (*api.Server, error) {
	logger := a.logger.Named("api")

	store, err := a.resultStore(ctx)
	if err != nil {
		return nil, err
	}

	var publisher crawler.Publisher
	if a.cfg.PubSub.TopicName != "" {
		pub, err := pubsubpublisher.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		publisher = pub
		logger.Info("batch notifications enabled", zap.String("topic", a.cfg.PubSub.TopicName))
	}

	return api.NewServer(store, publisher, uuid.New(), system.New(), a.cfg, logger), nil
}

func (a *App) resultStore(ctx context.Context) (crawler.ResultStore, error) {
	switch a.cfg.Store.Driver {
	case config.StorePostgres:
		store, err := postgres.NewResultStore(ctx, postgres.ResultStoreConfig{
			DSN:      a.cfg.Store.DSN,
			Table:    a.cfg.Store.Table,
			MaxConns: a.cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres result store", zap.String("table", a.cfg.Store.Table))
		return store, nil
	case config.StoreMemory, "":
		a.logger.Info("using in-memory result store; records are lost on exit")
		return memorystore.NewResultStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", a.cfg.Store.Driver)
	}
}

// Close releases every service opened by the App in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}
