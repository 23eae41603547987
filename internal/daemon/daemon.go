// Package daemon assembles and runs the docsync service: registry, sync
// coordinator, event journal, HTTP surface, reconcile scheduler, and config
// hot reload.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/coordinator"
	"git.home.luguber.info/inful/docsync/internal/eventstore"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/gitfetch"
	"git.home.luguber.info/inful/docsync/internal/metrics"
	"git.home.luguber.info/inful/docsync/internal/natspub"
	"git.home.luguber.info/inful/docsync/internal/registry"
	"git.home.luguber.info/inful/docsync/internal/search"
	"git.home.luguber.info/inful/docsync/internal/server/handlers"
	"git.home.luguber.info/inful/docsync/internal/server/httpserver"
	"git.home.luguber.info/inful/docsync/internal/siteconfig"
	"git.home.luguber.info/inful/docsync/internal/workspace"
)

const shutdownTimeout = 30 * time.Second

// Daemon wires the docsync components together and manages their lifecycle.
type Daemon struct {
	cfg        atomic.Pointer[config.Config]
	configPath string

	store      registry.Store
	events     eventstore.Store
	projection *eventstore.SyncHistoryProjection
	journal    *eventstore.Journal
	publisher  *natspub.Publisher
	index      *search.Index
	pipeline   *coordinator.Pipeline
	coord      *coordinator.Coordinator
	server     *httpserver.Server
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	registry   *prom.Registry
}

// New builds a daemon from configuration. configPath may be empty; hot
// reload is disabled then.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	d := &Daemon{configPath: configPath}
	d.cfg.Store(cfg)

	ws := workspace.NewManager(cfg.Workspace.Dir)
	if err := ws.Ensure(); err != nil {
		return nil, ferrors.DaemonError("failed to prepare workspace").WithCause(err).Build()
	}

	store, err := registry.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, ferrors.DaemonError("failed to open enrollment registry").WithCause(err).Build()
	}
	d.store = store

	// The journal shares the registry's database file; the two live in
	// separate tables.
	events, err := eventstore.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		d.closePartial()
		return nil, ferrors.DaemonError("failed to open sync event journal").WithCause(err).Build()
	}
	d.events = events
	d.projection = eventstore.NewSyncHistoryProjection(events, 0)
	d.journal = eventstore.NewJournal(events, d.projection)

	notifiers := coordinator.MultiNotifier{d.journal}
	if cfg.NATS != nil {
		pub, err := natspub.NewPublisher(cfg.NATS)
		if err != nil {
			d.closePartial()
			return nil, ferrors.DaemonError("failed to connect NATS publisher").WithCause(err).Build()
		}
		d.publisher = pub
		notifiers = append(notifiers, pub)
	}

	d.registry = prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(d.registry)

	index, err := search.NewIndex(cfg.Search.Path)
	if err != nil {
		d.closePartial()
		return nil, ferrors.DaemonError("failed to open search index").WithCause(err).Build()
	}
	d.index = index

	sitePublisher, err := siteconfig.NewStore(cfg.Site.OutputDir)
	if err != nil {
		d.closePartial()
		return nil, ferrors.DaemonError("failed to prepare site output directory").WithCause(err).Build()
	}
	writer := siteconfig.NewWriter(cfg.Site.ConfigPath)

	fetcher := gitfetch.NewFetcher(ws, cfg.Git, cfg.Sync, recorder)
	d.pipeline = coordinator.NewPipeline(store, fetcher, sitePublisher, writer, index, cfg.Site, cfg.Sync.DocsDir, recorder, notifiers)
	d.coord = coordinator.New(store, d.pipeline, coordinator.Options{
		Concurrency: cfg.Sync.Concurrency,
		JobDeadline: cfg.Sync.JobDeadlineDuration(),
		DedupWindow: cfg.Sync.DedupWindowDuration(),
	}, recorder, notifiers)

	d.server = httpserver.New(cfg, httpserver.Options{
		API: handlers.APIDeps{
			Store:      store,
			Syncer:     d.coord,
			Index:      index,
			History:    d.projection,
			Publisher:  sitePublisher,
			Config:     d.pipeline,
			MaxResults: cfg.Search.MaxResults,
		},
		Recorder:      recorder,
		Registry:      d.registry,
		WebhookSecret: func() string { return d.cfg.Load().Server.Webhook.Secret },
	})

	if cfg.Reconcile.Enabled {
		sched, err := NewScheduler(d.coord, store, cfg.Reconcile.IntervalDuration())
		if err != nil {
			d.closePartial()
			return nil, ferrors.DaemonError("failed to create reconcile scheduler").WithCause(err).Build()
		}
		d.scheduler = sched
	}

	if configPath != "" {
		watcher, err := NewConfigWatcher(configPath, d.ReloadConfig)
		if err != nil {
			slog.Warn("Config hot reload disabled", "error", err)
		} else {
			d.watcher = watcher
		}
	}

	return d, nil
}

// Start brings the daemon up. Components start in dependency order: the
// history projection is rebuilt before anything can append to it, the
// coordinator before the HTTP surface can enqueue.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.projection.Rebuild(ctx); err != nil {
		slog.Warn("Sync history rebuild failed; starting with empty history", "error", err)
	}

	d.coord.Start(ctx)

	if err := d.server.Start(ctx); err != nil {
		return err
	}
	if d.scheduler != nil {
		d.scheduler.Start()
	}
	if d.watcher != nil {
		d.watcher.Start(ctx)
	}

	slog.Info("Daemon started",
		slog.String("listen", d.cfg.Load().Server.Listen),
		slog.Bool("reconcile", d.scheduler != nil),
		slog.Bool("nats", d.publisher != nil))
	return nil
}

// Run starts the daemon and blocks until the context is canceled, then
// shuts down.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		d.closePartial()
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Stop shuts the daemon down in reverse start order: stop accepting HTTP
// traffic, drain in-flight syncs, then close the stores.
func (d *Daemon) Stop(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.scheduler != nil {
		record(d.scheduler.Stop())
	}
	record(d.server.Stop(ctx))
	record(d.coord.Stop(ctx))
	d.closePartial()

	slog.Info("Daemon stopped")
	return firstErr
}

// ReloadConfig applies a changed configuration file. Only settings that are
// safe to swap live take effect: currently the webhook secret. Changes to
// listen address, storage paths, or sync limits require a restart and are
// logged as such.
func (d *Daemon) ReloadConfig(next *config.Config) error {
	current := d.cfg.Load()

	if next.Server.Listen != current.Server.Listen ||
		next.Store.Path != current.Store.Path ||
		next.Workspace.Dir != current.Workspace.Dir ||
		next.Search.Path != current.Search.Path {
		return fmt.Errorf("listen address and storage paths cannot change without a restart")
	}
	if next.Sync.Concurrency != current.Sync.Concurrency {
		slog.Warn("Sync concurrency change ignored until restart",
			slog.Int("current", current.Sync.Concurrency),
			slog.Int("requested", next.Sync.Concurrency))
	}

	d.cfg.Store(next)
	if next.Server.Webhook.Secret != current.Server.Webhook.Secret {
		slog.Info("Webhook secret rotated")
	}
	slog.Info("Configuration reloaded")
	return nil
}

// Config returns the currently active configuration.
func (d *Daemon) Config() *config.Config {
	return d.cfg.Load()
}

// closePartial closes whatever stores have been opened so far. Safe to call
// on a half-constructed daemon.
func (d *Daemon) closePartial() {
	if d.publisher != nil {
		d.publisher.Close()
		d.publisher = nil
	}
	if d.index != nil {
		if err := d.index.Close(); err != nil {
			slog.Warn("Search index close failed", "error", err)
		}
		d.index = nil
	}
	if d.events != nil {
		if err := d.events.Close(); err != nil {
			slog.Warn("Event journal close failed", "error", err)
		}
		d.events = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			slog.Warn("Registry close failed", "error", err)
		}
		d.store = nil
	}
}
