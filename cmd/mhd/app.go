package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/mhd-core/internal/alerts"
	"github.com/DaDevFox/task-systems/mhd-core/internal/config"
	"github.com/DaDevFox/task-systems/mhd-core/internal/events"
	"github.com/DaDevFox/task-systems/mhd-core/internal/idresolver"
	"github.com/DaDevFox/task-systems/mhd-core/internal/logging"
	"github.com/DaDevFox/task-systems/mhd-core/internal/metrics"
	"github.com/DaDevFox/task-systems/mhd-core/internal/notify"
	"github.com/DaDevFox/task-systems/mhd-core/internal/query"
	"github.com/DaDevFox/task-systems/mhd-core/internal/repository"
	"github.com/DaDevFox/task-systems/mhd-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/mhd-core/internal/service"
)

// application holds the wired components for one CLI invocation
type application struct {
	cfg       *config.Config
	logger    *logrus.Logger
	kv        repository.KeyValueStore
	service   *service.ExpiryService
	scheduler *scheduler.Scheduler
	bus       *events.Bus
	gate      *notify.Gate
	resolver  *idresolver.ItemResolver
	registry  *prometheus.Registry
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	logging.SetLevel(cfg.Logging.Level)
	logging.SetFormatter(cfg.Logging.Format)
	logger := logging.Logger

	dbType, err := cfg.DatabaseType()
	if err != nil {
		return nil, err
	}
	tag, err := cfg.LanguageTag()
	if err != nil {
		return nil, err
	}

	kv, err := repository.NewKeyValueStore(cfg.Storage.Path, dbType)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s store at %s", dbType, cfg.Storage.Path)
	}

	store := repository.NewDocumentStore(kv, logger)
	if err := store.Load(ctx); err != nil {
		logger.WithError(err).Warn("continuing with defaults for unreadable documents")
	}

	notifier, err := notify.New(cfg.NotifyOptions(), logger)
	if err != nil {
		kv.Close()
		return nil, err
	}
	gate := notify.NewGate(notifier, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	bus := events.NewBus("mhd", logger)
	svc := service.NewExpiryService(
		store,
		alerts.NewTracker(gate, logger),
		query.NewEngine(tag),
		bus,
		m,
		logger,
	)

	sched := scheduler.New(cfg.Scheduler.Interval, svc.Run, logger, m)
	bus.Subscribe(sched.OnMutation,
		events.ItemUpserted,
		events.ItemDeleted,
		events.SettingsChanged,
		events.DataImported,
	)

	resolver := idresolver.NewItemResolver()
	resolver.Update(svc.Items())

	logger.WithFields(logrus.Fields{
		"storage_type": string(dbType),
		"storage_path": cfg.Storage.Path,
		"items":        len(svc.Items()),
	}).Debug("application initialized")

	return &application{
		cfg:       cfg,
		logger:    logger,
		kv:        kv,
		service:   svc,
		scheduler: sched,
		bus:       bus,
		gate:      gate,
		resolver:  resolver,
		registry:  registry,
	}, nil
}

func (a *application) refreshResolver() {
	a.resolver.Update(a.service.Items())
}

func (a *application) Close() error {
	a.scheduler.Stop()
	return a.kv.Close()
}
