package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nainya/doccatalog/internal/config"
	"github.com/nainya/doccatalog/internal/logger"
	"github.com/nainya/doccatalog/internal/metrics"
	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/document"
	"github.com/nainya/doccatalog/pkg/locale"
	"github.com/nainya/doccatalog/pkg/store"
	"github.com/nainya/doccatalog/pkg/store/memstore"
	"github.com/nainya/doccatalog/pkg/store/redisstore"
	"github.com/nainya/doccatalog/pkg/store/sqlitestore"
	"github.com/nainya/doccatalog/pkg/suggest"
)

// app holds the wired service components
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
	catalog  *catalog.Catalog
	docs     *document.Service
	suggest  *suggest.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.NewLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	st = store.WithLogging(st, log.StoreLogger(cfg.Store.Backend))

	folder, err := locale.New(cfg.Catalog.Locale)
	if err != nil {
		st.Close()
		return nil, err
	}
	constraints, err := constraint.NewRegistry(folder, constraint.Options{CacheSize: cfg.Catalog.ConstraintCacheSize})
	if err != nil {
		st.Close()
		return nil, err
	}

	c, err := catalog.New(st, constraints,
		catalog.WithLogger(log),
		catalog.WithMetrics(m),
		catalog.WithMaxRetries(cfg.Catalog.MaxRetries),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  m,
		store:    st,
		catalog:  c,
		docs:     document.NewService(c, document.WithLogger(log), document.WithMetrics(m)),
		suggest:  suggest.New(c, constraints, folder),
	}, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memstore.New(), nil
	case config.BackendSQLite:
		return sqlitestore.Open(cfg.SQLitePath)
	case config.BackendRedis:
		return redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// ready reports whether the store answers
func (a *app) ready(ctx context.Context) error {
	_, err := a.store.ListRecords(ctx)
	return err
}

func (a *app) Close() error {
	return a.store.Close()
}
