package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/askiada/go-pdq/internal/ctxlog"
	"github.com/askiada/go-pdq/pkg/graphfile"
	"github.com/askiada/go-pdq/pkg/graphstore"
	"github.com/askiada/go-pdq/pkg/pipeline"
	"github.com/askiada/go-pdq/pkg/pipeline/drawer"
	"github.com/askiada/go-pdq/pkg/pipeline/measure"
	"github.com/askiada/go-pdq/pkg/stages"
)

// App encapsulates the application's dependencies and configuration.
type App struct {
	config   *Config
	logger   *slog.Logger
	registry *pipeline.Registry
	store    graphstore.Store

	measure  *measure.Observer
	metrics  *measure.PrometheusObserver
	gatherer *prometheus.Registry
}

// NewApp creates the application. Table writers print to outW and logs go to logW.
func NewApp(outW, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)

	reg := pipeline.NewRegistry()
	err := stages.Register(reg, outW)
	if err != nil {
		return nil, err
	}
	logger.Debug("stages registered", "count", len(reg.Types()))

	var store graphstore.Store = graphstore.NewMemoryStore()
	if cfg.StoreDir != "" {
		store, err = graphstore.NewFileStore(cfg.StoreDir)
		if err != nil {
			return nil, err
		}
	}

	gatherer := prometheus.NewRegistry()
	metrics, err := measure.NewPrometheusObserver(gatherer)
	if err != nil {
		return nil, err
	}

	return &App{
		config:   cfg,
		logger:   logger,
		registry: reg,
		store:    store,
		measure:  measure.NewObserver(measure.NewDefaultMeasure()),
		metrics:  metrics,
		gatherer: gatherer,
	}, nil
}

func (a *App) Config() *Config {
	return a.config
}

func (a *App) Logger() *slog.Logger {
	return a.logger
}

func (a *App) Registry() *pipeline.Registry {
	return a.registry
}

func (a *App) Store() graphstore.Store {
	return a.store
}

// Measure returns the per-node metrics collected by every session of the app.
func (a *App) Measure() measure.Measure {
	return a.measure.Measure()
}

func (a *App) Metrics() *measure.PrometheusObserver {
	return a.metrics
}

// Context returns ctx carrying the application logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// LoadGraph reads the pipeline file of the configuration.
func (a *App) LoadGraph() (*pipeline.Graph, error) {
	if a.config.PipelinePath == "" {
		return nil, errors.Wrap(ErrConfig, "pipeline path is required")
	}

	return graphfile.Load(a.config.PipelinePath, a.registry, graphfile.LoadSilent)
}

// Session is a runner wired to the observers of the app.
type Session struct {
	*pipeline.Runner

	app    *App
	drawer *drawer.DOTDrawer
}

func (a *App) session(g *pipeline.Graph, restore func(opts ...pipeline.RunnerOption) (*pipeline.Runner, error)) (*Session, error) {
	d, err := drawer.FromGraph(g)
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare drawing")
	}
	r, err := restore(
		pipeline.WithLogger(a.logger),
		pipeline.WithConcurrency(a.config.Concurrency),
		pipeline.WithObserver(a.measure),
		pipeline.WithObserver(a.metrics),
		pipeline.WithObserver(drawer.NewObserver(d)),
	)
	if err != nil {
		return nil, err
	}
	for _, n := range g.Nodes() {
		err := d.SetState(n.ID(), n.State())
		if err != nil {
			return nil, err
		}
	}

	return &Session{Runner: r, app: a, drawer: d}, nil
}

// Start loads the pipeline file for a fresh run. Run-states saved in the file
// are dropped since the outputs they refer to are not part of it.
func (a *App) Start(ctx context.Context) (*Session, error) {
	g, err := a.LoadGraph()
	if err != nil {
		return nil, err
	}
	s, err := a.session(g, func(opts ...pipeline.RunnerOption) (*pipeline.Runner, error) {
		return pipeline.NewRunner(g, opts...), nil
	})
	if err != nil {
		return nil, err
	}
	for _, head := range g.Heads() {
		err := s.Reset(ctx, head.ID())
		if err != nil {
			return nil, errors.Wrapf(err, "unable to reset node %s", head.ID())
		}
	}
	a.logger.Debug("graph loaded", "graph", g.ID, "nodes", g.Len())

	return s, nil
}

// Draw writes the DOT rendering of the session to the configured draw path.
// It does nothing when no path is configured.
func (s *Session) Draw() error {
	if s.app.config.DrawPath == "" {
		return nil
	}
	err := s.drawer.AddMeasure(s.app.Measure())
	if err != nil {
		return err
	}

	return s.drawer.DrawFile(s.app.config.DrawPath)
}

// Drawer returns the drawing kept in sync with the session.
func (s *Session) Drawer() *drawer.DOTDrawer {
	return s.drawer
}
