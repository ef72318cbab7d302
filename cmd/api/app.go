package main

import (
	"net/http"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/detective/core/cmd/api/middleware"
	"github.com/detective/core/internal/config"
	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/explorer"
	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/handlers"
	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/metrics"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/notify"
	"github.com/detective/core/internal/rca"
)

// app is the wired component graph behind every command.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	clock    clock.Clock
	metrics  *metrics.Metrics
	feed     *notify.Feed
	source   datasource.Source
	session  *explorer.Session
	runner   *rca.Runner
	exporter *export.Exporter
}

func newApp(cfg *config.Config, log *zap.Logger, clk clock.Clock) *app {
	m := metrics.New()
	feed := notify.NewFeed(log.Named("notify"), clk, notify.DefaultCapacity)
	src := newSource(cfg.DataSource, log, clk)

	var loader explorer.Loader = explorer.SampleLoader
	if cfg.Graph.HierarchyFile != "" {
		loader = explorer.FileLoader{Path: cfg.Graph.HierarchyFile}
	}

	session := explorer.NewSession(explorer.Config{
		Canvas:       layout.Canvas{Width: cfg.Graph.Width, Height: cfg.Graph.Height, Margin: cfg.Graph.Margin},
		MinZoom:      cfg.Graph.MinZoom,
		MaxZoom:      cfg.Graph.MaxZoom,
		ZoomStep:     cfg.Graph.ZoomStep,
		TickInterval: cfg.Graph.TickInterval,
		MetricType:   cfg.Graph.MetricType,
		Seed:         1,
	}, explorer.Deps{
		Loader:   loader,
		Log:      log.Named("explorer"),
		Notifier: feed,
		Metrics:  m,
		Clock:    clk,
	})

	runner := rca.NewRunner(rca.RunnerConfig{
		Source:   src,
		Log:      log.Named("rca"),
		Notifier: feed,
		Metrics:  m,
		Clock:    clk,
		Options: rca.Options{
			Dataset:          cfg.RCA.Dataset,
			Metric:           cfg.RCA.Metric,
			SummarySize:      cfg.RCA.SummarySize,
			Aggregate:        cfg.RCA.Aggregate,
			SimulatedDelay:   cfg.RCA.SimulatedDelay,
			ProgressInterval: cfg.RCA.ProgressInterval,
			ProgressReset:    cfg.RCA.ProgressReset,
		},
	})

	return &app{
		cfg:      cfg,
		log:      log,
		clock:    clk,
		metrics:  m,
		feed:     feed,
		source:   src,
		session:  session,
		runner:   runner,
		exporter: export.New(cfg.Export.Domain, clk),
	}
}

func newSource(cfg config.DataSourceConfig, log *zap.Logger, clk clock.Clock) datasource.Source {
	if cfg.Mode == config.DataSourceHTTP {
		return datasource.NewHTTPClient(datasource.HTTPConfig{
			BaseURL:          cfg.BaseURL,
			AvailableTimeout: cfg.AvailableTimeout,
			DataTimeout:      cfg.DataTimeout,
			Retries:          cfg.Retries,
			CacheTTL:         cfg.CacheTTL,
		}, log.Named("datasource"))
	}
	return &datasource.Mock{Clock: clk}
}

// rcaDefaults is the analysis configuration a run starts from.
func (a *app) rcaDefaults() models.RCAConfig {
	return models.RCAConfig{
		MetricType:     a.cfg.RCA.MetricType,
		Threshold:      a.cfg.RCA.Threshold,
		MinConfidence:  a.cfg.RCA.MinConfidence,
		MaxResults:     a.cfg.RCA.MaxResults,
		WeightFunction: models.WeightFunction(a.cfg.RCA.WeightFunction),
		AnalysisDepth:  a.cfg.RCA.AnalysisDepth,
	}
}

func (a *app) handler() http.Handler {
	api := handlers.New(handlers.Deps{
		Session:     a.session,
		Runner:      a.runner,
		Source:      a.source,
		Exporter:    a.exporter,
		Feed:        a.feed,
		Metrics:     a.metrics,
		Log:         a.log.Named("http"),
		DataSource:  a.cfg.DataSource.Mode,
		Canvas:      layout.Canvas{Width: a.cfg.Graph.Width, Height: a.cfg.Graph.Height, Margin: a.cfg.Graph.Margin},
		RCADefaults: a.rcaDefaults(),
		ExportQuery: export.Query{
			MetricType: a.cfg.RCA.MetricType,
			Dataset:    a.cfg.RCA.Dataset,
			Metric:     a.cfg.RCA.Metric,
		},
	})
	return api.Routes(
		middleware.RequestLogger(a.log.Named("access")),
		middleware.Cors(a.cfg.CORS.AllowedOrigin),
	)
}

func (a *app) close() {
	a.session.Close()
	_ = a.log.Sync()
}
