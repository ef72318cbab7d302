package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/explorer"
	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/metrics"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/notify"
	"github.com/detective/core/internal/rca"
)

// Deps wires the API to the components it fronts. Session, Runner, Source,
// Exporter and Feed are required.
type Deps struct {
	Session  *explorer.Session
	Runner   *rca.Runner
	Source   datasource.Source
	Exporter *export.Exporter
	Feed     *notify.Feed
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// DataSource names the configured data source mode for /health.
	DataSource string

	// Canvas sizes graphs produced by /parse.
	Canvas layout.Canvas
	// RCADefaults fills the fields a /rca/run body leaves out.
	RCADefaults models.RCAConfig
	// ExportQuery selects the dataset behind /export.
	ExportQuery export.Query
}

type API struct {
	session     *explorer.Session
	runner      *rca.Runner
	source      datasource.Source
	exporter    *export.Exporter
	feed        *notify.Feed
	metrics     *metrics.Metrics
	log         *zap.Logger
	canvas      layout.Canvas
	rcaDefaults models.RCAConfig
	exportQuery export.Query
	dataSource  string
	started     time.Time
}

func New(d Deps) *API {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Canvas == (layout.Canvas{}) {
		d.Canvas = explorer.DefaultConfig().Canvas
	}
	return &API{
		session:     d.Session,
		runner:      d.Runner,
		source:      d.Source,
		exporter:    d.Exporter,
		feed:        d.Feed,
		metrics:     d.Metrics,
		log:         d.Log,
		canvas:      d.Canvas,
		rcaDefaults: d.RCADefaults,
		exportQuery: d.ExportQuery,
		dataSource:  d.DataSource,
		started:     time.Now(),
	}
}

// Routes mounts every endpoint on a chi router. Extra middleware runs after
// request id assignment and panic recovery.
func (a *API) Routes(mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(mws...)

	r.Get("/health", a.Health)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	r.Post("/parse", a.ParseHandler)
	r.Get("/notifications", a.Notifications)

	r.Route("/graph", func(r chi.Router) {
		r.Get("/", a.GraphView)
		r.Get("/nodes", a.GraphNodes)
		r.Get("/navigation", a.GraphNavigation)
		r.Post("/mode", a.GraphMode)
		r.Post("/select", a.GraphSelect)
		r.Post("/zoom", a.GraphZoom)
		r.Post("/pan", a.GraphPan)
		r.Post("/filter", a.GraphFilter)
		r.Post("/expand", a.GraphExpand)
		r.Post("/drag", a.GraphDrag)
		r.Post("/metric", a.GraphMetric)
		r.Post("/reset", a.GraphReset)
	})

	r.Route("/rca", func(r chi.Router) {
		r.Get("/", a.RCAStatus)
		r.Post("/run", a.RCARun)
		r.Post("/stop", a.RCAStop)
		r.Post("/reset", a.RCAReset)
		r.Get("/export", a.RCAExport)
	})

	r.Route("/data", func(r chi.Router) {
		r.Get("/available", a.DataAvailable)
		r.Get("/metric", a.DataMetric)
		r.Get("/dynamic", a.DataDynamic)
		r.Get("/history", a.DataHistory)
	})

	r.Get("/export", a.Export)

	return r
}
