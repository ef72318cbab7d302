// Package explorer is the interaction layer of the graph view: it owns one
// loaded tree, the view state over it and the force simulation's scheduler.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/metrics"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/notify"
	"github.com/detective/core/internal/tree"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrWrongMode    = errors.New("operation not available in this layout mode")
	ErrNotLoaded    = errors.New("no tree loaded")
	ErrClosed       = errors.New("session closed")
	// ErrSuperseded is returned by a load whose result arrived after a newer
	// load had started. The newer load's tree is kept.
	ErrSuperseded = errors.New("superseded by a newer load")
)

type Config struct {
	Canvas       layout.Canvas
	MinZoom      float64
	MaxZoom      float64
	ZoomStep     float64
	TickInterval time.Duration
	MetricType   string
	Seed         uint64
}

func DefaultConfig() Config {
	return Config{
		Canvas:       layout.Canvas{Width: 900, Height: 700, Margin: 40},
		MinZoom:      0.1,
		MaxZoom:      3,
		ZoomStep:     1.5,
		TickInterval: 16 * time.Millisecond,
		MetricType:   "sessions_daily",
		Seed:         1,
	}
}

type Deps struct {
	Loader   Loader
	Log      *zap.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Clock    clock.Clock
}

// Session is one open graph view. All methods are safe for concurrent use.
type Session struct {
	cfg      Config
	loader   Loader
	log      *zap.Logger
	notifier notify.Notifier
	metrics  *metrics.Metrics
	clock    clock.Clock

	mu         sync.Mutex
	tree       *tree.Tree
	metricType string
	state      GraphLayoutState
	positions  map[string]layout.Point
	sim        *layout.Simulation
	dragging   string
	closed     bool
	// loadGen counts load starts; only the latest load may apply its tree.
	loadGen uint64

	stopTicker chan struct{}
	tickerDone chan struct{}
}

func NewSession(cfg Config, deps Deps) *Session {
	if deps.Loader == nil {
		deps.Loader = SampleLoader
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.ZoomStep <= 1 {
		cfg.ZoomStep = DefaultConfig().ZoomStep
	}
	return &Session{
		cfg:        cfg,
		loader:     deps.Loader,
		log:        deps.Log,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		clock:      deps.Clock,
		metricType: cfg.MetricType,
		state:      newState(cfg.MinZoom, cfg.MaxZoom),
	}
}

// Load replaces the tree from the loader. On failure the previous tree and
// layout stay in place.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	metricType := s.metricType
	s.mu.Unlock()

	return s.load(ctx, metricType)
}

func (s *Session) load(ctx context.Context, metricType string) error {
	s.mu.Lock()
	s.loadGen++
	gen := s.loadGen
	s.mu.Unlock()

	t, err := s.fetch(ctx, metricType)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.loadGen != gen {
		s.metrics.TreeLoads.WithLabelValues(metrics.OutcomeStale).Inc()
		s.log.Info("discarding stale tree load", zap.String("metric_type", metricType))
		return ErrSuperseded
	}
	if err != nil {
		s.metrics.TreeLoads.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.log.Error("tree load failed", zap.String("metric_type", metricType), zap.Error(err))
		s.notifier.Notify(notify.LevelError, "Failed to load tree data")
		return err
	}

	s.tree = t
	s.metricType = metricType
	s.dragging = ""
	if _, ok := t.Find(s.state.SelectedID); !ok {
		s.state.SelectedID = ""
	}
	s.relayoutLocked()

	s.metrics.TreeLoads.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.log.Info("tree loaded", zap.String("metric_type", metricType), zap.Int("nodes", t.Len()))
	s.notifier.Notify(notify.LevelSuccess, "Tree data loaded successfully")
	return nil
}

func (s *Session) fetch(ctx context.Context, metricType string) (*tree.Tree, error) {
	src, err := s.loader.Load(ctx, metricType)
	if err != nil {
		return nil, fmt.Errorf("load hierarchy: %w", err)
	}
	return tree.Load(src)
}

// SetMetricType reloads the tree for another metric. The metric type only
// changes if the load succeeds.
func (s *Session) SetMetricType(ctx context.Context, metricType string) error {
	return s.load(ctx, metricType)
}

// Reset restores the default view (zoom, pan, selection, search, expansion)
// and reloads the tree.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.state.SelectedID = ""
	s.state.Viewport.Reset()
	s.state.Search = ""
	s.state.Expanded = append([]string(nil), DefaultExpanded...)
	metricType := s.metricType
	s.mu.Unlock()

	return s.load(ctx, metricType)
}

// relayoutLocked discards positions and recomputes them for the current
// mode.
func (s *Session) relayoutLocked() {
	s.stopSchedulerLocked()
	s.positions, s.sim = nil, nil
	if s.tree == nil {
		return
	}

	switch s.state.Mode {
	case models.LayoutForce:
		fc := layout.DefaultForceConfig(s.cfg.Canvas)
		fc.Seed = s.cfg.Seed
		s.sim = layout.NewSimulation(s.tree.Flatten(), fc)
		s.startSchedulerLocked()
	default:
		s.positions = layout.TreeLayout(s.tree.Root(), s.cfg.Canvas)
	}
}

// ToggleMode switches between tree and force layout. Selection and zoom
// survive; positions are recomputed from scratch.
func (s *Session) ToggleMode() models.LayoutMode {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := models.LayoutForce
	if s.state.Mode == models.LayoutForce {
		next = models.LayoutTree
	}
	s.setModeLocked(next)
	return next
}

func (s *Session) SetMode(mode models.LayoutMode) error {
	if mode != models.LayoutTree && mode != models.LayoutForce {
		return fmt.Errorf("unknown layout mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Mode != mode {
		s.setModeLocked(mode)
	}
	return nil
}

func (s *Session) setModeLocked(mode models.LayoutMode) {
	s.state.Mode = mode
	s.dragging = ""
	s.relayoutLocked()
	s.log.Debug("layout mode changed", zap.String("mode", string(mode)))
}

// Select makes id the single selection and announces it.
func (s *Session) Select(id string) (*models.TreeNode, error) {
	s.mu.Lock()
	if s.tree == nil {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	n, ok := s.tree.Find(id)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.state.SelectedID = id
	s.mu.Unlock()

	s.notifier.Notify(notify.LevelInfo, "Selected: "+n.Name)
	return n, nil
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelectedID = ""
}

func (s *Session) zoomCenter() (float64, float64) {
	return s.cfg.Canvas.Width / 2, s.cfg.Canvas.Height / 2
}

// Zoom sets the scale about the canvas center. The applied, clamped scale
// is returned.
func (s *Session) Zoom(scale float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cx, cy := s.zoomCenter()
	return s.state.Viewport.ZoomAround(scale/s.state.Viewport.Scale, cx, cy)
}

func (s *Session) ZoomIn() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cx, cy := s.zoomCenter()
	return s.state.Viewport.ZoomAround(s.cfg.ZoomStep, cx, cy)
}

func (s *Session) ZoomOut() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	cx, cy := s.zoomCenter()
	return s.state.Viewport.ZoomAround(1/s.cfg.ZoomStep, cx, cy)
}

func (s *Session) Pan(dx, dy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Viewport.Pan(dx, dy)
}

// SetFilter replaces the filter predicate. A query in p becomes the search
// text.
func (s *Session) SetFilter(p tree.Predicate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Query != "" {
		s.state.Search = p.Query
	}
	p.Query = ""
	s.state.Filter = p
}

func (s *Session) SetSearch(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Search = q
}

func (s *Session) SetExpanded(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Expanded = append([]string{}, keys...)
}

// DragStart pins id at (x, y) in layout coordinates.
func (s *Session) DragStart(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.forceNodeLocked(id); err != nil {
		return err
	}
	if err := s.sim.Pin(id, x, y); err != nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.dragging = id
	s.startSchedulerLocked()
	return nil
}

func (s *Session) DragMove(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.forceNodeLocked(id); err != nil {
		return err
	}
	if err := s.sim.Pin(id, x, y); err != nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.startSchedulerLocked()
	return nil
}

// DragEnd releases id and lets the simulation relax around it.
func (s *Session) DragEnd(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.forceNodeLocked(id); err != nil {
		return err
	}
	if err := s.sim.Unpin(id); err != nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if s.dragging == id {
		s.dragging = ""
	}
	s.startSchedulerLocked()
	return nil
}

func (s *Session) forceNodeLocked(id string) error {
	if s.closed {
		return ErrClosed
	}
	if s.tree == nil {
		return ErrNotLoaded
	}
	if s.state.Mode != models.LayoutForce || s.sim == nil {
		return ErrWrongMode
	}
	if _, ok := s.tree.Find(id); !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return nil
}

// Settle steps the force simulation synchronously until it converges or
// maxTicks have run. It is a no-op in tree mode.
func (s *Session) Settle(maxTicks int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim == nil {
		return 0
	}
	n := 0
	for ; n < maxTicks && !s.sim.Converged(); n++ {
		s.sim.Step()
	}
	s.metrics.SimulationTicks.Add(float64(n))
	return n
}

// Close stops the simulation scheduler. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopSchedulerLocked()
	done := s.tickerDone
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// SimulationRunning reports whether the scheduler goroutine is ticking.
func (s *Session) SimulationRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopTicker != nil
}

func (s *Session) startSchedulerLocked() {
	if s.stopTicker != nil || s.sim == nil || s.closed {
		return
	}
	stop, done := make(chan struct{}), make(chan struct{})
	s.stopTicker, s.tickerDone = stop, done
	ticker := s.clock.Ticker(s.cfg.TickInterval)
	go s.schedule(ticker, stop, done)
}

func (s *Session) stopSchedulerLocked() {
	if s.stopTicker == nil {
		return
	}
	close(s.stopTicker)
	s.stopTicker = nil
}

// schedule steps the simulation on every tick and exits once it has
// converged or the scheduler is stopped.
func (s *Session) schedule(ticker *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		select {
		case <-stop:
			s.mu.Unlock()
			return
		default:
		}
		if s.sim == nil || s.sim.Converged() {
			s.stopSchedulerLocked()
			s.mu.Unlock()
			return
		}
		s.sim.Step()
		s.metrics.SimulationTicks.Inc()
		s.mu.Unlock()
	}
}
