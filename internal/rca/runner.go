package rca

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/metrics"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/notify"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Progress bounds of the simulated indicator.
const (
	ProgressCap  = 90.0
	ProgressDone = 100.0
	progressStep = 15.0
)

type Options struct {
	Dataset     string
	Metric      string
	SummarySize int
	Aggregate   string
	// SimulatedDelay is waited before the service is queried.
	SimulatedDelay   time.Duration
	ProgressInterval time.Duration
	ProgressReset    time.Duration
	Seed             uint64
}

func DefaultOptions() Options {
	return Options{
		Dataset:          "sess_attr_v2_additive",
		Metric:           "micro_sessions",
		SummarySize:      5,
		Aggregate:        "daily",
		SimulatedDelay:   3 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
		ProgressReset:    2 * time.Second,
	}
}

// Status is a point-in-time view of the runner.
type Status struct {
	State      State               `json:"state"`
	Progress   float64             `json:"progress"`
	RunID      string              `json:"run_id,omitempty"`
	Config     *models.RCAConfig   `json:"config,omitempty"`
	Results    models.RCAResultSet `json:"results"`
	Error      string              `json:"error,omitempty"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Runner owns one view's analysis state. At most one run is in flight; a
// run's result is applied only while its generation is still current, so
// anything that arrives after Stop, Reset or a newer Start is dropped.
type Runner struct {
	src      datasource.Source
	log      *zap.Logger
	notifier notify.Notifier
	metrics  *metrics.Metrics
	clock    clock.Clock
	opts     Options

	mu         sync.Mutex
	rnd        *rand.Rand
	gen        uint64
	state      State
	progress   float64
	runID      string
	config     *models.RCAConfig
	results    models.RCAResultSet
	lastErr    string
	startedAt  *time.Time
	finishedAt *time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	resetTimer *clock.Timer
}

type RunnerConfig struct {
	Source   datasource.Source
	Log      *zap.Logger
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Options  Options
}

func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	def := DefaultOptions()
	if cfg.Options.Dataset == "" {
		cfg.Options.Dataset = def.Dataset
	}
	if cfg.Options.Metric == "" {
		cfg.Options.Metric = def.Metric
	}
	if cfg.Options.SummarySize <= 0 {
		cfg.Options.SummarySize = def.SummarySize
	}
	if cfg.Options.Aggregate == "" {
		cfg.Options.Aggregate = def.Aggregate
	}
	if cfg.Options.ProgressInterval <= 0 {
		cfg.Options.ProgressInterval = def.ProgressInterval
	}
	if cfg.Options.ProgressReset <= 0 {
		cfg.Options.ProgressReset = def.ProgressReset
	}
	seed := cfg.Options.Seed
	if seed == 0 {
		seed = uint64(cfg.Clock.Now().UnixNano())
	}
	return &Runner{
		src:      cfg.Source,
		log:      cfg.Log,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
		opts:     cfg.Options,
		rnd:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		state:    StateIdle,
		results:  models.RCAResultSet{Results: []models.RCACandidate{}},
	}
}

// Start launches a run and returns its id. A run already in flight is
// stopped first.
func (r *Runner) Start(cfg models.RCAConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Date.IsZero() {
		cfg.Date = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRunning {
		r.log.Info("stopping in-flight rca run before starting a new one", zap.String("run_id", r.runID))
		r.haltLocked()
	}
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}

	r.gen++
	gen := r.gen
	ctx, cancel := context.WithCancel(context.Background())
	now := r.clock.Now()

	r.state = StateRunning
	r.progress = 0
	r.runID = uuid.NewString()
	r.config = &cfg
	r.results = models.RCAResultSet{Results: []models.RCACandidate{}}
	r.lastErr = ""
	r.startedAt, r.finishedAt = &now, nil
	r.cancel = cancel
	r.done = make(chan struct{})

	// Timers are armed here, not in the goroutines, so a mock clock sees them
	// as soon as Start returns.
	ticker := r.clock.Ticker(r.opts.ProgressInterval)
	var delay *clock.Timer
	if r.opts.SimulatedDelay > 0 {
		delay = r.clock.Timer(r.opts.SimulatedDelay)
	}

	go r.tick(ctx, gen, ticker)
	go r.run(ctx, gen, cfg, delay, r.done, r.runID)

	r.log.Info("rca run started",
		zap.String("run_id", r.runID),
		zap.String("metric_type", cfg.MetricType),
		zap.Float64("threshold", cfg.Threshold),
		zap.Float64("min_confidence", cfg.MinConfidence),
		zap.Int("max_results", cfg.MaxResults))
	return r.runID, nil
}

func (r *Runner) tick(ctx context.Context, gen uint64, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.gen != gen || r.state != StateRunning {
				r.mu.Unlock()
				return
			}
			r.progress = math.Min(r.progress+r.rnd.Float64()*progressStep, ProgressCap)
			r.mu.Unlock()
		}
	}
}

func (r *Runner) run(ctx context.Context, gen uint64, cfg models.RCAConfig, delay *clock.Timer, done chan struct{}, runID string) {
	defer close(done)
	log := r.log.With(zap.String("run_id", runID))

	var candidates []models.RCACandidate
	err := func() error {
		if delay != nil {
			defer delay.Stop()
			select {
			case <-delay.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		var err error
		candidates, err = r.src.RunRCA(ctx, r.request(cfg))
		return err
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gen != gen {
		log.Info("discarding stale rca result")
		r.metrics.RCARuns.WithLabelValues(metrics.OutcomeStale).Inc()
		return
	}

	now := r.clock.Now()
	r.finishedAt = &now
	r.state = StateIdle
	r.cancel()
	r.cancel = nil

	if err != nil {
		r.lastErr = err.Error()
		r.metrics.RCARuns.WithLabelValues(metrics.OutcomeFailure).Inc()
		var fe *datasource.FetchError
		if errors.As(err, &fe) {
			r.metrics.FetchErrors.WithLabelValues(fe.Op).Inc()
		}
		log.Error("rca run failed", zap.Error(err))
		r.notifier.Notify(notify.LevelError, "RCA analysis failed")
	} else {
		r.results = Analyze(candidates, cfg)
		r.progress = ProgressDone
		r.metrics.RCARuns.WithLabelValues(metrics.OutcomeSuccess).Inc()
		r.metrics.RCARunDuration.Observe(now.Sub(*r.startedAt).Seconds())
		log.Info("rca run completed",
			zap.Int("candidates", len(candidates)),
			zap.Int("results", r.results.Summary.Count))
		r.notifier.Notify(notify.LevelSuccess,
			fmt.Sprintf("RCA analysis completed. Found %d significant factors.", r.results.Summary.Count))
	}

	r.resetTimer = r.clock.AfterFunc(r.opts.ProgressReset, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen == gen && r.state == StateIdle {
			r.progress = 0
		}
	})
}

func (r *Runner) request(cfg models.RCAConfig) datasource.RCARequest {
	return datasource.RCARequest{
		Type:           cfg.MetricType,
		Dataset:        r.opts.Dataset,
		Metric:         r.opts.Metric,
		SummarySize:    r.opts.SummarySize,
		Aggregate:      r.opts.Aggregate,
		WeightFunction: cfg.WeightFunction,
		Current:        cfg.Date.UnixMilli(),
		Baseline:       cfg.Date.AddDate(0, 0, -7).UnixMilli(),
		Hierarchy:      true,
	}
}

// haltLocked invalidates the current run and returns to idle.
func (r *Runner) haltLocked() {
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	if r.state == StateRunning {
		r.metrics.RCARuns.WithLabelValues(metrics.OutcomeStopped).Inc()
	}
	r.state = StateIdle
	r.progress = 0
}

// Stop abandons the in-flight run, if any. A result arriving later is
// ignored.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.haltLocked()
	runID := r.runID
	r.mu.Unlock()

	r.log.Info("rca run stopped", zap.String("run_id", runID))
	r.notifier.Notify(notify.LevelInfo, "RCA analysis stopped")
}

// Reset stops any run and clears the results.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.haltLocked()
	r.results = models.RCAResultSet{Results: []models.RCACandidate{}}
	r.lastErr = ""
	r.runID = ""
	r.config = nil
	r.startedAt, r.finishedAt = nil, nil
	r.mu.Unlock()

	r.log.Info("rca analysis reset")
	r.notifier.Notify(notify.LevelInfo, "Analysis reset")
}

func (r *Runner) Status() Status {
	return r.StatusSorted(SortArrival)
}

// StatusSorted is Status with the results reordered for display. State and
// results are read under one lock, so they always belong to the same run.
func (r *Runner) StatusSorted(order SortOrder) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Status{
		State:      r.state,
		Progress:   r.progress,
		RunID:      r.runID,
		Results:    models.RCAResultSet{Results: Sorted(r.results.Results, order), Summary: r.results.Summary},
		Error:      r.lastErr,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
	}
	if r.config != nil {
		cfg := *r.config
		s.Config = &cfg
	}
	return s
}

// Wait blocks until the most recently started run's goroutine has returned.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExportCSV renders the current results as a CSV download. An empty result
// set is refused with a warning.
func (r *Runner) ExportCSV() (*export.File, error) {
	r.mu.Lock()
	results := append([]models.RCACandidate(nil), r.results.Results...)
	metricType, date := "", r.clock.Now()
	if r.config != nil {
		metricType, date = r.config.MetricType, r.config.Date
	}
	r.mu.Unlock()

	if len(results) == 0 {
		r.notifier.Notify(notify.LevelWarning, "No results to export")
		return nil, ErrEmptyResults
	}
	f, err := export.RCAResultsCSV(results, metricType, date)
	if err != nil {
		return nil, err
	}
	r.notifier.Notify(notify.LevelSuccess, "RCA results exported successfully")
	return f, nil
}
