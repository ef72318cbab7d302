package datasource

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/detective/core/internal/models"
)

// Mock serves fixed payloads after an optional delay. It stands in for the
// analysis service during development and in tests.
type Mock struct {
	Delay time.Duration
	Clock clock.Clock
}

var _ Source = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{Clock: clock.New()}
}

func (m *Mock) wait(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &FetchError{Op: op, Timeout: err == context.DeadlineExceeded, Err: err}
	}
	if m.Delay <= 0 {
		return nil
	}
	clk := m.Clock
	if clk == nil {
		clk = clock.New()
	}
	t := clk.Timer(m.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return &FetchError{Op: op, Timeout: ctx.Err() == context.DeadlineExceeded, Err: ctx.Err()}
	}
}

func (m *Mock) GetAvailable(ctx context.Context, req AvailableRequest) (*models.AvailableResponse, error) {
	if err := m.wait(ctx, OpAvailable); err != nil {
		return nil, err
	}
	if req.Hourly {
		return &models.AvailableResponse{Latest: MockLatest, Data: MockHourly()}, nil
	}
	return &models.AvailableResponse{Latest: MockLatest, Data: MockAvailable()}, nil
}

func (m *Mock) GetMetric(ctx context.Context, req MetricRequest) (*models.MetricSnapshot, error) {
	if err := m.wait(ctx, OpMetric); err != nil {
		return nil, err
	}
	snap := MockMetric()
	if req.Hourly {
		snap = MockHourly()
	}
	return &snap, nil
}

func (m *Mock) GetDynamic(ctx context.Context, req DynamicRequest) (*models.MetricSnapshot, error) {
	if err := m.wait(ctx, OpDynamic); err != nil {
		return nil, err
	}
	snap := MockMetric()
	if req.Hourly {
		snap = MockHourly()
	}
	return &snap, nil
}

func (m *Mock) GetHistory(ctx context.Context, _ HistoryRequest) ([]models.HistoryPoint, error) {
	if err := m.wait(ctx, OpHistory); err != nil {
		return nil, err
	}
	return MockHistory(), nil
}

func (m *Mock) RunRCA(ctx context.Context, _ RCARequest) ([]models.RCACandidate, error) {
	if err := m.wait(ctx, OpRCA); err != nil {
		return nil, err
	}
	return MockRCAResults(), nil
}

// MockLatest is 2020-06-02 07:00 UTC in unix milliseconds.
const MockLatest int64 = 1591081200000

const (
	mockDataset = "sess_attr_v2_additive"
	mockMetric  = "micro_sessions"
)

func ptr[T any](v T) *T { return &v }

func attribution(withTrend bool) models.DimensionBreakdown {
	b := models.DimensionBreakdown{
		Dimension: "attribution_type",
		Dataset:   mockDataset,
		Metric:    mockMetric,
		Data: []models.BreakdownItem{
			{Name: "organic", Value: 85000000, Change: 2.5},
			{Name: "transaction", Value: 57587262, Change: -1.2},
		},
	}
	if withTrend {
		b.Data[0].Trend, b.Data[1].Trend = "up", "down"
	}
	return b
}

func MockAvailable() models.MetricSnapshot {
	return models.MetricSnapshot{
		Total: models.WeekTotals{
			Wo4W:     141970078,
			Wo3W:     144330070,
			Wo2W:     145112166,
			Wo1W:     143715436,
			Baseline: 142587262,
			T7D:      ptr(878955918.0),
		},
		Breakdowns: map[string]models.DimensionBreakdown{
			models.BreakdownTransactionVsOrganic: attribution(false),
			models.BreakdownCountry: {
				Dimension: "country",
				Dataset:   mockDataset,
				Metric:    mockMetric,
				Anomaly:   true,
				Data: []models.BreakdownItem{
					{Name: "United States", Value: 45000000, Change: 3.2},
					{Name: "India", Value: 32000000, Change: 5.8},
					{Name: "China", Value: 28000000, Change: -2.1},
					{Name: "Brazil", Value: 15000000, Change: 1.5},
					{Name: "United Kingdom", Value: 12000000, Change: 0.8},
				},
			},
		},
	}
}

func MockMetric() models.MetricSnapshot {
	return models.MetricSnapshot{
		Total: models.WeekTotals{
			Wo4W:     141970078,
			Wo3W:     144330070,
			Wo2W:     145112166,
			Wo1W:     143715436,
			Baseline: 142587262,
		},
		Breakdowns: map[string]models.DimensionBreakdown{
			models.BreakdownTransactionVsOrganic: attribution(true),
			models.BreakdownDeviceType: {
				Dimension: "device_type",
				Dataset:   mockDataset,
				Metric:    mockMetric,
				Data: []models.BreakdownItem{
					{Name: "mobile", Value: 95000000, Change: 4.2, Trend: "up"},
					{Name: "desktop", Value: 42000000, Change: -0.8, Trend: "down"},
					{Name: "tablet", Value: 5587262, Change: -3.5, Trend: "down"},
				},
			},
		},
	}
}

// MockHourly is a deterministic 24-hour profile with the hourly totals.
func MockHourly() models.MetricSnapshot {
	hourly := make([]models.HourlyPoint, 24)
	for h := range hourly {
		hourly[h] = models.HourlyPoint{
			Hour:   h,
			Value:  float64(200000 + (h*7919)%500000),
			Change: float64((h*37)%100)/10 - 5,
		}
	}
	return models.MetricSnapshot{
		Total: models.WeekTotals{
			Wo4W:     5915420,
			Wo3W:     6012920,
			Wo2W:     6129672,
			Wo1W:     5988143,
			Baseline: 5942802,
		},
		Breakdowns: map[string]models.DimensionBreakdown{},
		Hourly:     hourly,
	}
}

func MockHistory() []models.HistoryPoint {
	return []models.HistoryPoint{
		{Date: "2023-01-01", Value: 140000000},
		{Date: "2023-01-02", Value: 142000000},
		{Date: "2023-01-03", Value: 138000000},
		{Date: "2023-01-04", Value: 145000000},
		{Date: "2023-01-05", Value: 143000000},
		{Date: "2023-01-06", Value: 147000000},
		{Date: "2023-01-07", Value: 142587262},
	}
}

func MockRCAResults() []models.RCACandidate {
	return []models.RCACandidate{
		{Dimension: "country", Value: "United States", Impact: 2500000, Confidence: 0.85, ChangePercent: 3.2},
		{Dimension: "device_type", Value: "mobile", Impact: 1800000, Confidence: 0.78, ChangePercent: 4.2},
		{Dimension: "attribution_type", Value: "organic", Impact: 1200000, Confidence: 0.72, ChangePercent: 2.5},
		{Dimension: "traffic_source", Value: "search", Impact: 950000, Confidence: 0.68, ChangePercent: 1.8},
		{Dimension: "user_segment", Value: "premium", Impact: 750000, Confidence: 0.65, ChangePercent: 2.1},
	}
}
