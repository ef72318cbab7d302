package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/explorer"
	"github.com/detective/core/internal/export"
	"github.com/detective/core/internal/metrics"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/notify"
	"github.com/detective/core/internal/rca"
	"github.com/detective/core/internal/tree"
)

type testServer struct {
	api    *API
	router chi.Router
	feed   *notify.Feed
	runner *rca.Runner
	clock  *clock.Mock
}

func newTestServer(t *testing.T, src datasource.Source) testServer {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC))
	feed := notify.NewFeed(nil, clk, 50)
	m := metrics.New()

	session := explorer.NewSession(explorer.DefaultConfig(), explorer.Deps{
		Loader:   explorer.SampleLoader,
		Notifier: feed,
		Metrics:  m,
		Clock:    clk,
	})
	require.NoError(t, session.Load(context.Background()))
	t.Cleanup(session.Close)

	runner := rca.NewRunner(rca.RunnerConfig{
		Source:   src,
		Notifier: feed,
		Metrics:  m,
		Clock:    clk,
		Options:  rca.Options{Seed: 3},
	})

	api := New(Deps{
		Session:  session,
		Runner:   runner,
		Source:   src,
		Exporter: export.New("", clk),
		Feed:     feed,
		Metrics:  m,
		RCADefaults: models.RCAConfig{
			MetricType:    "sessions_daily",
			Threshold:     5.0,
			MinConfidence: 0.6,
			MaxResults:    10,
		},
		ExportQuery: export.Query{MetricType: "sessions_daily", Dataset: "sess_attr_v2_additive", Metric: "micro_sessions"},
		DataSource:  "mock",
	})
	return testServer{api: api, router: api.Routes(), feed: feed, runner: runner, clock: clk}
}

func (s testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s testServer) lastMessage(t *testing.T) string {
	t.Helper()
	n, ok := s.feed.Last()
	require.True(t, ok)
	return n.Message
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func waitRun(t *testing.T, r *rca.Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

type failingSource struct {
	datasource.Mock
}

func (*failingSource) GetMetric(context.Context, datasource.MetricRequest) (*models.MetricSnapshot, error) {
	return nil, &datasource.FetchError{Op: datasource.OpMetric, Status: 500, Err: errors.New("upstream exploded")}
}

func (*failingSource) GetHistory(context.Context, datasource.HistoryRequest) ([]models.HistoryPoint, error) {
	return nil, &datasource.FetchError{Op: datasource.OpHistory, Timeout: true, Err: context.DeadlineExceeded}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t, datasource.NewMock())

	t.Run("health", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ServiceName, decode[HealthResponse](t, w).Service)
	})

	t.Run("metrics", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `detective_tree_loads_total{outcome="success"} 1`)
	})

	t.Run("unknown route", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/nonexistent", "").Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodGet, "/graph/reset", "").Code)
	})
}

func TestGraphEndpoints(t *testing.T) {
	t.Run("view", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		v := decode[explorer.View](t, s.do(t, http.MethodGet, "/graph", ""))

		assert.Len(t, v.Graph.Nodes, 15)
		assert.Equal(t, models.LayoutTree, v.Graph.Mode)
		assert.Equal(t, 9, v.StatusCounts[models.StatusHealthy])
		assert.Equal(t, "translate(40,40) scale(1)", v.Transform)
	})

	t.Run("select", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/graph/select", `{"id":"asia"}`)
		require.Equal(t, http.StatusOK, w.Code)
		d := decode[explorer.NodeDetail](t, w)
		assert.Equal(t, "Asia Pacific", d.Name)
		assert.Equal(t, "-2.1%", d.FormattedChange)
		assert.Equal(t, "Selected: Asia Pacific", s.lastMessage(t))

		w = s.do(t, http.MethodPost, "/graph/select", `{"id":"mars"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, decode[map[string]string](t, w)["error"], "node not found")
	})

	t.Run("mode toggle keeps the selection", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())
		s.do(t, http.MethodPost, "/graph/select", `{"id":"usa"}`)

		w := s.do(t, http.MethodPost, "/graph/mode", "")
		require.Equal(t, http.StatusOK, w.Code)
		st := decode[explorer.GraphLayoutState](t, w)
		assert.Equal(t, models.LayoutForce, st.Mode)
		assert.Equal(t, "usa", st.SelectedID)

		w = s.do(t, http.MethodPost, "/graph/mode", `{"mode":"radial"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(t, http.MethodPost, "/graph/mode", `{"mode":"tree"}`)
		assert.Equal(t, models.LayoutTree, decode[explorer.GraphLayoutState](t, w).Mode)
	})

	t.Run("zoom", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/graph/zoom", `{"scale":10}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 3.0, decode[map[string]any](t, w)["scale"])

		w = s.do(t, http.MethodPost, "/graph/zoom", `{"direction":"out"}`)
		assert.InDelta(t, 2.0, decode[map[string]any](t, w)["scale"], 1e-9)

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/graph/zoom", `{}`).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/graph/zoom", `{"scale":-1}`).Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/graph/zoom", `{"zoom":2}`).Code)
	})

	t.Run("drag is refused in tree mode", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/graph/drag", `{"id":"usa","phase":"start","x":1,"y":2}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("drag in force mode", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())
		s.do(t, http.MethodPost, "/graph/mode", `{"mode":"force"}`)

		w := s.do(t, http.MethodPost, "/graph/drag", `{"id":"usa","phase":"start","x":100,"y":120}`)
		require.Equal(t, http.StatusOK, w.Code)
		w = s.do(t, http.MethodPost, "/graph/drag", `{"id":"usa","phase":"end"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		w = s.do(t, http.MethodPost, "/graph/drag", `{"id":"usa","phase":"fling"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("nodes through the query predicate", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodGet, "/graph/nodes?healthy=false&category=device", "")
		require.Equal(t, http.StatusOK, w.Code)
		nodes := decode[[]models.TreeNode](t, w)
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		assert.Equal(t, []string{"devices", "desktop", "tablet"}, ids)

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/graph/nodes?min=lots", "").Code)
	})

	t.Run("filter then navigation", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/graph/filter", `{"show_healthy":false}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, decode[[]models.TreeNode](t, w), 6)

		w = s.do(t, http.MethodGet, "/graph/navigation", "")
		require.Equal(t, http.StatusOK, w.Code)
		nav := decode[[]tree.NavNode](t, w)
		require.Len(t, nav, 1, "navigation ignores the filter")
		assert.Equal(t, "root", nav[0].Key)
		assert.Len(t, nav[0].Children, 3)
	})

	t.Run("expand, pan and reset", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())
		s.do(t, http.MethodPost, "/graph/expand", `{"keys":["root","traffic"]}`)
		s.do(t, http.MethodPost, "/graph/pan", `{"dx":10,"dy":5}`)

		w := s.do(t, http.MethodPost, "/graph/reset", "")
		require.Equal(t, http.StatusOK, w.Code)
		v := decode[explorer.View](t, w)
		assert.Equal(t, []string{"root"}, v.State.Expanded)
		assert.Equal(t, 0.0, v.State.Viewport.X)
		assert.Equal(t, "Tree data loaded successfully", s.lastMessage(t))
	})

	t.Run("metric change", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/graph/metric", `{"metric_type":"users_daily"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "users_daily", decode[explorer.View](t, w).MetricType)

		w = s.do(t, http.MethodPost, "/graph/metric", `{"metric_type":"bananas"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRCAEndpoints(t *testing.T) {
	t.Run("run, read and export", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/rca/run", `{"threshold":2,"date":"2024-03-09T00:00:00Z"}`)
		require.Equal(t, http.StatusAccepted, w.Code)
		runID := decode[map[string]string](t, w)["run_id"]
		assert.NotEmpty(t, runID)
		waitRun(t, s.runner)

		w = s.do(t, http.MethodGet, "/rca?sort=change", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[rcaResponse](t, w)
		assert.Equal(t, runID, resp.RunID)
		require.Len(t, resp.Results.Results, 4)
		assert.Equal(t, "mobile", resp.Results.Results[0].Value)
		assert.Len(t, resp.Chart, 4)
		assert.Equal(t, "RCA analysis completed. Found 4 significant factors.", s.lastMessage(t))

		w = s.do(t, http.MethodGet, "/rca/export", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "rca_results_sessions_daily_2024-03-09.csv")
		assert.True(t, strings.HasPrefix(w.Body.String(), "Dimension,Value,Impact,Confidence,Change %\n"))
	})

	t.Run("default threshold finds nothing to export", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		require.Equal(t, http.StatusAccepted, s.do(t, http.MethodPost, "/rca/run", "").Code)
		waitRun(t, s.runner)

		w := s.do(t, http.MethodGet, "/rca/export", "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "No results to export", s.lastMessage(t))
	})

	t.Run("invalid config", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/rca/run", `{"min_confidence":2}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid sort", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/rca?sort=name", "").Code)
	})

	t.Run("stop and reset", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodPost, "/rca/stop", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, rca.StateIdle, decode[rca.Status](t, w).State)
		assert.Equal(t, "RCA analysis stopped", s.lastMessage(t))

		w = s.do(t, http.MethodPost, "/rca/reset", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Analysis reset", s.lastMessage(t))
	})
}

func TestDataEndpoints(t *testing.T) {
	t.Run("pass through", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodGet, "/data/available?type=sessions_daily", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.EqualValues(t, datasource.MockLatest, decode[map[string]any](t, w)["latest"])

		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/data/metric?type=sessions_daily&wow=4", "").Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/data/dynamic?type=sessions_daily&country=India", "").Code)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/data/history?type=sessions_daily", "").Code)
	})

	t.Run("bad parameters", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/data/metric?days=week", "").Code)
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/data/available?hourly=maybe", "").Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		s := newTestServer(t, &failingSource{})

		w := s.do(t, http.MethodGet, "/data/metric?type=sessions_daily", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "Failed to load metric data", s.lastMessage(t))

		w = s.do(t, http.MethodGet, "/data/history?type=sessions_daily", "")
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})
}

func TestExportEndpoint(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodGet, "/export?type=history&format=csv", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "root-cause-analysis_history_2024-03-09.csv")
		assert.NotEmpty(t, w.Header().Get("X-Export-Id"))
		assert.True(t, strings.HasPrefix(w.Body.String(), "date,value\n"))
		assert.Equal(t, "Data exported successfully as CSV", s.lastMessage(t))
	})

	t.Run("everything as json", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodGet, "/export?type=all&format=json", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "root-cause-analysis_complete_2024-03-09.json")
		body := decode[map[string]any](t, w)
		assert.Contains(t, body, "metrics")
		assert.Contains(t, body, "history")
		assert.Contains(t, body, "rca")
	})

	t.Run("format without a serializer", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())

		w := s.do(t, http.MethodGet, "/export?type=rca&format=pdf", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Export failed", s.lastMessage(t))
	})

	t.Run("empty dataset warns", func(t *testing.T) {
		s := newTestServer(t, &emptySource{})

		w := s.do(t, http.MethodGet, "/export?type=history&format=csv", "")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		n, ok := s.feed.Last()
		require.True(t, ok)
		assert.Equal(t, notify.LevelWarning, n.Level)
		assert.Equal(t, "No data to export", n.Message)
	})

	t.Run("unknown type", func(t *testing.T) {
		s := newTestServer(t, datasource.NewMock())
		assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/export?type=everything", "").Code)
	})
}

// emptySource has no history to offer.
type emptySource struct {
	datasource.Mock
}

func (*emptySource) GetHistory(context.Context, datasource.HistoryRequest) ([]models.HistoryPoint, error) {
	return []models.HistoryPoint{}, nil
}

func TestNotificationsEndpoint(t *testing.T) {
	s := newTestServer(t, datasource.NewMock())
	s.do(t, http.MethodPost, "/graph/select", `{"id":"usa"}`)

	all := decode[[]notify.Notification](t, s.do(t, http.MethodGet, "/notifications", ""))
	require.Len(t, all, 2)
	assert.Equal(t, "Tree data loaded successfully", all[0].Message)

	since := decode[[]notify.Notification](t, s.do(t, http.MethodGet, "/notifications?since=1", ""))
	require.Len(t, since, 1)
	assert.Equal(t, "Selected: United States", since[0].Message)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/notifications?since=x", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"load error", &tree.LoadError{Err: tree.ErrDuplicateID}, http.StatusBadRequest},
		{"missing node", explorer.ErrNodeNotFound, http.StatusNotFound},
		{"wrong mode", explorer.ErrWrongMode, http.StatusConflict},
		{"superseded load", explorer.ErrSuperseded, http.StatusConflict},
		{"timeout", &datasource.FetchError{Op: "rca", Timeout: true, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"upstream", &datasource.FetchError{Op: "rca", Status: 503, Err: errors.New("down")}, http.StatusBadGateway},
		{"empty export", &export.EmptyResultError{DataType: export.DataRCA}, http.StatusUnprocessableEntity},
		{"unsupported format", export.ErrUnsupportedFormat, http.StatusBadRequest},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
