// Package handlers exposes the graph explorer, the RCA runner and the data
// boundary over HTTP.
package handlers

import (
	"net/http"
	"runtime"
	"time"
)

const ServiceName = "detective-api"

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Service   string       `json:"service"`
	Uptime    string       `json:"uptime,omitempty"`
	Checks    HealthChecks `json:"checks"`
}

// HealthChecks is what the service needs to answer requests: a loaded tree
// and a known analysis state.
type HealthChecks struct {
	TreeLoaded bool   `json:"tree_loaded"`
	Nodes      int    `json:"nodes"`
	MetricType string `json:"metric_type"`
	DataSource string `json:"datasource,omitempty"`
	RCAState   string `json:"rca_state"`
	GoVersion  string `json:"go_version"`
}

// Health reports readiness. Without a loaded tree the graph endpoints cannot
// serve, so the response is 503 degraded.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	nodes, metricType, loaded := a.session.Loaded()

	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Checks: HealthChecks{
			TreeLoaded: loaded,
			Nodes:      nodes,
			MetricType: metricType,
			DataSource: a.dataSource,
			RCAState:   string(a.runner.Status().State),
			GoVersion:  runtime.Version(),
		},
	}

	code := http.StatusOK
	if !loaded {
		resp.Status = StatusDegraded
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}
