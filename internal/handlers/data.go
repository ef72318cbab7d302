package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/detective/core/internal/datasource"
	"github.com/detective/core/internal/notify"
)

// Query keys consumed by the data endpoints; any other key is a breakdown
// filter such as country=India.
var reservedDataParams = map[string]bool{
	"type":      true,
	"dataset":   true,
	"metric":    true,
	"date":      true,
	"wow":       true,
	"days":      true,
	"hourly":    true,
	"hierarchy": true,
}

func (a *API) dataFailed(w http.ResponseWriter, op, what string, err error) {
	a.metrics.FetchErrors.WithLabelValues(op).Inc()
	a.log.Error("data request failed", zap.String("op", op), zap.Error(err))
	a.feed.Notify(notify.LevelError, "Failed to load "+what)
	writeDomainError(w, err)
}

func (a *API) DataAvailable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hourly, err := boolParam(q, "hourly", false)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	resp, err := a.source.GetAvailable(r.Context(), datasource.AvailableRequest{
		Type:      q.Get("type"),
		Hierarchy: true,
		Hourly:    hourly,
	})
	if err != nil {
		a.dataFailed(w, datasource.OpAvailable, "available dates", err)
		return
	}
	writeOK(w, resp)
}

func (a *API) DataMetric(w http.ResponseWriter, r *http.Request) {
	req, err := metricRequestFromQuery(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	snap, err := a.source.GetMetric(r.Context(), req)
	if err != nil {
		a.dataFailed(w, datasource.OpMetric, "metric data", err)
		return
	}
	writeOK(w, snap)
}

func (a *API) DataDynamic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mr, err := metricRequestFromQuery(q)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	snap, err := a.source.GetDynamic(r.Context(), datasource.DynamicRequest{
		MetricRequest: mr,
		Dataset:       q.Get("dataset"),
		Metric:        q.Get("metric"),
		Breakdowns:    breakdowns(q),
	})
	if err != nil {
		a.dataFailed(w, datasource.OpDynamic, "dynamic data", err)
		return
	}
	writeOK(w, snap)
}

func (a *API) DataHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	points, err := a.source.GetHistory(r.Context(), datasource.HistoryRequest{
		Type:       q.Get("type"),
		Dataset:    q.Get("dataset"),
		Metric:     q.Get("metric"),
		Hierarchy:  true,
		Breakdowns: breakdowns(q),
	})
	if err != nil {
		a.dataFailed(w, datasource.OpHistory, "history data", err)
		return
	}
	writeOK(w, points)
}

func metricRequestFromQuery(q url.Values) (datasource.MetricRequest, error) {
	req := datasource.MetricRequest{Type: q.Get("type"), Hierarchy: true}

	var err error
	if req.Hourly, err = boolParam(q, "hourly", false); err != nil {
		return req, err
	}
	if v := q.Get("date"); v != "" {
		if req.Date, err = strconv.ParseInt(v, 10, 64); err != nil {
			return req, &paramError{"date", v}
		}
	}
	if v := q.Get("wow"); v != "" {
		if req.WoW, err = strconv.Atoi(v); err != nil {
			return req, &paramError{"wow", v}
		}
	}
	if v := q.Get("days"); v != "" {
		if req.Days, err = strconv.Atoi(v); err != nil {
			return req, &paramError{"days", v}
		}
	}
	return req, nil
}

func boolParam(q url.Values, key string, fallback bool) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, &paramError{key, v}
	}
	return b, nil
}

func breakdowns(q url.Values) map[string]string {
	out := map[string]string{}
	for k := range q {
		if !reservedDataParams[k] {
			out[k] = q.Get(k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
