// Package datasource is the data-fetch boundary of the dashboard: five
// logical operations against the analysis service, an HTTP client for the
// real service and a mock that serves canned payloads.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/detective/core/internal/models"
)

// Operation names, used in errors, logs and metrics.
const (
	OpAvailable = "available"
	OpMetric    = "metric"
	OpDynamic   = "dynamic"
	OpHistory   = "history"
	OpRCA       = "rca"
)

// Source is implemented by anything that can answer the dashboard's data
// queries. Every call honours ctx cancellation.
type Source interface {
	GetAvailable(ctx context.Context, req AvailableRequest) (*models.AvailableResponse, error)
	GetMetric(ctx context.Context, req MetricRequest) (*models.MetricSnapshot, error)
	GetDynamic(ctx context.Context, req DynamicRequest) (*models.MetricSnapshot, error)
	GetHistory(ctx context.Context, req HistoryRequest) ([]models.HistoryPoint, error)
	RunRCA(ctx context.Context, req RCARequest) ([]models.RCACandidate, error)
}

// FetchError is a failed data request. Status is the HTTP status when the
// service answered, 0 otherwise.
type FetchError struct {
	Op      string
	Status  int
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s request timed out: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s request failed with status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a FetchError caused by a timeout.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Timeout
}

// DefaultParams are merged under every request's own parameters.
func DefaultParams() url.Values {
	return url.Values{
		"hierarchy":       {"true"},
		"wow":             {"4"},
		"days":            {"7"},
		"summary_size":    {"5"},
		"aggregate":       {"daily"},
		"weight_function": {string(models.WeightAbsChange)},
	}
}

type AvailableRequest struct {
	Type      string `json:"type"`
	Hierarchy bool   `json:"hierarchy"`
	Hourly    bool   `json:"hourly,omitempty"`
}

func (r AvailableRequest) params() url.Values {
	v := url.Values{}
	v.Set("type", r.Type)
	v.Set("hierarchy", strconv.FormatBool(r.Hierarchy))
	return v
}

type MetricRequest struct {
	Type      string `json:"type"`
	Date      int64  `json:"date,omitempty"`
	WoW       int    `json:"wow,omitempty"`
	Days      int    `json:"days,omitempty"`
	Hierarchy bool   `json:"hierarchy"`
	Hourly    bool   `json:"hourly,omitempty"`
}

func (r MetricRequest) params() url.Values {
	v := url.Values{}
	v.Set("type", r.Type)
	v.Set("hierarchy", strconv.FormatBool(r.Hierarchy))
	if r.Date != 0 {
		v.Set("date", strconv.FormatInt(r.Date, 10))
	}
	if r.WoW != 0 {
		v.Set("wow", strconv.Itoa(r.WoW))
	}
	if r.Days != 0 {
		v.Set("days", strconv.Itoa(r.Days))
	}
	return v
}

// DynamicRequest drills into a metric by breakdown. Breakdowns carries the
// dimension filters, e.g. country=India.
type DynamicRequest struct {
	MetricRequest
	Dataset    string            `json:"dataset"`
	Metric     string            `json:"metric"`
	Breakdowns map[string]string `json:"breakdowns,omitempty"`
}

func (r DynamicRequest) params() url.Values {
	v := r.MetricRequest.params()
	v.Set("dataset", r.Dataset)
	v.Set("metric", r.Metric)
	setBreakdowns(v, r.Breakdowns)
	return v
}

type HistoryRequest struct {
	Type       string            `json:"type"`
	Dataset    string            `json:"dataset"`
	Metric     string            `json:"metric"`
	Hierarchy  bool              `json:"hierarchy"`
	Breakdowns map[string]string `json:"breakdowns,omitempty"`
}

func (r HistoryRequest) params() url.Values {
	v := url.Values{}
	v.Set("type", r.Type)
	v.Set("dataset", r.Dataset)
	v.Set("metric", r.Metric)
	v.Set("hierarchy", strconv.FormatBool(r.Hierarchy))
	setBreakdowns(v, r.Breakdowns)
	return v
}

// RCARequest asks the service for candidates. Current and Baseline are unix
// milliseconds.
type RCARequest struct {
	Type           string                `json:"type"`
	Dataset        string                `json:"dataset"`
	Metric         string                `json:"metric"`
	SummarySize    int                   `json:"summary_size,omitempty"`
	Aggregate      string                `json:"aggregate,omitempty"`
	WeightFunction models.WeightFunction `json:"weight_function,omitempty"`
	Current        int64                 `json:"current"`
	Baseline       int64                 `json:"baseline"`
	Hierarchy      bool                  `json:"hierarchy"`
}

func (r RCARequest) params() url.Values {
	v := url.Values{}
	v.Set("type", r.Type)
	v.Set("dataset", r.Dataset)
	v.Set("metric", r.Metric)
	v.Set("current", strconv.FormatInt(r.Current, 10))
	v.Set("baseline", strconv.FormatInt(r.Baseline, 10))
	v.Set("hierarchy", strconv.FormatBool(r.Hierarchy))
	if r.SummarySize != 0 {
		v.Set("summary_size", strconv.Itoa(r.SummarySize))
	}
	if r.Aggregate != "" {
		v.Set("aggregate", r.Aggregate)
	}
	if r.WeightFunction != "" {
		v.Set("weight_function", string(r.WeightFunction))
	}
	return v
}

func setBreakdowns(v url.Values, breakdowns map[string]string) {
	keys := make([]string, 0, len(breakdowns))
	for k := range breakdowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v.Set(k, breakdowns[k])
	}
}

// mergeParams overlays params on the defaults.
func mergeParams(params url.Values) url.Values {
	out := DefaultParams()
	for k, vs := range params {
		out[k] = vs
	}
	return out
}
