// Package models defines the core data structures shared by the tree model,
// the graph engine, the RCA pipeline and the data boundary.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Known breakdown keys of a metric snapshot.
const (
	BreakdownTransactionVsOrganic = "transactionVsOrganic"
	BreakdownCountry              = "country"
	BreakdownDeviceType           = "deviceType"
	BreakdownTrafficSource        = "trafficSource"
	BreakdownUserSegment          = "userSegment"
)

var knownBreakdowns = map[string]bool{
	BreakdownTransactionVsOrganic: true,
	BreakdownCountry:              true,
	BreakdownDeviceType:           true,
	BreakdownTrafficSource:        true,
	BreakdownUserSegment:          true,
}

func IsKnownBreakdown(key string) bool {
	return knownBreakdowns[key]
}

// WeekTotals are the week-over-week totals of a metric.
type WeekTotals struct {
	Wo4W     float64  `json:"Wo4W"`
	Wo3W     float64  `json:"Wo3W"`
	Wo2W     float64  `json:"Wo2W"`
	Wo1W     float64  `json:"Wo1W"`
	Baseline float64  `json:"baseline"`
	T7D      *float64 `json:"T7D,omitempty"`
}

type BreakdownItem struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
	Trend  string  `json:"trend,omitempty"`
}

type DimensionBreakdown struct {
	Dimension string          `json:"dimension"`
	Dataset   string          `json:"dataset"`
	Metric    string          `json:"metric"`
	Anomaly   bool            `json:"anomaly"`
	Data      []BreakdownItem `json:"data"`
}

type HourlyPoint struct {
	Hour   int     `json:"hour"`
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// MetricSnapshot is the decoded metric payload: totals plus breakdowns keyed
// by one of the known breakdown keys.
type MetricSnapshot struct {
	Total      WeekTotals                    `json:"total"`
	Breakdowns map[string]DimensionBreakdown `json:"-"`
	Hourly     []HourlyPoint                 `json:"hourlyBreakdown,omitempty"`
}

func (m *MetricSnapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	total, ok := raw["total"]
	if !ok {
		return fmt.Errorf("metric snapshot: missing total")
	}
	if err := json.Unmarshal(total, &m.Total); err != nil {
		return fmt.Errorf("metric snapshot: total: %w", err)
	}

	m.Breakdowns = make(map[string]DimensionBreakdown)
	var unknown []string
	for key, value := range raw {
		switch {
		case key == "total":
		case key == "hourlyBreakdown":
			if err := json.Unmarshal(value, &m.Hourly); err != nil {
				return fmt.Errorf("metric snapshot: hourlyBreakdown: %w", err)
			}
		case IsKnownBreakdown(key):
			var b DimensionBreakdown
			if err := json.Unmarshal(value, &b); err != nil {
				return fmt.Errorf("metric snapshot: %s: %w", key, err)
			}
			m.Breakdowns[key] = b
		default:
			unknown = append(unknown, key)
		}
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("metric snapshot: unknown breakdown keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func (m MetricSnapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.Breakdowns)+2)
	out["total"] = m.Total
	for key, b := range m.Breakdowns {
		out[key] = b
	}
	if len(m.Hourly) > 0 {
		out["hourlyBreakdown"] = m.Hourly
	}
	return json.Marshal(out)
}

// BreakdownKeys returns the snapshot's breakdown keys in a stable order.
func (m MetricSnapshot) BreakdownKeys() []string {
	keys := make([]string, 0, len(m.Breakdowns))
	for k := range m.Breakdowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AvailableResponse reports the latest timestamp (unix ms) with data.
type AvailableResponse struct {
	Latest int64          `json:"latest"`
	Data   MetricSnapshot `json:"data"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}
