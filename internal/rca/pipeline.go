// Package rca turns a raw candidate set and an analysis configuration into a
// ranked, capped result set, and drives analysis runs against the data
// source.
package rca

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/detective/core/internal/models"
)

var (
	ErrEmptyResults  = errors.New("no results to export")
	ErrInvalidConfig = errors.New("invalid rca config")
)

// HighConfidence is the strict lower bound of a high-confidence result.
const HighConfidence = 0.8

// Rank keeps candidates with confidence >= MinConfidence and
// |change| >= Threshold, then truncates to MaxResults in arrival order.
// Candidates are not re-sorted before truncation.
func Rank(candidates []models.RCACandidate, cfg models.RCAConfig) []models.RCACandidate {
	kept := lo.Filter(candidates, func(c models.RCACandidate, _ int) bool {
		return c.Confidence >= cfg.MinConfidence && math.Abs(c.ChangePercent) >= cfg.Threshold
	})
	if cfg.MaxResults >= 0 && len(kept) > cfg.MaxResults {
		kept = kept[:cfg.MaxResults]
	}
	return kept
}

// Summarize aggregates results. An empty set yields all zeros.
func Summarize(results []models.RCACandidate) models.RCASummary {
	if len(results) == 0 {
		return models.RCASummary{}
	}
	best := lo.MaxBy(results, func(a, b models.RCACandidate) bool { return a.Impact > b.Impact })
	return models.RCASummary{
		Count: len(results),
		HighConfidenceCount: len(lo.Filter(results, func(c models.RCACandidate, _ int) bool {
			return c.Confidence > HighConfidence
		})),
		MaxImpact:      best.Impact,
		MeanConfidence: lo.SumBy(results, func(c models.RCACandidate) float64 { return c.Confidence }) / float64(len(results)),
	}
}

// Analyze ranks and summarizes in one step.
func Analyze(candidates []models.RCACandidate, cfg models.RCAConfig) models.RCAResultSet {
	results := Rank(candidates, cfg)
	return models.RCAResultSet{Results: results, Summary: Summarize(results)}
}

// SortOrder is a display-only ordering over an already ranked set.
type SortOrder string

const (
	SortArrival    SortOrder = ""
	SortImpact     SortOrder = "impact"
	SortConfidence SortOrder = "confidence"
	SortChange     SortOrder = "change"
)

func (o SortOrder) Valid() bool {
	switch o {
	case SortArrival, SortImpact, SortConfidence, SortChange:
		return true
	}
	return false
}

// Sorted returns a reordered copy; results is left untouched. Ties keep
// arrival order.
func Sorted(results []models.RCACandidate, order SortOrder) []models.RCACandidate {
	out := slices.Clone(results)
	var key func(models.RCACandidate) float64
	switch order {
	case SortImpact:
		key = func(c models.RCACandidate) float64 { return c.Impact }
	case SortConfidence:
		key = func(c models.RCACandidate) float64 { return c.Confidence }
	case SortChange:
		key = func(c models.RCACandidate) float64 { return math.Abs(c.ChangePercent) }
	default:
		return out
	}
	slices.SortStableFunc(out, func(a, b models.RCACandidate) int {
		return cmp.Compare(key(b), key(a))
	})
	return out
}

// ChartPoint is the bar-chart projection of one result.
type ChartPoint struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Change     float64 `json:"change"`
	Confidence float64 `json:"confidence"`
}

func ChartData(results []models.RCACandidate) []ChartPoint {
	return lo.Map(results, func(c models.RCACandidate, _ int) ChartPoint {
		return ChartPoint{
			Name:       c.Dimension + ": " + c.Value,
			Value:      c.Impact,
			Change:     c.ChangePercent,
			Confidence: c.Confidence,
		}
	})
}

// RankBadge is the tag color for the zero-based display rank.
func RankBadge(index int) string {
	switch {
	case index < 3:
		return "red"
	case index < 6:
		return "orange"
	}
	return "blue"
}

func ConfidenceBand(confidence float64) string {
	switch {
	case confidence > HighConfidence:
		return "success"
	case confidence > 0.6:
		return "normal"
	}
	return "exception"
}

// DimensionLabel renders a dimension key as a table tag, e.g. DEVICE TYPE.
func DimensionLabel(dimension string) string {
	return strings.ToUpper(strings.Replace(dimension, "_", " ", 1))
}
