// Package models defines the core data structures shared by the tree model,
// the graph engine, the RCA pipeline and the data boundary.
package models

import (
	"fmt"
	"time"
)

// RCACandidate is one explanatory factor returned by the analysis service.
type RCACandidate struct {
	Dimension     string  `json:"dimension"`
	Value         string  `json:"value"`
	Impact        float64 `json:"impact"`
	Confidence    float64 `json:"confidence"`
	ChangePercent float64 `json:"change_percent"`
}

type WeightFunction string

const (
	WeightAbsChange WeightFunction = "AbsChange"
	WeightRelChange WeightFunction = "RelChange"
	WeightImpact    WeightFunction = "Impact"
)

func (w WeightFunction) Valid() bool {
	switch w {
	case WeightAbsChange, WeightRelChange, WeightImpact:
		return true
	}
	return false
}

// RCAConfig holds the analysis parameters. AnalysisDepth is carried to the
// analysis service and not used by the ranking itself.
type RCAConfig struct {
	MetricType     string         `json:"metric_type"`
	Date           time.Time      `json:"date"`
	Threshold      float64        `json:"threshold"`
	MinConfidence  float64        `json:"min_confidence"`
	MaxResults     int            `json:"max_results"`
	WeightFunction WeightFunction `json:"weight_function"`
	AnalysisDepth  int            `json:"analysis_depth"`
}

func (c RCAConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be within [0,1], got %v", c.MinConfidence)
	}
	if c.Threshold < 0 {
		return fmt.Errorf("threshold must not be negative, got %v", c.Threshold)
	}
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be positive, got %d", c.MaxResults)
	}
	if c.WeightFunction != "" && !c.WeightFunction.Valid() {
		return fmt.Errorf("unknown weight function %q", c.WeightFunction)
	}
	return nil
}

// RCASummary aggregates a result set. MaxImpact and MeanConfidence are 0 for
// an empty set.
type RCASummary struct {
	Count               int     `json:"count"`
	HighConfidenceCount int     `json:"high_confidence_count"`
	MaxImpact           float64 `json:"max_impact"`
	MeanConfidence      float64 `json:"mean_confidence"`
}

type RCAResultSet struct {
	Results []RCACandidate `json:"results"`
	Summary RCASummary     `json:"summary"`
}
