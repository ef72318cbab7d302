package export

import (
	"context"
	"fmt"

	"github.com/detective/core/internal/datasource"
)

// Query selects what Gather fetches.
type Query struct {
	MetricType string
	Dataset    string
	Metric     string
}

// Gather fetches the data behind d from src and shapes it into a payload.
func Gather(ctx context.Context, src datasource.Source, d DataType, q Query) (Payload, error) {
	switch d {
	case DataMetrics:
		snap, err := src.GetMetric(ctx, datasource.MetricRequest{Type: q.MetricType, Hierarchy: true})
		if err != nil {
			return Payload{}, err
		}
		return Payload{Type: d, Data: snap}, nil

	case DataHistory:
		points, err := src.GetHistory(ctx, q.history())
		if err != nil {
			return Payload{}, err
		}
		return Payload{Type: d, Data: HistoryTable(points)}, nil

	case DataRCA:
		results, err := src.RunRCA(ctx, q.rca())
		if err != nil {
			return Payload{}, err
		}
		return Payload{Type: d, Data: RCATable(results)}, nil

	case DataAll:
		snap, err := src.GetMetric(ctx, datasource.MetricRequest{Type: q.MetricType, Hierarchy: true})
		if err != nil {
			return Payload{}, err
		}
		points, err := src.GetHistory(ctx, q.history())
		if err != nil {
			return Payload{}, err
		}
		results, err := src.RunRCA(ctx, q.rca())
		if err != nil {
			return Payload{}, err
		}
		return Payload{Type: d, Data: map[string]any{
			"metrics": snap,
			"history": points,
			"rca":     results,
		}}, nil
	}
	return Payload{}, fmt.Errorf("unknown data type %q", d)
}

func (q Query) history() datasource.HistoryRequest {
	return datasource.HistoryRequest{Type: q.MetricType, Dataset: q.Dataset, Metric: q.Metric, Hierarchy: true}
}

func (q Query) rca() datasource.RCARequest {
	return datasource.RCARequest{Type: q.MetricType, Dataset: q.Dataset, Metric: q.Metric, Hierarchy: true}
}
