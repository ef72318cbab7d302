package explorer

import (
	"context"
	"fmt"
	"os"

	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/parser"
	"github.com/detective/core/internal/tree"
)

// Loader supplies the hierarchy for a metric type.
type Loader interface {
	Load(ctx context.Context, metricType string) (*models.HierarchySource, error)
}

type LoaderFunc func(ctx context.Context, metricType string) (*models.HierarchySource, error)

func (f LoaderFunc) Load(ctx context.Context, metricType string) (*models.HierarchySource, error) {
	return f(ctx, metricType)
}

// SampleLoader serves the built-in hierarchy for every metric type.
var SampleLoader Loader = LoaderFunc(func(ctx context.Context, _ string) (*models.HierarchySource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tree.SampleHierarchy(), nil
})

// FileLoader reads a JSON or YAML hierarchy document on every load, so edits
// show up on the next reset.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context, _ string) (*models.HierarchySource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read hierarchy file: %w", err)
	}
	return parser.ParseHierarchy(data)
}
