package explorer

import (
	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/tree"
)

// DefaultExpanded is the navigation widget's initial expansion.
var DefaultExpanded = []string{"root"}

// GraphLayoutState is view-only state. Changing it never touches the tree.
type GraphLayoutState struct {
	Mode       models.LayoutMode `json:"mode"`
	Viewport   layout.Viewport   `json:"viewport"`
	SelectedID string            `json:"selected_id,omitempty"`
	Expanded   []string          `json:"expanded"`
	Search     string            `json:"search"`
	Filter     tree.Predicate    `json:"filter"`
}

func newState(minZoom, maxZoom float64) GraphLayoutState {
	return GraphLayoutState{
		Mode:     models.LayoutTree,
		Viewport: layout.NewViewport(minZoom, maxZoom),
		Expanded: append([]string(nil), DefaultExpanded...),
		Filter:   tree.DefaultPredicate(),
	}
}

func (s GraphLayoutState) clone() GraphLayoutState {
	s.Expanded = append([]string(nil), s.Expanded...)
	return s
}

// predicate is the filter with the search box folded in.
func (s GraphLayoutState) predicate() tree.Predicate {
	p := s.Filter
	p.Query = s.Search
	return p
}
