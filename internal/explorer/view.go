package explorer

import (
	"github.com/detective/core/internal/format"
	"github.com/detective/core/internal/layout"
	"github.com/detective/core/internal/models"
	"github.com/detective/core/internal/parser"
	"github.com/detective/core/internal/tree"
)

// NodeDetail backs the detail panel of the selected node.
type NodeDetail struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Value           float64         `json:"value"`
	FormattedValue  string          `json:"formatted_value"`
	Change          float64         `json:"change"`
	FormattedChange string          `json:"formatted_change"`
	TrendColor      string          `json:"trend_color"`
	Level           int             `json:"level"`
	Category        models.Category `json:"category,omitempty"`
	Status          models.Status   `json:"status"`
	Parent          string          `json:"parent,omitempty"`
	Children        int             `json:"children"`
}

// View is everything a renderer needs for one frame.
type View struct {
	MetricType   string                `json:"metric_type"`
	Graph        *models.Graph         `json:"graph"`
	State        GraphLayoutState      `json:"state"`
	Transform    string                `json:"transform"`
	StatusCounts map[models.Status]int `json:"status_counts"`
	Selected     *NodeDetail           `json:"selected,omitempty"`
	Alpha        float64               `json:"alpha,omitempty"`
	Converged    bool                  `json:"converged"`
}

func detail(n *models.TreeNode) *NodeDetail {
	return &NodeDetail{
		ID:              n.ID,
		Name:            n.Name,
		Value:           n.Value,
		FormattedValue:  format.FormatNumber(n.Value),
		Change:          n.Change,
		FormattedChange: format.FormatPercentage(n.Change),
		TrendColor:      format.TrendColor(n.Change),
		Level:           n.Level,
		Category:        n.Category,
		Status:          n.Status,
		Parent:          n.Parent,
		Children:        len(n.Children),
	}
}

// Snapshot renders the whole tree in the current mode. Filters do not hide
// graph nodes; they apply to Nodes and Navigation.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		MetricType:   s.metricType,
		State:        s.state.clone(),
		Transform:    s.state.Viewport.Transform(s.cfg.Canvas.Margin),
		StatusCounts: tree.StatusCounts(nil),
		Converged:    true,
	}

	var root *models.TreeNode
	if s.tree != nil {
		root = s.tree.Root()
		v.StatusCounts = tree.StatusCounts(s.tree.Flatten())
		if n, ok := s.tree.Find(s.state.SelectedID); ok {
			v.Selected = detail(n)
		}
	}

	g := parser.BuildGraph(root)
	g.Mode = s.state.Mode

	positions := s.positions
	if s.sim != nil {
		positions = s.sim.Positions()
		v.Alpha = s.sim.Alpha()
		v.Converged = s.sim.Converged()
	}

	layout.StyleGraph(g, positions, s.state.SelectedID)
	if s.sim != nil {
		for i := range g.Nodes {
			if part, ok := s.sim.Particle(g.Nodes[i].ID); ok {
				g.Nodes[i].Pinned = part.Fixed
			}
		}
	}

	v.Graph = g
	return v
}

// Nodes is the flattened tree passed through the filter and search.
func (s *Session) Nodes() ([]*models.TreeNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, ErrNotLoaded
	}
	return tree.Filter(s.tree.Flatten(), s.state.predicate()), nil
}

// FilterNodes applies p to the flattened tree without touching the view's
// own filter.
func (s *Session) FilterNodes(p tree.Predicate) ([]*models.TreeNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, ErrNotLoaded
	}
	return tree.Filter(s.tree.Flatten(), p), nil
}

// Navigation is the collapsible tree over every loaded node. The filter
// only applies to Nodes.
func (s *Session) Navigation() ([]tree.NavNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return nil, ErrNotLoaded
	}
	return tree.BuildNavigationTree(s.tree.Flatten()), nil
}

func (s *Session) State() GraphLayoutState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Loaded reports whether a tree is in place, with its node count and metric.
func (s *Session) Loaded() (nodes int, metricType string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return 0, s.metricType, false
	}
	return s.tree.Len(), s.metricType, true
}

func (s *Session) MetricType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricType
}

// Position reports a node's current layout coordinates.
func (s *Session) Position(id string) (layout.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sim != nil {
		p, ok := s.sim.Particle(id)
		return layout.Point{X: p.X, Y: p.Y}, ok
	}
	p, ok := s.positions[id]
	return p, ok
}
