// Package models defines the core data structures shared by the tree model,
// the graph engine, the RCA pipeline and the data boundary.
package models

// Graph is the renderable projection of a tree: positioned nodes plus
// parent-child edges for the active layout mode.
type Graph struct {
	Mode  LayoutMode  `json:"mode,omitempty"`
	Nodes []GraphNode `json:"nodes"`
	Edges []Edge      `json:"edges"`
	Stats *Stats      `json:"stats,omitempty"`
}

type GraphNode struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Value       float64  `json:"value"`
	Change      float64  `json:"change"`
	Level       int      `json:"level"`
	Category    Category `json:"category,omitempty"`
	Status      Status   `json:"status"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Radius      float64  `json:"radius,omitempty"`
	Fill        string   `json:"fill,omitempty"`
	Stroke      string   `json:"stroke,omitempty"`
	StrokeWidth float64  `json:"stroke_width,omitempty"`
	Selected    bool     `json:"selected,omitempty"`
	Pinned      bool     `json:"pinned,omitempty"`
	Leaf        bool     `json:"leaf"`
}

type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Path   string  `json:"path,omitempty"`
	Width  float64 `json:"width,omitempty"`
}

type Stats struct {
	TotalNodes      int              `json:"total_nodes"`
	TotalEdges      int              `json:"total_edges"`
	MaxDepth        int              `json:"max_depth"`
	NodesByStatus   map[Status]int   `json:"nodes_by_status,omitempty"`
	NodesByCategory map[Category]int `json:"nodes_by_category,omitempty"`
}
