package layout

import (
	"math"
	"strconv"

	"github.com/detective/core/internal/models"
)

const (
	MinRadius = 8.0
	MaxRadius = 25.0
)

const (
	FillCritical = "#ff4d4f"
	FillWarning  = "#faad14"
	FillPositive = "#52c41a"
	FillNegative = "#ff7875"
	FillNeutral  = "#1890ff"

	StrokeSelected = "#722ed1"
	StrokeDefault  = "#fff"
)

// NodeRadius grows with the square root of value (in millions) within
// [MinRadius, MaxRadius].
func NodeRadius(value float64) float64 {
	r := math.Sqrt(math.Max(value, 0) / 1e6)
	return math.Max(MinRadius, math.Min(MaxRadius, r))
}

// NodeFill: status wins over trend.
func NodeFill(status models.Status, change float64) string {
	switch {
	case status == models.StatusCritical:
		return FillCritical
	case status == models.StatusWarning:
		return FillWarning
	case change > 0:
		return FillPositive
	case change < 0:
		return FillNegative
	}
	return FillNeutral
}

func NodeStroke(selected bool) (color string, width float64) {
	if selected {
		return StrokeSelected, 3
	}
	return StrokeDefault, 2
}

// LinkWidth is the force-layout stroke width for an edge into a child of
// the given value.
func LinkWidth(childValue float64) float64 {
	return math.Sqrt(math.Max(childValue, 0)/1e6) + 1
}

// LinkPath is a horizontal cubic curve from source to target, in SVG path
// syntax.
func LinkPath(source, target Point) string {
	mx := (source.X + target.X) / 2
	return "M" + num(source.X) + "," + num(source.Y) +
		"C" + num(mx) + "," + num(source.Y) +
		"," + num(mx) + "," + num(target.Y) +
		"," + num(target.X) + "," + num(target.Y)
}

// StyleGraph places g's nodes at positions and fills in radius, fill, stroke
// and selection. Force-mode edges get a width, tree-mode edges a curve path.
func StyleGraph(g *models.Graph, positions map[string]Point, selectedID string) {
	values := make(map[string]float64, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		p := positions[n.ID]
		n.X, n.Y = p.X, p.Y
		n.Radius = NodeRadius(n.Value)
		n.Fill = NodeFill(n.Status, n.Change)
		n.Selected = selectedID != "" && n.ID == selectedID
		n.Stroke, n.StrokeWidth = NodeStroke(n.Selected)
		values[n.ID] = n.Value
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		if g.Mode == models.LayoutForce {
			e.Width = LinkWidth(values[e.Target])
			continue
		}
		e.Path = LinkPath(positions[e.Source], positions[e.Target])
	}
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
