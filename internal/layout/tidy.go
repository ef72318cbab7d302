// Package layout computes the two spatial projections of a tree (layered
// tidy tree and force-directed simulation) plus node styling and the
// zoom/pan viewport.
package layout

import (
	"math"

	"github.com/detective/core/internal/models"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Canvas is the drawing area. Layout coordinates live inside the margins.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin float64 `json:"margin"`
}

func (c Canvas) Inner() (width, height float64) {
	return math.Max(c.Width-2*c.Margin, 0), math.Max(c.Height-2*c.Margin, 0)
}

func (c Canvas) Center() Point {
	w, h := c.Inner()
	return Point{X: w / 2, Y: h / 2}
}

// Gap between adjacent nodes, in breadth units.
const (
	SiblingSeparation = 1.0
	CousinSeparation  = 2.0
)

type subtree struct {
	node     *models.TreeNode
	offset   float64
	children []*subtree
	// left and right contours per relative depth, relative to this node.
	left, right []float64
}

// TreeLayout places every node of root: depth maps to X across the inner
// width, breadth to Y across the inner height. Adjacent nodes with different
// parents are spaced twice as far apart as true siblings.
func TreeLayout(root *models.TreeNode, canvas Canvas) map[string]Point {
	positions := make(map[string]Point)
	if root == nil {
		return positions
	}

	st := layoutSubtree(root)

	breadth := make(map[string]float64)
	depth := make(map[string]int)
	maxDepth := 0
	minB, maxB := math.Inf(1), math.Inf(-1)

	var assign func(s *subtree, x float64, d int)
	assign = func(s *subtree, x float64, d int) {
		breadth[s.node.ID] = x
		depth[s.node.ID] = d
		minB = math.Min(minB, x)
		maxB = math.Max(maxB, x)
		if d > maxDepth {
			maxDepth = d
		}
		for _, c := range s.children {
			assign(c, x+c.offset, d+1)
		}
	}
	assign(st, 0, 0)

	innerW, innerH := canvas.Inner()
	span := maxB - minB + 1
	for id, b := range breadth {
		x := 0.0
		if maxDepth > 0 {
			x = float64(depth[id]) * innerW / float64(maxDepth)
		}
		positions[id] = Point{
			X: x,
			Y: (b - minB + 0.5) / span * innerH,
		}
	}

	return positions
}

func layoutSubtree(n *models.TreeNode) *subtree {
	st := &subtree{node: n, left: []float64{0}, right: []float64{0}}
	if n.IsLeaf() {
		return st
	}

	for _, child := range n.Children {
		st.children = append(st.children, layoutSubtree(child))
	}

	positions := make([]float64, len(st.children))
	first := st.children[0]
	accLeft := append([]float64(nil), first.left...)
	accRight := append([]float64(nil), first.right...)

	for i := 1; i < len(st.children); i++ {
		c := st.children[i]

		shift := math.Inf(-1)
		for d := 0; d < len(accRight) && d < len(c.left); d++ {
			sep := CousinSeparation
			if d == 0 {
				sep = SiblingSeparation
			}
			shift = math.Max(shift, accRight[d]+sep-c.left[d])
		}
		positions[i] = shift

		for d := range c.left {
			l, r := c.left[d]+shift, c.right[d]+shift
			if d < len(accLeft) {
				accLeft[d] = math.Min(accLeft[d], l)
				accRight[d] = math.Max(accRight[d], r)
			} else {
				accLeft = append(accLeft, l)
				accRight = append(accRight, r)
			}
		}
	}

	mid := (positions[0] + positions[len(positions)-1]) / 2
	for i, c := range st.children {
		c.offset = positions[i] - mid
	}
	for d := range accLeft {
		st.left = append(st.left, accLeft[d]-mid)
		st.right = append(st.right, accRight[d]-mid)
	}

	return st
}
