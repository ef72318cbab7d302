package tree

import (
	"math"
	"strings"

	"github.com/detective/core/internal/models"
	"github.com/samber/lo"
)

// Flatten walks root in pre-order. Every call re-traverses from scratch.
func Flatten(root *models.TreeNode) []*models.TreeNode {
	nodes := []*models.TreeNode{}
	if root == nil {
		return nodes
	}

	var walk func(n *models.TreeNode)
	walk = func(n *models.TreeNode) {
		nodes = append(nodes, n)
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(root)

	return nodes
}

// CategoryAll disables the category criterion.
const CategoryAll = "all"

// Predicate selects nodes for list and search views. All criteria are
// AND-combined; value bounds are inclusive.
type Predicate struct {
	Category     string  `json:"category"`
	ShowHealthy  bool    `json:"show_healthy"`
	ShowWarning  bool    `json:"show_warning"`
	ShowCritical bool    `json:"show_critical"`
	MinValue     float64 `json:"min_value"`
	MaxValue     float64 `json:"max_value"`
	Query        string  `json:"query"`
}

// DefaultPredicate accepts every node.
func DefaultPredicate() Predicate {
	return Predicate{
		Category:     CategoryAll,
		ShowHealthy:  true,
		ShowWarning:  true,
		ShowCritical: true,
		MinValue:     0,
		MaxValue:     math.MaxFloat64,
	}
}

func (p Predicate) Match(n *models.TreeNode) bool {
	if p.Category != "" && p.Category != CategoryAll && string(n.Category) != p.Category {
		return false
	}

	switch n.Status {
	case models.StatusHealthy:
		if !p.ShowHealthy {
			return false
		}
	case models.StatusWarning:
		if !p.ShowWarning {
			return false
		}
	case models.StatusCritical:
		if !p.ShowCritical {
			return false
		}
	}

	if n.Value < p.MinValue || n.Value > p.MaxValue {
		return false
	}

	if p.Query != "" && !strings.Contains(strings.ToLower(n.Name), strings.ToLower(p.Query)) {
		return false
	}

	return true
}

// Filter keeps the nodes matching p, preserving order.
func Filter(nodes []*models.TreeNode, p Predicate) []*models.TreeNode {
	return lo.Filter(nodes, func(n *models.TreeNode, _ int) bool {
		return p.Match(n)
	})
}

// StatusCounts tallies nodes per status; every status is present in the result.
func StatusCounts(nodes []*models.TreeNode) map[models.Status]int {
	counts := map[models.Status]int{
		models.StatusHealthy:  0,
		models.StatusWarning:  0,
		models.StatusCritical: 0,
	}
	for status, group := range lo.GroupBy(nodes, func(n *models.TreeNode) models.Status { return n.Status }) {
		counts[status] += len(group)
	}
	return counts
}
