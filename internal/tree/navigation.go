package tree

import (
	"github.com/detective/core/internal/format"
	"github.com/detective/core/internal/models"
)

// NavNode is one entry of the collapsible navigation widget.
type NavNode struct {
	Key      string        `json:"key"`
	Title    string        `json:"title"`
	Status   models.Status `json:"status"`
	Value    string        `json:"value"`
	Children []NavNode     `json:"children,omitempty"`
}

// BuildNavigationTree rebuilds nesting from a flat node set using the parent
// back-references. Only level-0 nodes seed the top level; nodes whose parent
// is absent from the set are not reachable.
func BuildNavigationTree(nodes []*models.TreeNode) []NavNode {
	byParent := make(map[string][]*models.TreeNode)
	for _, n := range nodes {
		if n.Level == 0 {
			continue
		}
		byParent[n.Parent] = append(byParent[n.Parent], n)
	}

	var build func(n *models.TreeNode) NavNode
	build = func(n *models.TreeNode) NavNode {
		nav := NavNode{
			Key:    n.ID,
			Title:  n.Name,
			Status: n.Status,
			Value:  format.FormatNumber(n.Value),
		}
		for _, child := range byParent[n.ID] {
			nav.Children = append(nav.Children, build(child))
		}
		return nav
	}

	out := []NavNode{}
	for _, n := range nodes {
		if n.Level == 0 {
			out = append(out, build(n))
		}
	}
	return out
}
