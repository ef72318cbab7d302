// Package parser provides utilities for parsing and transforming input data.
// It decodes hierarchy documents and projects loaded trees into graphs.
package parser

import (
	"github.com/detective/core/internal/models"
)

const EdgeTypeChild = "child"

// BuildGraph projects a tree into unpositioned graph nodes (pre-order) and
// parent-to-child edges. A nil root yields an empty graph.
func BuildGraph(root *models.TreeNode) *models.Graph {
	graph := &models.Graph{
		Nodes: []models.GraphNode{},
		Edges: []models.Edge{},
	}
	stats := &models.Stats{
		NodesByStatus:   make(map[models.Status]int),
		NodesByCategory: make(map[models.Category]int),
	}
	graph.Stats = stats

	if root == nil {
		return graph
	}

	seen := make(map[string]bool)
	var walk func(n *models.TreeNode)
	walk = func(n *models.TreeNode) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true

		graph.Nodes = append(graph.Nodes, buildNode(n))
		stats.NodesByStatus[n.Status]++
		if n.Category != "" {
			stats.NodesByCategory[n.Category]++
		}
		if n.Level > stats.MaxDepth {
			stats.MaxDepth = n.Level
		}

		for _, child := range n.Children {
			graph.Edges = append(graph.Edges, models.Edge{
				Source: n.ID,
				Target: child.ID,
				Type:   EdgeTypeChild,
			})
			walk(child)
		}
	}
	walk(root)

	stats.TotalNodes = len(graph.Nodes)
	stats.TotalEdges = len(graph.Edges)

	return graph
}

func buildNode(n *models.TreeNode) models.GraphNode {
	return models.GraphNode{
		ID:       n.ID,
		Name:     n.Name,
		Value:    n.Value,
		Change:   n.Change,
		Level:    n.Level,
		Category: n.Category,
		Status:   n.Status,
		Leaf:     n.IsLeaf(),
	}
}
