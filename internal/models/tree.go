// Package models defines the core data structures shared by the tree model,
// the graph engine, the RCA pipeline and the data boundary.
package models

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

func (s Status) Valid() bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusCritical:
		return true
	}
	return false
}

// Category tags the business axis a node belongs to. The set is open: the
// constants below are the ones the sample hierarchy uses.
type Category string

const (
	CategorySystem    Category = "system"
	CategoryTraffic   Category = "traffic"
	CategoryGeography Category = "geography"
	CategoryDevice    Category = "device"
)

// TreeNode is one entity of the metric hierarchy. Parent is a lookup
// back-reference only; ownership flows through Children.
type TreeNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Value    float64     `json:"value"`
	Change   float64     `json:"change"`
	Level    int         `json:"level"`
	Category Category    `json:"category,omitempty"`
	Status   Status      `json:"status"`
	Children []*TreeNode `json:"children,omitempty"`
	Parent   string      `json:"parent,omitempty"`
}

func (n *TreeNode) IsLeaf() bool {
	return len(n.Children) == 0
}

// HierarchySource is the document a tree is loaded from. Exactly one of Root
// (nested form) or Nodes (flat form, nesting through Parent) is set.
type HierarchySource struct {
	Root  *NodeSpec  `json:"root,omitempty" yaml:"root,omitempty"`
	Nodes []NodeSpec `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// NodeSpec is the unvalidated description of a node. Level is optional; when
// present it must agree with the node's depth.
type NodeSpec struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Value    float64     `json:"value" yaml:"value"`
	Change   float64     `json:"change" yaml:"change"`
	Level    *int        `json:"level,omitempty" yaml:"level,omitempty"`
	Category Category    `json:"category,omitempty" yaml:"category,omitempty"`
	Status   Status      `json:"status,omitempty" yaml:"status,omitempty"`
	Parent   string      `json:"parent,omitempty" yaml:"parent,omitempty"`
	Children []*NodeSpec `json:"children,omitempty" yaml:"children,omitempty"`
}

func (s *HierarchySource) Empty() bool {
	return s == nil || (s.Root == nil && len(s.Nodes) == 0)
}

// LayoutMode selects the spatial projection of the tree.
type LayoutMode string

const (
	LayoutTree  LayoutMode = "tree"
	LayoutForce LayoutMode = "force"
)

func (m *LayoutMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch LayoutMode(s) {
	case LayoutTree, LayoutForce:
		*m = LayoutMode(s)
		return nil
	}
	return fmt.Errorf("unknown layout mode %q", s)
}
