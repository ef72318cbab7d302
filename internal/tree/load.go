// Package tree owns the metric hierarchy: it validates hierarchy sources into
// an immutable tree and derives flattened, filtered and navigation views.
package tree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/detective/core/internal/models"
	"go.uber.org/multierr"
)

// LoadError reports every problem found in a hierarchy source.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	errs := multierr.Errors(e.Err)
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return "invalid hierarchy: " + strings.Join(msgs, "; ")
}

func (e *LoadError) Unwrap() []error {
	return multierr.Errors(e.Err)
}

var (
	ErrEmptySource   = errors.New("hierarchy source is empty")
	ErrDuplicateID   = errors.New("duplicate node id")
	ErrCycle         = errors.New("cycle detected")
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidValue  = errors.New("invalid field value")
	ErrUnknownParent = errors.New("unknown parent")
	ErrMultipleRoots = errors.New("multiple roots")
)

// Tree is a loaded hierarchy. It is never mutated after Load returns; a
// reload builds a new Tree.
type Tree struct {
	root  *models.TreeNode
	nodes []*models.TreeNode
	index map[string]*models.TreeNode
}

func (t *Tree) Root() *models.TreeNode {
	if t == nil {
		return nil
	}
	return t.root
}

// Flatten returns a fresh pre-order slice of every node.
func (t *Tree) Flatten() []*models.TreeNode {
	if t == nil {
		return []*models.TreeNode{}
	}
	out := make([]*models.TreeNode, len(t.nodes))
	copy(out, t.nodes)
	return out
}

func (t *Tree) Find(id string) (*models.TreeNode, bool) {
	if t == nil {
		return nil, false
	}
	n, ok := t.index[id]
	return n, ok
}

func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Load validates src and builds a tree. An empty source yields an empty
// tree. Validation is all-or-nothing: any problem returns a *LoadError and
// no tree.
func Load(src *models.HierarchySource) (*Tree, error) {
	if src.Empty() {
		return &Tree{index: map[string]*models.TreeNode{}, nodes: []*models.TreeNode{}}, nil
	}

	var (
		root *models.TreeNode
		err  error
	)
	if src.Root != nil {
		root, err = buildNested(src.Root)
	} else {
		root, err = buildFlat(src.Nodes)
	}
	if err != nil {
		return nil, &LoadError{Err: err}
	}

	nodes := Flatten(root)
	index := make(map[string]*models.TreeNode, len(nodes))
	for _, n := range nodes {
		index[n.ID] = n
	}

	return &Tree{root: root, nodes: nodes, index: index}, nil
}

func buildNested(spec *models.NodeSpec) (*models.TreeNode, error) {
	var errs error
	seen := make(map[string]bool)
	onPath := make(map[*models.NodeSpec]bool)

	var build func(s *models.NodeSpec, parent string, level int) *models.TreeNode
	build = func(s *models.NodeSpec, parent string, level int) *models.TreeNode {
		if s == nil {
			errs = multierr.Append(errs, fmt.Errorf("%w: nil child of %q", ErrMissingField, parent))
			return nil
		}
		if onPath[s] {
			errs = multierr.Append(errs, fmt.Errorf("%w: node %q is its own ancestor", ErrCycle, s.ID))
			return nil
		}
		onPath[s] = true
		defer delete(onPath, s)

		node, err := newNode(s, parent, level)
		errs = multierr.Append(errs, err)
		if s.ID != "" {
			if seen[s.ID] {
				errs = multierr.Append(errs, fmt.Errorf("%w: %q", ErrDuplicateID, s.ID))
			}
			seen[s.ID] = true
		}

		if len(s.Children) > 0 {
			node.Children = make([]*models.TreeNode, 0, len(s.Children))
		}
		for _, cs := range s.Children {
			if child := build(cs, s.ID, level+1); child != nil {
				node.Children = append(node.Children, child)
			}
		}
		return node
	}

	root := build(spec, "", 0)
	if errs != nil {
		return nil, errs
	}
	return root, nil
}

func buildFlat(specs []models.NodeSpec) (*models.TreeNode, error) {
	var errs error
	byID := make(map[string]*models.NodeSpec, len(specs))
	children := make(map[string][]string)
	var roots []string

	for i := range specs {
		s := &specs[i]
		if s.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("%w: id (node #%d)", ErrMissingField, i))
			continue
		}
		if _, dup := byID[s.ID]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%w: %q", ErrDuplicateID, s.ID))
			continue
		}
		byID[s.ID] = s
	}

	for i := range specs {
		s := &specs[i]
		if s.ID == "" || byID[s.ID] != s {
			continue
		}
		if s.Parent == "" {
			roots = append(roots, s.ID)
			continue
		}
		if _, ok := byID[s.Parent]; !ok {
			errs = multierr.Append(errs, fmt.Errorf("%w: %q references %q", ErrUnknownParent, s.ID, s.Parent))
			continue
		}
		children[s.Parent] = append(children[s.Parent], s.ID)
	}

	for id := range byID {
		if cyclic(id, byID) {
			errs = multierr.Append(errs, fmt.Errorf("%w: through %q", ErrCycle, id))
			break
		}
	}

	switch {
	case len(roots) == 0 && len(byID) > 0:
		errs = multierr.Append(errs, fmt.Errorf("%w: no root node", ErrMissingField))
	case len(roots) > 1:
		errs = multierr.Append(errs, fmt.Errorf("%w: %s", ErrMultipleRoots, strings.Join(roots, ", ")))
	}
	if errs != nil {
		return nil, errs
	}

	var build func(id string, level int) *models.TreeNode
	build = func(id string, level int) *models.TreeNode {
		s := byID[id]
		node, err := newNode(s, s.Parent, level)
		errs = multierr.Append(errs, err)
		for _, cid := range children[id] {
			node.Children = append(node.Children, build(cid, level+1))
		}
		return node
	}

	root := build(roots[0], 0)
	if errs != nil {
		return nil, errs
	}
	return root, nil
}

// cyclic follows parent links from id and reports whether it returns to a
// node already visited on the way up.
func cyclic(id string, byID map[string]*models.NodeSpec) bool {
	visited := make(map[string]bool)
	for cur := id; cur != ""; {
		if visited[cur] {
			return true
		}
		visited[cur] = true
		s, ok := byID[cur]
		if !ok {
			return false
		}
		cur = s.Parent
	}
	return false
}

func newNode(s *models.NodeSpec, parent string, level int) (*models.TreeNode, error) {
	var errs error
	if s.ID == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: id (child of %q)", ErrMissingField, parent))
	}
	if s.Name == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: name of %q", ErrMissingField, s.ID))
	}
	if s.Value < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: value of %q is negative", ErrInvalidValue, s.ID))
	}
	if s.Level != nil && *s.Level != level {
		errs = multierr.Append(errs, fmt.Errorf("%w: level of %q is %d, depth is %d", ErrInvalidValue, s.ID, *s.Level, level))
	}

	status := s.Status
	if status == "" {
		status = models.StatusHealthy
	}
	if !status.Valid() {
		errs = multierr.Append(errs, fmt.Errorf("%w: status %q of %q", ErrInvalidValue, s.Status, s.ID))
	}

	return &models.TreeNode{
		ID:       s.ID,
		Name:     s.Name,
		Value:    s.Value,
		Change:   s.Change,
		Level:    level,
		Category: s.Category,
		Status:   status,
		Parent:   parent,
	}, errs
}
