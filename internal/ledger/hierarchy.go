package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/store"
)

var (
	// ErrCycle is returned when an edge would make a category its own ancestor.
	ErrCycle = errors.New("edge would create a cycle")

	// ErrHasParent is returned when a category already has a different parent.
	ErrHasParent = errors.New("category already has a parent")

	// ErrSelfParent is returned when a category is given itself as parent.
	ErrSelfParent = errors.New("category cannot be its own parent")

	// ErrEmptyCategory is returned for a blank category name.
	ErrEmptyCategory = errors.New("category name cannot be empty")
)

type node struct {
	parent string
	level  int
}

// Hierarchy is an adjacency map of category name to parent and level.
// It is not safe for concurrent use; Ledger serializes access.
type Hierarchy struct {
	nodes map[string]*node
}

// NewHierarchy builds a hierarchy from stored edges. Edges are applied
// parents first, so levels are recomputed rather than trusted.
func NewHierarchy(edges []store.CategoryEdge) (*Hierarchy, error) {
	h := &Hierarchy{nodes: make(map[string]*node)}

	sorted := make([]store.CategoryEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })

	for _, e := range sorted {
		if e.Parent == "" {
			h.ensureRoot(e.Category)
			continue
		}
		if err := h.AddEdge(e.Category, e.Parent); err != nil {
			return nil, fmt.Errorf("NewHierarchy: %s -> %s: %w", e.Category, e.Parent, err)
		}
	}
	return h, nil
}

// AddEdge makes parent the parent of child. An unknown parent is created as a
// root first. Re-adding an existing edge is a no-op.
func (h *Hierarchy) AddEdge(child, parent string) error {
	child, parent = strings.TrimSpace(child), strings.TrimSpace(parent)
	if child == "" || parent == "" {
		return ErrEmptyCategory
	}
	if child == parent {
		return ErrSelfParent
	}

	if n, ok := h.nodes[child]; ok && n.parent != "" {
		if n.parent == parent {
			return nil
		}
		return fmt.Errorf("%s has parent %s: %w", child, n.parent, ErrHasParent)
	}

	for _, ancestor := range h.ancestors(parent) {
		if ancestor == child {
			return fmt.Errorf("%s is an ancestor of %s: %w", child, parent, ErrCycle)
		}
	}

	p := h.ensureRoot(parent)
	c := h.ensureRoot(child)
	c.parent = parent
	c.level = p.level + 1
	h.relevel(child)
	return nil
}

// RemoveEdge detaches child from its parent, making it a root. It reports
// whether an edge was removed.
func (h *Hierarchy) RemoveEdge(child string) bool {
	n, ok := h.nodes[strings.TrimSpace(child)]
	if !ok || n.parent == "" {
		return false
	}
	n.parent = ""
	n.level = 0
	h.relevel(strings.TrimSpace(child))
	return true
}

// Contains reports whether category is part of the hierarchy.
func (h *Hierarchy) Contains(category string) bool {
	_, ok := h.nodes[category]
	return ok
}

// Level returns the depth of category, 0 for roots. ok is false for unknown names.
func (h *Hierarchy) Level(category string) (int, bool) {
	n, ok := h.nodes[category]
	if !ok {
		return 0, false
	}
	return n.level, true
}

// Parent returns the parent of category, or "" for roots and unknown names.
func (h *Hierarchy) Parent(category string) string {
	if n, ok := h.nodes[category]; ok {
		return n.parent
	}
	return ""
}

// Path returns the chain root -> ... -> category. A category outside the
// hierarchy is its own single-element path.
func (h *Hierarchy) Path(category string) []string {
	up := append([]string{category}, h.ancestors(category)...)
	path := make([]string, len(up))
	for i, c := range up {
		path[len(up)-1-i] = c
	}
	return path
}

// Descendants returns every category below category, breadth first with
// siblings sorted by name.
func (h *Hierarchy) Descendants(category string) []string {
	children := h.childIndex()

	var out []string
	visited := map[string]bool{category: true}
	queue := []string{category}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, c := range children[current] {
			if visited[c] {
				continue
			}
			visited[c] = true
			out = append(out, c)
			queue = append(queue, c)
		}
	}
	return out
}

// Edges returns every node ordered by level then name.
func (h *Hierarchy) Edges() []store.CategoryEdge {
	edges := make([]store.CategoryEdge, 0, len(h.nodes))
	for name, n := range h.nodes {
		edges = append(edges, store.CategoryEdge{Category: name, Parent: n.parent, Level: n.level})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Level != edges[j].Level {
			return edges[i].Level < edges[j].Level
		}
		return edges[i].Category < edges[j].Category
	})
	return edges
}

// ancestors walks parent pointers from category upward, nearest first.
func (h *Hierarchy) ancestors(category string) []string {
	var out []string
	visited := map[string]bool{category: true}
	for current := h.Parent(category); current != ""; current = h.Parent(current) {
		if visited[current] {
			break
		}
		visited[current] = true
		out = append(out, current)
	}
	return out
}

func (h *Hierarchy) ensureRoot(category string) *node {
	n, ok := h.nodes[category]
	if !ok {
		n = &node{}
		h.nodes[category] = n
	}
	return n
}

// relevel recomputes levels below category from its current level.
func (h *Hierarchy) relevel(category string) {
	children := h.childIndex()
	visited := map[string]bool{category: true}
	queue := []string{category}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		level := h.nodes[current].level
		for _, c := range children[current] {
			if visited[c] {
				continue
			}
			visited[c] = true
			h.nodes[c].level = level + 1
			queue = append(queue, c)
		}
	}
}

func (h *Hierarchy) childIndex() map[string][]string {
	children := make(map[string][]string)
	for name, n := range h.nodes {
		if n.parent != "" {
			children[n.parent] = append(children[n.parent], name)
		}
	}
	for _, c := range children {
		sort.Strings(c)
	}
	return children
}
