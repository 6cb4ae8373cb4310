package service

import (
	"strings"

	"github.com/jask/comptes/internal/database/repository"
)

// TreeNode is one category in a Tree; links are indexes into Tree.Nodes.
type TreeNode struct {
	Category repository.Category
	Parent   int // -1 for roots and orphans
	Children []int
	Depth    int
}

// Tree is a flat arena of categories with parent/child index links.
type Tree struct {
	Nodes []TreeNode
	Roots []int
	byID  map[int64]int
}

// BuildTree links categories in one grouping pass. Input order is kept
// among siblings.
func BuildTree(cats []repository.Category) Tree {
	t := Tree{Nodes: make([]TreeNode, len(cats)), byID: make(map[int64]int, len(cats))}
	for i, c := range cats {
		t.Nodes[i] = TreeNode{Category: c, Parent: -1}
		t.byID[c.ID] = i
	}
	for i, c := range cats {
		if c.ParentID == nil {
			t.Roots = append(t.Roots, i)
			continue
		}
		p, ok := t.byID[*c.ParentID]
		if !ok {
			t.Roots = append(t.Roots, i)
			continue
		}
		t.Nodes[i].Parent = p
		t.Nodes[p].Children = append(t.Nodes[p].Children, i)
	}
	// depths, breadth first from the roots
	queue := append([]int(nil), t.Roots...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, c := range t.Nodes[n].Children {
			t.Nodes[c].Depth = t.Nodes[n].Depth + 1
			queue = append(queue, c)
		}
	}
	return t
}

// Index returns the arena position of a category id.
func (t Tree) Index(id int64) (int, bool) {
	i, ok := t.byID[id]
	return i, ok
}

// FullPath renders a category and its ancestors as "A > B > C".
func (t Tree) FullPath(id int64) string {
	i, ok := t.byID[id]
	if !ok {
		return ""
	}
	var parts []string
	for steps := 0; i >= 0 && steps <= len(t.Nodes); steps++ {
		parts = append(parts, t.Nodes[i].Category.Name)
		i = t.Nodes[i].Parent
	}
	for l, r := 0, len(parts)-1; l < r; l, r = l+1, r-1 {
		parts[l], parts[r] = parts[r], parts[l]
	}
	return strings.Join(parts, " > ")
}

// Walk visits nodes depth first in sibling order.
func (t Tree) Walk(fn func(n TreeNode)) {
	var visit func(i int)
	visit = func(i int) {
		fn(t.Nodes[i])
		for _, c := range t.Nodes[i].Children {
			visit(c)
		}
	}
	for _, r := range t.Roots {
		visit(r)
	}
}
