package categories

import "sort"

// TreeNode is a category with its resolved children.
type TreeNode struct {
	Category
	Children []*TreeNode `json:"children"`
}

// BuildTree assembles the display tree from a flat category list. Orphans
// (parent missing or part of a cycle) are promoted to roots rather than
// dropped, so a bad parent reference never hides a subtree.
func BuildTree(flat []Category) []*TreeNode {
	nodes := make(map[int64]*TreeNode, len(flat))
	for _, c := range flat {
		nodes[c.ID] = &TreeNode{Category: c}
	}

	var roots []*TreeNode
	for _, c := range flat {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok || *c.ParentID == c.ID {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	// A cycle leaves its members unreachable from any root; promote one
	// representative per cycle so the tree always covers every category.
	reachable := make(map[int64]bool, len(nodes))
	var mark func(n *TreeNode)
	mark = func(n *TreeNode) {
		if reachable[n.ID] {
			return
		}
		reachable[n.ID] = true
		for _, child := range n.Children {
			mark(child)
		}
	}
	for _, root := range roots {
		mark(root)
	}
	for _, c := range flat {
		if !reachable[c.ID] {
			node := nodes[c.ID]
			if c.ParentID != nil {
				if parent, ok := nodes[*c.ParentID]; ok {
					parent.Children = detach(parent.Children, node)
				}
			}
			roots = append(roots, node)
			mark(node)
		}
	}

	sortNodes(roots)
	return roots
}

func detach(children []*TreeNode, node *TreeNode) []*TreeNode {
	for i, child := range children {
		if child == node {
			return append(children[:i], children[i+1:]...)
		}
	}
	return children
}

func sortNodes(nodes []*TreeNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
