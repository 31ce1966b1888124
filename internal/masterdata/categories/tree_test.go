package categories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestBuildTree(t *testing.T) {
	flat := []Category{
		{ID: 1, Name: "Electronics"},
		{ID: 2, Name: "Laptops", ParentID: ptr(1)},
		{ID: 3, Name: "Accessories", ParentID: ptr(1)},
		{ID: 4, Name: "Chargers", ParentID: ptr(3)},
		{ID: 5, Name: "Office"},
	}
	roots := BuildTree(flat)
	require.Len(t, roots, 2)
	require.Equal(t, "Electronics", roots[0].Name)
	require.Equal(t, "Office", roots[1].Name)

	require.Len(t, roots[0].Children, 2)
	require.Equal(t, "Accessories", roots[0].Children[0].Name)
	require.Equal(t, "Laptops", roots[0].Children[1].Name)
	require.Len(t, roots[0].Children[0].Children, 1)
	require.Equal(t, "Chargers", roots[0].Children[0].Children[0].Name)
}

func TestBuildTreePromotesOrphans(t *testing.T) {
	flat := []Category{
		{ID: 1, Name: "Root"},
		{ID: 2, Name: "Orphan", ParentID: ptr(99)},
		{ID: 3, Name: "SelfRef", ParentID: ptr(3)},
	}
	roots := BuildTree(flat)
	require.Len(t, roots, 3)
}

func TestBuildTreeSurvivesCycle(t *testing.T) {
	flat := []Category{
		{ID: 1, Name: "A", ParentID: ptr(2)},
		{ID: 2, Name: "B", ParentID: ptr(1)},
		{ID: 3, Name: "Root"},
	}
	roots := BuildTree(flat)

	// Every category must be reachable exactly once.
	seen := map[int64]int{}
	var walk func(nodes []*TreeNode)
	walk = func(nodes []*TreeNode) {
		for _, n := range nodes {
			seen[n.ID]++
			walk(n.Children)
		}
	}
	walk(roots)
	require.Len(t, seen, 3)
	for id, count := range seen {
		require.Equal(t, 1, count, "category %d visited %d times", id, count)
	}
}
