package interference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEdgeIsSymmetric(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddEdge(1, 2)
	assert.Equal(t, 1, g.Node(1).Degree())
	assert.Equal(t, 1, g.Node(2).Degree())
}

func TestRemoveNodeClearsReciprocalEdges(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)
	g.AddEdge(1, 2)
	g.AddEdge(1, 3)
	g.RemoveNode(1)
	assert.Equal(t, 0, g.Node(2).Degree())
	assert.Equal(t, 0, g.Node(3).Degree())
	assert.Equal(t, 2, g.Len())
}

func TestFindLessThanK(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)
	g.AddEdge(1, 2)
	g.AddEdge(1, 3)
	g.AddEdge(2, 3)
	// triangle: every node has degree 2.
	assert.False(t, g.HasLessThanK(2))
	assert.True(t, g.HasLessThanK(3))

	g.RemoveNode(3)
	require.True(t, g.HasLessThanK(2))
	v := g.FindLessThanK(2)
	assert.Contains(t, []int{1, 2}, v)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	g := New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddEdge(1, 2)
	clone := g.Node(1).Clone()
	g.RemoveNode(2)
	assert.Equal(t, 1, clone.Degree())
	assert.Equal(t, 0, g.Node(1).Degree())
}
