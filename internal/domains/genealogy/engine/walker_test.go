package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/domains/genealogy/model"
)

func entryIDs(entries []model.Lineage) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.MemberID
	}
	return ids
}

func TestAncestors_FatherBranchFirst(t *testing.T) {
	res, err := newTestEngine().Ancestors(context.Background(), familyGraph(), 5, 0)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 1, 2}, entryIDs(res.Entries))
	assert.False(t, res.Truncated)
	assert.Equal(t, DefaultMaxWalkDepth, res.MaxDepth)

	assert.Equal(t, model.Lineage{
		MemberID: 2, FullName: "Bà Nội", Sex: model.SexFemale,
		Generation: 2, Via: 3, Role: model.RoleMother,
	}, res.Entries[2])
}

func TestAncestors_Truncated(t *testing.T) {
	res, err := newTestEngine().Ancestors(context.Background(), familyGraph(), 6, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{7, 4}, entryIDs(res.Entries))
	assert.True(t, res.Truncated)
	assert.Equal(t, 1, res.MaxDepth)
}

func TestAncestors_Root(t *testing.T) {
	res, err := newTestEngine().Ancestors(context.Background(), familyGraph(), 1, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.False(t, res.Truncated)
}

func TestAncestors_DepthClampedToCap(t *testing.T) {
	e := New(Options{MaxWalkDepth: 2})
	res, err := e.Ancestors(context.Background(), familyGraph(), 5, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, res.MaxDepth)
}

func TestDescendants_GenerationOrder(t *testing.T) {
	res, err := newTestEngine().Descendants(context.Background(), familyGraph(), 1, 0)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 4, 5, 6}, entryIDs(res.Entries))
	assert.False(t, res.Truncated)

	z := res.Entries[3]
	assert.Equal(t, 2, z.Generation)
	assert.Equal(t, int64(4), z.Via)
	assert.Equal(t, model.RoleMother, z.Role)
}

func TestDescendants_Truncated(t *testing.T) {
	res, err := newTestEngine().Descendants(context.Background(), familyGraph(), 1, 1)
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 4}, entryIDs(res.Entries))
	assert.True(t, res.Truncated)
}

func TestDescendants_Leaf(t *testing.T) {
	res, err := newTestEngine().Descendants(context.Background(), familyGraph(), 5, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.False(t, res.Truncated)
}

func TestDescendantTree(t *testing.T) {
	g := assignedFamily(t, familyLinks())
	root, truncated, err := newTestEngine().DescendantTree(context.Background(), g, 1, 0)
	require.NoError(t, err)
	assert.False(t, truncated)

	assert.Equal(t, "G-001", root.Code)
	require.Len(t, root.Children, 2)
	assert.Equal(t, int64(3), root.Children[0].MemberID)
	assert.Equal(t, int64(4), root.Children[1].MemberID)
	require.Len(t, root.Children[1].Children, 1)
	assert.Equal(t, int64(6), root.Children[1].Children[0].MemberID)
	assert.Equal(t, "G-003.001", root.Children[1].Children[0].Code)
}

func TestWalk_UnknownMember(t *testing.T) {
	e := newTestEngine()
	_, err := e.Ancestors(context.Background(), familyGraph(), 42, 0)
	assert.ErrorIs(t, err, model.ErrMemberNotFound)

	_, err = e.Descendants(context.Background(), familyGraph(), 42, 0)
	assert.ErrorIs(t, err, model.ErrMemberNotFound)
}

func TestWalk_CycleDetected(t *testing.T) {
	members := []model.Member{
		member(1, "A", model.SexMale),
		member(2, "B", model.SexMale),
		member(3, "C", model.SexMale),
	}
	links := []model.ParentLink{
		link(1, 1, 2, model.RoleFather),
		link(2, 2, 3, model.RoleFather),
		link(3, 3, 1, model.RoleFather),
	}
	g := NewGraph(testGroup, members, links)
	e := newTestEngine()

	_, err := e.Ancestors(context.Background(), g, 1, 0)
	var ce *model.CycleError
	require.ErrorAs(t, err, &ce)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ce.MemberIDs)

	_, err = e.Descendants(context.Background(), g, 1, 0)
	require.ErrorAs(t, err, &ce)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ce.MemberIDs)
}
