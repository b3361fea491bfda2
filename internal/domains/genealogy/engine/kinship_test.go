package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/domains/genealogy/model"
)

func TestRelationship_Table(t *testing.T) {
	tests := []struct {
		name   string
		a, b   int64
		typ    model.RelationType
		label  string
		degree int
	}{
		{name: "first cousins", a: 5, b: 6, typ: model.RelationFirstCousin, label: "first_cousin", degree: 4},
		{name: "child", a: 3, b: 5, typ: model.RelationChild, label: "son", degree: 1},
		{name: "parent", a: 5, b: 3, typ: model.RelationParent, label: "father", degree: 1},
		{name: "sibling", a: 3, b: 4, typ: model.RelationSibling, label: "sister", degree: 2},
		{name: "grandparent", a: 6, b: 2, typ: model.RelationGrandparent, label: "grandmother", degree: 2},
		{name: "aunt", a: 5, b: 4, typ: model.RelationAuntOrUncle, label: "aunt", degree: 3},
		{name: "nephew", a: 4, b: 5, typ: model.RelationNieceOrNephew, label: "nephew", degree: 3},
	}

	e := newTestEngine()
	g := familyGraph()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := e.Relationship(context.Background(), g, tt.a, tt.b)
			require.NoError(t, err)

			assert.True(t, k.Found)
			assert.Equal(t, tt.typ, k.Type)
			assert.Equal(t, tt.label, k.Label)
			assert.Equal(t, tt.degree, k.Degree)
			assert.Equal(t, k.DistanceA+k.DistanceB, k.Degree)
		})
	}
}

func TestRelationship_FirstCousinsShareBothGrandparents(t *testing.T) {
	k, err := newTestEngine().Relationship(context.Background(), familyGraph(), 5, 6)
	require.NoError(t, err)

	require.NotNil(t, k.CommonAncestor)
	assert.Equal(t, int64(1), k.CommonAncestor.MemberID)
	require.Len(t, k.CommonAncestors, 2)
	assert.Equal(t, int64(2), k.CommonAncestors[1].MemberID)
	assert.Equal(t, 2, k.DistanceA)
	assert.Equal(t, 2, k.DistanceB)
}

func TestRelationship_Symmetric(t *testing.T) {
	e := newTestEngine()
	g := familyGraph()

	ids := g.MemberIDs()
	for _, a := range ids {
		for _, b := range ids {
			ab, err := e.Relationship(context.Background(), g, a, b)
			require.NoError(t, err)
			ba, err := e.Relationship(context.Background(), g, b, a)
			require.NoError(t, err)

			assert.Equal(t, ab.Found, ba.Found, "%d/%d", a, b)
			assert.Equal(t, ab.Degree, ba.Degree, "%d/%d", a, b)
			assert.Equal(t, ab.DistanceA, ba.DistanceB, "%d/%d", a, b)
		}
	}
}

func TestRelationship_Self(t *testing.T) {
	k, err := newTestEngine().Relationship(context.Background(), familyGraph(), 5, 5)
	require.NoError(t, err)

	assert.True(t, k.Found)
	assert.Equal(t, model.RelationSelf, k.Type)
	assert.Equal(t, 0, k.Degree)
	assert.Equal(t, int64(5), k.CommonAncestor.MemberID)
}

func TestRelationship_NotRelated(t *testing.T) {
	k, err := newTestEngine().Relationship(context.Background(), familyGraph(), 5, 7)
	require.NoError(t, err)

	assert.False(t, k.Found)
	assert.Equal(t, model.RelationNotRelated, k.Type)
	assert.Nil(t, k.CommonAncestor)
	assert.Equal(t, DefaultMaxKinshipDepth, k.MaxDepth)
}

func TestRelationship_DepthCap(t *testing.T) {
	const n = 12
	members := make([]model.Member, 0, n)
	links := make([]model.ParentLink, 0, n)
	for i := int64(1); i <= n; i++ {
		members = append(members, member(i, fmt.Sprintf("Đời %d", i), model.SexMale))
		if i > 1 {
			links = append(links, link(i, i-1, i, model.RoleFather))
		}
	}
	g := NewGraph(testGroup, members, links)
	e := newTestEngine()

	// 11 -> 1: đúng 10 đời, vẫn trong cap
	k, err := e.Relationship(context.Background(), g, 11, 1)
	require.NoError(t, err)
	assert.True(t, k.Found)
	assert.Equal(t, model.RelationRelative, k.Type)
	assert.Equal(t, "relative, degree 10", k.Label)

	// 12 -> 1: 11 đời, vượt cap
	k, err = e.Relationship(context.Background(), g, 12, 1)
	require.NoError(t, err)
	assert.False(t, k.Found)
}

func TestRelationship_UnknownMember(t *testing.T) {
	_, err := newTestEngine().Relationship(context.Background(), familyGraph(), 5, 42)
	assert.ErrorIs(t, err, model.ErrMemberNotFound)
}
