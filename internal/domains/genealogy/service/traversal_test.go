package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/model"
)

func cachedEnv(t *testing.T) (*testEnv, *memoryCache) {
	c := newMemoryCache()
	return newEnv(t, Config{AutoRenumber: config.AutoRenumberSync, CacheTTL: time.Minute}, c, nil), c
}

func TestAncestors(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	res, err := env.svc.Ancestors(env.ctx, l.son.ID, 0)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, l.father.ID, res.Entries[0].MemberID)
	assert.Equal(t, "TR-001.001", res.Entries[0].Code)
	assert.Equal(t, 2, res.Entries[1].Generation)

	res, err = env.svc.Ancestors(env.ctx, l.son.ID, 1)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 1)
	assert.True(t, res.Truncated)

	_, err = env.svc.Ancestors(env.ctx, 9999, 0)
	assert.ErrorIs(t, err, model.ErrMemberNotFound)
}

func TestDescendantsAndTree(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	res, err := env.svc.Descendants(env.ctx, l.grandpa.ID, 0)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, l.son.ID, res.Entries[1].MemberID)

	tree, err := env.svc.DescendantTree(env.ctx, l.grandpa.ID, 0)
	require.NoError(t, err)
	assert.False(t, tree.Truncated)
	require.Len(t, tree.Tree.Children, 1)
	require.Len(t, tree.Tree.Children[0].Children, 1)
	assert.Equal(t, "TR-001.001.001", tree.Tree.Children[0].Children[0].Code)
}

func TestRelationship(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	k, err := env.svc.Relationship(env.ctx, l.son.ID, l.grandpa.ID)
	require.NoError(t, err)
	assert.True(t, k.Found)
	assert.Equal(t, model.RelationGrandparent, k.Type)
	assert.Equal(t, "grandfather", k.Label)

	other := env.group(t, "LY")
	stranger := env.member(t, other.ID, "Lý Khách", model.SexFemale)
	k, err = env.svc.Relationship(env.ctx, l.son.ID, stranger.ID)
	require.NoError(t, err)
	assert.False(t, k.Found)
	assert.Equal(t, model.RelationNotRelated, k.Type)
}

func TestRelationship_FirstCousinsThroughService(t *testing.T) {
	env := syncEnv(t)
	g := env.group(t, "G1")
	root := env.member(t, g.ID, "Nguyễn Văn Tổ", model.SexMale)
	b := env.member(t, g.ID, "Nguyễn Văn B", model.SexMale)
	c := env.member(t, g.ID, "Nguyễn Văn C", model.SexMale)
	y := env.member(t, g.ID, "Nguyễn Văn Y", model.SexMale)
	z := env.member(t, g.ID, "Nguyễn Thị Z", model.SexFemale)
	env.link(t, g.ID, root.ID, b.ID, model.RoleFather)
	env.link(t, g.ID, root.ID, c.ID, model.RoleFather)
	env.link(t, g.ID, b.ID, y.ID, model.RoleFather)
	env.link(t, g.ID, c.ID, z.ID, model.RoleFather)

	assert.Equal(t, "G1-001", env.code(t, root.ID))
	assert.Equal(t, "G1-001.001", env.code(t, b.ID))
	assert.Equal(t, "G1-001.002", env.code(t, c.ID))
	assert.Equal(t, "G1-001.001.001", env.code(t, y.ID))
	assert.Equal(t, "G1-001.002.001", env.code(t, z.ID))

	report, err := env.svc.VerifyGroup(env.ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	k, err := env.svc.Relationship(env.ctx, y.ID, z.ID)
	require.NoError(t, err)
	require.True(t, k.Found)
	require.NotNil(t, k.CommonAncestor)
	assert.Equal(t, root.ID, k.CommonAncestor.MemberID)
	assert.Equal(t, 2, k.DistanceA)
	assert.Equal(t, 2, k.DistanceB)
	assert.Equal(t, 4, k.Degree)
	assert.Equal(t, model.RelationFirstCousin, k.Type)
}

func TestTraversal_CachedAndInvalidated(t *testing.T) {
	env, c := cachedEnv(t)
	l := env.lineage(t, "TR")

	first, err := env.svc.Descendants(env.ctx, l.grandpa.ID, 0)
	require.NoError(t, err)
	second, err := env.svc.Descendants(env.ctx, l.grandpa.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, c.hits)
	assert.Equal(t, first, second)
	assert.Contains(t, c.keys(), fmt.Sprintf("genealogy:g:%d:desc:%d:0", l.group.ID, l.grandpa.ID))

	// mutation xóa toàn bộ key của group
	grandson := env.member(t, l.group.ID, "Trần Văn Cháu", model.SexMale)
	assert.Empty(t, c.keys())
	env.link(t, l.group.ID, l.son.ID, grandson.ID, model.RoleFather)

	third, err := env.svc.Descendants(env.ctx, l.grandpa.ID, 0)
	require.NoError(t, err)
	assert.Len(t, third.Entries, 3)
	assert.Equal(t, 1, c.hits)
}

func TestTraversal_OtherGroupKeysSurvive(t *testing.T) {
	env, c := cachedEnv(t)
	a := env.lineage(t, "AA")
	b := env.lineage(t, "BB")

	_, err := env.svc.Relationship(env.ctx, a.son.ID, a.grandpa.ID)
	require.NoError(t, err)
	_, err = env.svc.Relationship(env.ctx, b.son.ID, b.grandpa.ID)
	require.NoError(t, err)
	require.Len(t, c.keys(), 2)

	env.member(t, a.group.ID, "Mới", model.SexMale)
	assert.Equal(t, []string{fmt.Sprintf("genealogy:g:%d:kin:%d:%d", b.group.ID, b.son.ID, b.grandpa.ID)}, c.keys())
}

func TestTraversal_CacheFailureFallsBack(t *testing.T) {
	env, c := cachedEnv(t)
	l := env.lineage(t, "TR")
	c.failGet = true

	res, err := env.svc.Ancestors(env.ctx, l.son.ID, 0)
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)
}

func TestTraversal_NoCacheWhenTTLZero(t *testing.T) {
	c := newMemoryCache()
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberSync}, c, nil)
	l := env.lineage(t, "TR")

	_, err := env.svc.Ancestors(env.ctx, l.son.ID, 0)
	require.NoError(t, err)
	assert.Zero(t, c.sets)
}
