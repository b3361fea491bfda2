package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRelation(t *testing.T) {
	tests := []struct {
		a, b int
		want RelationType
	}{
		{0, 0, RelationSelf},
		{1, 0, RelationParent},
		{0, 1, RelationChild},
		{2, 0, RelationGrandparent},
		{0, 3, RelationGreatGrandchild},
		{1, 1, RelationSibling},
		{2, 1, RelationAuntOrUncle},
		{1, 2, RelationNieceOrNephew},
		{2, 2, RelationFirstCousin},
		{3, 2, RelationFirstCousinOnceRemoved},
		{2, 3, RelationFirstCousinOnceRemoved},
		{3, 3, RelationSecondCousin},
		{4, 0, RelationRelative},
		{5, 4, RelationRelative},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRelation(tt.a, tt.b), "(%d, %d)", tt.a, tt.b)
	}
}

func TestGenderedLabel(t *testing.T) {
	assert.Equal(t, "father", GenderedLabel(1, 0, SexMale))
	assert.Equal(t, "daughter", GenderedLabel(0, 1, SexFemale))
	assert.Equal(t, "grand-aunt", GenderedLabel(3, 1, SexFemale))
	// không rõ giới tính -> nhãn trung tính
	assert.Equal(t, "sibling", GenderedLabel(1, 1, SexUnknown))
	assert.Equal(t, "second_cousin", GenderedLabel(3, 3, SexMale))
	assert.Equal(t, "relative, degree 9", GenderedLabel(5, 4, SexMale))
}

func TestNotRelated(t *testing.T) {
	k := NotRelated(1, 2, 10)
	assert.False(t, k.Found)
	assert.Equal(t, RelationNotRelated, k.Type)
	assert.Equal(t, "no common ancestor within 10 generations", k.Label)
	assert.Nil(t, k.CommonAncestor)
}
