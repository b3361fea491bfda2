package model

import "fmt"

// RelationType mô tả B là gì đối với A trong Relationship(A, B)
type RelationType string

const (
	RelationSelf                   RelationType = "self"
	RelationParent                 RelationType = "parent"
	RelationChild                  RelationType = "child"
	RelationGrandparent            RelationType = "grandparent"
	RelationGrandchild             RelationType = "grandchild"
	RelationGreatGrandparent       RelationType = "great_grandparent"
	RelationGreatGrandchild        RelationType = "great_grandchild"
	RelationSibling                RelationType = "sibling"
	RelationAuntOrUncle            RelationType = "aunt_or_uncle"
	RelationNieceOrNephew          RelationType = "niece_or_nephew"
	RelationGrandAuntOrUncle       RelationType = "grand_aunt_or_uncle"
	RelationGrandNieceOrNephew     RelationType = "grand_niece_or_nephew"
	RelationFirstCousin            RelationType = "first_cousin"
	RelationFirstCousinOnceRemoved RelationType = "first_cousin_once_removed"
	RelationSecondCousin           RelationType = "second_cousin"
	RelationRelative               RelationType = "relative"
	RelationNotRelated             RelationType = "not_related"
)

type distancePair struct {
	a, b int
}

// relationTable: (distanceA, distanceB) -> RelationType.
// distanceA/distanceB là số bước đi lên từ A/B tới tổ tiên chung.
var relationTable = map[distancePair]RelationType{
	{0, 0}: RelationSelf,
	{1, 0}: RelationParent,
	{0, 1}: RelationChild,
	{2, 0}: RelationGrandparent,
	{0, 2}: RelationGrandchild,
	{3, 0}: RelationGreatGrandparent,
	{0, 3}: RelationGreatGrandchild,
	{1, 1}: RelationSibling,
	{2, 1}: RelationAuntOrUncle,
	{1, 2}: RelationNieceOrNephew,
	{3, 1}: RelationGrandAuntOrUncle,
	{1, 3}: RelationGrandNieceOrNephew,
	{2, 2}: RelationFirstCousin,
	{3, 2}: RelationFirstCousinOnceRemoved,
	{2, 3}: RelationFirstCousinOnceRemoved,
	{3, 3}: RelationSecondCousin,
}

// ClassifyRelation is a pure lookup over the distance pair.
func ClassifyRelation(distanceA, distanceB int) RelationType {
	if t, ok := relationTable[distancePair{distanceA, distanceB}]; ok {
		return t
	}
	return RelationRelative
}

// RelationLabel trả về nhãn hiển thị trung tính giới tính
func RelationLabel(distanceA, distanceB int) string {
	t := ClassifyRelation(distanceA, distanceB)
	if t == RelationRelative {
		return fmt.Sprintf("relative, degree %d", distanceA+distanceB)
	}
	return string(t)
}

type genderedKey struct {
	t   RelationType
	sex Sex
}

var genderedLabels = map[genderedKey]string{
	{RelationParent, SexMale}:               "father",
	{RelationParent, SexFemale}:             "mother",
	{RelationChild, SexMale}:                "son",
	{RelationChild, SexFemale}:              "daughter",
	{RelationGrandparent, SexMale}:          "grandfather",
	{RelationGrandparent, SexFemale}:        "grandmother",
	{RelationGrandchild, SexMale}:           "grandson",
	{RelationGrandchild, SexFemale}:         "granddaughter",
	{RelationGreatGrandparent, SexMale}:     "great-grandfather",
	{RelationGreatGrandparent, SexFemale}:   "great-grandmother",
	{RelationGreatGrandchild, SexMale}:      "great-grandson",
	{RelationGreatGrandchild, SexFemale}:    "great-granddaughter",
	{RelationSibling, SexMale}:              "brother",
	{RelationSibling, SexFemale}:            "sister",
	{RelationAuntOrUncle, SexMale}:          "uncle",
	{RelationAuntOrUncle, SexFemale}:        "aunt",
	{RelationNieceOrNephew, SexMale}:        "nephew",
	{RelationNieceOrNephew, SexFemale}:      "niece",
	{RelationGrandAuntOrUncle, SexMale}:     "grand-uncle",
	{RelationGrandAuntOrUncle, SexFemale}:   "grand-aunt",
	{RelationGrandNieceOrNephew, SexMale}:   "grand-nephew",
	{RelationGrandNieceOrNephew, SexFemale}: "grand-niece",
}

// GenderedLabel refines a relation with B's sex; falls back to the neutral label.
func GenderedLabel(distanceA, distanceB int, sex Sex) string {
	t := ClassifyRelation(distanceA, distanceB)
	if label, ok := genderedLabels[genderedKey{t, sex}]; ok {
		return label
	}
	return RelationLabel(distanceA, distanceB)
}

// ========================================
// QUERY RESULTS
// ========================================

// Lineage là một entry trong kết quả Ancestors/Descendants
type Lineage struct {
	MemberID   int64  `json:"member_id"`
	FullName   string `json:"full_name"`
	Code       string `json:"code,omitempty"`
	Sex        Sex    `json:"sex"`
	Generation int    `json:"generation"`
	// Via là member đã dẫn tới entry này (child khi đi lên, parent khi đi xuống)
	Via int64 `json:"via"`
	// Role của cạnh đã đi qua
	Role Role `json:"role"`
}

type WalkResult struct {
	MemberID  int64     `json:"member_id"`
	MaxDepth  int       `json:"max_depth"`
	Truncated bool      `json:"truncated"`
	Entries   []Lineage `json:"entries"`
}

// TreeNode is the nested rendering of a descendant walk.
type TreeNode struct {
	MemberID   int64       `json:"member_id"`
	FullName   string      `json:"full_name"`
	Code       string      `json:"code,omitempty"`
	Generation int         `json:"generation"`
	Children   []*TreeNode `json:"children,omitempty"`
}

type CommonAncestor struct {
	MemberID  int64  `json:"member_id"`
	FullName  string `json:"full_name"`
	Code      string `json:"code,omitempty"`
	DistanceA int    `json:"distance_a"`
	DistanceB int    `json:"distance_b"`
}

// Kinship là kết quả Relationship(A, B).
// Found=false chính là kết quả NotRelated, không phải lỗi.
type Kinship struct {
	MemberA         int64            `json:"member_a"`
	MemberB         int64            `json:"member_b"`
	Found           bool             `json:"found"`
	CommonAncestor  *CommonAncestor  `json:"common_ancestor,omitempty"`
	CommonAncestors []CommonAncestor `json:"common_ancestors,omitempty"`
	DistanceA       int              `json:"distance_a"`
	DistanceB       int              `json:"distance_b"`
	Degree          int              `json:"degree"`
	Type            RelationType     `json:"type"`
	Label           string           `json:"label"`
	MaxDepth        int              `json:"max_depth"`
}

// NotRelated builds the negative kinship result.
func NotRelated(a, b int64, maxDepth int) *Kinship {
	return &Kinship{
		MemberA:  a,
		MemberB:  b,
		Found:    false,
		Type:     RelationNotRelated,
		Label:    fmt.Sprintf("no common ancestor within %d generations", maxDepth),
		MaxDepth: maxDepth,
	}
}

// CodeReport liệt kê các member có code lệch so với kết quả tính lại
type CodeReport struct {
	GroupID    int64       `json:"group_id"`
	Members    int         `json:"members"`
	Drifted    []CodeDrift `json:"drifted"`
	Consistent bool        `json:"consistent"`
}

type CodeDrift struct {
	MemberID int64  `json:"member_id"`
	Stored   string `json:"stored"`
	Expected string `json:"expected"`
}
