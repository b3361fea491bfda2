package engine

import (
	"fmt"
	"strconv"
	"strings"

	"family-registry-backend/internal/domains/genealogy/model"
)

// ============================================================
// CONSISTENCY GUARD
// ============================================================
// Chỉ đọc Graph, không ghi gì. Chạy trong transaction của mutation,
// trước khi insert link.

// PrecheckLink covers the rules that need no snapshot: role and self link.
func PrecheckLink(p model.LinkProposal) error {
	if !p.Role.IsValid() {
		return model.NewValidationError(model.ReasonInvalidRole, p, "role %q must be father or mother", p.Role)
	}
	if p.ParentID == p.ChildID {
		return model.NewValidationError(model.ReasonSelfLink, p, "member %d cannot be its own parent", p.ChildID)
	}
	return nil
}

// ValidateLink checks a proposed parent edge against the group snapshot.
func (e *Engine) ValidateLink(g *Graph, p model.LinkProposal) error {
	if err := PrecheckLink(p); err != nil {
		return err
	}
	if p.GroupID != 0 && p.GroupID != g.Group().ID {
		return model.NewValidationError(model.ReasonCrossGroup, p, "link belongs to group %d, snapshot is group %d", p.GroupID, g.Group().ID)
	}

	parent, ok := g.Member(p.ParentID)
	if !ok {
		return model.NewValidationError(model.ReasonUnknownMember, p, "parent %d is not a member of group %d", p.ParentID, g.Group().ID)
	}
	if _, ok := g.Member(p.ChildID); !ok {
		return model.NewValidationError(model.ReasonUnknownMember, p, "child %d is not a member of group %d", p.ChildID, g.Group().ID)
	}

	if existing, ok := g.ParentLink(p.ChildID, p.Role); ok {
		if existing.ParentID == p.ParentID {
			return model.NewValidationError(model.ReasonDuplicateRole, p, "link %d already records %d as %s of %d", existing.ID, p.ParentID, p.Role, p.ChildID)
		}
		return model.NewValidationError(model.ReasonDuplicateRole, p, "member %d already has a %s (%d)", p.ChildID, p.Role, existing.ParentID)
	}
	if other, ok := g.ParentLink(p.ChildID, p.Role.Other()); ok && other.ParentID == p.ParentID {
		return model.NewValidationError(model.ReasonSameParentBothRoles, p, "member %d is already the %s of %d", p.ParentID, other.Role, p.ChildID)
	}

	switch {
	case p.Role == model.RoleFather && parent.Sex == model.SexFemale,
		p.Role == model.RoleMother && parent.Sex == model.SexMale:
		return model.NewValidationError(model.ReasonSexMismatch, p, "member %d (%s) cannot be recorded as %s", p.ParentID, parent.Sex, p.Role)
	}

	// child đã là tổ tiên của parent -> cạnh mới khép kín chu trình
	if path := g.ancestorPath(p.ChildID, p.ParentID); path != nil {
		return model.NewValidationError(model.ReasonCycle, p, "member %d is already an ancestor of %d (%s)", p.ChildID, p.ParentID, formatPath(path))
	}
	return nil
}

// CheckSameGroup rejects members that live outside groupID. Members never
// move between groups, so this can run before the group transaction starts.
func CheckSameGroup(groupID int64, p model.LinkProposal, members ...*model.Member) error {
	for _, m := range members {
		if m != nil && m.GroupID != groupID {
			return model.NewValidationError(model.ReasonCrossGroup, p, "member %d belongs to group %d, not %d", m.ID, m.GroupID, groupID)
		}
	}
	return nil
}

func formatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("path %s", strings.Join(parts, " -> "))
}
