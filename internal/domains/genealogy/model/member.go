package model

import (
	"time"
)

// ========================================
// ENUMS
// ========================================

type Sex string

const (
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
	SexUnknown Sex = "unknown"
)

func (s Sex) IsValid() bool {
	switch s {
	case SexMale, SexFemale, SexUnknown:
		return true
	}
	return false
}

// Role là vai trò của parent trong một ParentLink
type Role string

const (
	RoleFather Role = "father"
	RoleMother Role = "mother"
)

func (r Role) IsValid() bool {
	return r == RoleFather || r == RoleMother
}

// Other trả về role còn lại (father <-> mother)
func (r Role) Other() Role {
	if r == RoleFather {
		return RoleMother
	}
	return RoleFather
}

// ========================================
// ENTITIES
// ========================================

// FamilyGroup map bảng family_groups.
// CodePrefix cố định khi tạo group, mọi root code trong group đều bắt đầu bằng nó.
type FamilyGroup struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CodePrefix string    `json:"code_prefix"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Member map bảng members.
// ID là identity gốc (không bao giờ tái sử dụng); Code chỉ là dữ liệu dẫn xuất.
type Member struct {
	ID        int64      `json:"id"`
	GroupID   int64      `json:"group_id"`
	FullName  string     `json:"full_name"`
	Sex       Sex        `json:"sex"`
	Code      *string    `json:"code,omitempty"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	DeathDate *time.Time `json:"death_date,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Version   int        `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CodeValue returns the member code or "" when it has not been assigned yet.
func (m *Member) CodeValue() string {
	if m == nil || m.Code == nil {
		return ""
	}
	return *m.Code
}

// ParentLink là cạnh có hướng parent -> child, gắn role father/mother.
type ParentLink struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	ParentID  int64     `json:"parent_id"`
	ChildID   int64     `json:"child_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkProposal is an edge that has not been written yet.
type LinkProposal struct {
	GroupID  int64
	ParentID int64
	ChildID  int64
	Role     Role
}
