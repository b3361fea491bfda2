package model

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"family-registry-backend/internal/shared/utils"
)

const dateLayout = "2006-01-02"

// ========================================
// GROUP DTOs
// ========================================

type CreateGroupRequest struct {
	Name       string `json:"name" binding:"required"`
	CodePrefix string `json:"code_prefix" binding:"required"`
}

func (r CreateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name,
			validation.Required.Error("name is required"),
			validation.Length(1, 200),
		),
		validation.Field(&r.CodePrefix,
			validation.Required.Error("code_prefix is required"),
			validation.Match(regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)).Error("code_prefix must be 1-10 uppercase letters/digits starting with a letter"),
		),
	)
}

// ========================================
// MEMBER DTOs
// ========================================

type CreateMemberRequest struct {
	FullName  string  `json:"full_name" binding:"required"`
	Sex       Sex     `json:"sex" binding:"required"`
	BirthDate *string `json:"birth_date,omitempty"`
	DeathDate *string `json:"death_date,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

func (r CreateMemberRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName,
			validation.Required.Error("full name is required"),
			validation.Length(1, 200),
		),
		validation.Field(&r.Sex,
			validation.Required.Error("sex is required"),
			validation.In(SexMale, SexFemale, SexUnknown).Error("sex must be male, female or unknown"),
		),
		validation.Field(&r.BirthDate, validation.NilOrNotEmpty, validation.Date(dateLayout)),
		validation.Field(&r.DeathDate, validation.NilOrNotEmpty, validation.Date(dateLayout)),
		validation.Field(&r.Notes, validation.Length(0, 2000)),
	)
}

// ToMember builds the entity; names are NFC-normalized before storage.
func (r CreateMemberRequest) ToMember(groupID int64) *Member {
	return &Member{
		GroupID:   groupID,
		FullName:  utils.NormalizeName(r.FullName),
		Sex:       r.Sex,
		BirthDate: parseDate(r.BirthDate),
		DeathDate: parseDate(r.DeathDate),
		Notes:     r.Notes,
	}
}

// UpdateMemberRequest chỉ cập nhật thông tin hiển thị, không đụng tới code/links
type UpdateMemberRequest struct {
	FullName  *string `json:"full_name,omitempty"`
	Sex       *Sex    `json:"sex,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	DeathDate *string `json:"death_date,omitempty"`
	Notes     *string `json:"notes,omitempty"`
}

func (r UpdateMemberRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.Sex, validation.NilOrNotEmpty, validation.In(SexMale, SexFemale, SexUnknown)),
		validation.Field(&r.BirthDate, validation.NilOrNotEmpty, validation.Date(dateLayout)),
		validation.Field(&r.DeathDate, validation.NilOrNotEmpty, validation.Date(dateLayout)),
		validation.Field(&r.Notes, validation.Length(0, 2000)),
	)
}

// Apply ghi các field được gửi lên vào entity
func (r UpdateMemberRequest) Apply(m *Member) {
	if r.FullName != nil {
		m.FullName = utils.NormalizeName(*r.FullName)
	}
	if r.Sex != nil {
		m.Sex = *r.Sex
	}
	if r.BirthDate != nil {
		m.BirthDate = parseDate(r.BirthDate)
	}
	if r.DeathDate != nil {
		m.DeathDate = parseDate(r.DeathDate)
	}
	if r.Notes != nil {
		m.Notes = *r.Notes
	}
}

// ========================================
// LINK DTOs
// ========================================

type AddParentLinkRequest struct {
	ParentID int64 `json:"parent_id" binding:"required"`
	ChildID  int64 `json:"child_id" binding:"required"`
	Role     Role  `json:"role" binding:"required"`
}

func (r AddParentLinkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ParentID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.ChildID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Role,
			validation.Required.Error("role is required"),
			validation.In(RoleFather, RoleMother).Error("role must be father or mother"),
		),
	)
}

func (r AddParentLinkRequest) ToProposal(groupID int64) LinkProposal {
	return LinkProposal{
		GroupID:  groupID,
		ParentID: r.ParentID,
		ChildID:  r.ChildID,
		Role:     r.Role,
	}
}

// ========================================
// RESPONSES
// ========================================

// AssignResponse là kết quả một lượt renumbering
type AssignResponse struct {
	GroupID int64            `json:"group_id"`
	RootID  *int64           `json:"root_id,omitempty"`
	Changed int              `json:"changed"`
	Codes   map[int64]string `json:"codes"`
}

// LinkMutationResponse trả về link vừa thay đổi kèm kết quả renumber (nếu chạy sync)
type LinkMutationResponse struct {
	Link     *ParentLink     `json:"link"`
	Renumber *AssignResponse `json:"renumber,omitempty"`
	Queued   bool            `json:"queued"`
}

// MemberMutationResponse: member vừa tạo/xóa kèm kết quả renumber
type MemberMutationResponse struct {
	Member   *Member         `json:"member"`
	Renumber *AssignResponse `json:"renumber,omitempty"`
	Queued   bool            `json:"queued"`
}

// DescendantTreeResponse là dạng cây của Descendants (format=tree)
type DescendantTreeResponse struct {
	MemberID  int64     `json:"member_id"`
	Truncated bool      `json:"truncated"`
	Tree      *TreeNode `json:"tree"`
}

func parseDate(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil
	}
	return &t
}
