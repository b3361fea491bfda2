package service

import (
	"context"
	"time"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/model"
)

// ServiceInterface - business logic của genealogy
type ServiceInterface interface {
	// Groups
	CreateGroup(ctx context.Context, req model.CreateGroupRequest) (*model.FamilyGroup, error)
	GetGroup(ctx context.Context, id int64) (*model.FamilyGroup, error)
	ListGroups(ctx context.Context) ([]model.FamilyGroup, error)

	// Members
	ListMembers(ctx context.Context, groupID int64, query string) ([]model.Member, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	CreateMember(ctx context.Context, groupID int64, req model.CreateMemberRequest) (*model.MemberMutationResponse, error)
	UpdateMember(ctx context.Context, id int64, req model.UpdateMemberRequest) (*model.Member, error)
	DeleteMember(ctx context.Context, id int64) (*model.MemberMutationResponse, error)

	// Links (Consistency Guard chạy bên trong)
	AddParentLink(ctx context.Context, groupID int64, req model.AddParentLinkRequest) (*model.LinkMutationResponse, error)
	RemoveParentLink(ctx context.Context, linkID int64) (*model.LinkMutationResponse, error)

	// Identifier Assigner
	AssignGroup(ctx context.Context, groupID int64) (*model.AssignResponse, error)
	AssignMember(ctx context.Context, memberID int64) (*model.AssignResponse, error)
	VerifyGroup(ctx context.Context, groupID int64) (*model.CodeReport, error)

	// Walker / Kinship Resolver
	Ancestors(ctx context.Context, memberID int64, depth int) (*model.WalkResult, error)
	Descendants(ctx context.Context, memberID int64, depth int) (*model.WalkResult, error)
	DescendantTree(ctx context.Context, memberID int64, depth int) (*model.DescendantTreeResponse, error)
	Relationship(ctx context.Context, a, b int64) (*model.Kinship, error)
}

// Enqueuer đẩy renumbering sang worker khi chạy AutoRenumber=async
type Enqueuer interface {
	EnqueueRenumberSubtree(ctx context.Context, groupID, memberID int64, reason string) error
	EnqueueRenumberGroup(ctx context.Context, groupID int64, reason string) error
}

// Config - phần config service cần
type Config struct {
	AutoRenumber    config.AutoRenumber
	RenumberTimeout time.Duration
	CacheTTL        time.Duration
}

// ConfigFrom lấy các field liên quan từ GenealogyConfig
func ConfigFrom(g config.GenealogyConfig) Config {
	return Config{
		AutoRenumber:    g.AutoRenumber,
		RenumberTimeout: g.RenumberTimeout,
		CacheTTL:        g.CacheTTL,
	}
}
