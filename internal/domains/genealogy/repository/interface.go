package repository

import (
	"context"

	"family-registry-backend/internal/domains/genealogy/model"
)

// Snapshot là toàn bộ members + links của một group đọc tại cùng một thời điểm.
type Snapshot struct {
	Group   model.FamilyGroup
	Members []model.Member
	Links   []model.ParentLink
}

// Store - data access cho genealogy.
// Mọi thay đổi cạnh hoặc code đều đi qua WithGroupTx.
type Store interface {
	CreateGroup(ctx context.Context, g *model.FamilyGroup) error
	GetGroup(ctx context.Context, id int64) (*model.FamilyGroup, error)
	ListGroups(ctx context.Context) ([]model.FamilyGroup, error)

	GetMember(ctx context.Context, id int64) (*model.Member, error)
	// UpdateMember ghi các field hiển thị, kiểm tra Version (optimistic lock)
	UpdateMember(ctx context.Context, m *model.Member) error
	GetMembers(ctx context.Context, groupID int64) ([]model.Member, error)

	GetParentLink(ctx context.Context, id int64) (*model.ParentLink, error)
	GetParentLinks(ctx context.Context, groupID int64) ([]model.ParentLink, error)

	// LoadSnapshot đọc group trong một transaction snapshot (REPEATABLE READ, READ ONLY)
	LoadSnapshot(ctx context.Context, groupID int64) (*Snapshot, error)

	// WithGroupTx chạy fn trong một transaction đã giữ lock của group.
	// fn trả lỗi -> rollback toàn bộ.
	WithGroupTx(ctx context.Context, groupID int64, fn func(tx GroupTx) error) error
}

// GroupTx - các thao tác ghi trong transaction của một group
type GroupTx interface {
	Snapshot(ctx context.Context) (*Snapshot, error)

	CreateMember(ctx context.Context, m *model.Member) error
	DeleteMember(ctx context.Context, id int64) error

	InsertParentLink(ctx context.Context, l *model.ParentLink) error
	DeleteParentLink(ctx context.Context, id int64) error

	// UpsertCodes ghi codes theo hai phase: placeholder rồi code thật,
	// nên hoán đổi code giữa các member không vi phạm unique constraint.
	UpsertCodes(ctx context.Context, codes map[int64]string) error
}
