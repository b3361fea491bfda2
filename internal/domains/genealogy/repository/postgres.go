package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/pkg/database"
	"family-registry-backend/pkg/logger"
)

// Constraint names trong migrations/00001_genealogy.sql
const (
	constraintGroupPrefix   = "uq_family_groups_code_prefix"
	constraintMemberCode    = "uq_members_code"
	constraintLinkChildRole = "uq_parent_links_child_role"
	constraintLinkPair      = "uq_parent_links_pair"
	constraintLinkParentFK  = "parent_links_parent_id_fkey"
	constraintLinkChildFK   = "parent_links_child_id_fkey"
	constraintMemberGroupFK = "members_group_id_fkey"

	pgUniqueViolation = "23505"
)

const memberColumns = `id, group_id, full_name, sex, code, birth_date, death_date, notes, version, created_at, updated_at`
const linkColumns = `id, group_id, parent_id, child_id, role, created_at`

// postgresStore - Raw SQL with pgxpool
type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ========================================
// GROUPS
// ========================================

func (r *postgresStore) CreateGroup(ctx context.Context, g *model.FamilyGroup) error {
	query := `
		INSERT INTO family_groups (name, code_prefix)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, g.Name, g.CodePrefix).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == constraintGroupPrefix {
			return model.ErrDuplicatePrefix
		}
		logger.Error("CreateGroup: database error", err)
		return fmt.Errorf("failed to create family group: %w", err)
	}
	return nil
}

func (r *postgresStore) GetGroup(ctx context.Context, id int64) (*model.FamilyGroup, error) {
	return getGroup(ctx, r.pool, id)
}

func getGroup(ctx context.Context, q querier, id int64) (*model.FamilyGroup, error) {
	query := `SELECT id, name, code_prefix, created_at, updated_at FROM family_groups WHERE id = $1`
	var g model.FamilyGroup
	err := q.QueryRow(ctx, query, id).Scan(&g.ID, &g.Name, &g.CodePrefix, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to get family group %d: %w", id, err)
	}
	return &g, nil
}

func (r *postgresStore) ListGroups(ctx context.Context) ([]model.FamilyGroup, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, code_prefix, created_at, updated_at FROM family_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list family groups: %w", err)
	}
	defer rows.Close()

	groups := make([]model.FamilyGroup, 0)
	for rows.Next() {
		var g model.FamilyGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.CodePrefix, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ========================================
// MEMBERS
// ========================================

func scanMember(row pgx.Row) (*model.Member, error) {
	var m model.Member
	var sex string
	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.FullName,
		&sex,
		&m.Code,
		&m.BirthDate,
		&m.DeathDate,
		&m.Notes,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Sex = model.Sex(sex)
	return &m, nil
}

func (r *postgresStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	m, err := scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	return m, nil
}

// UpdateMember chỉ ghi field hiển thị; code và links không đi qua đây.
func (r *postgresStore) UpdateMember(ctx context.Context, m *model.Member) error {
	query := `
		UPDATE members
		SET full_name = $1, sex = $2, birth_date = $3, death_date = $4, notes = $5,
		    version = version + 1, updated_at = NOW()
		WHERE id = $6 AND version = $7
		RETURNING version, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		m.FullName, string(m.Sex), m.BirthDate, m.DeathDate, m.Notes, m.ID, m.Version,
	).Scan(&m.Version, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// phân biệt member không tồn tại với version đã cũ
			if _, getErr := r.GetMember(ctx, m.ID); getErr != nil {
				return getErr
			}
			return fmt.Errorf("member %d was modified concurrently: %w", m.ID, model.ErrVersionConflict)
		}
		logger.Error("UpdateMember: database error", err)
		return fmt.Errorf("failed to update member %d: %w", m.ID, err)
	}
	return nil
}

func (r *postgresStore) GetMembers(ctx context.Context, groupID int64) ([]model.Member, error) {
	return getMembers(ctx, r.pool, groupID)
}

func getMembers(ctx context.Context, q querier, groupID int64) ([]model.Member, error) {
	rows, err := q.Query(ctx, `SELECT `+memberColumns+` FROM members WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of group %d: %w", groupID, err)
	}
	defer rows.Close()

	members := make([]model.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ========================================
// PARENT LINKS
// ========================================

func scanLink(row pgx.Row) (*model.ParentLink, error) {
	var l model.ParentLink
	var role string
	if err := row.Scan(&l.ID, &l.GroupID, &l.ParentID, &l.ChildID, &role, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Role = model.Role(role)
	return &l, nil
}

func (r *postgresStore) GetParentLink(ctx context.Context, id int64) (*model.ParentLink, error) {
	l, err := scanLink(r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM parent_links WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get parent link %d: %w", id, err)
	}
	return l, nil
}

func (r *postgresStore) GetParentLinks(ctx context.Context, groupID int64) ([]model.ParentLink, error) {
	return getParentLinks(ctx, r.pool, groupID)
}

func getParentLinks(ctx context.Context, q querier, groupID int64) ([]model.ParentLink, error) {
	rows, err := q.Query(ctx, `SELECT `+linkColumns+` FROM parent_links WHERE group_id = $1 ORDER BY id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent links of group %d: %w", groupID, err)
	}
	defer rows.Close()

	links := make([]model.ParentLink, 0)
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parent link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// ========================================
// SNAPSHOT
// ========================================

func loadSnapshot(ctx context.Context, q querier, groupID int64) (*Snapshot, error) {
	group, err := getGroup(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	members, err := getMembers(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	links, err := getParentLinks(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Group: *group, Members: members, Links: links}, nil
}

// LoadSnapshot đọc 3 bảng trong cùng một REPEATABLE READ READ ONLY transaction:
// reader thấy trạng thái trước hoặc sau một lượt renumber, không bao giờ ở giữa.
func (r *postgresStore) LoadSnapshot(ctx context.Context, groupID int64) (*Snapshot, error) {
	return database.WithTransactionResult(ctx, r.pool, database.SnapshotRead, func(tx pgx.Tx) (*Snapshot, error) {
		return loadSnapshot(ctx, tx, groupID)
	})
}

// ========================================
// GROUP TRANSACTION
// ========================================

// WithGroupTx mở transaction, giữ pg_advisory_xact_lock(group_id) tới khi commit/rollback.
// Lỗi domain trả về nguyên vẹn, lỗi còn lại của store được bọc trong TransactionError.
func (r *postgresStore) WithGroupTx(ctx context.Context, groupID int64, fn func(tx GroupTx) error) error {
	err := database.WithTransaction(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, groupID); err != nil {
			return fmt.Errorf("failed to lock group %d: %w", groupID, err)
		}
		if _, err := getGroup(ctx, tx, groupID); err != nil {
			return err
		}
		return fn(&postgresGroupTx{tx: tx, groupID: groupID})
	})
	if err == nil || model.IsDomainError(err) {
		return err
	}
	return &model.TransactionError{Op: fmt.Sprintf("group %d transaction", groupID), Err: err}
}

type postgresGroupTx struct {
	tx      pgx.Tx
	groupID int64
}

func (t *postgresGroupTx) Snapshot(ctx context.Context) (*Snapshot, error) {
	return loadSnapshot(ctx, t.tx, t.groupID)
}

func (t *postgresGroupTx) CreateMember(ctx context.Context, m *model.Member) error {
	query := `
		INSERT INTO members (group_id, full_name, sex, birth_date, death_date, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, version, created_at, updated_at
	`
	m.GroupID = t.groupID
	err := t.tx.QueryRow(ctx, query,
		m.GroupID, m.FullName, string(m.Sex), m.BirthDate, m.DeathDate, m.Notes,
	).Scan(&m.ID, &m.Version, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == constraintMemberGroupFK {
			return model.ErrGroupNotFound
		}
		logger.Error("CreateMember: database error", err)
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

// DeleteMember xóa member; parent_links liên quan bị xóa theo ON DELETE CASCADE.
func (t *postgresGroupTx) DeleteMember(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM members WHERE id = $1 AND group_id = $2`, id, t.groupID)
	if err != nil {
		return fmt.Errorf("failed to delete member %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrMemberNotFound
	}
	return nil
}

func (t *postgresGroupTx) InsertParentLink(ctx context.Context, l *model.ParentLink) error {
	query := `
		INSERT INTO parent_links (group_id, parent_id, child_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	l.GroupID = t.groupID
	err := t.tx.QueryRow(ctx, query, l.GroupID, l.ParentID, l.ChildID, string(l.Role)).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return mapLinkError(err, l)
	}
	return nil
}

// mapLinkError: constraint của DB là lưới an toàn sau Guard
func mapLinkError(err error, l *model.ParentLink) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("failed to insert parent link: %w", err)
	}
	p := model.LinkProposal{GroupID: l.GroupID, ParentID: l.ParentID, ChildID: l.ChildID, Role: l.Role}
	switch pgErr.ConstraintName {
	case constraintLinkChildRole:
		return model.NewValidationError(model.ReasonDuplicateRole, p, "member %d already has a %s", l.ChildID, l.Role)
	case constraintLinkPair:
		return model.NewValidationError(model.ReasonSameParentBothRoles, p, "member %d is already a parent of %d", l.ParentID, l.ChildID)
	case constraintLinkParentFK, constraintLinkChildFK:
		return model.NewValidationError(model.ReasonUnknownMember, p, "parent or child does not exist")
	}
	logger.Error("InsertParentLink: database error", err)
	return fmt.Errorf("failed to insert parent link: %w", err)
}

func (t *postgresGroupTx) DeleteParentLink(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM parent_links WHERE id = $1 AND group_id = $2`, id, t.groupID)
	if err != nil {
		return fmt.Errorf("failed to delete parent link %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrLinkNotFound
	}
	return nil
}

// UpsertCodes
//
//	Phase 1: code = '~' || id cho mọi member bị ảnh hưởng (không thể trùng code thật)
//	Phase 2: ghi code mới bằng một UPDATE ... FROM unnest(...)
//
// Cả hai phase nằm trong transaction của group nên reader không thấy placeholder.
func (t *postgresGroupTx) UpsertCodes(ctx context.Context, codes map[int64]string) error {
	if len(codes) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(codes))
	for id := range codes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = codes[id]
	}

	start := time.Now()
	tag, err := t.tx.Exec(ctx, `
		UPDATE members SET code = '~' || id::text
		WHERE group_id = $1 AND id = ANY($2::bigint[])
	`, t.groupID, ids)
	if err != nil {
		return fmt.Errorf("failed to clear codes: %w", err)
	}
	if int(tag.RowsAffected()) != len(ids) {
		return fmt.Errorf("upsert codes: %d of %d members found in group %d: %w",
			tag.RowsAffected(), len(ids), t.groupID, model.ErrMemberNotFound)
	}

	_, err = t.tx.Exec(ctx, `
		UPDATE members AS m
		SET code = v.code, version = m.version + 1, updated_at = NOW()
		FROM unnest($2::bigint[], $3::text[]) AS v(id, code)
		WHERE m.group_id = $1 AND m.id = v.id
	`, t.groupID, ids, values)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == constraintMemberCode {
			return fmt.Errorf("%w: %s", model.ErrCodeConflict, pgErr.Detail)
		}
		return fmt.Errorf("failed to write codes: %w", err)
	}

	logger.Info("codes upserted", map[string]interface{}{
		"group_id": t.groupID,
		"count":    len(ids),
		"duration": time.Since(start).String(),
	})
	return nil
}
