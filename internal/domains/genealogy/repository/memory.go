package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"family-registry-backend/internal/domains/genealogy/model"
)

// MemoryStore giữ toàn bộ dữ liệu trong RAM. Dùng cho test và `familyctl --fixture`.
// Enforce cùng các unique constraint như schema Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	state   *memoryState
	groupMu sync.Map // group id -> *sync.Mutex

	// codeHook được gọi trước mỗi lần ghi code ở phase 2, trả lỗi để giả lập store lỗi giữa chừng
	codeHook func(memberID int64) error
}

type memoryState struct {
	groups  map[int64]model.FamilyGroup
	members map[int64]model.Member
	links   map[int64]model.ParentLink
	// seq dùng chung giữa state và các bản sao để id không trùng giữa hai group tx
	seq *atomic.Int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{
		groups:  make(map[int64]model.FamilyGroup),
		members: make(map[int64]model.Member),
		links:   make(map[int64]model.ParentLink),
		seq:     new(atomic.Int64),
	}}
}

// SetCodeHook installs a hook run before every code write; nil removes it.
func (s *MemoryStore) SetCodeHook(hook func(memberID int64) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codeHook = hook
}

func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		groups:  make(map[int64]model.FamilyGroup, len(st.groups)),
		members: make(map[int64]model.Member, len(st.members)),
		links:   make(map[int64]model.ParentLink, len(st.links)),
		seq:     st.seq,
	}
	for k, v := range st.groups {
		out.groups[k] = v
	}
	for k, v := range st.members {
		if v.Code != nil {
			c := *v.Code
			v.Code = &c
		}
		out.members[k] = v
	}
	for k, v := range st.links {
		out.links[k] = v
	}
	return out
}

func (st *memoryState) id() int64 {
	return st.seq.Add(1)
}

// ========================================
// GROUPS
// ========================================

func (s *MemoryStore) CreateGroup(ctx context.Context, g *model.FamilyGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.state.groups {
		if existing.CodePrefix == g.CodePrefix {
			return model.ErrDuplicatePrefix
		}
	}
	now := time.Now()
	g.ID = s.state.id()
	g.CreatedAt, g.UpdatedAt = now, now
	s.state.groups[g.ID] = *g
	return nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id int64) (*model.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.groups[id]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	return &g, nil
}

func (s *MemoryStore) ListGroups(ctx context.Context) ([]model.FamilyGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]model.FamilyGroup, 0, len(s.state.groups))
	for _, g := range s.state.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// ========================================
// MEMBERS / LINKS (read)
// ========================================

func (s *MemoryStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.state.members[id]
	if !ok {
		return nil, model.ErrMemberNotFound
	}
	return &m, nil
}

func (s *MemoryStore) UpdateMember(ctx context.Context, m *model.Member) error {
	current, err := s.GetMember(ctx, m.ID)
	if err != nil {
		return err
	}
	// không ghi xen giữa một group tx đang chạy (commit sẽ ghi đè)
	lock := s.groupLock(current.GroupID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.state.members[m.ID]
	if !ok {
		return model.ErrMemberNotFound
	}
	if existing.Version != m.Version {
		return fmt.Errorf("member %d was modified concurrently: %w", m.ID, model.ErrVersionConflict)
	}
	existing.FullName = m.FullName
	existing.Sex = m.Sex
	existing.BirthDate = m.BirthDate
	existing.DeathDate = m.DeathDate
	existing.Notes = m.Notes
	existing.Version++
	existing.UpdatedAt = time.Now()
	s.state.members[m.ID] = existing
	*m = existing
	return nil
}

func (s *MemoryStore) GetMembers(ctx context.Context, groupID int64) ([]model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.groupMembers(groupID), nil
}

func (st *memoryState) groupMembers(groupID int64) []model.Member {
	out := make([]model.Member, 0)
	for _, m := range st.members {
		if m.GroupID == groupID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) GetParentLink(ctx context.Context, id int64) (*model.ParentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.links[id]
	if !ok {
		return nil, model.ErrLinkNotFound
	}
	return &l, nil
}

func (s *MemoryStore) GetParentLinks(ctx context.Context, groupID int64) ([]model.ParentLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.groupLinks(groupID), nil
}

func (st *memoryState) groupLinks(groupID int64) []model.ParentLink {
	out := make([]model.ParentLink, 0)
	for _, l := range st.links {
		if l.GroupID == groupID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *memoryState) snapshot(groupID int64) (*Snapshot, error) {
	g, ok := st.groups[groupID]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	return &Snapshot{Group: g, Members: st.groupMembers(groupID), Links: st.groupLinks(groupID)}, nil
}

func (s *MemoryStore) LoadSnapshot(ctx context.Context, groupID int64) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot(groupID)
}

// ========================================
// GROUP TRANSACTION
// ========================================

func (s *MemoryStore) groupLock(groupID int64) *sync.Mutex {
	mu, _ := s.groupMu.LoadOrStore(groupID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithGroupTx chạy fn trên bản sao của state; chỉ swap vào khi fn thành công.
func (s *MemoryStore) WithGroupTx(ctx context.Context, groupID int64, fn func(tx GroupTx) error) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	if _, ok := s.state.groups[groupID]; !ok {
		s.mu.RUnlock()
		return model.ErrGroupNotFound
	}
	work := s.state.clone()
	hook := s.codeHook
	s.mu.RUnlock()

	tx := &memoryGroupTx{state: work, groupID: groupID, hook: hook}
	if err := fn(tx); err != nil {
		if model.IsDomainError(err) {
			return err
		}
		return &model.TransactionError{Op: fmt.Sprintf("group %d transaction", groupID), Err: err}
	}
	// ctx hủy sau khi fn xong tương đương commit thất bại
	if err := ctx.Err(); err != nil {
		return &model.TransactionError{Op: fmt.Sprintf("group %d transaction", groupID), Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(groupID, work)
	return nil
}

// commit chỉ copy phần thuộc group, các group khác có thể đã đổi trong lúc fn chạy
func (s *MemoryStore) commit(groupID int64, work *memoryState) {
	for id, m := range s.state.members {
		if m.GroupID == groupID {
			delete(s.state.members, id)
		}
	}
	for id, l := range s.state.links {
		if l.GroupID == groupID {
			delete(s.state.links, id)
		}
	}
	for id, m := range work.members {
		if m.GroupID == groupID {
			s.state.members[id] = m
		}
	}
	for id, l := range work.links {
		if l.GroupID == groupID {
			s.state.links[id] = l
		}
	}
}

type memoryGroupTx struct {
	state   *memoryState
	groupID int64
	hook    func(memberID int64) error
}

func (t *memoryGroupTx) Snapshot(ctx context.Context) (*Snapshot, error) {
	return t.state.snapshot(t.groupID)
}

func (t *memoryGroupTx) CreateMember(ctx context.Context, m *model.Member) error {
	now := time.Now()
	m.ID = t.state.id()
	m.GroupID = t.groupID
	m.Version = 1
	m.CreatedAt, m.UpdatedAt = now, now
	t.state.members[m.ID] = *m
	return nil
}

func (t *memoryGroupTx) DeleteMember(ctx context.Context, id int64) error {
	m, ok := t.state.members[id]
	if !ok || m.GroupID != t.groupID {
		return model.ErrMemberNotFound
	}
	delete(t.state.members, id)
	for lid, l := range t.state.links {
		if l.ParentID == id || l.ChildID == id {
			delete(t.state.links, lid)
		}
	}
	return nil
}

func (t *memoryGroupTx) InsertParentLink(ctx context.Context, l *model.ParentLink) error {
	p := model.LinkProposal{GroupID: t.groupID, ParentID: l.ParentID, ChildID: l.ChildID, Role: l.Role}
	if _, ok := t.state.members[l.ParentID]; !ok {
		return model.NewValidationError(model.ReasonUnknownMember, p, "parent or child does not exist")
	}
	if _, ok := t.state.members[l.ChildID]; !ok {
		return model.NewValidationError(model.ReasonUnknownMember, p, "parent or child does not exist")
	}
	for _, existing := range t.state.links {
		if existing.ChildID == l.ChildID && existing.Role == l.Role {
			return model.NewValidationError(model.ReasonDuplicateRole, p, "member %d already has a %s", l.ChildID, l.Role)
		}
		if existing.ChildID == l.ChildID && existing.ParentID == l.ParentID {
			return model.NewValidationError(model.ReasonSameParentBothRoles, p, "member %d is already a parent of %d", l.ParentID, l.ChildID)
		}
	}
	l.ID = t.state.id()
	l.GroupID = t.groupID
	l.CreatedAt = time.Now()
	t.state.links[l.ID] = *l
	return nil
}

func (t *memoryGroupTx) DeleteParentLink(ctx context.Context, id int64) error {
	l, ok := t.state.links[id]
	if !ok || l.GroupID != t.groupID {
		return model.ErrLinkNotFound
	}
	delete(t.state.links, id)
	return nil
}

// UpsertCodes: cùng hai phase như bản Postgres, unique kiểm tra trên toàn store.
func (t *memoryGroupTx) UpsertCodes(ctx context.Context, codes map[int64]string) error {
	ids := make([]int64, 0, len(codes))
	for id := range codes {
		m, ok := t.state.members[id]
		if !ok || m.GroupID != t.groupID {
			return fmt.Errorf("upsert codes: member %d in group %d: %w", id, t.groupID, model.ErrMemberNotFound)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	taken := make(map[string]int64, len(t.state.members))
	for id, m := range t.state.members {
		if c := m.CodeValue(); c != "" {
			taken[c] = id
		}
	}

	// phase 1
	for _, id := range ids {
		m := t.state.members[id]
		delete(taken, m.CodeValue())
		placeholder := model.PlaceholderCode(id)
		m.Code = &placeholder
		t.state.members[id] = m
		taken[placeholder] = id
	}

	// phase 2
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if t.hook != nil {
			if err := t.hook(id); err != nil {
				return fmt.Errorf("failed to write code %d/%d: %w", i+1, len(ids), err)
			}
		}
		code := codes[id]
		if owner, ok := taken[code]; ok && owner != id {
			return fmt.Errorf("%w: %s is held by member %d", model.ErrCodeConflict, code, owner)
		}
		m := t.state.members[id]
		delete(taken, m.CodeValue())
		m.Code = &code
		m.Version++
		m.UpdatedAt = time.Now()
		t.state.members[id] = m
		taken[code] = id
	}
	return nil
}

// ========================================
// FIXTURE LOADING
// ========================================

// Seed ghi thẳng dữ liệu (giữ nguyên id) mà không qua Guard; dùng để nạp fixture
// và để dựng dữ liệu hỏng trong test.
func (s *MemoryStore) Seed(groups []model.FamilyGroup, members []model.Member, links []model.ParentLink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	bump := func(id int64) {
		for cur := s.state.seq.Load(); id > cur; cur = s.state.seq.Load() {
			if s.state.seq.CompareAndSwap(cur, id) {
				return
			}
		}
	}
	for _, g := range groups {
		if g.CreatedAt.IsZero() {
			g.CreatedAt, g.UpdatedAt = now, now
		}
		s.state.groups[g.ID] = g
		bump(g.ID)
	}
	for _, m := range members {
		if m.Version == 0 {
			m.Version = 1
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt, m.UpdatedAt = now, now
		}
		s.state.members[m.ID] = m
		bump(m.ID)
	}
	for _, l := range links {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
		s.state.links[l.ID] = l
		bump(l.ID)
	}
}
