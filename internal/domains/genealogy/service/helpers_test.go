package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/engine"
	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/repository"
)

// ========================================
// FAKES
// ========================================

// memoryCache giữ JSON như Redis để test cả đường marshal/unmarshal
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
	sets    int
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return false, errors.New("redis: connection refused")
	}
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *memoryCache) Ping(ctx context.Context) error { return nil }

func (c *memoryCache) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for k := range c.entries {
		out = append(out, k)
	}
	return out
}

type enqueued struct {
	groupID  int64
	memberID int64
	reason   string
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	calls []enqueued
	err   error
}

func (f *fakeEnqueuer) EnqueueRenumberSubtree(ctx context.Context, groupID, memberID int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, enqueued{groupID, memberID, reason})
	return nil
}

func (f *fakeEnqueuer) EnqueueRenumberGroup(ctx context.Context, groupID int64, reason string) error {
	return f.EnqueueRenumberSubtree(ctx, groupID, 0, reason)
}

// ========================================
// SETUP
// ========================================

type testEnv struct {
	svc   ServiceInterface
	store *repository.MemoryStore
	ctx   context.Context
}

func newEnv(t *testing.T, cfg Config, c *memoryCache, enq Enqueuer) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	var svc ServiceInterface
	if c == nil {
		svc = NewService(store, engine.New(engine.DefaultOptions()), nil, nil, enq, cfg)
	} else {
		svc = NewService(store, engine.New(engine.DefaultOptions()), nil, c, enq, cfg)
	}
	return &testEnv{svc: svc, store: store, ctx: context.Background()}
}

func syncEnv(t *testing.T) *testEnv {
	return newEnv(t, Config{AutoRenumber: config.AutoRenumberSync}, nil, nil)
}

func (e *testEnv) group(t *testing.T, prefix string) *model.FamilyGroup {
	t.Helper()
	g, err := e.svc.CreateGroup(e.ctx, model.CreateGroupRequest{Name: "Họ " + prefix, CodePrefix: prefix})
	require.NoError(t, err)
	return g
}

func (e *testEnv) member(t *testing.T, groupID int64, name string, sex model.Sex) *model.Member {
	t.Helper()
	resp, err := e.svc.CreateMember(e.ctx, groupID, model.CreateMemberRequest{FullName: name, Sex: sex})
	require.NoError(t, err)
	return resp.Member
}

func (e *testEnv) link(t *testing.T, groupID, parent, child int64, role model.Role) *model.LinkMutationResponse {
	t.Helper()
	resp, err := e.svc.AddParentLink(e.ctx, groupID, model.AddParentLinkRequest{ParentID: parent, ChildID: child, Role: role})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) code(t *testing.T, memberID int64) string {
	t.Helper()
	m, err := e.svc.GetMember(e.ctx, memberID)
	require.NoError(t, err)
	return m.CodeValue()
}

// lineage dựng ông -> cha -> con trong group mới (sync renumbering)
type lineage struct {
	group       *model.FamilyGroup
	grandpa     *model.Member
	father      *model.Member
	son         *model.Member
	grandpaLink *model.ParentLink
}

func (e *testEnv) lineage(t *testing.T, prefix string) *lineage {
	t.Helper()
	l := &lineage{group: e.group(t, prefix)}
	l.grandpa = e.member(t, l.group.ID, "Trần Văn Ông", model.SexMale)
	l.father = e.member(t, l.group.ID, "Trần Văn Cha", model.SexMale)
	l.son = e.member(t, l.group.ID, "Trần Văn Con", model.SexMale)
	l.grandpaLink = e.link(t, l.group.ID, l.grandpa.ID, l.father.ID, model.RoleFather).Link
	e.link(t, l.group.ID, l.father.ID, l.son.ID, model.RoleFather)
	return l
}
