package service

import (
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/config"
	"family-registry-backend/internal/domains/genealogy/model"
)

func reasonOf(t *testing.T, err error) model.ValidationReason {
	t.Helper()
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Reason
}

// ========================================
// GROUPS / MEMBERS
// ========================================

func TestCreateGroup(t *testing.T) {
	env := syncEnv(t)

	g, err := env.svc.CreateGroup(env.ctx, model.CreateGroupRequest{Name: "  Họ   Trần ", CodePrefix: " tr "})
	require.NoError(t, err)
	assert.Equal(t, "TR", g.CodePrefix)
	assert.Equal(t, "Họ Trần", g.Name)

	_, err = env.svc.CreateGroup(env.ctx, model.CreateGroupRequest{Name: "Khác", CodePrefix: "TR"})
	assert.ErrorIs(t, err, model.ErrDuplicatePrefix)

	_, err = env.svc.CreateGroup(env.ctx, model.CreateGroupRequest{Name: "Sai", CodePrefix: "1X"})
	var verrs validation.Errors
	assert.ErrorAs(t, err, &verrs)
}

func TestCreateMember_RootCodes(t *testing.T) {
	env := syncEnv(t)
	g := env.group(t, "TR")

	resp, err := env.svc.CreateMember(env.ctx, g.ID, model.CreateMemberRequest{FullName: "Trần A", Sex: model.SexMale})
	require.NoError(t, err)
	assert.Equal(t, "TR-001", resp.Member.CodeValue())
	require.NotNil(t, resp.Renumber)
	assert.Equal(t, 1, resp.Renumber.Changed)
	assert.False(t, resp.Queued)

	second := env.member(t, g.ID, "Trần B", model.SexFemale)
	assert.Equal(t, "TR-002", second.CodeValue())

	_, err = env.svc.CreateMember(env.ctx, 999, model.CreateMemberRequest{FullName: "X", Sex: model.SexMale})
	assert.ErrorIs(t, err, model.ErrGroupNotFound)
}

func TestListMembers_FoldedSearch(t *testing.T) {
	env := syncEnv(t)
	g := env.group(t, "NG")
	env.member(t, g.ID, "Nguyễn Văn Đức", model.SexMale)
	env.member(t, g.ID, "Nguyễn Thị Hoa", model.SexFemale)

	all, err := env.svc.ListMembers(env.ctx, g.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := env.svc.ListMembers(env.ctx, g.ID, "van duc")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Nguyễn Văn Đức", found[0].FullName)
}

// ========================================
// LINKS + SYNC RENUMBERING
// ========================================

func TestAddParentLink_RenumbersChildSubtree(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	assert.Equal(t, "TR-001", env.code(t, l.grandpa.ID))
	assert.Equal(t, "TR-001.001", env.code(t, l.father.ID))
	assert.Equal(t, "TR-001.001.001", env.code(t, l.son.ID))

	report, err := env.svc.VerifyGroup(env.ctx, l.group.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestAddParentLink_ResponseCarriesRenumbering(t *testing.T) {
	env := syncEnv(t)
	g := env.group(t, "LE")
	father := env.member(t, g.ID, "Lê Cha", model.SexMale)
	child := env.member(t, g.ID, "Lê Con", model.SexFemale)

	resp := env.link(t, g.ID, father.ID, child.ID, model.RoleFather)

	assert.NotZero(t, resp.Link.ID)
	require.NotNil(t, resp.Renumber)
	require.NotNil(t, resp.Renumber.RootID)
	assert.Equal(t, child.ID, *resp.Renumber.RootID)
	assert.Equal(t, 1, resp.Renumber.Changed)
	assert.Equal(t, map[int64]string{child.ID: "LE-001.001"}, resp.Renumber.Codes)
}

func TestAddParentLink_SecondFatherLeavesStoreUnchanged(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")
	uncle := env.member(t, l.group.ID, "Trần Văn Chú", model.SexMale)

	before, err := env.store.LoadSnapshot(env.ctx, l.group.ID)
	require.NoError(t, err)

	_, err = env.svc.AddParentLink(env.ctx, l.group.ID, model.AddParentLinkRequest{ParentID: uncle.ID, ChildID: l.son.ID, Role: model.RoleFather})
	assert.Equal(t, model.ReasonDuplicateRole, reasonOf(t, err))

	after, err := env.store.LoadSnapshot(env.ctx, l.group.ID)
	require.NoError(t, err)
	assert.Equal(t, before.Links, after.Links)
	assert.Equal(t, before.Members, after.Members)
}

func TestAddParentLink_Rejections(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")
	other := env.group(t, "LY")
	stranger := env.member(t, other.ID, "Lý Khách", model.SexFemale)

	tests := []struct {
		name   string
		req    model.AddParentLinkRequest
		reason model.ValidationReason
	}{
		{"invalid role", model.AddParentLinkRequest{ParentID: l.grandpa.ID, ChildID: l.son.ID, Role: "uncle"}, model.ReasonInvalidRole},
		{"self link", model.AddParentLinkRequest{ParentID: l.son.ID, ChildID: l.son.ID, Role: model.RoleFather}, model.ReasonSelfLink},
		{"cross group", model.AddParentLinkRequest{ParentID: stranger.ID, ChildID: l.son.ID, Role: model.RoleMother}, model.ReasonCrossGroup},
		{"unknown member", model.AddParentLinkRequest{ParentID: 9999, ChildID: l.son.ID, Role: model.RoleMother}, model.ReasonUnknownMember},
		{"cycle", model.AddParentLinkRequest{ParentID: l.son.ID, ChildID: l.grandpa.ID, Role: model.RoleFather}, model.ReasonCycle},
		{"sex mismatch", model.AddParentLinkRequest{ParentID: l.grandpa.ID, ChildID: l.son.ID, Role: model.RoleMother}, model.ReasonSexMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.AddParentLink(env.ctx, l.group.ID, tt.req)
			assert.Equal(t, tt.reason, reasonOf(t, err))
			assert.Equal(t, http.StatusBadRequest, model.GetHTTPStatusCode(err))
		})
	}

	_, err := env.svc.AddParentLink(env.ctx, l.group.ID, model.AddParentLinkRequest{ParentID: stranger.ID, ChildID: l.son.ID, Role: model.RoleMother})
	assert.ErrorIs(t, err, model.ErrCrossGroup)
}

func TestRemoveParentLink_DetachedBranchGetsRootCode(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	resp, err := env.svc.RemoveParentLink(env.ctx, l.grandpaLink.ID)
	require.NoError(t, err)
	assert.Equal(t, l.grandpaLink.ID, resp.Link.ID)
	require.NotNil(t, resp.Renumber)
	assert.Equal(t, 2, resp.Renumber.Changed)

	assert.Equal(t, "TR-001", env.code(t, l.grandpa.ID))
	assert.Equal(t, "TR-002", env.code(t, l.father.ID))
	assert.Equal(t, "TR-002.001", env.code(t, l.son.ID))

	_, err = env.svc.RemoveParentLink(env.ctx, l.grandpaLink.ID)
	assert.ErrorIs(t, err, model.ErrLinkNotFound)
}

func TestDeleteMember_RenumbersWholeGroup(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	resp, err := env.svc.DeleteMember(env.ctx, l.father.ID)
	require.NoError(t, err)
	assert.Equal(t, l.father.ID, resp.Member.ID)
	require.NotNil(t, resp.Renumber)
	assert.Nil(t, resp.Renumber.RootID)

	assert.Equal(t, "TR-001", env.code(t, l.grandpa.ID))
	assert.Equal(t, "TR-002", env.code(t, l.son.ID))

	links, err := env.store.GetParentLinks(env.ctx, l.group.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestUpdateMember(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	name := "Trần Văn Ông Cố"
	m, err := env.svc.UpdateMember(env.ctx, l.grandpa.ID, model.UpdateMemberRequest{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, m.FullName)
	assert.Equal(t, "TR-001", m.CodeValue())

	female := model.SexFemale
	_, err = env.svc.UpdateMember(env.ctx, l.grandpa.ID, model.UpdateMemberRequest{Sex: &female})
	assert.Equal(t, model.ReasonSexMismatch, reasonOf(t, err))

	unknown := model.SexUnknown
	m, err = env.svc.UpdateMember(env.ctx, l.grandpa.ID, model.UpdateMemberRequest{Sex: &unknown})
	require.NoError(t, err)
	assert.Equal(t, model.SexUnknown, m.Sex)
}

// ========================================
// ASSIGN / VERIFY
// ========================================

func TestAssignGroup_RepairsDrift(t *testing.T) {
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberOff}, nil, nil)
	g := env.group(t, "PH")
	a := env.member(t, g.ID, "Phạm A", model.SexMale)
	b := env.member(t, g.ID, "Phạm B", model.SexMale)
	resp := env.link(t, g.ID, a.ID, b.ID, model.RoleFather)
	assert.Nil(t, resp.Renumber)
	assert.False(t, resp.Queued)

	report, err := env.svc.VerifyGroup(env.ctx, g.ID)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
	assert.Len(t, report.Drifted, 2)

	assigned, err := env.svc.AssignGroup(env.ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, assigned.Changed)
	assert.Equal(t, map[int64]string{a.ID: "PH-001", b.ID: "PH-001.001"}, assigned.Codes)

	report, err = env.svc.VerifyGroup(env.ctx, g.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	again, err := env.svc.AssignGroup(env.ctx, g.ID)
	require.NoError(t, err)
	assert.Zero(t, again.Changed)
}

func TestAssignMember(t *testing.T) {
	env := syncEnv(t)
	l := env.lineage(t, "TR")

	resp, err := env.svc.AssignMember(env.ctx, l.father.ID)
	require.NoError(t, err)
	assert.Zero(t, resp.Changed)
	assert.Len(t, resp.Codes, 2)

	_, err = env.svc.AssignMember(env.ctx, 9999)
	assert.ErrorIs(t, err, model.ErrMemberNotFound)
}

func TestAssignGroup_RollsBackOnStoreFailure(t *testing.T) {
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberOff}, nil, nil)
	g := env.group(t, "VU")
	a := env.member(t, g.ID, "Vũ A", model.SexMale)
	b := env.member(t, g.ID, "Vũ B", model.SexMale)
	env.link(t, g.ID, a.ID, b.ID, model.RoleFather)

	writes := 0
	env.store.SetCodeHook(func(int64) error {
		writes++
		if writes == 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	})

	_, err := env.svc.AssignGroup(env.ctx, g.ID)
	assert.True(t, model.IsTransactionError(err))
	assert.Empty(t, env.code(t, a.ID))
	assert.Empty(t, env.code(t, b.ID))
}

func TestAssign_CycleInStoredData(t *testing.T) {
	env := syncEnv(t)
	env.store.Seed(
		[]model.FamilyGroup{{ID: 1, Name: "Hỏng", CodePrefix: "X"}},
		[]model.Member{
			{ID: 2, GroupID: 1, FullName: "A", Sex: model.SexMale},
			{ID: 3, GroupID: 1, FullName: "B", Sex: model.SexMale},
			{ID: 4, GroupID: 1, FullName: "C", Sex: model.SexFemale},
		},
		[]model.ParentLink{
			{ID: 5, GroupID: 1, ParentID: 2, ChildID: 3, Role: model.RoleFather},
			{ID: 6, GroupID: 1, ParentID: 3, ChildID: 2, Role: model.RoleFather},
			{ID: 7, GroupID: 1, ParentID: 4, ChildID: 2, Role: model.RoleMother},
		},
	)

	_, err := env.svc.AssignGroup(env.ctx, 1)
	assert.True(t, model.IsCycleError(err))

	_, err = env.svc.VerifyGroup(env.ctx, 1)
	assert.True(t, model.IsCycleError(err))
}

// ========================================
// ASYNC RENUMBERING
// ========================================

func TestAsyncRenumber_Enqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberAsync}, nil, enq)
	g := env.group(t, "DO")

	resp, err := env.svc.CreateMember(env.ctx, g.ID, model.CreateMemberRequest{FullName: "Đỗ A", Sex: model.SexMale})
	require.NoError(t, err)
	assert.True(t, resp.Queued)
	assert.Nil(t, resp.Renumber)
	assert.Empty(t, resp.Member.CodeValue())

	child := env.member(t, g.ID, "Đỗ B", model.SexMale)
	env.link(t, g.ID, resp.Member.ID, child.ID, model.RoleFather)
	_, err = env.svc.DeleteMember(env.ctx, child.ID)
	require.NoError(t, err)

	assert.Equal(t, []enqueued{
		{g.ID, resp.Member.ID, "create_member"},
		{g.ID, child.ID, "create_member"},
		{g.ID, child.ID, "add_parent_link"},
		{g.ID, 0, "delete_member"},
	}, enq.calls)
}

func TestAsyncRenumber_EnqueueFailureKeepsMutation(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("redis down")}
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberAsync}, nil, enq)
	g := env.group(t, "HO")

	resp, err := env.svc.CreateMember(env.ctx, g.ID, model.CreateMemberRequest{FullName: "Hồ A", Sex: model.SexMale})
	require.NoError(t, err)
	assert.False(t, resp.Queued)

	_, err = env.svc.GetMember(env.ctx, resp.Member.ID)
	assert.NoError(t, err)
}

func TestAsyncRenumber_WithoutQueue(t *testing.T) {
	env := newEnv(t, Config{AutoRenumber: config.AutoRenumberAsync}, nil, nil)
	g := env.group(t, "NO")

	resp, err := env.svc.CreateMember(env.ctx, g.ID, model.CreateMemberRequest{FullName: "A", Sex: model.SexMale})
	require.NoError(t, err)
	assert.False(t, resp.Queued)
}
