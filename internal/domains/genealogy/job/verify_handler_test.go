package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/shared"
)

type fakeVerifier struct {
	mu       sync.Mutex
	groups   []model.FamilyGroup
	reports  map[int64]*model.CodeReport
	failures map[int64]error
	assigned []int64
}

func (f *fakeVerifier) ListGroups(ctx context.Context) ([]model.FamilyGroup, error) {
	return f.groups, nil
}

func (f *fakeVerifier) VerifyGroup(ctx context.Context, groupID int64) (*model.CodeReport, error) {
	if err, ok := f.failures[groupID]; ok {
		return nil, err
	}
	if r, ok := f.reports[groupID]; ok {
		return r, nil
	}
	return &model.CodeReport{GroupID: groupID, Consistent: true}, nil
}

func (f *fakeVerifier) AssignGroup(ctx context.Context, groupID int64) (*model.AssignResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigned = append(f.assigned, groupID)
	return &model.AssignResponse{GroupID: groupID, Changed: 1}, nil
}

func driftReport(groupID int64) *model.CodeReport {
	return &model.CodeReport{
		GroupID: groupID,
		Drifted: []model.CodeDrift{{MemberID: 1, Stored: "G-002", Expected: "G-001"}},
	}
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{
		groups: []model.FamilyGroup{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}},
		reports: map[int64]*model.CodeReport{
			2: driftReport(2),
			4: driftReport(4),
		},
		failures: map[int64]error{3: &model.CycleError{MemberIDs: []int64{7, 8}}},
	}
}

func TestVerifyCodes_ReportOnly(t *testing.T) {
	svc := newFakeVerifier()
	h := NewVerifyCodesHandler(svc, 2)

	summary, err := h.Run(context.Background(), shared.VerifyCodesPayload{})
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Checked)
	assert.ElementsMatch(t, []int64{2, 4}, summary.Drifted)
	assert.Empty(t, summary.Repaired)
	require.Len(t, summary.Failed, 1)
	assert.True(t, model.IsCycleError(summary.Failed[3]))
	assert.Empty(t, svc.assigned)
}

func TestVerifyCodes_Repair(t *testing.T) {
	svc := newFakeVerifier()
	h := NewVerifyCodesHandler(svc, 0)

	summary, err := h.Run(context.Background(), shared.VerifyCodesPayload{GroupIDs: []int64{1, 2}, Repair: true})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, []int64{2}, summary.Drifted)
	assert.Equal(t, []int64{2}, summary.Repaired)
	assert.Equal(t, []int64{2}, svc.assigned)
}

func TestVerifyCodes_ProcessTask(t *testing.T) {
	h := NewVerifyCodesHandler(newFakeVerifier(), 4)

	payload, err := json.Marshal(shared.VerifyCodesPayload{GroupIDs: []int64{1}})
	require.NoError(t, err)
	assert.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeVerifyCodes, payload)))

	// payload rỗng = mọi group
	assert.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeVerifyCodes, nil)))

	err = h.ProcessTask(context.Background(), asynq.NewTask(shared.TypeVerifyCodes, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
