package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/domains/genealogy/service"
	"family-registry-backend/internal/shared"
)

// Renumberer là phần service mà các job cần
type Renumberer interface {
	AssignGroup(ctx context.Context, groupID int64) (*model.AssignResponse, error)
	AssignMember(ctx context.Context, memberID int64) (*model.AssignResponse, error)
}

var _ Renumberer = (service.ServiceInterface)(nil)

// RenumberHandler xử lý genealogy:renumber_group và genealogy:renumber_subtree
type RenumberHandler struct {
	svc Renumberer
}

func NewRenumberHandler(svc Renumberer) *RenumberHandler {
	return &RenumberHandler{svc: svc}
}

// ProcessGroup tính lại code cả group
func (h *RenumberHandler) ProcessGroup(ctx context.Context, task *asynq.Task) error {
	var payload shared.RenumberGroupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal RenumberGroup payload")
		return fmt.Errorf("unmarshal payload: %w: %v", asynq.SkipRetry, err)
	}

	resp, err := h.svc.AssignGroup(ctx, payload.GroupID)
	if err != nil {
		return h.fail(err, payload.GroupID, 0)
	}

	log.Info().
		Int64("group_id", payload.GroupID).
		Str("reason", payload.Reason).
		Int("changed", resp.Changed).
		Msg("Group renumbered")
	return nil
}

// ProcessSubtree tính lại code của member và primary descendants
func (h *RenumberHandler) ProcessSubtree(ctx context.Context, task *asynq.Task) error {
	var payload shared.RenumberSubtreePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Error().Err(err).Msg("Failed to unmarshal RenumberSubtree payload")
		return fmt.Errorf("unmarshal payload: %w: %v", asynq.SkipRetry, err)
	}

	resp, err := h.svc.AssignMember(ctx, payload.MemberID)
	if errors.Is(err, model.ErrMemberNotFound) {
		// member đã bị xóa sau khi enqueue -> tính lại cả group
		resp, err = h.svc.AssignGroup(ctx, payload.GroupID)
	}
	if err != nil {
		return h.fail(err, payload.GroupID, payload.MemberID)
	}

	log.Info().
		Int64("group_id", payload.GroupID).
		Int64("member_id", payload.MemberID).
		Str("reason", payload.Reason).
		Int("changed", resp.Changed).
		Msg("Subtree renumbered")
	return nil
}

// fail: dữ liệu hỏng (cycle/integrity) hoặc group đã mất thì retry cũng vô ích
func (h *RenumberHandler) fail(err error, groupID, memberID int64) error {
	log.Error().
		Err(err).
		Int64("group_id", groupID).
		Int64("member_id", memberID).
		Msg("Renumbering failed")

	if model.IsCycleError(err) || model.IsIntegrityError(err) || errors.Is(err, model.ErrGroupNotFound) {
		return fmt.Errorf("renumber group %d: %v: %w", groupID, err, asynq.SkipRetry)
	}
	return fmt.Errorf("renumber group %d: %w", groupID, err)
}
