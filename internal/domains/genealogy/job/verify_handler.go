package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"family-registry-backend/internal/domains/genealogy/model"
	"family-registry-backend/internal/shared"
)

// Verifier là phần service mà verify_codes cần
type Verifier interface {
	ListGroups(ctx context.Context) ([]model.FamilyGroup, error)
	VerifyGroup(ctx context.Context, groupID int64) (*model.CodeReport, error)
	AssignGroup(ctx context.Context, groupID int64) (*model.AssignResponse, error)
}

// VerifySummary là kết quả một lượt verify_codes
type VerifySummary struct {
	Checked  int
	Drifted  []int64
	Repaired []int64
	Failed   map[int64]error
}

// VerifyCodesHandler kiểm tra code của nhiều group song song (bounded errgroup)
type VerifyCodesHandler struct {
	svc         Verifier
	concurrency int
}

func NewVerifyCodesHandler(svc Verifier, concurrency int) *VerifyCodesHandler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &VerifyCodesHandler{svc: svc, concurrency: concurrency}
}

func (h *VerifyCodesHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload shared.VerifyCodesPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal VerifyCodes payload")
			return fmt.Errorf("unmarshal payload: %w: %v", asynq.SkipRetry, err)
		}
	}

	summary, err := h.Run(ctx, payload)
	if err != nil {
		return err
	}

	log.Info().
		Int("checked", summary.Checked).
		Ints64("drifted", summary.Drifted).
		Ints64("repaired", summary.Repaired).
		Int("failed", len(summary.Failed)).
		Msg("Code verification finished")
	return nil
}

// Run kiểm tra các group trong payload (rỗng = mọi group).
// Lỗi của từng group được gom vào Failed, không dừng cả lượt.
func (h *VerifyCodesHandler) Run(ctx context.Context, payload shared.VerifyCodesPayload) (*VerifySummary, error) {
	groupIDs := payload.GroupIDs
	if len(groupIDs) == 0 {
		groups, err := h.svc.ListGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		for _, g := range groups {
			groupIDs = append(groupIDs, g.ID)
		}
	}

	var (
		mu      sync.Mutex
		summary = &VerifySummary{Checked: len(groupIDs), Failed: make(map[int64]error)}
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(h.concurrency)

	for _, groupID := range groupIDs {
		groupID := groupID
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			drifted, repaired, err := h.verifyOne(egCtx, groupID, payload.Repair)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed[groupID] = err
			case drifted:
				summary.Drifted = append(summary.Drifted, groupID)
				if repaired {
					summary.Repaired = append(summary.Repaired, groupID)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

func (h *VerifyCodesHandler) verifyOne(ctx context.Context, groupID int64, repair bool) (drifted, repaired bool, err error) {
	report, err := h.svc.VerifyGroup(ctx, groupID)
	if err != nil {
		log.Error().Err(err).Int64("group_id", groupID).Msg("Code verification failed")
		return false, false, err
	}
	if report.Consistent {
		return false, false, nil
	}

	for _, d := range report.Drifted {
		log.Warn().
			Int64("group_id", groupID).
			Int64("member_id", d.MemberID).
			Str("stored", d.Stored).
			Str("expected", d.Expected).
			Msg("Member code drift")
	}
	if !repair {
		return true, false, nil
	}

	resp, err := h.svc.AssignGroup(ctx, groupID)
	if err != nil {
		log.Error().Err(err).Int64("group_id", groupID).Msg("Code repair failed")
		return true, false, err
	}
	log.Info().Int64("group_id", groupID).Int("changed", resp.Changed).Msg("Group codes repaired")
	return true, true, nil
}
