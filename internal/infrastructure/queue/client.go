package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"family-registry-backend/internal/shared"
)

// RenumberEnqueuer là asynq client phía API, dùng khi GENEALOGY_AUTO_RENUMBER=async.
type RenumberEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

func NewRenumberEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *RenumberEnqueuer {
	return &RenumberEnqueuer{client: client, maxRetry: maxRetry, timeout: timeout}
}

func (e *RenumberEnqueuer) EnqueueRenumberSubtree(ctx context.Context, groupID, memberID int64, reason string) error {
	return e.enqueue(ctx, shared.TypeRenumberSubtree, shared.RenumberSubtreePayload{
		GroupID:  groupID,
		MemberID: memberID,
		Reason:   reason,
	})
}

func (e *RenumberEnqueuer) EnqueueRenumberGroup(ctx context.Context, groupID int64, reason string) error {
	return e.enqueue(ctx, shared.TypeRenumberGroup, shared.RenumberGroupPayload{
		GroupID: groupID,
		Reason:  reason,
	})
}

func (e *RenumberEnqueuer) enqueue(ctx context.Context, taskType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	_, err = e.client.EnqueueContext(
		ctx,
		asynq.NewTask(taskType, data),
		asynq.Queue(shared.QueueGenealogy),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
