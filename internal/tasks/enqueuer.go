package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"
)

// Enqueuer schedules background work on a Client. It satisfies
// services.RepairScheduler.
type Enqueuer struct {
	client *Client
}

func NewEnqueuer(client *Client) *Enqueuer {
	return &Enqueuer{client: client}
}

// ScheduleRepair queues a single-book repair, or a full reconcile when
// bookID is empty.
func (e *Enqueuer) ScheduleRepair(ctx context.Context, bookID string) error {
	var task backlite.Task = ReconcileBookTask{BookID: bookID}
	if bookID == "" {
		task = ReconcileLibraryTask{}
	}
	return e.add(ctx, task)
}

// ScheduleAssetCleanup queues a CleanupAssetsTask.
func (e *Enqueuer) ScheduleAssetCleanup(ctx context.Context) error {
	return e.add(ctx, CleanupAssetsTask{})
}

func (e *Enqueuer) add(ctx context.Context, task backlite.Task) error {
	if _, err := e.client.Add(task).Ctx(ctx).Save(); err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Config().Name, err)
	}
	return nil
}
