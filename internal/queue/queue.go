// Package queue implements the SyncQueue façade from spec §4.1: a thin,
// LocalStore-backed view over the durable sync_queue rows, responsible for
// retry accounting and dead-letter classification.
package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncx"
)

// Queue is the default SyncQueue implementation.
type Queue struct {
	store      engine.LocalStore
	maxRetries int
}

// New builds a Queue over store, classifying a queue item as dead once its
// retry count reaches maxRetries (spec §4.1, §6).
func New(store engine.LocalStore, maxRetries int) *Queue {
	return &Queue{store: store, maxRetries: maxRetries}
}

// Enqueue writes a new queue item inside tx, atomic with whatever record
// mutation tx is also performing (spec §5's shared-resource invariant).
func (q *Queue) Enqueue(tx engine.LocalTx, op engine.Operation, table, recordID string, payload map[string]any) (engine.QueueItem, error) {
	now := syncx.NowMs()
	item := engine.QueueItem{
		ID:        uuid.NewString(),
		Operation: op,
		TableName: table,
		RecordID:  recordID,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.InsertQueueItem(&item); err != nil {
		return engine.QueueItem{}, err
	}
	return item, nil
}

// Pending returns queue items that have not exhausted their retry budget,
// oldest first.
func (q *Queue) Pending(ctx context.Context) ([]engine.QueueItem, error) {
	return q.store.PendingQueueItems(ctx, q.maxRetries)
}

// Failed returns queue items that have exhausted their retry budget
// (dead letters, spec §4.2 step 5).
func (q *Queue) Failed(ctx context.Context) ([]engine.QueueItem, error) {
	return q.store.FailedQueueItems(ctx, q.maxRetries)
}

// Count returns the total number of queue items, pending and failed.
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.store.CountQueueItems(ctx)
}

// FailedCount returns how many queue items have exhausted their retry
// budget, for debug/observability surfaces.
func (q *Queue) FailedCount(ctx context.Context) (int, error) {
	items, err := q.Failed(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Ack removes a queue item after a confirmed successful push, inside tx so
// the record update and the dequeue commit together.
func (q *Queue) Ack(tx engine.LocalTx, itemID string) (bool, error) {
	return tx.DeleteQueueItem(itemID)
}

// Bump increments a queue item's retry count and records the failure
// message, inside tx.
func (q *Queue) Bump(tx engine.LocalTx, itemID, errText string) (bool, error) {
	return tx.BumpQueueItem(itemID, errText)
}

// PurgeFailed discards all dead-lettered items and returns how many were
// removed.
func (q *Queue) PurgeFailed(ctx context.Context) (int, error) {
	return q.store.PurgeFailedQueueItems(ctx, q.maxRetries)
}

// PurgeAll discards every queue item regardless of retry state.
func (q *Queue) PurgeAll(ctx context.Context) (int, error) {
	return q.store.PurgeAllQueueItems(ctx)
}

// MaxRetries returns the configured retry ceiling.
func (q *Queue) MaxRetries() int { return q.maxRetries }
