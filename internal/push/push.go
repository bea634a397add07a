// Package push implements the PushPipeline from spec §4.2: batch pending
// queue items to the transport, then apply per-item results back against
// the local store, one local transaction per item so a failure partway
// through a batch never loses the rest.
package push

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/config"
	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/queue"
	"github.com/erauner12/syncengine/internal/retry"
	"github.com/erauner12/syncengine/internal/syncerr"
	"github.com/erauner12/syncengine/internal/syncx"
)

// Pipeline is the default PushPipeline implementation.
type Pipeline struct {
	store     engine.LocalStore
	transport engine.Transport
	queue     *queue.Queue
	batchSize int
	cfg       config.Config
}

// New builds a Pipeline.
func New(store engine.LocalStore, transport engine.Transport, q *queue.Queue, cfg config.Config) *Pipeline {
	return &Pipeline{store: store, transport: transport, queue: q, batchSize: cfg.PushBatchSize, cfg: cfg}
}

// Result summarizes one Run call for the orchestrator and tests.
type Result struct {
	Pushed  int
	Failed  int
	Batches int
}

// Run drains every pending queue item in batches of p.batchSize, pushing
// each batch and applying its response (spec §4.2 steps 1-5). It returns the
// first transport error encountered, after recording retry accounting for
// the batch that triggered it; subsequent batches are not attempted for
// that Run call, matching the orchestrator's "stop this sync cycle on
// transport failure" behavior (spec §4.6).
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var result Result
	now := syncx.NowMs()

	for {
		items, err := p.queue.Pending(ctx)
		if err != nil {
			return result, &syncerr.LocalStoreError{Op: "load pending", Err: err}
		}
		if len(items) == 0 {
			return result, nil
		}

		batch := make([]engine.QueueItem, 0, len(items))
		for _, item := range items {
			if p.dueForRetry(item, now) {
				batch = append(batch, item)
			}
		}
		if len(batch) == 0 {
			return result, nil
		}
		if len(batch) > p.batchSize {
			batch = batch[:p.batchSize]
		}

		if err := p.runBatch(ctx, batch, &result); err != nil {
			return result, err
		}
		result.Batches++

		if len(batch) < p.batchSize {
			return result, nil
		}
	}
}

// dueForRetry reports whether a queue item's backoff window (spec §5's
// retry-backoff suspension point) has elapsed. An item that has never been
// bumped goes out immediately; one that has failed before waits
// retry.Delay(p.cfg, item.RetryCount) since its last attempt.
func (p *Pipeline) dueForRetry(item engine.QueueItem, now int64) bool {
	if item.RetryCount == 0 {
		return true
	}
	delay := retry.Delay(p.cfg, item.RetryCount)
	return now-item.UpdatedAt >= delay.Milliseconds()
}

func (p *Pipeline) runBatch(ctx context.Context, batch []engine.QueueItem, result *Result) error {
	req := engine.PushRequest{Changes: make([]engine.PushChange, len(batch))}
	for i, item := range batch {
		req.Changes[i] = engine.PushChange{
			TableName: item.TableName,
			Operation: item.Operation,
			RecordID:  item.RecordID,
			Data:      item.Payload,
		}
	}

	resp, err := p.transport.Push(ctx, req)
	if err != nil {
		p.bumpAll(ctx, batch, err.Error())
		result.Failed += len(batch)
		return &syncerr.TransportError{Op: "push", Err: err}
	}

	if !resp.Success {
		p.bumpAll(ctx, batch, "server rejected batch: success=false")
		result.Failed += len(batch)
		return nil
	}

	for i, item := range batch {
		var res engine.PushResult
		if i < len(resp.Results) {
			res = resp.Results[i]
		}
		if p.applyResult(ctx, item, res) {
			result.Pushed++
		} else {
			result.Failed++
		}
	}
	return nil
}

// bumpAll records a shared transport failure against every item in a batch
// that never reached the server (spec §4.2 step 4's "apply to all" case).
func (p *Pipeline) bumpAll(ctx context.Context, batch []engine.QueueItem, message string) {
	for _, item := range batch {
		err := p.store.RunInTransaction(ctx, func(tx engine.LocalTx) error {
			_, err := p.queue.Bump(tx, item.ID, message)
			return err
		})
		if err != nil {
			log.Error().Err(err).Str("queue_item", item.ID).Msg("failed to record push transport failure")
		}
	}
}

// applyResult commits one item's outcome: on success it acks the queue item
// and marks the record synced with server-authoritative fields, in the same
// transaction; on a per-item error it bumps the retry count instead.
func (p *Pipeline) applyResult(ctx context.Context, item engine.QueueItem, res engine.PushResult) bool {
	ok := res.Error == ""

	err := p.store.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		if !ok {
			itemErr := &syncerr.ItemError{RecordID: item.RecordID, Message: res.Error}
			_, err := p.queue.Bump(tx, item.ID, itemErr.Error())
			return err
		}

		rec, found, err := tx.FindRecordByID(item.TableName, item.RecordID)
		if err != nil {
			return err
		}
		if found {
			rec.ServerID = res.ServerID
			rec.ServerUpdatedAt = res.ServerUpdatedAt
			rec.SyncStatus = engine.StatusSynced
			rec.LastSyncError = nil
			if err := tx.UpdateRecord(item.TableName, rec); err != nil {
				return err
			}
		}

		_, err = p.queue.Ack(tx, item.ID)
		return err
	})

	if err != nil {
		log.Error().Err(err).Str("queue_item", item.ID).Bool("item_ok", ok).Msg("failed to apply push result")
		return false
	}
	if !ok {
		log.Warn().Str("queue_item", item.ID).Str("record_id", item.RecordID).Str("error", res.Error).Msg("push item rejected by server")
	}
	return ok
}
