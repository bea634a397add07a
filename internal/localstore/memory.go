// Package localstore provides an in-memory engine.LocalStore used by tests.
// The pgx-backed implementation, which cmd/syncd wires up, lives in
// internal/localstore/pg and follows the same record+queue shape.
package localstore

import (
	"context"
	"sync"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncerr"
	"github.com/erauner12/syncengine/internal/syncx"
)

type recordKey struct {
	table, id string
}

// Memory is a mutex-guarded, process-local engine.LocalStore. It does not
// itself provide crash durability; it exists for tests and local demos.
type Memory struct {
	mu         sync.Mutex
	records    map[recordKey]engine.Record
	queue      map[string]engine.QueueItem
	watermark  *int64
	queueOrder []string // insertion order, for deterministic Pending/Failed iteration
}

// NewMemory builds an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[recordKey]engine.Record),
		queue:   make(map[string]engine.QueueItem),
	}
}

// RunInTransaction executes fn under the store's single mutex, giving fn an
// all-or-nothing view: if fn returns an error, no mutation it made through
// the handed-in tx is retained.
func (m *Memory) RunInTransaction(_ context.Context, fn func(engine.LocalTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, recordsCopy: cloneRecords(m.records), queueCopy: cloneQueue(m.queue), order: append([]string(nil), m.queueOrder...)}
	if err := fn(tx); err != nil {
		return err
	}
	m.records = tx.recordsCopy
	m.queue = tx.queueCopy
	m.queueOrder = tx.order
	return nil
}

func cloneRecords(in map[recordKey]engine.Record) map[recordKey]engine.Record {
	out := make(map[recordKey]engine.Record, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneQueue(in map[string]engine.QueueItem) map[string]engine.QueueItem {
	out := make(map[string]engine.QueueItem, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type memTx struct {
	store       *Memory
	recordsCopy map[recordKey]engine.Record
	queueCopy   map[string]engine.QueueItem
	order       []string
}

func (t *memTx) FindRecordByID(table, id string) (*engine.Record, bool, error) {
	rec, ok := t.recordsCopy[recordKey{table, id}]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (t *memTx) FindRecordByServerID(table, serverID string) (*engine.Record, bool, error) {
	for _, rec := range t.recordsCopy {
		if rec.TableName == table && rec.ServerID != nil && *rec.ServerID == serverID {
			r := rec
			return &r, true, nil
		}
	}
	return nil, false, nil
}

func (t *memTx) InsertRecord(table string, rec *engine.Record) error {
	rec.TableName = table
	t.recordsCopy[recordKey{table, rec.ID}] = *rec
	return nil
}

func (t *memTx) UpdateRecord(table string, rec *engine.Record) error {
	key := recordKey{table, rec.ID}
	if _, ok := t.recordsCopy[key]; !ok {
		return syncerr.ErrNotFound
	}
	rec.TableName = table
	t.recordsCopy[key] = *rec
	return nil
}

func (t *memTx) SoftDeleteRecord(table, id string, deletedAt int64) error {
	key := recordKey{table, id}
	rec, ok := t.recordsCopy[key]
	if !ok {
		return syncerr.ErrNotFound
	}
	rec.DeletedAt = &deletedAt
	t.recordsCopy[key] = rec
	return nil
}

func (t *memTx) SoftDeleteRecordsByServerID(table, serverID string, deletedAt int64) (int, error) {
	n := 0
	for key, rec := range t.recordsCopy {
		if rec.TableName == table && rec.ServerID != nil && *rec.ServerID == serverID {
			rec.DeletedAt = &deletedAt
			t.recordsCopy[key] = rec
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertQueueItem(item *engine.QueueItem) error {
	t.queueCopy[item.ID] = *item
	t.order = append(t.order, item.ID)
	return nil
}

func (t *memTx) DeleteQueueItem(id string) (bool, error) {
	if _, ok := t.queueCopy[id]; !ok {
		return false, nil
	}
	delete(t.queueCopy, id)
	for i, qid := range t.order {
		if qid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (t *memTx) BumpQueueItem(id, errText string) (bool, error) {
	item, ok := t.queueCopy[id]
	if !ok {
		return false, nil
	}
	item.RetryCount++
	item.ErrorMessage = &errText
	item.UpdatedAt = syncx.NowMs()
	t.queueCopy[id] = item
	return true, nil
}

func (m *Memory) PendingQueueItems(_ context.Context, maxRetries int) ([]engine.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.QueueItem
	for _, id := range m.queueOrder {
		item := m.queue[id]
		if !item.Dead(maxRetries) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *Memory) FailedQueueItems(_ context.Context, maxRetries int) ([]engine.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.QueueItem
	for _, id := range m.queueOrder {
		item := m.queue[id]
		if item.Dead(maxRetries) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *Memory) CountQueueItems(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), nil
}

func (m *Memory) PurgeFailedQueueItems(_ context.Context, maxRetries int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	var kept []string
	for _, id := range m.queueOrder {
		item := m.queue[id]
		if item.Dead(maxRetries) {
			delete(m.queue, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	m.queueOrder = kept
	return n, nil
}

func (m *Memory) PurgeAllQueueItems(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.queue)
	m.queue = make(map[string]engine.QueueItem)
	m.queueOrder = nil
	return n, nil
}

// Watermark returns an engine.Watermark view backed by this same store.
func (m *Memory) Watermark() engine.Watermark { return (*memWatermark)(m) }

type memWatermark Memory

func (w *memWatermark) Get(_ context.Context) (*int64, error) {
	m := (*Memory)(w)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watermark == nil {
		return nil, nil
	}
	v := *m.watermark
	return &v, nil
}

func (w *memWatermark) Set(_ context.Context, ms int64) error {
	m := (*Memory)(w)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watermark = &ms
	return nil
}
