package engine

import "context"

// LocalTx is the write surface available inside a single local-store
// transaction. Every app-level record write that is also a pending sync
// mutation enqueues through InsertQueueItem in the same transaction, per
// spec §5's shared-mutable-resources table.
type LocalTx interface {
	FindRecordByID(table, id string) (*Record, bool, error)
	FindRecordByServerID(table, serverID string) (*Record, bool, error)
	InsertRecord(table string, rec *Record) error
	UpdateRecord(table string, rec *Record) error
	SoftDeleteRecord(table, id string, deletedAt int64) error
	SoftDeleteRecordsByServerID(table, serverID string, deletedAt int64) (int, error)

	InsertQueueItem(item *QueueItem) error
	DeleteQueueItem(id string) (bool, error)
	BumpQueueItem(id, errText string) (bool, error)
}

// LocalStore is the out-of-scope "local record database" collaborator from
// spec §1: a transactional document store exposing collections, queries,
// writes, and soft-delete. Only this interface is load-bearing for the
// reconciliation modules; internal/localstore/pg and the in-memory fake in
// internal/localstore are interchangeable concrete adapters.
type LocalStore interface {
	RunInTransaction(ctx context.Context, fn func(LocalTx) error) error

	PendingQueueItems(ctx context.Context, maxRetries int) ([]QueueItem, error)
	FailedQueueItems(ctx context.Context, maxRetries int) ([]QueueItem, error)
	CountQueueItems(ctx context.Context) (int, error)
	PurgeFailedQueueItems(ctx context.Context, maxRetries int) (int, error)
	PurgeAllQueueItems(ctx context.Context) (int, error)
}

// Watermark persists the scalar last_pulled_at timestamp (spec §3, §6).
type Watermark interface {
	Get(ctx context.Context) (*int64, error)
	Set(ctx context.Context, ms int64) error
}

// NetworkReachability is the out-of-scope reachability probe from spec §1.
type NetworkReachability interface {
	Initialize(ctx context.Context) error
	IsOnline() bool
	Status() NetworkStatus
	Subscribe(listener func(NetworkStatus)) (unsubscribe func())
	Shutdown()
}

// ConflictResolver decides the winner for a concurrent edit (spec §4.4).
type ConflictResolver interface {
	Resolve(ctx context.Context, cc ConflictContext) (Resolution, error)
}
