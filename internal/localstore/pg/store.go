// Package pg adapts the teacher's per-entity pgx transaction idiom
// (internal/service/syncservice) into one generic record+queue backing for
// engine.LocalStore, keyed by table_name instead of one table per entity.
package pg

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncerr"
	"github.com/erauner12/syncengine/internal/syncx"
)

// Schema is the DDL this store expects. Migrations are out of scope; a
// caller wires this up once at startup (see cmd/syncd).
const Schema = `
CREATE TABLE IF NOT EXISTS sync_record (
	table_name        text NOT NULL,
	id                text NOT NULL,
	fields_json       jsonb NOT NULL,
	server_id         text,
	server_updated_at bigint,
	sync_status       text NOT NULL DEFAULT 'pending',
	last_sync_error   text,
	deleted_at        bigint,
	PRIMARY KEY (table_name, id)
);
CREATE INDEX IF NOT EXISTS sync_record_server_id_idx ON sync_record (table_name, server_id);

CREATE TABLE IF NOT EXISTS sync_queue (
	id            text PRIMARY KEY,
	operation     text NOT NULL,
	table_name    text NOT NULL,
	record_id     text NOT NULL,
	payload_json  jsonb NOT NULL,
	retry_count   integer NOT NULL DEFAULT 0,
	error_message text,
	created_at    bigint NOT NULL,
	updated_at    bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_queue_created_at_idx ON sync_queue (created_at);

CREATE TABLE IF NOT EXISTS sync_watermark (
	id            boolean PRIMARY KEY DEFAULT true CHECK (id),
	last_pulled_at bigint NOT NULL
);
`

// Store is the pgx-backed engine.LocalStore.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-opened pool (see internal/db.Open).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(engine.LocalTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &syncerr.LocalStoreError{Op: "commit", Err: err}
	}
	return nil
}

type pgTx struct {
	ctx context.Context
	tx  pgx.Tx
}

func (t *pgTx) FindRecordByID(table, id string) (*engine.Record, bool, error) {
	return t.findRecord("id", table, id)
}

func (t *pgTx) FindRecordByServerID(table, serverID string) (*engine.Record, bool, error) {
	return t.findRecord("server_id", table, serverID)
}

func (t *pgTx) findRecord(column, table, value string) (*engine.Record, bool, error) {
	row := t.tx.QueryRow(t.ctx, `
		SELECT id, fields_json, server_id, server_updated_at, sync_status, last_sync_error, deleted_at
		FROM sync_record WHERE table_name = $1 AND `+column+` = $2
	`, table, value)

	var (
		rec         engine.Record
		fieldsJSON  []byte
		serverID    *string
		serverAt    *int64
		syncStatus  string
		lastErr     *string
		deletedAt   *int64
	)
	if err := row.Scan(&rec.ID, &fieldsJSON, &serverID, &serverAt, &syncStatus, &lastErr, &deletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, &syncerr.LocalStoreError{Op: "find", Err: err}
	}

	fields := map[string]any{}
	if err := json.Unmarshal(fieldsJSON, &fields); err != nil {
		return nil, false, &syncerr.LocalStoreError{Op: "unmarshal", Err: err}
	}

	rec.TableName = table
	rec.Fields = fields
	rec.ServerID = serverID
	rec.ServerUpdatedAt = serverAt
	rec.SyncStatus = engine.SyncStatus(syncStatus)
	rec.LastSyncError = lastErr
	rec.DeletedAt = deletedAt
	return &rec, true, nil
}

func (t *pgTx) InsertRecord(table string, rec *engine.Record) error {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "marshal", Err: err}
	}
	_, err = t.tx.Exec(t.ctx, `
		INSERT INTO sync_record (table_name, id, fields_json, server_id, server_updated_at, sync_status, last_sync_error, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, table, rec.ID, payload, rec.ServerID, rec.ServerUpdatedAt, string(rec.SyncStatus), rec.LastSyncError, rec.DeletedAt)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "insert record", Err: err}
	}
	return nil
}

func (t *pgTx) UpdateRecord(table string, rec *engine.Record) error {
	payload, err := json.Marshal(rec.Fields)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "marshal", Err: err}
	}
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE sync_record SET
			fields_json = $3, server_id = $4, server_updated_at = $5,
			sync_status = $6, last_sync_error = $7, deleted_at = $8
		WHERE table_name = $1 AND id = $2
	`, table, rec.ID, payload, rec.ServerID, rec.ServerUpdatedAt, string(rec.SyncStatus), rec.LastSyncError, rec.DeletedAt)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "update record", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return syncerr.ErrNotFound
	}
	return nil
}

func (t *pgTx) SoftDeleteRecord(table, id string, deletedAt int64) error {
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE sync_record SET deleted_at = $3 WHERE table_name = $1 AND id = $2
	`, table, id, deletedAt)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "soft delete", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return syncerr.ErrNotFound
	}
	return nil
}

func (t *pgTx) SoftDeleteRecordsByServerID(table, serverID string, deletedAt int64) (int, error) {
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE sync_record SET deleted_at = $3 WHERE table_name = $1 AND server_id = $2
	`, table, serverID, deletedAt)
	if err != nil {
		return 0, &syncerr.LocalStoreError{Op: "soft delete by server id", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

func (t *pgTx) InsertQueueItem(item *engine.QueueItem) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "marshal", Err: err}
	}
	_, err = t.tx.Exec(t.ctx, `
		INSERT INTO sync_queue (id, operation, table_name, record_id, payload_json, retry_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, item.ID, string(item.Operation), item.TableName, item.RecordID, payload, item.RetryCount, item.ErrorMessage, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return &syncerr.LocalStoreError{Op: "insert queue item", Err: err}
	}
	return nil
}

func (t *pgTx) DeleteQueueItem(id string) (bool, error) {
	tag, err := t.tx.Exec(t.ctx, `DELETE FROM sync_queue WHERE id = $1`, id)
	if err != nil {
		return false, &syncerr.LocalStoreError{Op: "delete queue item", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

func (t *pgTx) BumpQueueItem(id, errText string) (bool, error) {
	tag, err := t.tx.Exec(t.ctx, `
		UPDATE sync_queue SET retry_count = retry_count + 1, error_message = $2, updated_at = $3
		WHERE id = $1
	`, id, errText, syncx.NowMs())
	if err != nil {
		return false, &syncerr.LocalStoreError{Op: "bump queue item", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) PendingQueueItems(ctx context.Context, maxRetries int) ([]engine.QueueItem, error) {
	return s.queueWhere(ctx, `retry_count < $1`, maxRetries)
}

func (s *Store) FailedQueueItems(ctx context.Context, maxRetries int) ([]engine.QueueItem, error) {
	return s.queueWhere(ctx, `retry_count >= $1`, maxRetries)
}

func (s *Store) queueWhere(ctx context.Context, cond string, maxRetries int) ([]engine.QueueItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, operation, table_name, record_id, payload_json, retry_count, error_message, created_at, updated_at
		FROM sync_queue WHERE `+cond+` ORDER BY created_at
	`, maxRetries)
	if err != nil {
		return nil, &syncerr.LocalStoreError{Op: "query queue", Err: err}
	}
	defer rows.Close()

	var out []engine.QueueItem
	for rows.Next() {
		var (
			item       engine.QueueItem
			op         string
			payload    []byte
			errMessage *string
		)
		if err := rows.Scan(&item.ID, &op, &item.TableName, &item.RecordID, &payload, &item.RetryCount, &errMessage, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, &syncerr.LocalStoreError{Op: "scan queue row", Err: err}
		}
		item.Operation = engine.Operation(op)
		item.ErrorMessage = errMessage
		if err := json.Unmarshal(payload, &item.Payload); err != nil {
			return nil, &syncerr.LocalStoreError{Op: "unmarshal queue payload", Err: err}
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &syncerr.LocalStoreError{Op: "iterate queue", Err: err}
	}
	return out, nil
}

func (s *Store) CountQueueItems(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM sync_queue`).Scan(&n); err != nil {
		return 0, &syncerr.LocalStoreError{Op: "count queue", Err: err}
	}
	return n, nil
}

func (s *Store) PurgeFailedQueueItems(ctx context.Context, maxRetries int) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sync_queue WHERE retry_count >= $1`, maxRetries)
	if err != nil {
		return 0, &syncerr.LocalStoreError{Op: "purge failed", Err: err}
	}
	n := int(tag.RowsAffected())
	log.Info().Int("count", n).Msg("purged failed queue items")
	return n, nil
}

func (s *Store) PurgeAllQueueItems(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sync_queue`)
	if err != nil {
		return 0, &syncerr.LocalStoreError{Op: "purge all", Err: err}
	}
	return int(tag.RowsAffected()), nil
}

// Watermark returns an engine.Watermark view backed by the same pool.
func (s *Store) Watermark() engine.Watermark { return (*watermark)(s) }

type watermark Store

func (w *watermark) Get(ctx context.Context) (*int64, error) {
	s := (*Store)(w)
	var ms int64
	err := s.pool.QueryRow(ctx, `SELECT last_pulled_at FROM sync_watermark WHERE id = true`).Scan(&ms)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, &syncerr.WatermarkError{Op: "read", Err: err}
	}
	return &ms, nil
}

func (w *watermark) Set(ctx context.Context, ms int64) error {
	s := (*Store)(w)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_watermark (id, last_pulled_at) VALUES (true, $1)
		ON CONFLICT (id) DO UPDATE SET last_pulled_at = EXCLUDED.last_pulled_at
	`, ms)
	if err != nil {
		return &syncerr.WatermarkError{Op: "write", Err: err}
	}
	return nil
}
