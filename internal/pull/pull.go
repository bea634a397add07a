// Package pull implements the PullPipeline from spec §4.3: fetch changes
// since the last watermark, apply created/updated/deleted stanzas in order,
// route concurrent edits through the ConflictResolver, and persist the new
// watermark last (spec §9's field-mapping note covers the camelCase/
// snake_case boundary crossed here).
package pull

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/syncerr"
	"github.com/erauner12/syncengine/internal/syncx"
)

// Pipeline is the default PullPipeline implementation.
type Pipeline struct {
	store     engine.LocalStore
	transport engine.Transport
	watermark engine.Watermark
	resolver  engine.ConflictResolver
	tables    []string
}

// New builds a Pipeline. tables lists every table name the engine should
// ask the server about on each pull.
func New(store engine.LocalStore, transport engine.Transport, watermark engine.Watermark, resolver engine.ConflictResolver, tables []string) *Pipeline {
	return &Pipeline{store: store, transport: transport, watermark: watermark, resolver: resolver, tables: tables}
}

// Result summarizes one Run call.
type Result struct {
	Created   int
	Updated   int
	Deleted   int
	Conflicts int
}

// Run executes one full pull round trip (spec §4.3 steps 1-6).
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var result Result

	last, err := p.watermark.Get(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("watermark read failed, pulling from epoch")
		last = nil
	}

	resp, err := p.transport.Pull(ctx, engine.PullRequest{LastSyncAt: last, Tables: p.tables})
	if err != nil {
		return result, &syncerr.TransportError{Op: "pull", Err: err}
	}

	for table, changes := range resp.Changes {
		if err := p.applyTable(ctx, table, changes, &result); err != nil {
			return result, err
		}
	}

	if err := p.watermark.Set(ctx, resp.Timestamp); err != nil {
		log.Warn().Err(err).Msg("watermark write failed, next pull will re-fetch this window")
	}

	return result, nil
}

func (p *Pipeline) applyTable(ctx context.Context, table string, changes engine.TableChanges, result *Result) error {
	return p.store.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		for _, sr := range changes.Created {
			if err := p.applyCreatedOrUpdated(ctx, tx, table, sr); err != nil {
				return err
			}
			result.Created++
		}
		for _, sr := range changes.Updated {
			if err := p.applyCreatedOrUpdated(ctx, tx, table, sr); err != nil {
				return err
			}
			result.Updated++
		}
		for _, serverID := range changes.Deleted {
			n, err := tx.SoftDeleteRecordsByServerID(table, serverID, syncx.NowMs())
			if err != nil {
				return err
			}
			result.Deleted += n
		}
		return nil
	})
}

// applyCreatedOrUpdated maps a pulled record's camelCase fields to the local
// store's snake_case convention, then either inserts it (first time seen) or
// reconciles it against a matching local record, consulting the
// ConflictResolver when the local side has an edit pending.
func (p *Pipeline) applyCreatedOrUpdated(ctx context.Context, tx engine.LocalTx, table string, sr engine.ServerRecord) error {
	serverID, _ := sr["id"].(string)
	if serverID == "" {
		log.Warn().Str("table", table).Msg("pulled record missing id, skipping")
		return nil
	}
	serverUpdatedAt := extractUpdatedAtMs(sr)
	mapped := syncx.MapKeys(sr, syncx.CamelToSnake)

	local, found, err := tx.FindRecordByServerID(table, serverID)
	if err != nil {
		return err
	}

	if !found {
		rec := &engine.Record{
			ID:              uuid.NewString(),
			Fields:          mapped,
			ServerID:        &serverID,
			ServerUpdatedAt: &serverUpdatedAt,
			SyncStatus:      engine.StatusSynced,
		}
		return tx.InsertRecord(table, rec)
	}

	// Conflict only when a local edit is still pending, the record has been
	// seen by the server before, and the incoming version is actually newer
	// than what we last saw (spec §4.3.2); everything else overwrites
	// directly, including StatusFailed records, which lost their chance to
	// win and should just take the server's state.
	isConflict := local.SyncStatus == engine.StatusPending &&
		local.ServerUpdatedAt != nil &&
		serverUpdatedAt > *local.ServerUpdatedAt

	if !isConflict {
		local.Fields = mapped
		local.ServerUpdatedAt = &serverUpdatedAt
		local.SyncStatus = engine.StatusSynced
		local.LastSyncError = nil
		return tx.UpdateRecord(table, local)
	}

	cc := engine.ConflictContext{
		Table:           table,
		RecordID:        local.ID,
		LocalData:       local.Fields,
		ServerData:      mapped,
		LocalUpdatedAt:  extractUpdatedAtMs(local.Fields),
		ServerUpdatedAt: serverUpdatedAt,
	}
	resolution, err := p.resolver.Resolve(ctx, cc)
	if err != nil {
		return err
	}

	switch resolution.Kind {
	case engine.ResolveLocal:
		// Keep the local edit as-is; it will still push on the next cycle.
		local.ServerUpdatedAt = &serverUpdatedAt
		return tx.UpdateRecord(table, local)
	case engine.ResolveMerged:
		local.Fields = resolution.Merged
		local.ServerUpdatedAt = &serverUpdatedAt
		local.SyncStatus = engine.StatusPending
		return tx.UpdateRecord(table, local)
	default: // engine.ResolveServer
		local.Fields = mapped
		local.ServerUpdatedAt = &serverUpdatedAt
		local.SyncStatus = engine.StatusSynced
		local.LastSyncError = nil
		return tx.UpdateRecord(table, local)
	}
}

func extractUpdatedAtMs(fields map[string]any) int64 {
	for _, key := range []string{"updatedAt", "updated_at"} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case float64:
			return int64(t)
		case int64:
			return t
		case string:
			if ms, ok := syncx.ParseTimeToMs(t); ok {
				return ms
			}
		}
	}
	return 0
}
