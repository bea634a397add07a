package pull

import (
	"context"
	"testing"

	"github.com/erauner12/syncengine/internal/engine"
	"github.com/erauner12/syncengine/internal/localstore"
	"github.com/erauner12/syncengine/internal/resolver"
	"github.com/erauner12/syncengine/internal/config"
)

type fakeTransport struct {
	pullFunc func(context.Context, engine.PullRequest) (engine.PullResponse, error)
}

func (f *fakeTransport) Push(context.Context, engine.PushRequest) (engine.PushResponse, error) {
	return engine.PushResponse{}, nil
}
func (f *fakeTransport) Pull(ctx context.Context, req engine.PullRequest) (engine.PullResponse, error) {
	return f.pullFunc(ctx, req)
}

func mustResolver(t *testing.T, strategy config.ConflictStrategy) engine.ConflictResolver {
	t.Helper()
	r, err := resolver.New(config.Config{ConflictStrategy: strategy}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunInsertsNewRecords(t *testing.T) {
	store := localstore.NewMemory()
	transport := &fakeTransport{pullFunc: func(_ context.Context, req engine.PullRequest) (engine.PullResponse, error) {
		if req.LastSyncAt != nil {
			t.Errorf("LastSyncAt = %v, want nil on first pull", req.LastSyncAt)
		}
		return engine.PullResponse{
			Timestamp: 500,
			Changes: map[string]engine.TableChanges{
				"notes": {Created: []engine.ServerRecord{{"id": "srv-1", "title": "hello", "updatedAt": float64(100)}}},
			},
		}, nil
	}}

	p := New(store, transport, store.Watermark(), mustResolver(t, config.StrategyLastWriteWins), []string{"notes"})

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 {
		t.Errorf("Created = %d, want 1", result.Created)
	}

	err = store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		rec, found, err := tx.FindRecordByServerID("notes", "srv-1")
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("record should have been inserted")
		}
		if rec.Fields["title"] != "hello" {
			t.Errorf("title = %v", rec.Fields["title"])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	ms, err := store.Watermark().Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ms == nil || *ms != 500 {
		t.Errorf("watermark = %v, want 500", ms)
	}
}

func TestRunUpdatesSyncedRecordDirectly(t *testing.T) {
	store := localstore.NewMemory()
	serverID := "srv-1"
	err := store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{
			ID: "n1", ServerID: &serverID, SyncStatus: engine.StatusSynced,
			Fields: map[string]any{"title": "old", "updated_at": int64(100)},
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	transport := &fakeTransport{pullFunc: func(context.Context, engine.PullRequest) (engine.PullResponse, error) {
		return engine.PullResponse{
			Timestamp: 500,
			Changes: map[string]engine.TableChanges{
				"notes": {Updated: []engine.ServerRecord{{"id": serverID, "title": "new", "updatedAt": float64(200)}}},
			},
		}, nil
	}}

	p := New(store, transport, store.Watermark(), mustResolver(t, config.StrategyLastWriteWins), []string{"notes"})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	err = store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		rec, _, err := tx.FindRecordByServerID("notes", serverID)
		if err != nil {
			return err
		}
		if rec.Fields["title"] != "new" {
			t.Errorf("title = %v, want new", rec.Fields["title"])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunRoutesConflictThroughResolver(t *testing.T) {
	store := localstore.NewMemory()
	serverID := "srv-1"
	lastSeenServerUpdatedAt := int64(50)
	err := store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{
			ID: "n1", ServerID: &serverID, SyncStatus: engine.StatusPending, // local edit not yet pushed
			ServerUpdatedAt: &lastSeenServerUpdatedAt,
			Fields:          map[string]any{"title": "local-edit", "updated_at": int64(300)},
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	transport := &fakeTransport{pullFunc: func(context.Context, engine.PullRequest) (engine.PullResponse, error) {
		return engine.PullResponse{
			Timestamp: 500,
			Changes: map[string]engine.TableChanges{
				"notes": {Updated: []engine.ServerRecord{{"id": serverID, "title": "server-edit", "updatedAt": float64(100)}}},
			},
		}, nil
	}}

	// last-write-wins: local (300) beats server (100)
	p := New(store, transport, store.Watermark(), mustResolver(t, config.StrategyLastWriteWins), []string{"notes"})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}

	err = store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		rec, _, err := tx.FindRecordByServerID("notes", serverID)
		if err != nil {
			return err
		}
		if rec.Fields["title"] != "local-edit" {
			t.Errorf("title = %v, want local-edit to survive LWW conflict", rec.Fields["title"])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunOverwritesPendingRecordWithNoPriorServerUpdatedAt(t *testing.T) {
	store := localstore.NewMemory()
	serverID := "srv-1"
	err := store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{
			ID: "n1", ServerID: &serverID, SyncStatus: engine.StatusPending, // never seen a server version
			Fields: map[string]any{"title": "local-edit", "updated_at": int64(300)},
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	transport := &fakeTransport{pullFunc: func(context.Context, engine.PullRequest) (engine.PullResponse, error) {
		return engine.PullResponse{
			Timestamp: 500,
			Changes: map[string]engine.TableChanges{
				"notes": {Updated: []engine.ServerRecord{{"id": serverID, "title": "server-edit", "updatedAt": float64(100)}}},
			},
		}, nil
	}}

	p := New(store, transport, store.Watermark(), mustResolver(t, config.StrategyLastWriteWins), []string{"notes"})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	err = store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		rec, _, err := tx.FindRecordByServerID("notes", serverID)
		if err != nil {
			return err
		}
		if rec.Fields["title"] != "server-edit" {
			t.Errorf("title = %v, want server-edit (no prior server_updated_at means no conflict)", rec.Fields["title"])
		}
		if rec.SyncStatus != engine.StatusSynced {
			t.Errorf("SyncStatus = %v, want synced", rec.SyncStatus)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRunAppliesDeletes(t *testing.T) {
	store := localstore.NewMemory()
	serverID := "srv-1"
	err := store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{ID: "n1", ServerID: &serverID, SyncStatus: engine.StatusSynced, Fields: map[string]any{}})
	})
	if err != nil {
		t.Fatal(err)
	}

	transport := &fakeTransport{pullFunc: func(context.Context, engine.PullRequest) (engine.PullResponse, error) {
		return engine.PullResponse{
			Timestamp: 500,
			Changes: map[string]engine.TableChanges{
				"notes": {Deleted: []string{serverID}},
			},
		}, nil
	}}

	p := New(store, transport, store.Watermark(), mustResolver(t, config.StrategyLastWriteWins), []string{"notes"})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", result.Deleted)
	}

	err = store.RunInTransaction(context.Background(), func(tx engine.LocalTx) error {
		rec, found, err := tx.FindRecordByServerID("notes", serverID)
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("soft-deleted record should still exist")
		}
		if rec.DeletedAt == nil {
			t.Error("DeletedAt should be set")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
