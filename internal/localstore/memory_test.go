package localstore

import (
	"context"
	"testing"

	"github.com/erauner12/syncengine/internal/engine"
)

func TestInsertAndFindRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{ID: "n1", Fields: map[string]any{"title": "hi"}})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		rec, found, err := tx.FindRecordByID("notes", "n1")
		if err != nil {
			return err
		}
		if !found {
			t.Error("record should be found")
		}
		if rec.Fields["title"] != "hi" {
			t.Errorf("title = %v", rec.Fields["title"])
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestFailedTransactionDoesNotCommit(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	boom := errorString("boom")

	_ = m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		_ = tx.InsertRecord("notes", &engine.Record{ID: "n1", Fields: map[string]any{}})
		return boom
	})

	err := m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		_, found, err := tx.FindRecordByID("notes", "n1")
		if err != nil {
			return err
		}
		if found {
			t.Error("record should not have been committed after transaction error")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestQueueEnqueueBumpAndPurge(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		return tx.InsertQueueItem(&engine.QueueItem{ID: "q1", TableName: "notes", RecordID: "n1"})
	})
	if err != nil {
		t.Fatal(err)
	}

	pending, err := m.PendingQueueItems(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	err = m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		_, err := tx.BumpQueueItem("q1", "transport error")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	failed, err := m.FailedQueueItems(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed = %d, want 1 after one bump with maxRetries=1", len(failed))
	}

	n, err := m.PurgeFailedQueueItems(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	count, err := m.CountQueueItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count after purge = %d, want 0", count)
	}
}

func TestWatermarkGetSet(t *testing.T) {
	m := NewMemory()
	wm := m.Watermark()
	ctx := context.Background()

	got, err := wm.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("watermark should start nil")
	}

	if err := wm.Set(ctx, 12345); err != nil {
		t.Fatal(err)
	}

	got, err = wm.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != 12345 {
		t.Errorf("watermark = %v, want 12345", got)
	}
}

func TestSoftDeleteByServerID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	serverID := "srv-1"

	err := m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		return tx.InsertRecord("notes", &engine.Record{ID: "n1", ServerID: &serverID, Fields: map[string]any{}})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		n, err := tx.SoftDeleteRecordsByServerID("notes", serverID, 555)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("soft deleted %d records, want 1", n)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = m.RunInTransaction(ctx, func(tx engine.LocalTx) error {
		rec, found, err := tx.FindRecordByServerID("notes", serverID)
		if err != nil {
			return err
		}
		if !found {
			t.Fatal("record should still be found after soft delete")
		}
		if rec.DeletedAt == nil || *rec.DeletedAt != 555 {
			t.Errorf("DeletedAt = %v, want 555", rec.DeletedAt)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}
