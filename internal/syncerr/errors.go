// Package syncerr holds the error taxonomy from spec §7. Sentinel values
// are checked with errors.Is; the typed errors carry enough context for
// logging, matching the VersionMismatchError/MutationError shape the
// teacher uses in internal/service/syncservice/rest_types.go.
package syncerr

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced verbatim by sync() (spec §7).
var (
	ErrOffline           = errors.New("sync: offline")
	ErrAlreadyInProgress = errors.New("sync: already in progress")
	ErrNotFound          = errors.New("sync queue: item not found")
)

// TransportError wraps a push/pull transport failure.
type TransportError struct {
	Op  string // "push" or "pull"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ItemError wraps a per-item push response error (spec §4.2 step 3c).
type ItemError struct {
	RecordID string
	Message  string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %s: %s", e.RecordID, e.Message)
}

// ConflictPolicyError is raised at configuration time when "custom" is
// selected without a resolver function (spec §4.4).
type ConflictPolicyError struct {
	Reason string
}

func (e *ConflictPolicyError) Error() string {
	return "conflict resolver config error: " + e.Reason
}

// LocalStoreError wraps a local-store transaction failure.
type LocalStoreError struct {
	Op  string
	Err error
}

func (e *LocalStoreError) Error() string {
	return fmt.Sprintf("local store %s failed: %v", e.Op, e.Err)
}

func (e *LocalStoreError) Unwrap() error { return e.Err }

// WatermarkError wraps a watermark read/write failure. Per spec §7, reads
// degrade to null and writes are logged-and-ignored; this type exists so
// callers can log a consistent message at both call sites.
type WatermarkError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *WatermarkError) Error() string {
	return fmt.Sprintf("watermark %s failed: %v", e.Op, e.Err)
}

func (e *WatermarkError) Unwrap() error { return e.Err }
