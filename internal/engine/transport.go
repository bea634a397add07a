package engine

import "context"

// PushChange is one entry of a push request's changes array (spec §6).
type PushChange struct {
	TableName string         `json:"tableName"`
	Operation Operation      `json:"operation"`
	RecordID  string         `json:"recordId"`
	Data      map[string]any `json:"data"`
}

// PushRequest is the wire request body for a push round trip.
type PushRequest struct {
	Changes []PushChange `json:"changes"`
}

// PushResult is one positional entry of a push response's results array.
type PushResult struct {
	RecordID        string  `json:"recordId,omitempty"`
	ServerID        *string `json:"serverId,omitempty"`
	ServerUpdatedAt *int64  `json:"serverUpdatedAt,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// PushResponse is the wire response body for a push round trip.
type PushResponse struct {
	Success bool         `json:"success"`
	Results []PushResult `json:"results"`
}

// PullRequest is the wire request body for a pull round trip.
type PullRequest struct {
	LastSyncAt *int64   `json:"lastSyncAt"`
	Tables     []string `json:"tables"`
}

// ServerRecord is a `<record>` from the pull response's created/updated
// stanzas: at least id + updated_at, plus arbitrary domain fields.
type ServerRecord map[string]any

// TableChanges is one table's stanza in a pull response.
type TableChanges struct {
	Created []ServerRecord `json:"created"`
	Updated []ServerRecord `json:"updated"`
	Deleted []string       `json:"deleted"`
}

// PullResponse is the wire response body for a pull round trip.
type PullResponse struct {
	Timestamp int64                   `json:"timestamp"`
	Changes   map[string]TableChanges `json:"changes"`
}

// Transport is the out-of-scope "network transport" collaborator from spec
// §1: an HTTP-style request/response channel. The default implementation is
// internal/transport/httptransport; tests supply an httptest.Server or an
// in-memory fake.
type Transport interface {
	Push(ctx context.Context, req PushRequest) (PushResponse, error)
	Pull(ctx context.Context, req PullRequest) (PullResponse, error)
}
