package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erauner12/syncengine/internal/engine"
)

func TestPushRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/push" {
			t.Errorf("path = %s, want /push", r.URL.Path)
		}
		if r.Header.Get("X-Correlation-ID") == "" {
			t.Error("missing X-Correlation-ID header")
		}

		var req engine.PushRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Changes) != 1 || req.Changes[0].RecordID != "n1" {
			t.Errorf("unexpected request body: %+v", req)
		}

		serverID := "srv-1"
		resp := engine.PushResponse{
			Success: true,
			Results: []engine.PushResult{{RecordID: "n1", ServerID: &serverID}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(server.URL, "")
	resp, err := client.Push(context.Background(), engine.PushRequest{
		Changes: []engine.PushChange{{TableName: "notes", Operation: engine.OpCreate, RecordID: "n1", Data: map[string]any{}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || len(resp.Results) != 1 || *resp.Results[0].ServerID != "srv-1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestPullRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pull" {
			t.Errorf("path = %s, want /pull", r.URL.Path)
		}
		resp := engine.PullResponse{
			Timestamp: 1000,
			Changes: map[string]engine.TableChanges{
				"notes": {Created: []engine.ServerRecord{{"id": "srv-1", "title": "hi"}}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := New(server.URL, "token-123")
	resp, err := client.Pull(context.Background(), engine.PullRequest{Tables: []string{"notes"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Timestamp != 1000 {
		t.Errorf("timestamp = %d, want 1000", resp.Timestamp)
	}
	if len(resp.Changes["notes"].Created) != 1 {
		t.Errorf("unexpected pull response: %+v", resp)
	}
}

func TestBearerTokenHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q, want Bearer token-123", got)
		}
		json.NewEncoder(w).Encode(engine.PushResponse{Success: true})
	}))
	defer server.Close()

	client := New(server.URL, "token-123")
	if _, err := client.Push(context.Background(), engine.PushRequest{}); err != nil {
		t.Fatal(err)
	}
}

func TestNonSuccessStatusIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "")
	if _, err := client.Push(context.Background(), engine.PushRequest{}); err == nil {
		t.Error("expected error for 500 response")
	}
}
