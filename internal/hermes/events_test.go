package hermes

import (
	"encoding/json"
	"testing"
	"time"
)

func TestIngestRequestedParsing(t *testing.T) {
	raw := `{"request_id": "req-1", "csv": "a@x.com,S,B,D\n"}`

	var req IngestRequested
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("failed to parse IngestRequested: %v", err)
	}
	if req.RequestID != "req-1" {
		t.Errorf("expected request_id 'req-1', got '%s'", req.RequestID)
	}
	if req.CSV != "a@x.com,S,B,D\n" {
		t.Errorf("unexpected csv %q", req.CSV)
	}
}

func TestIngestRequestedEmpty(t *testing.T) {
	var req IngestRequested
	if err := json.Unmarshal([]byte(`{}`), &req); err != nil {
		t.Fatalf("failed to parse empty request: %v", err)
	}
	if req.CSV != "" || req.RequestID != "" {
		t.Errorf("expected zero request, got %+v", req)
	}
}

func TestIngestCompletedRoundTrip(t *testing.T) {
	ev := IngestCompleted{
		BatchID:    "b-1",
		Source:     "file:emails.csv",
		Received:   20,
		Stored:     20,
		High:       9,
		FinishedAt: time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var parsed IngestCompleted
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if parsed != ev {
		t.Errorf("round-trip mismatch: got %+v, want %+v", parsed, ev)
	}

	var generic map[string]any
	_ = json.Unmarshal(data, &generic)
	if _, ok := generic["error"]; ok {
		t.Error("expected error to be omitted when empty")
	}
}

func TestSubjectConstants(t *testing.T) {
	for subject, want := range map[string]string{
		SubjectIngestRequested: "swarm.triage.ingest.requested",
		SubjectIngestCompleted: "swarm.triage.ingest.completed",
		SubjectHighPriority:    "swarm.triage.record.high_priority",
	} {
		if subject != want {
			t.Errorf("expected %q, got %q", want, subject)
		}
	}
}
