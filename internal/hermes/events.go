package hermes

import "time"

const (
	// SubjectIngestRequested asks the service to run an ingest cycle.
	SubjectIngestRequested = "swarm.triage.ingest.requested"
	// SubjectIngestCompleted reports the outcome of an ingest cycle.
	SubjectIngestCompleted = "swarm.triage.ingest.completed"
	// SubjectHighPriority carries one high-priority record after an ingest.
	SubjectHighPriority = "swarm.triage.record.high_priority"
)

// IngestRequested is the payload of SubjectIngestRequested. An empty CSV
// re-reads the configured source.
type IngestRequested struct {
	RequestID string `json:"request_id,omitempty"`
	CSV       string `json:"csv,omitempty"`
}

// IngestCompleted is published after every ingest cycle, failed or not.
type IngestCompleted struct {
	BatchID    string    `json:"batch_id"`
	Source     string    `json:"source"`
	Received   int       `json:"received"`
	Stored     int       `json:"stored"`
	High       int       `json:"high"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// HighPriorityRecord is published once per high-priority record.
type HighPriorityRecord struct {
	BatchID      string  `json:"batch_id"`
	RecordID     string  `json:"record_id"`
	Sender       string  `json:"sender"`
	Subject      string  `json:"subject"`
	Category     string  `json:"category"`
	IssueType    string  `json:"issue_type"`
	UrgencyScore float64 `json:"urgency_score"`
	CaseID       string  `json:"case_id"`
}

func (e IngestCompleted) PartitionKey() string    { return e.BatchID }
func (e HighPriorityRecord) PartitionKey() string { return e.RecordID }
