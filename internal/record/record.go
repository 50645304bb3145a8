package record

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the urgency tier assigned to a record.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of low, medium or high.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Rank orders priorities for sorting: high > medium > low > anything else.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Sentiment is the coarse polarity of a record's text.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// IssueType selects the reply template family for a record.
type IssueType string

const (
	IssueAuthentication       IssueType = "Authentication"
	IssueBilling              IssueType = "Billing"
	IssueTechnicalIntegration IssueType = "Technical Integration"
	IssueAccountVerification  IssueType = "Account Verification"
	IssueGeneralSupport       IssueType = "General Support"
)

// IssueTypes lists every issue type in rule order.
var IssueTypes = []IssueType{
	IssueAuthentication,
	IssueBilling,
	IssueTechnicalIntegration,
	IssueAccountVerification,
	IssueGeneralSupport,
}

// CategoryGeneral is the fallback category label.
const CategoryGeneral = "General"

// Raw is one message as delivered by an ingest adapter, fields in source order.
type Raw struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SentAt  string `json:"sent_date"`
}

// Sender identifies who wrote a record.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ExtractedInfo holds the entities pulled out of a record's text.
// List fields are omitted from JSON when nothing matched; IssueType is always set.
type ExtractedInfo struct {
	EmailAddresses []string  `json:"emailAddresses,omitempty"`
	AccountIDs     []string  `json:"accountIds,omitempty"`
	TransactionIDs []string  `json:"transactionIds,omitempty"`
	PhoneNumbers   []string  `json:"phoneNumbers,omitempty"`
	IssueType      IssueType `json:"issueType"`
}

// Record is a processed customer message.
type Record struct {
	ID            string        `json:"id"`
	Sender        Sender        `json:"sender"`
	Subject       string        `json:"subject"`
	Body          string        `json:"body"`
	Timestamp     time.Time     `json:"timestamp"`
	Priority      Priority      `json:"priority"`
	Sentiment     Sentiment     `json:"sentiment"`
	Category      string        `json:"category"`
	Confidence    float64       `json:"confidence"`
	UrgencyScore  float64       `json:"urgencyScore"`
	ExtractedInfo ExtractedInfo `json:"extractedInfo"`
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	r.ExtractedInfo.EmailAddresses = cloneStrings(r.ExtractedInfo.EmailAddresses)
	r.ExtractedInfo.AccountIDs = cloneStrings(r.ExtractedInfo.AccountIDs)
	r.ExtractedInfo.TransactionIDs = cloneStrings(r.ExtractedInfo.TransactionIDs)
	r.ExtractedInfo.PhoneNumbers = cloneStrings(r.ExtractedInfo.PhoneNumbers)
	return r
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// idNamespace scopes record ids so they never collide with other v5 UUIDs.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("triage://record"))

// DeriveID returns the stable id for a message. The same sender, subject and
// sent-at string always produce the same id regardless of batch position.
func DeriveID(sender, subject, sentAt string) string {
	name := sender + "\x1f" + subject + "\x1f" + sentAt
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}
