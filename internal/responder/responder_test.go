package responder

import (
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

var caseIDShape = regexp.MustCompile(`^CASE-[0-9A-Z]{9}$`)

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func newGenerator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	g, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func rec(issue record.IssueType, p record.Priority, name string) record.Record {
	return record.Record{
		ID:            "rec-1",
		Sender:        record.Sender{Name: name, Email: "someone@example.com"},
		Priority:      p,
		ExtractedInfo: record.ExtractedInfo{IssueType: issue},
	}
}

func TestDefaultTable_Valid(t *testing.T) {
	tbl, err := DefaultTable()
	if err != nil {
		t.Fatalf("DefaultTable: %v", err)
	}
	for _, issue := range record.IssueTypes {
		for _, p := range priorities {
			if strings.TrimSpace(tbl.Templates[issue][p]) == "" {
				t.Errorf("missing %s/%s template", issue, p)
			}
		}
	}
	if len(tbl.Agents) != 5 {
		t.Errorf("expected 5 agents, got %d", len(tbl.Agents))
	}
}

func TestGenerate_FillsPlaceholders(t *testing.T) {
	g := newGenerator(t, WithRand(seeded()))
	d := g.Generate(rec(record.IssueAuthentication, record.PriorityHigh, "Alice Smith"))

	if !strings.HasPrefix(d.Body, "Dear Alice Smith,") {
		t.Errorf("expected greeting with customer name, got %q", firstLine(d.Body))
	}
	if !caseIDShape.MatchString(d.CaseID) {
		t.Errorf("unexpected case id %q", d.CaseID)
	}
	if !strings.Contains(d.Body, "case #"+d.CaseID) {
		t.Error("expected case id in body")
	}
	if !strings.Contains(d.Body, d.Agent+"\nSenior Support Specialist") {
		t.Errorf("expected agent signature, agent %q", d.Agent)
	}
	if strings.Contains(d.Body, "{") {
		t.Errorf("unfilled placeholder in body:\n%s", d.Body)
	}
	if d.IssueType != record.IssueAuthentication || d.Priority != record.PriorityHigh || d.RecordID != "rec-1" {
		t.Errorf("unexpected draft metadata: %+v", d)
	}
}

func TestGenerate_BillingDefaults(t *testing.T) {
	g := newGenerator(t, WithRand(seeded()))

	high := g.Generate(rec(record.IssueBilling, record.PriorityHigh, "Bob"))
	if !strings.Contains(high.Body, "The refund of $99.99") || !strings.Contains(high.Body, "$20.00 credit") {
		t.Errorf("expected default amounts in billing reply:\n%s", high.Body)
	}

	medium := g.Generate(rec(record.IssueBilling, record.PriorityMedium, "Bob"))
	if !strings.Contains(medium.Body, "- Recent subscription renewal charge") {
		t.Errorf("expected default billing details:\n%s", medium.Body)
	}
}

func TestGenerate_FallbackCustomer(t *testing.T) {
	g := newGenerator(t, WithRand(seeded()))
	d := g.Generate(rec(record.IssueGeneralSupport, record.PriorityLow, "  "))
	if !strings.HasPrefix(d.Body, "Hello Valued Customer,") {
		t.Errorf("expected fallback name, got %q", firstLine(d.Body))
	}
}

func TestGenerate_Fallbacks(t *testing.T) {
	g := newGenerator(t, WithRand(seeded()), WithAgents([]string{"Pat Lee"}))
	tbl, _ := DefaultTable()

	tests := []struct {
		name      string
		issue     record.IssueType
		priority  record.Priority
		wantIssue record.IssueType
		wantTmpl  string
	}{
		{"unknown issue", "Shipping", record.PriorityMedium, record.IssueGeneralSupport, tbl.Templates[record.IssueGeneralSupport][record.PriorityMedium]},
		{"missing issue", "", record.PriorityHigh, record.IssueGeneralSupport, tbl.Templates[record.IssueGeneralSupport][record.PriorityHigh]},
		{"unknown priority", record.IssueBilling, "urgent", record.IssueBilling, tbl.Templates[record.IssueBilling][record.PriorityLow]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Generate(rec(tt.issue, tt.priority, "Ann"))
			if d.IssueType != tt.wantIssue {
				t.Errorf("expected issue %s, got %s", tt.wantIssue, d.IssueType)
			}
			want := strings.NewReplacer("{customerName}", "Ann", "{agentName}", "Pat Lee").Replace(tt.wantTmpl)
			if d.Body != want {
				t.Errorf("unexpected body:\n%s", d.Body)
			}
		})
	}
}

func TestGenerate_SeededIsReproducible(t *testing.T) {
	a := newGenerator(t, WithRand(seeded()))
	b := newGenerator(t, WithRand(seeded()))
	r := rec(record.IssueTechnicalIntegration, record.PriorityMedium, "Eve")

	for i := 0; i < 5; i++ {
		da, db := a.Generate(r), b.Generate(r)
		if diff := cmp.Diff(da, db); diff != "" {
			t.Fatalf("drafts differ on call %d:\n%s", i, diff)
		}
	}
}

func TestGenerate_AgentFromPool(t *testing.T) {
	pool := []string{"One", "Two", "Three"}
	g := newGenerator(t, WithAgents(append(pool, " ", "")))
	for i := 0; i < 30; i++ {
		d := g.Generate(rec(record.IssueBilling, record.PriorityLow, "X"))
		if !slices.Contains(pool, d.Agent) {
			t.Fatalf("agent %q not in pool", d.Agent)
		}
		if !caseIDShape.MatchString(d.CaseID) {
			t.Fatalf("unexpected case id %q", d.CaseID)
		}
	}
}

func TestGenerate_Concurrent(t *testing.T) {
	g := newGenerator(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				g.Generate(rec(record.IssueBilling, record.PriorityHigh, "X"))
			}
		}()
	}
	wg.Wait()
}

func TestQuickReplies(t *testing.T) {
	g := newGenerator(t)
	tests := []struct {
		name     string
		issue    record.IssueType
		priority record.Priority
		want     []string
	}{
		{
			"high authentication", record.IssueAuthentication, record.PriorityHigh,
			[]string{
				"I understand this is urgent. Let me escalate this immediately.",
				"I'm treating this as a high priority and will resolve it within the hour.",
				"I can help you with your login issues right away.",
			},
		},
		{
			"medium billing", record.IssueBilling, record.PriorityMedium,
			[]string{
				"Thank you for reaching out. I'll look into this for you.",
				"I've received your request and will respond within 24 hours.",
				"I'll review your billing details and clarify any charges.",
			},
		},
		{
			"low technical", record.IssueTechnicalIntegration, record.PriorityLow,
			[]string{
				"I'll connect you with our technical team immediately.",
				"Let me check our API status and integration documentation.",
				"Thank you for contacting us. How can I assist you today?",
			},
		},
		{
			"low general", record.IssueGeneralSupport, record.PriorityLow,
			[]string{
				"Thank you for contacting us. How can I assist you today?",
				"I'm here to help resolve this issue for you.",
			},
		},
		{
			"low verification", record.IssueAccountVerification, record.PriorityLow,
			[]string{
				"Thank you for contacting us. How can I assist you today?",
				"I'm here to help resolve this issue for you.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.QuickReplies(rec(tt.issue, tt.priority, "X"))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("quick replies (-want +got):\n%s", diff)
			}
		})
	}
}

func TestQuickReplies_BoundedAndNonEmpty(t *testing.T) {
	g := newGenerator(t)
	for _, issue := range append(record.IssueTypes, "", "Other") {
		for _, p := range priorities {
			got := g.QuickReplies(rec(issue, p, "X"))
			if len(got) == 0 || len(got) > 3 {
				t.Errorf("%s/%s: expected 1..3 replies, got %d", issue, p, len(got))
			}
		}
	}
}

func TestQuickReplies_DoesNotAliasTable(t *testing.T) {
	g := newGenerator(t)
	r := rec(record.IssueGeneralSupport, record.PriorityLow, "X")
	got := g.QuickReplies(r)
	got[0] = "changed"
	if again := g.QuickReplies(r); again[0] == "changed" {
		t.Error("quick replies share storage with the table")
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
