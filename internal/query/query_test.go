package query

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

type staticSource []record.Record

func (s staticSource) All() []record.Record {
	out := make([]record.Record, len(s))
	copy(out, s)
	return out
}

var day = time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC)

func mk(id string, p record.Priority, s record.Sentiment, cat string, hours int) record.Record {
	return record.Record{
		ID:        id,
		Sender:    record.Sender{Name: "Alice Smith", Email: "alice.smith@example.com"},
		Subject:   "subject " + id,
		Body:      "body " + id,
		Timestamp: day.Add(time.Duration(hours) * time.Hour),
		Priority:  p,
		Sentiment: s,
		Category:  cat,
	}
}

func ids(recs []record.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func fixture() staticSource {
	return staticSource{
		mk("h1", record.PriorityHigh, record.SentimentNegative, "Support", 0),
		mk("m1", record.PriorityMedium, record.SentimentNeutral, "Billing", 1),
		mk("h2", record.PriorityHigh, record.SentimentNegative, "Account", 2),
		mk("l1", record.PriorityLow, record.SentimentPositive, "General", 30),
		mk("m2", record.PriorityMedium, record.SentimentNeutral, "Billing", 50),
		mk("h3", record.PriorityHigh, record.SentimentPositive, "Support", 51),
	}
}

func TestSearch_Priority(t *testing.T) {
	e := New(fixture())
	got := e.Search(Filters{Priority: record.PriorityHigh})
	if diff := cmp.Diff([]string{"h1", "h2", "h3"}, ids(got)); diff != "" {
		t.Errorf("search (-want +got):\n%s", diff)
	}
}

func TestSearch_NoFilters(t *testing.T) {
	e := New(fixture())
	if got := e.Search(Filters{}); len(got) != 6 {
		t.Errorf("expected all 6 records, got %d", len(got))
	}
}

func TestSearch_EmptySource(t *testing.T) {
	got := New(staticSource{}).Search(Filters{Query: "x"})
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestSearch_Query(t *testing.T) {
	src := fixture()
	src[1].Subject = "Refund REQUEST"
	src[3].Body = "please process my refund"
	src[4].Sender = record.Sender{Name: "Refund Desk", Email: "desk@example.com"}
	src[5].Sender = record.Sender{Name: "Bob", Email: "refunds@example.com"}

	got := New(src).Search(Filters{Query: "refund"})
	if diff := cmp.Diff([]string{"m1", "l1", "m2", "h3"}, ids(got)); diff != "" {
		t.Errorf("query (-want +got):\n%s", diff)
	}
}

func TestSearch_Sender(t *testing.T) {
	src := fixture()
	src[0].Sender = record.Sender{Name: "Eve", Email: "eve@startup.io"}
	src[2].Sender = record.Sender{Name: "Eve Adams", Email: "adams@corp.com"}
	src[3].Subject = "eve"

	got := New(src).Search(Filters{Sender: "EVE"})
	if diff := cmp.Diff([]string{"h1", "h2"}, ids(got)); diff != "" {
		t.Errorf("sender (-want +got):\n%s", diff)
	}
}

func TestSearch_Combined(t *testing.T) {
	e := New(fixture())
	tests := []struct {
		name string
		f    Filters
		want []string
	}{
		{"sentiment", Filters{Sentiment: record.SentimentNeutral}, []string{"m1", "m2"}},
		{"category", Filters{Category: "Support"}, []string{"h1", "h3"}},
		{"category is exact", Filters{Category: "support"}, []string{}},
		{"priority and category", Filters{Priority: record.PriorityHigh, Category: "Support"}, []string{"h1", "h3"}},
		{"priority and sentiment", Filters{Priority: record.PriorityHigh, Sentiment: record.SentimentPositive}, []string{"h3"}},
		{"start inclusive", Filters{Start: day.Add(50 * time.Hour)}, []string{"m2", "h3"}},
		{"end inclusive", Filters{End: day.Add(1 * time.Hour)}, []string{"h1", "m1"}},
		{"range", Filters{Start: day.Add(time.Hour), End: day.Add(30 * time.Hour)}, []string{"m1", "h2", "l1"}},
		{"inverted range", Filters{Start: day.Add(30 * time.Hour), End: day}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ids(e.Search(tt.f))); diff != "" {
				t.Errorf("search (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFiltersValidate(t *testing.T) {
	if err := (Filters{}).Validate(); err != nil {
		t.Errorf("expected empty filters to be valid: %v", err)
	}
	if err := (Filters{Priority: "urgent"}).Validate(); err == nil {
		t.Error("expected error for unknown priority")
	}
	if err := (Filters{Sentiment: "mixed"}).Validate(); err == nil {
		t.Error("expected error for unknown sentiment")
	}
}

func TestStats(t *testing.T) {
	got := New(fixture()).Stats()
	want := Stats{
		TotalEmails:           6,
		PendingReview:         5,
		HighPriority:          3,
		ResolvedTodayEstimate: 3,
		SentimentDistribution: map[string]int{"positive": 2, "negative": 2, "neutral": 2},
		CategoryDistribution:  map[string]int{"Support": 2, "Billing": 2, "Account": 1, "General": 1},
		PriorityDistribution:  map[string]int{"high": 3, "medium": 2, "low": 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestStats_Empty(t *testing.T) {
	got := New(staticSource{}).Stats()
	want := Stats{
		SentimentDistribution: map[string]int{"positive": 0, "negative": 0, "neutral": 0},
		CategoryDistribution:  map[string]int{},
		PriorityDistribution:  map[string]int{"high": 0, "medium": 0, "low": 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestVolume(t *testing.T) {
	got := New(fixture()).Volume()
	want := []DayCount{
		{Date: "2025-08-19", Count: 3},
		{Date: "2025-08-20", Count: 1},
		{Date: "2025-08-21", Count: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("volume (-want +got):\n%s", diff)
	}
}

func TestVolume_UsesUTCDays(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	src := staticSource{
		{ID: "a", Timestamp: time.Date(2025, 8, 19, 21, 0, 0, 0, est)},
	}
	got := New(src).Volume()
	if diff := cmp.Diff([]DayCount{{Date: "2025-08-20", Count: 1}}, got); diff != "" {
		t.Errorf("volume (-want +got):\n%s", diff)
	}
}
