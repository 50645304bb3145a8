package classifier

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

func TestClassify_NoKeywords(t *testing.T) {
	c := NewKeywordClassifier()
	got := c.Classify("Hello there", "Just saying hi")

	want := Result{
		Priority:     record.PriorityLow,
		Sentiment:    record.SentimentNeutral,
		Category:     record.CategoryGeneral,
		Confidence:   0.6,
		UrgencyScore: 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Classify mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Empty(t *testing.T) {
	got := NewKeywordClassifier().Classify("", "")
	if got.Priority != record.PriorityLow || got.Sentiment != record.SentimentNeutral {
		t.Errorf("unexpected result for empty input: %+v", got)
	}
	if got.Confidence != 0.6 {
		t.Errorf("expected base confidence, got %v", got.Confidence)
	}
}

func TestClassify_BlockedAccess(t *testing.T) {
	c := NewKeywordClassifier()
	got := c.Classify("Urgent request: system access blocked", "unable to log into my account since yesterday")

	if got.Priority != record.PriorityHigh {
		t.Errorf("expected high priority, got %s", got.Priority)
	}
	if got.Sentiment != record.SentimentNegative {
		t.Errorf("expected negative sentiment, got %s", got.Sentiment)
	}
	if got.Category != "Account" {
		t.Errorf("expected Account category, got %s", got.Category)
	}
	// urgent + blocked tokens plus the strong-urgency bonus saturate the score.
	if got.UrgencyScore != 1 {
		t.Errorf("expected urgency 1, got %v", got.UrgencyScore)
	}
}

func TestClassify_PositiveSubscription(t *testing.T) {
	c := NewKeywordClassifier()
	got := c.Classify("General query about subscription", "Thanks, I am very satisfied")

	if got.Sentiment != record.SentimentPositive {
		t.Errorf("expected positive sentiment, got %s", got.Sentiment)
	}
	if got.Priority != record.PriorityLow {
		t.Errorf("expected low priority, got %s", got.Priority)
	}
	// Billing, Sales and General each score one; the first in order wins.
	if got.Category != "Billing" {
		t.Errorf("expected Billing category on tie, got %s", got.Category)
	}
	// thank, thanks, satisfied, subscription, query over 9 tokens.
	want := 0.6 + 5.0/9.0*0.3
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %v, got %v", want, got.Confidence)
	}
}

func TestClassify_SubjectUrgentAlwaysHigh(t *testing.T) {
	c := NewKeywordClassifier()
	for _, body := range []string{"", "thanks so much", "everything is great"} {
		if got := c.Classify("URGENT", body); got.Priority != record.PriorityHigh {
			t.Errorf("body %q: expected high, got %s", body, got.Priority)
		}
	}
}

func TestClassify_PriorityRules(t *testing.T) {
	c := NewKeywordClassifier()
	tests := []struct {
		name          string
		subject, body string
		want          record.Priority
	}{
		{"body down", "Site", "the site is down", record.PriorityHigh},
		{"body not working", "Export", "export not working", record.PriorityHigh},
		{"subject critical", "Critical", "", record.PriorityHigh},
		{"subject help", "Need help", "with export", record.PriorityMedium},
		{"subject support", "Support request", "", record.PriorityMedium},
		{"body issue", "Question", "small issue with export", record.PriorityMedium},
		{"body problem", "Question", "a problem", record.PriorityMedium},
		{"plain", "Question", "where are the docs", record.PriorityLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.subject, tt.body).Priority; got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_SentimentTie(t *testing.T) {
	got := NewKeywordClassifier().Classify("thanks", "error")
	if got.Sentiment != record.SentimentNeutral {
		t.Errorf("expected neutral on tie, got %s", got.Sentiment)
	}
}

func TestClassify_LongTextBonus(t *testing.T) {
	got := NewKeywordClassifier().Classify("", strings.Repeat("alpha ", 21))
	if math.Abs(got.Confidence-0.7) > 1e-9 {
		t.Errorf("expected 0.7 for long keyword-free text, got %v", got.Confidence)
	}
}

func TestClassify_Bounds(t *testing.T) {
	c := NewKeywordClassifier()
	inputs := [][2]string{
		{"urgent critical emergency asap", "down down down broken blocked immediately right away"},
		{"thanks", "love"},
		{"a", "b"},
		{"api", "api"},
		{strings.Repeat("urgent ", 50), strings.Repeat("thanks great ", 50)},
	}
	for _, in := range inputs {
		got := c.Classify(in[0], in[1])
		if got.Confidence < 0 || got.Confidence > 1 {
			t.Errorf("confidence out of range for %q: %v", in, got.Confidence)
		}
		if got.UrgencyScore < 0 || got.UrgencyScore > 1 {
			t.Errorf("urgency out of range for %q: %v", in, got.UrgencyScore)
		}
		if !got.Priority.Valid() || !got.Sentiment.Valid() {
			t.Errorf("invalid enum for %q: %+v", in, got)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewKeywordClassifier()
	a := c.Classify("Billing question about my invoice", "the payment failed twice")
	b := c.Classify("Billing question about my invoice", "the payment failed twice")
	if diff := cmp.Diff(a, b, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("expected identical results:\n%s", diff)
	}
	if a.Category != "Billing" {
		t.Errorf("expected Billing, got %s", a.Category)
	}
}

func TestWithExtraUrgencyKeywords(t *testing.T) {
	plain := NewKeywordClassifier().Classify("outage", "")
	if plain.Priority != record.PriorityLow {
		t.Fatalf("expected low without extra keywords, got %s", plain.Priority)
	}

	c := NewKeywordClassifier(WithExtraUrgencyKeywords(" Outage ", "", "urgent"))
	got := c.Classify("outage", "")
	if got.Priority != record.PriorityMedium {
		t.Errorf("expected medium with extra keyword, got %s", got.Priority)
	}
	if math.Abs(got.UrgencyScore-1.0/3.0) > 1e-9 {
		t.Errorf("expected urgency 1/3, got %v", got.UrgencyScore)
	}
}

func TestKeywordClassifierImplementsClassifier(t *testing.T) {
	var _ Classifier = NewKeywordClassifier()
}
