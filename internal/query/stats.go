package query

import (
	"slices"
	"time"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

// Stats summarises the record set.
type Stats struct {
	TotalEmails   int `json:"totalEmails"`
	PendingReview int `json:"pendingReview"`
	HighPriority  int `json:"highPriority"`
	// ResolvedTodayEstimate is an illustrative figure (60% of the total),
	// not a tracked resolution count.
	ResolvedTodayEstimate int            `json:"resolvedTodayEstimate"`
	SentimentDistribution map[string]int `json:"sentimentDistribution"`
	CategoryDistribution  map[string]int `json:"categoryDistribution"`
	PriorityDistribution  map[string]int `json:"priorityDistribution"`
}

func (e *Engine) Stats() Stats {
	return computeStats(e.source.All())
}

func computeStats(recs []record.Record) Stats {
	s := Stats{
		TotalEmails: len(recs),
		SentimentDistribution: map[string]int{
			string(record.SentimentPositive): 0,
			string(record.SentimentNegative): 0,
			string(record.SentimentNeutral):  0,
		},
		CategoryDistribution: map[string]int{},
		PriorityDistribution: map[string]int{
			string(record.PriorityHigh):   0,
			string(record.PriorityMedium): 0,
			string(record.PriorityLow):    0,
		},
	}
	for _, r := range recs {
		if r.Priority != record.PriorityLow {
			s.PendingReview++
		}
		if r.Priority == record.PriorityHigh {
			s.HighPriority++
		}
		s.SentimentDistribution[string(r.Sentiment)]++
		s.PriorityDistribution[string(r.Priority)]++
		s.CategoryDistribution[r.Category]++
	}
	s.ResolvedTodayEstimate = len(recs) * 6 / 10
	return s
}

// DayCount is the number of records on one UTC calendar day.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Volume counts records per UTC day, oldest day first. Days without
// records are not listed.
func (e *Engine) Volume() []DayCount {
	counts := map[string]int{}
	for _, r := range e.source.All() {
		counts[r.Timestamp.UTC().Format(time.DateOnly)]++
	}
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	slices.Sort(days)

	out := make([]DayCount, len(days))
	for i, d := range days {
		out[i] = DayCount{Date: d, Count: counts[d]}
	}
	return out
}
