package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/MikeSquared-Agency/triage/internal/record"
)

type SortField string

const (
	SortByTimestamp SortField = "timestamp"
	SortByPriority  SortField = "priority"
	SortBySender    SortField = "sender"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ParseSortField accepts timestamp, priority or sender. Empty means timestamp.
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(s)); f {
	case "":
		return SortByTimestamp, nil
	case SortByTimestamp, SortByPriority, SortBySender:
		return f, nil
	default:
		return "", fmt.Errorf("invalid sort field %q", s)
	}
}

// ParseSortOrder accepts asc or desc. Empty means desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(s)); o {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return o, nil
	default:
		return "", fmt.Errorf("invalid sort order %q", s)
	}
}

// Sort orders recs in place. The sort is stable in both directions: records
// that compare equal keep their incoming order.
func Sort(recs []record.Record, field SortField, order SortOrder) {
	compare := comparator(field)
	if order == Descending {
		slices.SortStableFunc(recs, func(a, b record.Record) int { return compare(b, a) })
		return
	}
	slices.SortStableFunc(recs, compare)
}

func comparator(field SortField) func(a, b record.Record) int {
	switch field {
	case SortByPriority:
		return func(a, b record.Record) int {
			return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
		}
	case SortBySender:
		return func(a, b record.Record) int {
			return strings.Compare(strings.ToLower(a.Sender.Name), strings.ToLower(b.Sender.Name))
		}
	default:
		return func(a, b record.Record) int {
			return a.Timestamp.Compare(b.Timestamp)
		}
	}
}
