package upstream

import (
	"encoding/json"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
)

// Filter is a Directus filter rule.
type Filter map[string]any

// SortFields is the seek ordering. It must match the comparison in
// SeekFilter and domain.Cursor.Compare.
var SortFields = []string{"created_at", "event_key"}

// SeekFilter selects events positioned strictly after cursor:
//
//	created_at > T OR (created_at = T AND event_key > K)
//
// A timestamp-only cursor would skip or repeat events sharing a timestamp,
// so the event key is always part of the predicate. The zero cursor selects
// everything and yields nil.
func SeekFilter(cursor domain.Cursor) Filter {
	if cursor.IsZero() {
		return nil
	}
	ts := formatTimestamp(cursor.CreatedAt)
	return Filter{"_or": []Filter{
		{"created_at": Filter{"_gt": ts}},
		{"_and": []Filter{
			{"created_at": Filter{"_eq": ts}},
			{"event_key": Filter{"_gt": cursor.EventKey}},
		}},
	}}
}

// SeekableFilter keeps only events that have both seek fields. An event
// without an event key or timestamp has no position in the seek order: SQL
// comparisons against NULL never match, so it would either be skipped or
// stall the cursor.
func SeekableFilter() Filter {
	return Filter{"_and": []Filter{
		{"event_key": Filter{"_nempty": true}},
		{"created_at": Filter{"_nnull": true}},
	}}
}

// UnseekableFilter selects the events SeekableFilter drops.
func UnseekableFilter() Filter {
	return Filter{"_or": []Filter{
		{"event_key": Filter{"_empty": true}},
		{"created_at": Filter{"_null": true}},
	}}
}

// ExcludeFilter drops events whose field equals value. Events where the
// field is null are kept: Directus' _neq alone would drop them too.
func ExcludeFilter(field, value string) Filter {
	if value == "" {
		return nil
	}
	return Filter{"_or": []Filter{
		{field: Filter{"_neq": value}},
		{field: Filter{"_null": true}},
	}}
}

// And combines the non-nil filters.
func And(filters ...Filter) Filter {
	var parts []Filter
	for _, f := range filters {
		if f != nil {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return Filter{"_and": parts}
	}
}

// Encode renders the filter as the JSON expected by the filter query param.
func (f Filter) Encode() (string, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}
