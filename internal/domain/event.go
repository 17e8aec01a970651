package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawEvent is one lead event as stored in the upstream event log.
// Revenue and Cost keep whatever representation upstream delivered
// (string, json.Number or nil) and are normalized later.
type RawEvent struct {
	EventKey    string          `json:"event_key"`
	LeadID      NullString      `json:"lead_id"`
	Status      NullString      `json:"status"`
	Revenue     any             `json:"revenue"`
	Cost        any             `json:"cost"`
	Currency    NullString      `json:"currency"`
	OfferID     NullString      `json:"offer_id"`
	CampaignID  NullString      `json:"campaign_id"`
	AffiliateID NullString      `json:"affiliate_id"`
	SubID       NullString      `json:"sub_id"`
	TID         NullString      `json:"t_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Position returns the seek position of the event.
func (e RawEvent) Position() Cursor {
	return Cursor{CreatedAt: e.CreatedAt, EventKey: e.EventKey}
}

// UnmarshalJSON decodes numbers as json.Number so money fields keep their
// exact textual value, and accepts the timestamp layouts upstream emits.
func (e *RawEvent) UnmarshalJSON(data []byte) error {
	type alias RawEvent
	var aux struct {
		alias
		CreatedAt *string `json:"created_at"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return err
	}

	*e = RawEvent(aux.alias)
	e.CreatedAt = time.Time{}
	if aux.CreatedAt != nil && *aux.CreatedAt != "" {
		ts, err := ParseTimestamp(*aux.CreatedAt)
		if err != nil {
			return fmt.Errorf("event %q: %w", e.EventKey, err)
		}
		e.CreatedAt = ts
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp or a bare date. Values without
// a zone are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// NullString is a nullable text column that also accepts JSON numbers,
// since upstream sends some identifiers as numbers.
type NullString struct {
	String string
	Valid  bool
}

// NewNullString returns a valid NullString.
func NewNullString(s string) NullString {
	return NullString{String: s, Valid: true}
}

// OrEmpty returns the value, or "" when null.
func (n NullString) OrEmpty() string {
	if !n.Valid {
		return ""
	}
	return n.String
}

// Ptr returns nil for null so pgx writes SQL NULL.
func (n NullString) Ptr() *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = NullString{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = NullString{String: s, Valid: true}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*n = NullString{String: num.String(), Valid: true}
	return nil
}

func (n NullString) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.String)
}
