// Package directustest provides an in-memory Directus items endpoint that
// understands the subset of the filter language the sync client sends.
package directustest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
)

// Event is a stored upstream row. Nil fields are served as JSON null, as are
// an empty EventKey and a zero CreatedAt.
type Event struct {
	EventKey    string
	LeadID      string
	Status      string
	Revenue     any
	Cost        any
	Currency    string
	OfferID     *string
	CampaignID  *string
	AffiliateID *string
	SubID       *string
	TID         *string
	CreatedAt   time.Time
	Raw         json.RawMessage
}

// Handler serves GET /items/{collection}.
type Handler struct {
	Token string

	mu       sync.Mutex
	events   []Event
	requests int
	failures []int
}

// NewHandler returns an empty handler accepting token.
func NewHandler(token string) *Handler {
	return &Handler{Token: token}
}

// NewServer starts an httptest server around h. The caller closes it.
func NewServer(h *Handler) *httptest.Server {
	return httptest.NewServer(h)
}

// Add appends events to the collection.
func (h *Handler) Add(events ...Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, events...)
}

// FailNext makes the next requests answer with the given status codes.
func (h *Handler) FailNext(statuses ...int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, statuses...)
}

// Requests returns the number of item requests served.
func (h *Handler) Requests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requests
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/items/") {
		writeJSON(w, http.StatusNotFound, map[string]any{"errors": []any{map[string]string{"message": "route not found"}}})
		return
	}
	if h.Token != "" && r.Header.Get("Authorization") != "Bearer "+h.Token {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []any{map[string]string{"message": "invalid token"}}})
		return
	}

	h.mu.Lock()
	h.requests++
	if len(h.failures) > 0 {
		status := h.failures[0]
		h.failures = h.failures[1:]
		h.mu.Unlock()
		writeJSON(w, status, map[string]any{"errors": []any{map[string]string{"message": "injected failure"}}})
		return
	}
	events := slices.Clone(h.events)
	h.mu.Unlock()

	q := r.URL.Query()

	var filter map[string]any
	if raw := q.Get("filter"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filter); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{map[string]string{"message": "invalid filter"}}})
			return
		}
	}

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{map[string]string{"message": "invalid limit"}}})
			return
		}
		limit = n
	}

	var matched []Event
	for _, e := range events {
		ok, err := match(filter, e)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []any{map[string]string{"message": err.Error()}}})
			return
		}
		if ok {
			matched = append(matched, e)
		}
	}

	if _, ok := q["aggregate[count]"]; ok {
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"count": strconv.Itoa(len(matched))},
		}})
		return
	}

	slices.SortStableFunc(matched, compareSeek)
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	data := make([]map[string]any, 0, len(matched))
	for _, e := range matched {
		data = append(data, e.row())
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

// compareSeek orders like Postgres does for created_at, event_key: nulls last.
func compareSeek(a, b Event) int {
	if c := nullsLast(a.CreatedAt.IsZero(), b.CreatedAt.IsZero()); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	if c := nullsLast(a.EventKey == "", b.EventKey == ""); c != 0 {
		return c
	}
	return strings.Compare(a.EventKey, b.EventKey)
}

func nullsLast(aNull, bNull bool) int {
	switch {
	case aNull == bNull:
		return 0
	case aNull:
		return 1
	default:
		return -1
	}
}

func (e Event) row() map[string]any {
	row := map[string]any{
		"event_key":    e.EventKey,
		"lead_id":      e.LeadID,
		"status":       e.Status,
		"revenue":      e.Revenue,
		"cost":         e.Cost,
		"currency":     e.Currency,
		"offer_id":     e.OfferID,
		"campaign_id":  e.CampaignID,
		"affiliate_id": e.AffiliateID,
		"sub_id":       e.SubID,
		"t_id":         e.TID,
		"created_at":   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"raw":          e.Raw,
	}
	if e.EventKey == "" {
		row["event_key"] = nil
	}
	if e.CreatedAt.IsZero() {
		row["created_at"] = nil
	}
	if e.Raw == nil {
		row["raw"] = nil
	}
	return row
}

func (e Event) field(name string) (string, bool, error) {
	deref := func(p *string) (string, bool) {
		if p == nil {
			return "", false
		}
		return *p, true
	}
	switch name {
	case "event_key":
		return e.EventKey, e.EventKey != "", nil
	case "lead_id":
		return e.LeadID, true, nil
	case "status":
		return e.Status, true, nil
	case "offer_id":
		v, ok := deref(e.OfferID)
		return v, ok, nil
	case "campaign_id":
		v, ok := deref(e.CampaignID)
		return v, ok, nil
	case "affiliate_id":
		v, ok := deref(e.AffiliateID)
		return v, ok, nil
	case "sub_id":
		v, ok := deref(e.SubID)
		return v, ok, nil
	case "t_id":
		v, ok := deref(e.TID)
		return v, ok, nil
	default:
		return "", false, fmt.Errorf("unsupported filter field %q", name)
	}
}

func match(filter map[string]any, e Event) (bool, error) {
	for key, rule := range filter {
		var ok bool
		var err error
		switch key {
		case "_and", "_or":
			ok, err = matchGroup(key, rule, e)
		default:
			ok, err = matchField(key, rule, e)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchGroup(op string, rule any, e Event) (bool, error) {
	parts, isList := rule.([]any)
	if !isList {
		return false, fmt.Errorf("%s expects a list", op)
	}
	for _, p := range parts {
		sub, isMap := p.(map[string]any)
		if !isMap {
			return false, fmt.Errorf("%s expects objects", op)
		}
		ok, err := match(sub, e)
		if err != nil {
			return false, err
		}
		if op == "_or" && ok {
			return true, nil
		}
		if op == "_and" && !ok {
			return false, nil
		}
	}
	return op == "_and", nil
}

func matchField(name string, rule any, e Event) (bool, error) {
	ops, isMap := rule.(map[string]any)
	if !isMap {
		return false, fmt.Errorf("field %q expects an operator object", name)
	}
	for op, operand := range ops {
		ok, err := compare(name, op, operand, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func compare(name, op string, operand any, e Event) (bool, error) {
	switch op {
	case "_null", "_nnull", "_empty", "_nempty":
		want, _ := operand.(bool)
		value, present := e.CreatedAt.Format(time.RFC3339Nano), !e.CreatedAt.IsZero()
		if name != "created_at" {
			var err error
			if value, present, err = e.field(name); err != nil {
				return false, err
			}
		}
		var hit bool
		switch op {
		case "_null":
			hit = !present
		case "_nnull":
			hit = present
		case "_empty":
			hit = !present || value == ""
		case "_nempty":
			hit = present && value != ""
		}
		return hit == want, nil
	}

	var cmp int
	if name == "created_at" {
		if e.CreatedAt.IsZero() {
			return false, nil
		}
		s, _ := operand.(string)
		ts, err := domain.ParseTimestamp(s)
		if err != nil {
			return false, err
		}
		cmp = e.CreatedAt.Compare(ts)
	} else {
		value, present, err := e.field(name)
		if err != nil {
			return false, err
		}
		if !present {
			// SQL semantics: comparisons against NULL are never true
			return false, nil
		}
		cmp = strings.Compare(value, fmt.Sprint(operand))
	}

	switch op {
	case "_eq":
		return cmp == 0, nil
	case "_neq":
		return cmp != 0, nil
	case "_gt":
		return cmp > 0, nil
	case "_gte":
		return cmp >= 0, nil
	case "_lt":
		return cmp < 0, nil
	case "_lte":
		return cmp <= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
