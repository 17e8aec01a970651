package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/Priya8975/leadsync/internal/money"
)

// DefaultTimezone is the reference zone for daily unique buckets.
const DefaultTimezone = "Europe/Amsterdam"

// Projection is the normalized form of one page.
type Projection struct {
	Staging []domain.StagingRecord
	Uniques []domain.UniqueLead
	// MoneyUnparsed counts revenue or cost values that were present but
	// could not be parsed and were stored as null.
	MoneyUnparsed int
}

// Project normalizes a page of raw events. now stands in for the staging
// timestamp of records that carry none. Such records get no unique bucket:
// their day would change with every replay.
func Project(events []domain.RawEvent, loc *time.Location, now time.Time) Projection {
	var p Projection
	p.Staging = make([]domain.StagingRecord, 0, len(events))
	dated := make([]domain.StagingRecord, 0, len(events))
	for _, e := range events {
		rec, unparsed := ProjectStaging(e, now)
		p.Staging = append(p.Staging, rec)
		p.MoneyUnparsed += unparsed
		if !e.CreatedAt.IsZero() {
			dated = append(dated, rec)
		}
	}
	p.Uniques = ProjectUniques(dated, loc)
	return p
}

// ProjectStaging converts one raw event. It returns the record and the number
// of money fields that failed to parse.
func ProjectStaging(e domain.RawEvent, now time.Time) (domain.StagingRecord, int) {
	rec := domain.StagingRecord{
		EventKey:    e.EventKey,
		LeadID:      e.LeadID,
		Status:      e.Status,
		Revenue:     money.Parse(e.Revenue),
		Cost:        money.Parse(e.Cost),
		Currency:    e.Currency,
		OfferID:     e.OfferID,
		CampaignID:  e.CampaignID,
		AffiliateID: e.AffiliateID,
		SubID:       e.SubID,
		TID:         e.TID,
		CreatedAt:   e.CreatedAt,
		Raw:         e.Raw,
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	if rec.EventKey == "" {
		rec.EventKey = ContentKey(e)
	}

	unparsed := 0
	if present(e.Revenue) && !rec.Revenue.Valid {
		unparsed++
	}
	if present(e.Cost) && !rec.Cost.Valid {
		unparsed++
	}
	return rec, unparsed
}

// ContentKey derives a stable key from the core fields of an event.
func ContentKey(e domain.RawEvent) string {
	created := ""
	if !e.CreatedAt.IsZero() {
		created = e.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	parts := []string{
		e.LeadID.OrEmpty(),
		e.Status.OrEmpty(),
		created,
		moneyText(e.Revenue),
		moneyText(e.Cost),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ProjectUniques builds the unique lead buckets for staged records. Records
// without a t_id are skipped; the first record of each bucket wins.
func ProjectUniques(records []domain.StagingRecord, loc *time.Location) []domain.UniqueLead {
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[[5]string]struct{}, len(records))
	out := make([]domain.UniqueLead, 0, len(records))
	for _, r := range records {
		tid := strings.TrimSpace(r.TID.OrEmpty())
		if tid == "" {
			continue
		}

		u := domain.UniqueLead{
			Day:         r.CreatedAt.In(loc).Format(time.DateOnly),
			AffiliateID: r.AffiliateID.OrEmpty(),
			OfferID:     r.OfferID.OrEmpty(),
			CampaignID:  r.CampaignID.OrEmpty(),
			TID:         tid,
			Cost:        r.Cost,
		}
		k := u.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, u)
	}
	return out
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func moneyText(v any) string {
	d := money.Parse(v)
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(money.Places)
}
