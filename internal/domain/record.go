package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// StagingRecord is the normalized projection of a RawEvent written to the
// staging table, keyed by EventKey.
type StagingRecord struct {
	EventKey    string
	LeadID      NullString
	Status      NullString
	Revenue     decimal.NullDecimal
	Cost        decimal.NullDecimal
	Currency    NullString
	OfferID     NullString
	CampaignID  NullString
	AffiliateID NullString
	SubID       NullString
	TID         NullString
	CreatedAt   time.Time
	Raw         json.RawMessage
}

// UniqueLead marks a unique lead (t_id) as counted for one day and dimension
// combination. The key columns are never null; missing dimensions are "".
type UniqueLead struct {
	Day         string
	AffiliateID string
	OfferID     string
	CampaignID  string
	TID         string
	Cost        decimal.NullDecimal
}

// Key identifies the bucket row.
func (u UniqueLead) Key() [5]string {
	return [5]string{u.Day, u.AffiliateID, u.OfferID, u.CampaignID, u.TID}
}
