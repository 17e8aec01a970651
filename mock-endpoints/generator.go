package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Priya8975/leadsync/internal/upstream/directustest"
	"github.com/brianvoe/gofakeit/v6"
)

// moneyFormats are the shapes cost and revenue arrive in upstream.
var moneyFormats = []func(f *gofakeit.Faker, v float64) any{
	func(f *gofakeit.Faker, v float64) any { return v },
	func(f *gofakeit.Faker, v float64) any { return fmt.Sprintf("%.2f", v) },
	func(f *gofakeit.Faker, v float64) any { return fmt.Sprintf("€ %.2f", v) },
	func(f *gofakeit.Faker, v float64) any {
		s := fmt.Sprintf("%.2f", v)
		return s[:len(s)-3] + "," + s[len(s)-2:]
	},
	func(f *gofakeit.Faker, v float64) any { return nil },
	func(f *gofakeit.Faker, v float64) any { return "n/a" },
}

var campaigns = []string{"101", "102", "207", "925"}

// generator produces events with strictly increasing timestamps. Some events
// share a timestamp so seek pagination has ties to break.
type generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	next  time.Time
	count int
}

func newGenerator(f *gofakeit.Faker, start time.Time) *generator {
	return &generator{faker: f, next: start}
}

// Events returns n new events.
func (g *generator) Events(n int) []directustest.Event {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]directustest.Event, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.event())
	}
	return out
}

// Count returns the number of events generated so far.
func (g *generator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

func (g *generator) event() directustest.Event {
	f := g.faker
	g.count++

	// one in five events repeats the previous timestamp
	if g.count == 1 || f.Number(1, 5) != 1 {
		g.next = g.next.Add(time.Duration(f.Number(1, 90)) * time.Second)
	}

	leadID := f.UUID()
	campaign := campaigns[f.Number(0, len(campaigns)-1)]
	offer := fmt.Sprintf("%d", f.Number(1, 40))
	affiliate := fmt.Sprintf("%d", f.Number(1, 12))
	sub := f.Word()

	e := directustest.Event{
		EventKey:    fmt.Sprintf("%s-%d", leadID[:8], g.count),
		LeadID:      leadID,
		Status:      f.RandomString([]string{"1", "2", "3", "4"}),
		Revenue:     moneyFormats[f.Number(0, len(moneyFormats)-1)](f, f.Price(0.5, 2500)),
		Cost:        moneyFormats[f.Number(0, len(moneyFormats)-1)](f, f.Price(0.05, 20)),
		Currency:    "EUR",
		OfferID:     &offer,
		AffiliateID: &affiliate,
		SubID:       &sub,
		CreatedAt:   g.next,
	}

	if f.Number(1, 10) > 1 {
		e.CampaignID = &campaign
	}
	if f.Number(1, 10) > 2 {
		tid := f.LetterN(12)
		e.TID = &tid
	}

	raw, _ := json.Marshal(map[string]any{
		"email":   f.Email(),
		"country": f.CountryAbr(),
		"ip":      f.IPv4Address(),
	})
	e.Raw = raw

	return e
}
