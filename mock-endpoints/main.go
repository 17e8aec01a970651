// Command mock-endpoints serves a fake Directus lead events collection for
// local runs of leadsync.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Priya8975/leadsync/internal/upstream/directustest"
	"github.com/brianvoe/gofakeit/v6"
)

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	events := flag.Int("events", 2500, "number of events to seed")
	token := flag.String("token", "dev-token", "static bearer token")
	seed := flag.Int64("seed", 42, "faker seed")
	trickle := flag.Duration("trickle", 0, "append a new event on this interval (0 disables)")
	flag.Parse()

	faker := gofakeit.New(*seed)
	gen := newGenerator(faker, time.Now().Add(-72*time.Hour).UTC())

	h := directustest.NewHandler(*token)
	h.Add(gen.Events(*events)...)

	if *trickle > 0 {
		go func() {
			ticker := time.NewTicker(*trickle)
			defer ticker.Stop()
			for range ticker.C {
				h.Add(gen.Events(1)...)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.Handle("/items/", h)

	// Stats endpoint: shows request count
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{"total_requests": h.Requests(), "events": gen.Count()})
	})

	log.Printf("Mock Directus starting on :%s with %d events", port, *events)
	log.Printf("  GET /items/{collection}  -> seek-filtered lead events")
	log.Printf("  GET /stats               -> request count")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
