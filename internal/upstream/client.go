// Package upstream reads lead events from the Directus collection that the
// webhook handler writes to.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
)

// DefaultCollection is the Directus collection holding lead events.
const DefaultCollection = "Databowl_lead_events"

var eventFields = []string{
	"event_key",
	"lead_id",
	"status",
	"revenue",
	"cost",
	"currency",
	"offer_id",
	"campaign_id",
	"affiliate_id",
	"sub_id",
	"t_id",
	"created_at",
	"raw",
}

// ErrMalformedPage is returned when the response body is not a Directus
// item list.
var ErrMalformedPage = errors.New("malformed upstream page")

// StatusError is a non-2xx response from Directus.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directus responded %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client.
type Config struct {
	BaseURL          string
	Token            string
	Collection       string
	ExcludedCampaign string
	Timeout          time.Duration
}

// Client fetches pages of events in seek order.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	collection string
	excluded   string
	logger     *slog.Logger
}

// NewClient creates a client with a configured HTTP client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		collection: collection,
		excluded:   cfg.ExcludedCampaign,
		logger:     logger,
	}
}

// FetchPage returns up to limit events positioned after cursor, ascending
// by (created_at, event_key). Events of the excluded campaign and events
// missing either seek field are not returned.
func (c *Client) FetchPage(ctx context.Context, cursor domain.Cursor, limit int) ([]domain.RawEvent, error) {
	reqURL, err := c.pageURL(cursor, limit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var page struct {
		Data *[]domain.RawEvent `json:"data"`
	}
	if err := c.get(ctx, reqURL, &page); err != nil {
		return nil, err
	}
	if page.Data == nil {
		return nil, fmt.Errorf("%w: missing data array", ErrMalformedPage)
	}

	c.logger.Debug("fetched upstream page",
		"cursor", cursor.String(),
		"limit", limit,
		"records", len(*page.Data),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return *page.Data, nil
}

// CountUnseekable returns how many events FetchPage never returns because
// they lack an event key or a timestamp. The excluded campaign is not
// counted.
func (c *Client) CountUnseekable(ctx context.Context) (int, error) {
	u, err := c.itemsURL()
	if err != nil {
		return 0, err
	}

	q := u.Query()
	q.Set("aggregate[count]", "*")
	encoded, err := And(UnseekableFilter(), ExcludeFilter("campaign_id", c.excluded)).Encode()
	if err != nil {
		return 0, fmt.Errorf("encoding filter: %w", err)
	}
	q.Set("filter", encoded)
	u.RawQuery = q.Encode()

	var resp struct {
		Data []struct {
			Count domain.NullString `json:"count"`
		} `json:"data"`
	}
	if err := c.get(ctx, u.String(), &resp); err != nil {
		return 0, err
	}
	if len(resp.Data) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(resp.Data[0].Count.OrEmpty())
	if err != nil {
		return 0, fmt.Errorf("%w: count %q", ErrMalformedPage, resp.Data[0].Count.OrEmpty())
	}
	return n, nil
}

// get performs an authorized GET and decodes the JSON body into v.
func (c *Client) get(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting upstream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Limit the body so a large error page stays readable in logs
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPage, err)
	}
	return nil
}

func (c *Client) itemsURL() (*url.URL, error) {
	u, err := url.Parse(c.baseURL + "/items/" + url.PathEscape(c.collection))
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	return u, nil
}

func (c *Client) pageURL(cursor domain.Cursor, limit int) (string, error) {
	u, err := c.itemsURL()
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("fields", strings.Join(eventFields, ","))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", strings.Join(SortFields, ","))

	filter := And(SeekableFilter(), SeekFilter(cursor), ExcludeFilter("campaign_id", c.excluded))
	encoded, err := filter.Encode()
	if err != nil {
		return "", fmt.Errorf("encoding filter: %w", err)
	}
	q.Set("filter", encoded)

	u.RawQuery = q.Encode()
	return u.String(), nil
}
