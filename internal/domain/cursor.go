package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the seek position of the sync: every upstream event ordered at or
// before (CreatedAt, EventKey) has been attempted. The zero value means
// nothing has been synced yet.
type Cursor struct {
	CreatedAt time.Time `json:"last_created_at"`
	EventKey  string    `json:"last_event_key"`
}

// IsZero reports whether the cursor is the start of the log.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.EventKey == ""
}

// Compare orders cursors by timestamp, then by event key.
func (c Cursor) Compare(o Cursor) int {
	if cmp := c.CreatedAt.Compare(o.CreatedAt); cmp != 0 {
		return cmp
	}
	return strings.Compare(c.EventKey, o.EventKey)
}

// After reports whether c sorts strictly after o.
func (c Cursor) After(o Cursor) bool {
	return c.Compare(o) > 0
}

func (c Cursor) String() string {
	if c.IsZero() {
		return "<start>"
	}
	return fmt.Sprintf("%s/%s", c.CreatedAt.UTC().Format(time.RFC3339Nano), c.EventKey)
}

const tokenPrefix = "v1."

var ErrInvalidToken = errors.New("invalid resume token")

type tokenBody struct {
	T string `json:"t"`
	K string `json:"k,omitempty"`
}

// Token encodes the cursor as an opaque resumption token. The zero cursor
// encodes to the empty string.
func (c Cursor) Token() string {
	if c.IsZero() {
		return ""
	}
	body, _ := json.Marshal(tokenBody{
		T: c.CreatedAt.UTC().Format(time.RFC3339Nano),
		K: c.EventKey,
	})
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(body)
}

// ParseToken decodes a token produced by Cursor.Token.
func ParseToken(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, nil
	}
	encoded, ok := strings.CutPrefix(token, tokenPrefix)
	if !ok {
		return Cursor{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var body tokenBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, body.T)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Cursor{CreatedAt: ts.UTC(), EventKey: body.K}, nil
}
