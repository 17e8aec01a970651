// Package notify publishes finished sync runs to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/leadsync/internal/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject finished run reports are published on.
const DefaultSubject = "leadsync.run.finished"

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Publisher sends run reports to a NATS subject.
type Publisher struct {
	conn    Conn
	subject string
	logger  *slog.Logger
	closer  func()
}

// Connect dials the NATS server at url.
func Connect(url, subject string, logger *slog.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("leadsync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}

	p := NewPublisher(conn, subject, logger)
	p.closer = conn.Close
	return p, nil
}

// NewPublisher wraps an existing connection.
func NewPublisher(conn Conn, subject string, logger *slog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, logger: logger}
}

// PublishJSON marshals v and publishes it on the configured subject.
func (p *Publisher) PublishJSON(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	return nil
}

func (p *Publisher) OnBatch(ctx context.Context, _ domain.BatchProgress) {}

// OnFinish publishes the report. Failures are logged and never affect the run.
func (p *Publisher) OnFinish(ctx context.Context, report domain.RunReport) {
	if err := p.PublishJSON(ctx, report); err != nil {
		p.logger.Error("failed to publish run report", "error", err, "run_id", report.RunID)
	}
}

func (p *Publisher) Close() {
	if p.closer != nil {
		p.closer()
	}
}
