package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/OsmanWais29/filesecureai-sub002/internal/core/domain"
	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
)

const (
	DefaultIngestSubject = "documents.ingest"
	DefaultRiskSubject   = "documents.risk"
	workerQueueGroup     = "ingest-workers"
)

// publisher is the subset of *nats.Conn used for publishing.
type publisher interface {
	Publish(subject string, data []byte) error
}

type Queue struct {
	conn          *nats.Conn
	pub           publisher
	ingestSubject string
	riskSubject   string
	executor      *resilience.Executor
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

type Options struct {
	Name                 string
	IngestSubject        string
	RiskSubject          string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) withDefaults() Options {
	out := o
	if out.Name == "" {
		out.Name = "document-lifecycle"
	}
	if out.IngestSubject == "" {
		out.IngestSubject = DefaultIngestSubject
	}
	if out.RiskSubject == "" {
		out.RiskSubject = DefaultRiskSubject
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 2 * time.Second
	}
	if out.ReconnectWait <= 0 {
		out.ReconnectWait = 2 * time.Second
	}
	if out.MaxReconnects <= 0 {
		out.MaxReconnects = 60
	}
	return out
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	options = options.withDefaults()
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name(options.Name),
		nats.Timeout(options.ConnectTimeout),
		nats.ReconnectWait(options.ReconnectWait),
		nats.MaxReconnects(options.MaxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		pub:           conn,
		ingestSubject: options.IngestSubject,
		riskSubject:   options.RiskSubject,
		executor:      options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish_ingest", q.ingestSubject, []byte(documentID), classifyIngestPublish)
}

// riskAlertMessage is the wire form of a risk summary event.
type riskAlertMessage struct {
	DocumentID    string    `json:"document_id"`
	OwnerID       string    `json:"owner_id"`
	FormType      string    `json:"form_type"`
	FormNumber    string    `json:"form_number"`
	HighRiskCount int       `json:"high_risk_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (q *Queue) PublishRiskAlert(ctx context.Context, alert domain.RiskAlert) error {
	payload, err := json.Marshal(riskAlertMessage{
		DocumentID:    alert.DocumentID,
		OwnerID:       alert.OwnerID,
		FormType:      alert.FormType,
		FormNumber:    alert.FormNumber,
		HighRiskCount: alert.HighRiskCount,
		CreatedAt:     alert.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal risk alert: %w", err)
	}
	return q.publish(ctx, "nats.publish_risk", q.riskSubject, payload, classifyAlertPublish)
}

func (q *Queue) publish(
	ctx context.Context,
	operation, subject string,
	data []byte,
	classifier resilience.ErrorClassifier,
) error {
	call := func(_ context.Context) error {
		if err := q.pub.Publish(subject, data); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifier)
	} else {
		err = call(ctx)
	}
	// Temporary marks errors a later attempt could succeed on, whatever the retry policy.
	return resilience.WrapTemporary("nats publish", err, classifyIngestPublish)
}

func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.ingestSubject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			slog.Error("ingest_handler_failed", "document_id", string(msg.Data), "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
