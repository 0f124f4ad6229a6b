package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/OsmanWais29/filesecureai-sub002/internal/infrastructure/resilience"
)

// classifyIngestPublish retries while the connection is down; a lost ingest
// message would strand the document in the uploaded state.
var classifyIngestPublish = resilience.Transient(isConnectionError)

// classifyAlertPublish makes risk alerts single-shot. The tasks are already
// persisted, so a missed alert is reported as a warning instead of delaying ingestion.
var classifyAlertPublish resilience.ErrorClassifier = resilience.BestEffort

func isConnectionError(err error) bool {
	return errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected)
}
