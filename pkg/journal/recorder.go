package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const recorderLogPrefix = "journal:recorder"

// Recorder observes a surface's delivery queue. Recording is advisory:
// implementations must never block or fail the delivery path.
type Recorder interface {
	// Buffered notes one enqueued payload and returns a token for the
	// matching Delivered call. An empty token means the entry was not
	// recorded.
	Buffered(surfaceID, kind string, payload json.RawMessage) string
	// Delivered notes that the entry behind token reached the surface.
	Delivered(token string)
}

// NoopRecorder drops every record; used when no database is configured.
type NoopRecorder struct{}

func (NoopRecorder) Buffered(string, string, json.RawMessage) string { return "" }
func (NoopRecorder) Delivered(string)                                {}

// PgRecorder journals to Postgres through a Repository. Write errors are
// logged and swallowed so a database outage never stalls delivery.
type PgRecorder struct {
	repo    *Repository
	timeout time.Duration
}

// NewPgRecorder wraps a repository. timeout bounds each journal write.
func NewPgRecorder(repo *Repository, timeout time.Duration) *PgRecorder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &PgRecorder{repo: repo, timeout: timeout}
}

func (r *PgRecorder) Buffered(surfaceID, kind string, payload json.RawMessage) string {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	id, err := r.repo.RecordBuffered(ctx, surfaceID, kind, payload)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - record buffered: %v", recorderLogPrefix, err))
		return ""
	}
	return id
}

func (r *PgRecorder) Delivered(token string) {
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.repo.MarkDelivered(ctx, token); err != nil {
		slog.Warn(fmt.Sprintf("%s - mark delivered: %v", recorderLogPrefix, err))
	}
}
