package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "journal:repository"

// Repository provides database access for the delivery journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordBuffered inserts one payload in the buffered state and returns its id.
func (r *Repository) RecordBuffered(ctx context.Context, surfaceID, kind string, payload json.RawMessage) (string, error) {
	slog.Debug(fmt.Sprintf("%s - RecordBuffered surface=%s kind=%s", repoLogPrefix, surfaceID, kind))

	id := uuid.NewString()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bridge_deliveries (id, surface_id, kind, payload, state, created)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, surfaceID, kind, payload, StateBuffered, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("%s - insert delivery: %w", repoLogPrefix, err)
	}
	return id, nil
}

// MarkDelivered flips one journal entry to the delivered state.
func (r *Repository) MarkDelivered(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bridge_deliveries
		 SET state = $1, delivered_at = $2
		 WHERE id = $3`,
		StateDelivered, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%s - mark delivered: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s - delivery %s not found", repoLogPrefix, id)
	}
	return nil
}

// RecentDeliveries returns up to limit journal rows, newest first.
func (r *Repository) RecentDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, surface_id, kind, payload, state, created, delivered_at
		 FROM bridge_deliveries
		 ORDER BY created DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%s - query recent: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.SurfaceID, &d.Kind, &d.Payload, &d.State, &d.Created, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("%s - scan delivery: %w", repoLogPrefix, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate deliveries: %w", repoLogPrefix, err)
	}
	return out, nil
}

// PruneBefore deletes journal rows created before cutoff, returning the count.
func (r *Repository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM bridge_deliveries WHERE created < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s - prune: %w", repoLogPrefix, err)
	}
	return tag.RowsAffected(), nil
}
