package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/bar-booking/internal/model"
)

// OutboxRepo stores booking events written in the same transaction as the
// booking change that produced them.
type OutboxRepo struct {
	db *sql.DB
}

func NewOutboxRepo(db *sql.DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Append inserts ev.  Call it with the same context as the booking write so
// both land in one transaction.
func (r *OutboxRepo) Append(ctx context.Context, ev *model.OutboxEvent) error {
	const q = `INSERT INTO outbox_events (event_type, booking_id, payload, processed, created_at) VALUES (?, ?, ?, 0, ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, string(ev.EventType), ev.BookingID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

// ListUnprocessed returns up to limit unprocessed events in creation order.
func (r *OutboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	const q = `SELECT id, event_type, booking_id, payload, created_at FROM outbox_events
		WHERE processed = 0 ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.OutboxEvent, 0)
	for rows.Next() {
		var (
			ev        model.OutboxEvent
			eventType string
		)
		if err := rows.Scan(&ev.ID, &eventType, &ev.BookingID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.EventType = model.EventType(eventType)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkProcessed flags the event as published.  Marking an event that is
// already processed is a no-op.
func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uint64, at time.Time) error {
	const q = `UPDATE outbox_events SET processed = 1, processed_at = ? WHERE id = ? AND processed = 0`
	if _, err := conn(ctx, r.db).ExecContext(ctx, q, at, id); err != nil {
		return fmt.Errorf("mark outbox event %d processed: %w", id, err)
	}
	return nil
}

// DeleteProcessedBefore removes processed events older than cutoff and
// returns how many were deleted.  Unprocessed events are never removed.
func (r *OutboxRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM outbox_events WHERE processed = 1 AND processed_at < ?`
	res, err := conn(ctx, r.db).ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return res.RowsAffected()
}
