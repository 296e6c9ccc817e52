package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shijin-alpha/buildhub-main-sub011/internal/models"
)

// ListPendingOutbox returns up to limit undispatched events, oldest first.
func (s *SQLiteStore) ListPendingOutbox(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, event_type, payload, created_at, dispatched_at
		 FROM outbox_events WHERE dispatched_at = 0 ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox events: %w", err)
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		event := &models.OutboxEvent{}
		if err := rows.Scan(&event.ID, &event.GroupID, &event.EventType, &event.Payload,
			&event.CreatedAt, &event.DispatchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}
	return events, nil
}

// MarkOutboxDispatched stamps an event as delivered.
func (s *SQLiteStore) MarkOutboxDispatched(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET dispatched_at = ? WHERE id = ?",
		time.Now().Unix(), eventID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event dispatched: %w", err)
	}
	return nil
}

// IsPayablePaid reports whether the given obligation has been marked paid.
func (s *SQLiteStore) IsPayablePaid(ctx context.Context, payableType models.PayableType, payableRef string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM payables WHERE payable_type = ? AND payable_ref = ?",
		string(payableType), payableRef,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check payable: %w", err)
	}
	return n > 0, nil
}
