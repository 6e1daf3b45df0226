package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrityRepository appends proctoring events. The log is append-only:
// there are no update or delete paths.
type IntegrityRepository struct {
	pool *pgxpool.Pool
}

// NewIntegrityRepository creates a new IntegrityRepository.
func NewIntegrityRepository(pool *pgxpool.Pool) *IntegrityRepository {
	return &IntegrityRepository{pool: pool}
}

// Insert appends a single event.
func (r *IntegrityRepository) Insert(ctx context.Context, ev *model.IntegrityEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO integrity_events (invitation_id, event_type, occurred_at)
		 VALUES ($1, $2, $3)`,
		ev.InvitationID, ev.Type, ev.OccurredAt)
	return err
}

// BulkInsert appends a batch of events via COPY.
func (r *IntegrityRepository) BulkInsert(ctx context.Context, events []*model.IntegrityEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []interface{}{ev.InvitationID, ev.Type, ev.OccurredAt})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"integrity_events"},
		[]string{"invitation_id", "event_type", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

// ListByInvitation returns the event log for one session, oldest first.
func (r *IntegrityRepository) ListByInvitation(ctx context.Context, invitationID uuid.UUID) ([]model.IntegrityEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, invitation_id, event_type, occurred_at
		 FROM integrity_events
		 WHERE invitation_id = $1
		 ORDER BY occurred_at ASC, id ASC`, invitationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.IntegrityEvent
	for rows.Next() {
		var ev model.IntegrityEvent
		if err := rows.Scan(&ev.ID, &ev.InvitationID, &ev.Type, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
