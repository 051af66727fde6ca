package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fieldserve/dispatch-api/internal/models"
)

// AuditRepository stores the booking audit trail. Records are append-only.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create appends an audit record.
func (r *AuditRepository) Create(ctx context.Context, audit *models.BookingAudit) error {
	if audit.ID == "" {
		audit.ID = uuid.NewString()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO booking_audits (id, booking_id, action, actor_id, team_id, old_team_id, old_start, old_end, new_start, new_end, note, created_at) VALUES (:id, :booking_id, :action, :actor_id, :team_id, :old_team_id, :old_start, :old_end, :new_start, :new_end, :note, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, audit); err != nil {
		return fmt.Errorf("create audit record: %w", err)
	}
	return nil
}

// ListByBooking returns the audit trail of one booking, oldest first.
func (r *AuditRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.BookingAudit, error) {
	const query = `SELECT id, booking_id, action, actor_id, team_id, old_team_id, old_start, old_end, new_start, new_end, note, created_at FROM booking_audits WHERE booking_id = $1 ORDER BY created_at ASC`
	var audits []models.BookingAudit
	if err := r.db.SelectContext(ctx, &audits, query, bookingID); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return audits, nil
}
