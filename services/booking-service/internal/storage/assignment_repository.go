package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/ritebook/libs/db"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/ritebook/services/booking-service/internal/outbox"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AssignmentRepository stores assignments in Postgres. Commits for one provider are
// serialized with a transaction-scoped advisory lock.
type AssignmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

var _ booking.AtomicStore = (*AssignmentRepository)(nil)

// NewAssignmentRepository returns a repository that also writes a confirmation event
// to the outbox for every appended assignment when outboxRepo is non-nil.
func NewAssignmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AssignmentRepository {
	return &AssignmentRepository{pool: pool, outbox: outboxRepo}
}

func (r *AssignmentRepository) ListAssignments(ctx context.Context, providerID string) ([]model.Assignment, error) {
	return listAssignments(ctx, r.pool, providerID)
}

func (r *AssignmentRepository) AppendAssignment(ctx context.Context, a model.Assignment) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return r.insert(ctx, tx, a)
	})
}

func (r *AssignmentRepository) WithProviderTx(ctx context.Context, providerID string, fn func(ctx context.Context, tx booking.Store) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "booking:provider:"+providerID); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		return fn(ctx, txAssignments{repo: r, tx: tx})
	})
}

type txAssignments struct {
	repo *AssignmentRepository
	tx   pgx.Tx
}

func (t txAssignments) ListAssignments(ctx context.Context, providerID string) ([]model.Assignment, error) {
	return listAssignments(ctx, t.tx, providerID)
}

func (t txAssignments) AppendAssignment(ctx context.Context, a model.Assignment) error {
	return t.repo.insert(ctx, t.tx, a)
}

func (r *AssignmentRepository) insert(ctx context.Context, tx pgx.Tx, a model.Assignment) error {
	providerID := a.ProviderRef()
	if providerID == "" {
		return errors.New("assignment has no provider")
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO assignments
			(id, provider_id, service_id, assignment_date, time_slot, duration_minutes, customer_name, notes, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, 0), $7, $8, $9)
	`, a.ID, providerID, a.ServiceID(), a.Date, a.TimeSlot, a.DurationMinutes, a.CustomerName, a.Notes, a.CreatedAt)
	if err != nil {
		return err
	}

	if r.outbox == nil {
		return nil
	}
	evt, err := outbox.AssignmentConfirmed(a)
	if err != nil {
		return fmt.Errorf("build confirmation event: %w", err)
	}
	return r.outbox.Insert(ctx, tx, evt)
}

func listAssignments(ctx context.Context, q querier, providerID string) ([]model.Assignment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, provider_id, COALESCE(service_id, ''), COALESCE(assignment_date, ''), COALESCE(time_slot, ''),
			COALESCE(duration_minutes, 0), customer_name, notes, created_at
		FROM assignments
		WHERE ($1 = '' OR provider_id = $1)
		ORDER BY created_at ASC, id ASC
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		var (
			a         model.Assignment
			serviceID string
		)
		if err := rows.Scan(&a.ID, &a.ProviderID, &serviceID, &a.Date, &a.TimeSlot, &a.DurationMinutes, &a.CustomerName, &a.Notes, &a.CreatedAt); err != nil {
			return nil, err
		}
		if serviceID != "" {
			a.Service = &model.ServiceBooking{ServiceID: serviceID, ProviderID: a.ProviderID}
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
