package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northstar-hq/northstar-engine/pkg/apperrors"
	"github.com/northstar-hq/northstar-engine/pkg/database"
	"github.com/northstar-hq/northstar-engine/pkg/models"
)

// CycleRepository provides data access for OKR cycles.
type CycleRepository interface {
	Create(ctx context.Context, cycle *models.Cycle) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	// GetActive returns the currently active cycle, or nil if none.
	GetActive(ctx context.Context) (*models.Cycle, error)
	// Close flips a cycle to inactive and stamps closed_at.
	Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error
}

type cycleRepository struct {
	db *database.DB
}

// NewCycleRepository creates a new CycleRepository.
func NewCycleRepository(db *database.DB) CycleRepository {
	return &cycleRepository{db: db}
}

var _ CycleRepository = (*cycleRepository)(nil)

const cycleColumns = `id, name, start_date, end_date, status, closed_at, created_at, updated_at`

func (r *cycleRepository) Create(ctx context.Context, cycle *models.Cycle) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now()

	query := `
		INSERT INTO cycles (name, start_date, end_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		cycle.Name,
		cycle.StartDate,
		cycle.EndDate,
		cycle.Status,
		now,
		now,
	).Scan(&cycle.ID, &cycle.CreatedAt, &cycle.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create cycle: %w", err)
	}

	return nil
}

func (r *cycleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + cycleColumns + ` FROM cycles WHERE id = $1`

	cycle, err := scanCycle(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return cycle, nil
}

func (r *cycleRepository) GetActive(ctx context.Context) (*models.Cycle, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT ` + cycleColumns + `
		FROM cycles
		WHERE status = 'active'
		ORDER BY start_date DESC
		LIMIT 1`

	cycle, err := scanCycle(q.QueryRow(ctx, query))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // No active cycle
		}
		return nil, err
	}

	return cycle, nil
}

func (r *cycleRepository) Close(ctx context.Context, id uuid.UUID, closedAt time.Time) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE cycles
		SET status = 'inactive', closed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'`

	result, err := q.Exec(ctx, query, id, closedAt)
	if err != nil {
		return fmt.Errorf("failed to close cycle: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanCycle(row pgx.Row) (*models.Cycle, error) {
	var c models.Cycle

	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.StartDate,
		&c.EndDate,
		&c.Status,
		&c.ClosedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan cycle: %w", err)
	}

	return &c, nil
}
