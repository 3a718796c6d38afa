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

// KeyResultRepository provides data access for Key Results.
type KeyResultRepository interface {
	Create(ctx context.Context, kr *models.KeyResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.KeyResult, error)
	// GetByObjective returns non-archived Key Results of an Objective.
	GetByObjective(ctx context.Context, objectiveID uuid.UUID) ([]*models.KeyResult, error)
	// GetByAssignee returns non-archived Key Results assigned to a user.
	GetByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*models.KeyResult, error)
	// UpdateValues persists current value and stored progress after a check-in
	// write or rollback.
	UpdateValues(ctx context.Context, id uuid.UUID, currentValue float64, progressPercent *float64) error
	// UpdateAssignee reassigns a Key Result, used by ownership transfer.
	UpdateAssignee(ctx context.Context, id uuid.UUID, assigneeID *uuid.UUID) error
	// ListAssigneesByCycle returns the distinct users holding at least one
	// non-archived Key Result in a cycle, for check-in compliance reporting.
	ListAssigneesByCycle(ctx context.Context, cycleID uuid.UUID) ([]uuid.UUID, error)
	Archive(ctx context.Context, id uuid.UUID) error
}

type keyResultRepository struct {
	db *database.DB
}

// NewKeyResultRepository creates a new KeyResultRepository.
func NewKeyResultRepository(db *database.DB) KeyResultRepository {
	return &keyResultRepository{db: db}
}

var _ KeyResultRepository = (*keyResultRepository)(nil)

const keyResultColumns = `id, title, objective_id, assignee_id, target_value,
	current_value, unit, progress_percent, weight, archived_at, created_at, updated_at`

func (r *keyResultRepository) Create(ctx context.Context, kr *models.KeyResult) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now()
	if kr.Weight == 0 {
		kr.Weight = 1
	}

	query := `
		INSERT INTO key_results (
			title, objective_id, assignee_id, target_value, current_value,
			unit, progress_percent, weight, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		kr.Title,
		kr.ObjectiveID,
		kr.AssigneeID,
		kr.TargetValue,
		kr.CurrentValue,
		kr.Unit,
		kr.ProgressPercent,
		kr.Weight,
		now,
		now,
	).Scan(&kr.ID, &kr.CreatedAt, &kr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create key result: %w", err)
	}

	return nil
}

func (r *keyResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.KeyResult, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + keyResultColumns + ` FROM key_results WHERE id = $1`

	kr, err := scanKeyResult(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return kr, nil
}

func (r *keyResultRepository) GetByObjective(ctx context.Context, objectiveID uuid.UUID) ([]*models.KeyResult, error) {
	query := `
		SELECT ` + keyResultColumns + `
		FROM key_results
		WHERE objective_id = $1 AND archived_at IS NULL
		ORDER BY created_at`

	return r.queryKeyResults(ctx, query, objectiveID)
}

func (r *keyResultRepository) GetByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*models.KeyResult, error) {
	query := `
		SELECT ` + keyResultColumns + `
		FROM key_results
		WHERE assignee_id = $1 AND archived_at IS NULL
		ORDER BY created_at`

	return r.queryKeyResults(ctx, query, assigneeID)
}

func (r *keyResultRepository) UpdateValues(ctx context.Context, id uuid.UUID, currentValue float64, progressPercent *float64) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE key_results
		SET current_value = $2, progress_percent = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, currentValue, progressPercent)
	if err != nil {
		return fmt.Errorf("failed to update key result values: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *keyResultRepository) UpdateAssignee(ctx context.Context, id uuid.UUID, assigneeID *uuid.UUID) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE key_results
		SET assignee_id = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, assigneeID)
	if err != nil {
		return fmt.Errorf("failed to update key result assignee: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *keyResultRepository) Archive(ctx context.Context, id uuid.UUID) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE key_results
		SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive key result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *keyResultRepository) ListAssigneesByCycle(ctx context.Context, cycleID uuid.UUID) ([]uuid.UUID, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT DISTINCT kr.assignee_id
		FROM key_results kr
		JOIN objectives o ON o.id = kr.objective_id
		WHERE o.cycle_id = $1
		  AND kr.assignee_id IS NOT NULL
		  AND kr.archived_at IS NULL
		  AND o.archived_at IS NULL`

	rows, err := q.Query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query key result assignees: %w", err)
	}
	defer rows.Close()

	var assignees []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignee: %w", err)
		}
		assignees = append(assignees, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignees: %w", err)
	}

	return assignees, nil
}

func (r *keyResultRepository) queryKeyResults(ctx context.Context, query string, args ...any) ([]*models.KeyResult, error) {
	q := database.GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query key results: %w", err)
	}
	defer rows.Close()

	var krs []*models.KeyResult
	for rows.Next() {
		kr, err := scanKeyResult(rows)
		if err != nil {
			return nil, err
		}
		krs = append(krs, kr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating key results: %w", err)
	}

	return krs, nil
}

func scanKeyResult(row pgx.Row) (*models.KeyResult, error) {
	var kr models.KeyResult

	err := row.Scan(
		&kr.ID,
		&kr.Title,
		&kr.ObjectiveID,
		&kr.AssigneeID,
		&kr.TargetValue,
		&kr.CurrentValue,
		&kr.Unit,
		&kr.ProgressPercent,
		&kr.Weight,
		&kr.ArchivedAt,
		&kr.CreatedAt,
		&kr.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan key result: %w", err)
	}

	return &kr, nil
}
