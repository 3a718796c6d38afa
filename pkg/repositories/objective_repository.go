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

// ObjectiveRepository provides data access for Objectives.
type ObjectiveRepository interface {
	Create(ctx context.Context, objective *models.Objective) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Objective, error)
	// GetByCycle returns non-archived Objectives in a cycle.
	GetByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.Objective, error)
	// GetByCycleAndLevel returns non-archived Objectives in a cycle at a level.
	GetByCycleAndLevel(ctx context.Context, cycleID uuid.UUID, level models.Level) ([]*models.Objective, error)
	// GetByOwner returns non-archived Objectives owned by a user in a cycle.
	GetByOwner(ctx context.Context, ownerID, cycleID uuid.UUID) ([]*models.Objective, error)
	// UpdateProgress persists a computed progress value.
	UpdateProgress(ctx context.Context, id uuid.UUID, progressPercent float64) error
	// UpdateOwnership reassigns owner and department, used by ownership transfer.
	UpdateOwnership(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, departmentID *uuid.UUID) error
	Archive(ctx context.Context, id uuid.UUID) error
}

type objectiveRepository struct {
	db *database.DB
}

// NewObjectiveRepository creates a new ObjectiveRepository.
func NewObjectiveRepository(db *database.DB) ObjectiveRepository {
	return &objectiveRepository{db: db}
}

var _ ObjectiveRepository = (*objectiveRepository)(nil)

const objectiveColumns = `id, title, level, owner_id, department_id, cycle_id,
	status, progress_percent, archived_at, created_at, updated_at`

func (r *objectiveRepository) Create(ctx context.Context, objective *models.Objective) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now()

	query := `
		INSERT INTO objectives (
			title, level, owner_id, department_id, cycle_id, status,
			progress_percent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		objective.Title,
		objective.Level,
		objective.OwnerID,
		objective.DepartmentID,
		objective.CycleID,
		objective.Status,
		objective.ProgressPercent,
		now,
		now,
	).Scan(&objective.ID, &objective.CreatedAt, &objective.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create objective: %w", err)
	}

	return nil
}

func (r *objectiveRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Objective, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + objectiveColumns + ` FROM objectives WHERE id = $1`

	objective, err := scanObjective(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return objective, nil
}

func (r *objectiveRepository) GetByCycle(ctx context.Context, cycleID uuid.UUID) ([]*models.Objective, error) {
	query := `
		SELECT ` + objectiveColumns + `
		FROM objectives
		WHERE cycle_id = $1 AND archived_at IS NULL
		ORDER BY created_at`

	return r.queryObjectives(ctx, query, cycleID)
}

func (r *objectiveRepository) GetByCycleAndLevel(ctx context.Context, cycleID uuid.UUID, level models.Level) ([]*models.Objective, error) {
	query := `
		SELECT ` + objectiveColumns + `
		FROM objectives
		WHERE cycle_id = $1 AND level = $2 AND archived_at IS NULL
		ORDER BY created_at`

	return r.queryObjectives(ctx, query, cycleID, level)
}

func (r *objectiveRepository) GetByOwner(ctx context.Context, ownerID, cycleID uuid.UUID) ([]*models.Objective, error) {
	query := `
		SELECT ` + objectiveColumns + `
		FROM objectives
		WHERE owner_id = $1 AND cycle_id = $2 AND archived_at IS NULL
		ORDER BY created_at`

	return r.queryObjectives(ctx, query, ownerID, cycleID)
}

func (r *objectiveRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progressPercent float64) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE objectives
		SET progress_percent = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, progressPercent)
	if err != nil {
		return fmt.Errorf("failed to update objective progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *objectiveRepository) UpdateOwnership(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, departmentID *uuid.UUID) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE objectives
		SET owner_id = $2, department_id = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := q.Exec(ctx, query, id, ownerID, departmentID)
	if err != nil {
		return fmt.Errorf("failed to update objective ownership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *objectiveRepository) Archive(ctx context.Context, id uuid.UUID) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE objectives
		SET archived_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND archived_at IS NULL`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to archive objective: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *objectiveRepository) queryObjectives(ctx context.Context, query string, args ...any) ([]*models.Objective, error) {
	q := database.GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query objectives: %w", err)
	}
	defer rows.Close()

	var objectives []*models.Objective
	for rows.Next() {
		objective, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		objectives = append(objectives, objective)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objectives: %w", err)
	}

	return objectives, nil
}

func scanObjective(row pgx.Row) (*models.Objective, error) {
	var o models.Objective

	err := row.Scan(
		&o.ID,
		&o.Title,
		&o.Level,
		&o.OwnerID,
		&o.DepartmentID,
		&o.CycleID,
		&o.Status,
		&o.ProgressPercent,
		&o.ArchivedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan objective: %w", err)
	}

	return &o, nil
}
