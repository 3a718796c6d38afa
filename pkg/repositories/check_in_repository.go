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

// CheckInRepository provides data access for Key Result check-ins.
type CheckInRepository interface {
	Create(ctx context.Context, checkIn *models.CheckIn) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CheckIn, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// GetLatestByKeyResult returns the most recent check-in, or nil if none.
	GetLatestByKeyResult(ctx context.Context, keyResultID uuid.UUID) (*models.CheckIn, error)
	// ListByKeyResult returns check-ins newest first.
	ListByKeyResult(ctx context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error)
	CountByKeyResult(ctx context.Context, keyResultID uuid.UUID) (int, error)
	// ListAuthorsSince returns the distinct authors who checked in at or after
	// the given time, used for weekly compliance reporting.
	ListAuthorsSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	// AverageConfidenceSince returns the mean confidence of check-ins at or
	// after the given time, or nil when none carry a confidence.
	AverageConfidenceSince(ctx context.Context, since time.Time) (*float64, error)
}

type checkInRepository struct {
	db *database.DB
}

// NewCheckInRepository creates a new CheckInRepository.
func NewCheckInRepository(db *database.DB) CheckInRepository {
	return &checkInRepository{db: db}
}

var _ CheckInRepository = (*checkInRepository)(nil)

const checkInColumns = `id, key_result_id, author_id, progress_value,
	progress_percent, check_in_type, confidence, is_completed, note, created_at`

func (r *checkInRepository) Create(ctx context.Context, checkIn *models.CheckIn) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		INSERT INTO check_ins (
			key_result_id, author_id, progress_value, progress_percent,
			check_in_type, confidence, is_completed, note, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := q.QueryRow(ctx, query,
		checkIn.KeyResultID,
		checkIn.AuthorID,
		checkIn.ProgressValue,
		checkIn.ProgressPercent,
		checkIn.CheckInType,
		checkIn.Confidence,
		checkIn.IsCompleted,
		nullIfEmpty(checkIn.Note),
		time.Now(),
	).Scan(&checkIn.ID, &checkIn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create check-in: %w", err)
	}

	return nil
}

func (r *checkInRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CheckIn, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT ` + checkInColumns + ` FROM check_ins WHERE id = $1`

	checkIn, err := scanCheckIn(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return checkIn, nil
}

func (r *checkInRepository) Delete(ctx context.Context, id uuid.UUID) error {
	q := database.GetQuerier(ctx, r.db)

	query := `DELETE FROM check_ins WHERE id = $1`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete check-in: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *checkInRepository) GetLatestByKeyResult(ctx context.Context, keyResultID uuid.UUID) (*models.CheckIn, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE key_result_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	checkIn, err := scanCheckIn(q.QueryRow(ctx, query, keyResultID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil // No check-ins yet
		}
		return nil, err
	}

	return checkIn, nil
}

func (r *checkInRepository) ListByKeyResult(ctx context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT ` + checkInColumns + `
		FROM check_ins
		WHERE key_result_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := q.Query(ctx, query, keyResultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-ins: %w", err)
	}
	defer rows.Close()

	var checkIns []*models.CheckIn
	for rows.Next() {
		checkIn, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		checkIns = append(checkIns, checkIn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-ins: %w", err)
	}

	return checkIns, nil
}

func (r *checkInRepository) CountByKeyResult(ctx context.Context, keyResultID uuid.UUID) (int, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT COUNT(*) FROM check_ins WHERE key_result_id = $1`

	var count int
	if err := q.QueryRow(ctx, query, keyResultID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count check-ins: %w", err)
	}

	return count, nil
}

func (r *checkInRepository) ListAuthorsSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT DISTINCT author_id FROM check_ins WHERE created_at >= $1`

	rows, err := q.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query check-in authors: %w", err)
	}
	defer rows.Close()

	var authors []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan check-in author: %w", err)
		}
		authors = append(authors, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating check-in authors: %w", err)
	}

	return authors, nil
}

func (r *checkInRepository) AverageConfidenceSince(ctx context.Context, since time.Time) (*float64, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `SELECT AVG(confidence) FROM check_ins WHERE created_at >= $1 AND confidence IS NOT NULL`

	var avg *float64
	if err := q.QueryRow(ctx, query, since).Scan(&avg); err != nil {
		return nil, fmt.Errorf("failed to average check-in confidence: %w", err)
	}

	return avg, nil
}

func scanCheckIn(row pgx.Row) (*models.CheckIn, error) {
	var c models.CheckIn
	var note *string

	err := row.Scan(
		&c.ID,
		&c.KeyResultID,
		&c.AuthorID,
		&c.ProgressValue,
		&c.ProgressPercent,
		&c.CheckInType,
		&c.Confidence,
		&c.IsCompleted,
		&note,
		&c.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan check-in: %w", err)
	}

	if note != nil {
		c.Note = *note
	}

	return &c, nil
}

// nullIfEmpty returns nil for empty strings so the column stores NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
