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

// OkrLinkRepository provides data access for alignment links and their
// append-only event trail.
type OkrLinkRepository interface {
	Create(ctx context.Context, link *models.OkrLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.OkrLink, error)
	// GetByIDForUpdate row-locks the link so concurrent decisions serialize;
	// the loser of the race observes the winner's status.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OkrLink, error)
	// Update persists status, activity and ownership-transfer fields.
	Update(ctx context.Context, link *models.OkrLink) error
	// ExistsActive reports whether a non-revoked pending/approved link exists
	// for the source/target pair.
	ExistsActive(ctx context.Context, source, target models.LinkEndpoint) (bool, error)
	// ListApprovedActiveByTargetObjective returns links aligned into an
	// Objective as a whole.
	ListApprovedActiveByTargetObjective(ctx context.Context, objectiveID uuid.UUID) ([]*models.OkrLink, error)
	// ListApprovedActiveByTargetKeyResults returns links aligned into any of
	// the given Key Results.
	ListApprovedActiveByTargetKeyResults(ctx context.Context, keyResultIDs []uuid.UUID) ([]*models.OkrLink, error)
	// ListActiveBySource returns pending/approved active links whose source is
	// the given endpoint, used by the ancestor walk at link creation.
	ListActiveBySource(ctx context.Context, source models.LinkEndpoint) ([]*models.OkrLink, error)
	AppendEvent(ctx context.Context, event *models.LinkEvent) error
	ListEventsByLink(ctx context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error)
}

type okrLinkRepository struct {
	db *database.DB
}

// NewOkrLinkRepository creates a new OkrLinkRepository.
func NewOkrLinkRepository(db *database.DB) OkrLinkRepository {
	return &okrLinkRepository{db: db}
}

var _ OkrLinkRepository = (*okrLinkRepository)(nil)

const okrLinkColumns = `id, source_type, source_objective_id, source_kr_id,
	target_type, target_objective_id, target_kr_id, status, is_active,
	requested_by, target_owner_id, approved_by, previous_owner_id,
	previous_department_id, ownership_transferred_at, revoked_at,
	request_note, decision_note, created_at, updated_at`

func (r *okrLinkRepository) Create(ctx context.Context, link *models.OkrLink) error {
	q := database.GetQuerier(ctx, r.db)

	now := time.Now()
	srcObj, srcKR := endpointColumns(link.Source)
	tgtObj, tgtKR := endpointColumns(link.Target)

	query := `
		INSERT INTO okr_links (
			source_type, source_objective_id, source_kr_id,
			target_type, target_objective_id, target_kr_id,
			status, is_active, requested_by, target_owner_id,
			request_note, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at`

	err := q.QueryRow(ctx, query,
		link.Source.Kind,
		srcObj,
		srcKR,
		link.Target.Kind,
		tgtObj,
		tgtKR,
		link.Status,
		link.IsActive,
		link.RequestedBy,
		link.TargetOwnerID,
		nullIfEmpty(link.RequestNote),
		now,
		now,
	).Scan(&link.ID, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create okr link: %w", err)
	}

	return nil
}

func (r *okrLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OkrLink, error) {
	query := `SELECT ` + okrLinkColumns + ` FROM okr_links WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *okrLinkRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OkrLink, error) {
	query := `SELECT ` + okrLinkColumns + ` FROM okr_links WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *okrLinkRepository) getOne(ctx context.Context, query string, id uuid.UUID) (*models.OkrLink, error) {
	q := database.GetQuerier(ctx, r.db)

	link, err := scanOkrLink(q.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	return link, nil
}

func (r *okrLinkRepository) Update(ctx context.Context, link *models.OkrLink) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		UPDATE okr_links
		SET status = $2, is_active = $3, approved_by = $4,
		    previous_owner_id = $5, previous_department_id = $6,
		    ownership_transferred_at = $7, revoked_at = $8,
		    decision_note = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := q.QueryRow(ctx, query,
		link.ID,
		link.Status,
		link.IsActive,
		link.ApprovedBy,
		link.PreviousOwnerID,
		link.PreviousDepartmentID,
		link.OwnershipTransferredAt,
		link.RevokedAt,
		nullIfEmpty(link.DecisionNote),
	).Scan(&link.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update okr link: %w", err)
	}

	return nil
}

func (r *okrLinkRepository) ExistsActive(ctx context.Context, source, target models.LinkEndpoint) (bool, error) {
	q := database.GetQuerier(ctx, r.db)

	srcObj, srcKR := endpointColumns(source)
	tgtObj, tgtKR := endpointColumns(target)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM okr_links
			WHERE source_type = $1
			  AND source_objective_id IS NOT DISTINCT FROM $2
			  AND source_kr_id IS NOT DISTINCT FROM $3
			  AND target_type = $4
			  AND target_objective_id IS NOT DISTINCT FROM $5
			  AND target_kr_id IS NOT DISTINCT FROM $6
			  AND is_active = TRUE
			  AND status NOT IN ('rejected', 'cancelled')
		)`

	var exists bool
	err := q.QueryRow(ctx, query, source.Kind, srcObj, srcKR, target.Kind, tgtObj, tgtKR).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check for existing link: %w", err)
	}

	return exists, nil
}

func (r *okrLinkRepository) ListApprovedActiveByTargetObjective(ctx context.Context, objectiveID uuid.UUID) ([]*models.OkrLink, error) {
	query := `
		SELECT ` + okrLinkColumns + `
		FROM okr_links
		WHERE target_type = 'objective' AND target_objective_id = $1
		  AND status = 'approved' AND is_active = TRUE
		ORDER BY created_at`

	return r.queryLinks(ctx, query, objectiveID)
}

func (r *okrLinkRepository) ListApprovedActiveByTargetKeyResults(ctx context.Context, keyResultIDs []uuid.UUID) ([]*models.OkrLink, error) {
	if len(keyResultIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + okrLinkColumns + `
		FROM okr_links
		WHERE target_type = 'kr' AND target_kr_id = ANY($1)
		  AND status = 'approved' AND is_active = TRUE
		ORDER BY created_at`

	return r.queryLinks(ctx, query, keyResultIDs)
}

func (r *okrLinkRepository) ListActiveBySource(ctx context.Context, source models.LinkEndpoint) ([]*models.OkrLink, error) {
	srcObj, srcKR := endpointColumns(source)

	query := `
		SELECT ` + okrLinkColumns + `
		FROM okr_links
		WHERE source_type = $1
		  AND source_objective_id IS NOT DISTINCT FROM $2
		  AND source_kr_id IS NOT DISTINCT FROM $3
		  AND is_active = TRUE
		  AND status IN ('pending', 'approved')
		ORDER BY created_at`

	return r.queryLinks(ctx, query, source.Kind, srcObj, srcKR)
}

func (r *okrLinkRepository) AppendEvent(ctx context.Context, event *models.LinkEvent) error {
	q := database.GetQuerier(ctx, r.db)

	query := `
		INSERT INTO okr_link_events (link_id, action, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := q.QueryRow(ctx, query,
		event.LinkID,
		event.Action,
		event.ActorID,
		nullIfEmpty(event.Note),
		time.Now(),
	).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append link event: %w", err)
	}

	return nil
}

func (r *okrLinkRepository) ListEventsByLink(ctx context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error) {
	q := database.GetQuerier(ctx, r.db)

	query := `
		SELECT id, link_id, action, actor_id, note, created_at
		FROM okr_link_events
		WHERE link_id = $1
		ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query link events: %w", err)
	}
	defer rows.Close()

	var events []*models.LinkEvent
	for rows.Next() {
		var e models.LinkEvent
		var note *string
		if err := rows.Scan(&e.ID, &e.LinkID, &e.Action, &e.ActorID, &note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link event: %w", err)
		}
		if note != nil {
			e.Note = *note
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link events: %w", err)
	}

	return events, nil
}

func (r *okrLinkRepository) queryLinks(ctx context.Context, query string, args ...any) ([]*models.OkrLink, error) {
	q := database.GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query okr links: %w", err)
	}
	defer rows.Close()

	var links []*models.OkrLink
	for rows.Next() {
		link, err := scanOkrLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating okr links: %w", err)
	}

	return links, nil
}

// endpointColumns splits a tagged endpoint into the two nullable id columns
// the okr_links table stores.
func endpointColumns(e models.LinkEndpoint) (objectiveID, keyResultID *uuid.UUID) {
	if e.Kind == models.EndpointObjective {
		return &e.ID, nil
	}
	return nil, &e.ID
}

func scanOkrLink(row pgx.Row) (*models.OkrLink, error) {
	var l models.OkrLink
	var srcType, tgtType models.EndpointKind
	var srcObj, srcKR, tgtObj, tgtKR *uuid.UUID
	var requestNote, decisionNote *string

	err := row.Scan(
		&l.ID,
		&srcType,
		&srcObj,
		&srcKR,
		&tgtType,
		&tgtObj,
		&tgtKR,
		&l.Status,
		&l.IsActive,
		&l.RequestedBy,
		&l.TargetOwnerID,
		&l.ApprovedBy,
		&l.PreviousOwnerID,
		&l.PreviousDepartmentID,
		&l.OwnershipTransferredAt,
		&l.RevokedAt,
		&requestNote,
		&decisionNote,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan okr link: %w", err)
	}

	l.Source = endpointFromColumns(srcType, srcObj, srcKR)
	l.Target = endpointFromColumns(tgtType, tgtObj, tgtKR)
	if requestNote != nil {
		l.RequestNote = *requestNote
	}
	if decisionNote != nil {
		l.DecisionNote = *decisionNote
	}

	return &l, nil
}

func endpointFromColumns(kind models.EndpointKind, objectiveID, keyResultID *uuid.UUID) models.LinkEndpoint {
	if kind == models.EndpointObjective && objectiveID != nil {
		return models.ObjectiveEndpoint(*objectiveID)
	}
	if keyResultID != nil {
		return models.KeyResultEndpoint(*keyResultID)
	}
	return models.LinkEndpoint{Kind: kind}
}
