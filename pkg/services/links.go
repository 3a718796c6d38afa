package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/apperrors"
	"github.com/northstar-hq/northstar-engine/pkg/database"
	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
)

// maxAncestorWalkDepth bounds the upward walk that checks a new link would
// not close a cycle. The level-ordering invariant keeps real chains shorter
// than the four-level hierarchy; the bound is defense against corrupt data.
const maxAncestorWalkDepth = 10

// LinkService manages the alignment link lifecycle: request, decision,
// resubmission, cancellation and revocation. Every transition commits
// atomically with its audit event.
type LinkService interface {
	// RequestLink validates level ordering and duplicates, then creates the
	// link in pending (or approved directly when requester and target owner
	// are the same user).
	RequestLink(ctx context.Context, actor models.Actor, source, target models.LinkEndpoint, note string) (*models.OkrLink, error)
	// Decide transitions a pending/needs_changes link to approved, rejected
	// or needs_changes. Only the target owner or an admin may decide.
	// Approval may transfer source ownership to the target owner.
	Decide(ctx context.Context, actor models.Actor, linkID uuid.UUID, decision models.LinkStatus, note string, transferOwnership bool) (*models.OkrLink, error)
	// Resubmit moves a needs_changes link back to pending. Requester only.
	Resubmit(ctx context.Context, actor models.Actor, linkID uuid.UUID, note string) (*models.OkrLink, error)
	// Cancel withdraws a pending/needs_changes link or revokes an approved
	// one. Revocation reverses a transferred ownership unless keepOwnership.
	Cancel(ctx context.Context, actor models.Actor, linkID uuid.UUID, keepOwnership bool) (*models.OkrLink, error)
	GetLink(ctx context.Context, linkID uuid.UUID) (*models.OkrLink, error)
	GetEvents(ctx context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error)
}

type linkService struct {
	db            *database.DB
	linkRepo      repositories.OkrLinkRepository
	objectiveRepo repositories.ObjectiveRepository
	krRepo        repositories.KeyResultRepository
	clock         Clock
	logger        *zap.Logger
}

// NewLinkService creates a new LinkService.
func NewLinkService(
	db *database.DB,
	linkRepo repositories.OkrLinkRepository,
	objectiveRepo repositories.ObjectiveRepository,
	krRepo repositories.KeyResultRepository,
	clock Clock,
	logger *zap.Logger,
) LinkService {
	return &linkService{
		db:            db,
		linkRepo:      linkRepo,
		objectiveRepo: objectiveRepo,
		krRepo:        krRepo,
		clock:         clock,
		logger:        logger.Named("link-service"),
	}
}

var _ LinkService = (*linkService)(nil)

// endpointInfo is the resolved view of a link endpoint: its hierarchy level
// and the user/department owning it.
type endpointInfo struct {
	Level        models.Level
	OwnerID      uuid.UUID
	DepartmentID *uuid.UUID
}

// resolveEndpoint loads the entity behind an endpoint. A Key Result's level
// is its owning Objective's level; its owner is the assignee when set,
// otherwise the Objective's owner.
func (s *linkService) resolveEndpoint(ctx context.Context, e models.LinkEndpoint) (*endpointInfo, error) {
	switch e.Kind {
	case models.EndpointObjective:
		objective, err := s.objectiveRepo.GetByID(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if objective.IsArchived() {
			return nil, apperrors.ErrNotFound
		}
		return &endpointInfo{
			Level:        objective.Level,
			OwnerID:      objective.OwnerID,
			DepartmentID: objective.DepartmentID,
		}, nil

	case models.EndpointKeyResult:
		kr, err := s.krRepo.GetByID(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if kr.IsArchived() {
			return nil, apperrors.ErrNotFound
		}
		objective, err := s.objectiveRepo.GetByID(ctx, kr.ObjectiveID)
		if err != nil {
			return nil, err
		}
		owner := objective.OwnerID
		if kr.AssigneeID != nil {
			owner = *kr.AssigneeID
		}
		return &endpointInfo{
			Level:        objective.Level,
			OwnerID:      owner,
			DepartmentID: objective.DepartmentID,
		}, nil
	}

	return nil, apperrors.NewValidationError("kind", "must be 'objective' or 'kr'")
}

func (s *linkService) RequestLink(ctx context.Context, actor models.Actor, source, target models.LinkEndpoint, note string) (*models.OkrLink, error) {
	if !models.IsValidEndpointKind(source.Kind) {
		return nil, apperrors.NewValidationError("source_type", "must be 'objective' or 'kr'")
	}
	if !models.IsValidEndpointKind(target.Kind) {
		return nil, apperrors.NewValidationError("target_type", "must be 'objective' or 'kr'")
	}
	if source.ID == uuid.Nil {
		return nil, apperrors.NewValidationError("source_id", "is required")
	}
	if target.ID == uuid.Nil {
		return nil, apperrors.NewValidationError("target_id", "is required")
	}
	if source == target {
		return nil, apperrors.NewValidationError("target_id", "must differ from source")
	}

	src, err := s.resolveEndpoint(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("resolve link source: %w", err)
	}
	tgt, err := s.resolveEndpoint(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve link target: %w", err)
	}

	// Company-level entities sit at the top of the hierarchy and can never
	// align upward.
	if src.Level == models.LevelCompany {
		return nil, apperrors.ErrInvalidLevelOrdering
	}
	if !tgt.Level.Above(src.Level) {
		return nil, apperrors.ErrInvalidLevelOrdering
	}
	if !models.AllowedLevels(actor.Role)[src.Level] {
		return nil, apperrors.ErrNotAuthorized
	}

	if err := s.checkNoCycle(ctx, source, target); err != nil {
		return nil, err
	}

	link := &models.OkrLink{
		Source:        source,
		Target:        target,
		Status:        models.LinkStatusPending,
		IsActive:      true,
		RequestedBy:   actor.UserID,
		TargetOwnerID: tgt.OwnerID,
		RequestNote:   note,
	}

	// Same-owner shortcut: aligning into your own higher-level OKR needs no
	// approval round-trip.
	selfApproved := tgt.OwnerID == actor.UserID
	if selfApproved {
		link.Status = models.LinkStatusApproved
		link.ApprovedBy = &actor.UserID
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		exists, err := s.linkRepo.ExistsActive(ctx, source, target)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.ErrDuplicateLink
		}

		if err := s.linkRepo.Create(ctx, link); err != nil {
			return err
		}

		if err := s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
			LinkID:  link.ID,
			Action:  models.LinkActionCreated,
			ActorID: actor.UserID,
			Note:    note,
		}); err != nil {
			return err
		}
		if selfApproved {
			return s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
				LinkID:  link.ID,
				Action:  models.LinkActionApproved,
				ActorID: actor.UserID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alignment link requested",
		zap.String("link_id", link.ID.String()),
		zap.String("status", string(link.Status)),
		zap.String("requested_by", actor.UserID.String()))

	return link, nil
}

// checkNoCycle walks upward from the target following active links; reaching
// the source within the depth bound means the target already sits below the
// source and approving the link would close a cycle.
func (s *linkService) checkNoCycle(ctx context.Context, source, target models.LinkEndpoint) error {
	current := []models.LinkEndpoint{target}
	seen := map[models.LinkEndpoint]bool{target: true}

	for depth := 0; depth < maxAncestorWalkDepth && len(current) > 0; depth++ {
		var next []models.LinkEndpoint
		for _, e := range current {
			links, err := s.linkRepo.ListActiveBySource(ctx, e)
			if err != nil {
				return fmt.Errorf("ancestor walk: %w", err)
			}
			for _, l := range links {
				if l.Target == source {
					return apperrors.ErrAlignmentCycle
				}
				if !seen[l.Target] {
					seen[l.Target] = true
					next = append(next, l.Target)
				}
			}
		}
		current = next
	}

	return nil
}

func (s *linkService) Decide(ctx context.Context, actor models.Actor, linkID uuid.UUID, decision models.LinkStatus, note string, transferOwnership bool) (*models.OkrLink, error) {
	switch decision {
	case models.LinkStatusApproved, models.LinkStatusRejected, models.LinkStatusNeedsChanges:
	default:
		return nil, apperrors.NewValidationError("decision", "must be 'approved', 'rejected' or 'needs_changes'")
	}

	var link *models.OkrLink
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		link, err = s.linkRepo.GetByIDForUpdate(ctx, linkID)
		if err != nil {
			return err
		}

		if actor.UserID != link.TargetOwnerID && !actor.IsAdmin() {
			return apperrors.ErrNotAuthorized
		}
		if link.IsTerminal() || !models.CanTransition(link.Status, decision) {
			return apperrors.ErrInvalidTransition
		}

		link.Status = decision
		link.DecisionNote = note

		action := models.LinkActionRejected
		switch decision {
		case models.LinkStatusApproved:
			action = models.LinkActionApproved
			link.ApprovedBy = &actor.UserID
			if transferOwnership {
				if err := s.transferOwnership(ctx, link); err != nil {
					return err
				}
			}
		case models.LinkStatusNeedsChanges:
			action = models.LinkActionNeedsChanges
		}

		if err := s.linkRepo.Update(ctx, link); err != nil {
			return err
		}
		return s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
			LinkID:  link.ID,
			Action:  action,
			ActorID: actor.UserID,
			Note:    note,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alignment link decided",
		zap.String("link_id", linkID.String()),
		zap.String("decision", string(decision)),
		zap.Bool("transfer_ownership", transferOwnership),
		zap.String("actor", actor.UserID.String()))

	return link, nil
}

// transferOwnership reassigns the source entity to the target's owner and
// records the prior owner on the link so revocation can restore it.
func (s *linkService) transferOwnership(ctx context.Context, link *models.OkrLink) error {
	tgt, err := s.resolveEndpoint(ctx, link.Target)
	if err != nil {
		return fmt.Errorf("resolve target for ownership transfer: %w", err)
	}

	now := s.clock.Now()

	switch link.Source.Kind {
	case models.EndpointObjective:
		objective, err := s.objectiveRepo.GetByID(ctx, link.Source.ID)
		if err != nil {
			return err
		}
		link.PreviousOwnerID = &objective.OwnerID
		link.PreviousDepartmentID = objective.DepartmentID
		if err := s.objectiveRepo.UpdateOwnership(ctx, objective.ID, tgt.OwnerID, tgt.DepartmentID); err != nil {
			return err
		}

	case models.EndpointKeyResult:
		kr, err := s.krRepo.GetByID(ctx, link.Source.ID)
		if err != nil {
			return err
		}
		objective, err := s.objectiveRepo.GetByID(ctx, kr.ObjectiveID)
		if err != nil {
			return err
		}
		prev := objective.OwnerID
		if kr.AssigneeID != nil {
			prev = *kr.AssigneeID
		}
		link.PreviousOwnerID = &prev
		if err := s.krRepo.UpdateAssignee(ctx, kr.ID, &tgt.OwnerID); err != nil {
			return err
		}
	}

	link.OwnershipTransferredAt = &now
	return nil
}

func (s *linkService) Resubmit(ctx context.Context, actor models.Actor, linkID uuid.UUID, note string) (*models.OkrLink, error) {
	var link *models.OkrLink
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		link, err = s.linkRepo.GetByIDForUpdate(ctx, linkID)
		if err != nil {
			return err
		}

		if actor.UserID != link.RequestedBy && !actor.IsAdmin() {
			return apperrors.ErrNotAuthorized
		}
		if link.Status != models.LinkStatusNeedsChanges {
			return apperrors.ErrInvalidTransition
		}

		link.Status = models.LinkStatusPending
		if note != "" {
			link.RequestNote = note
		}

		if err := s.linkRepo.Update(ctx, link); err != nil {
			return err
		}
		return s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
			LinkID:  link.ID,
			Action:  models.LinkActionResubmitted,
			ActorID: actor.UserID,
			Note:    note,
		})
	})
	if err != nil {
		return nil, err
	}

	return link, nil
}

func (s *linkService) Cancel(ctx context.Context, actor models.Actor, linkID uuid.UUID, keepOwnership bool) (*models.OkrLink, error) {
	var link *models.OkrLink
	err := database.WithTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		link, err = s.linkRepo.GetByIDForUpdate(ctx, linkID)
		if err != nil {
			return err
		}

		if err := s.authorizeCancel(ctx, actor, link); err != nil {
			return err
		}

		switch {
		case link.Status == models.LinkStatusPending || link.Status == models.LinkStatusNeedsChanges:
			link.Status = models.LinkStatusCancelled
			link.IsActive = false

			if err := s.linkRepo.Update(ctx, link); err != nil {
				return err
			}
			return s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
				LinkID:  link.ID,
				Action:  models.LinkActionCancelled,
				ActorID: actor.UserID,
			})

		case link.IsApprovedActive():
			// Revocation keeps status=approved for history; is_active and
			// revoked_at carry the terminal state.
			now := s.clock.Now()
			link.IsActive = false
			link.RevokedAt = &now

			if !keepOwnership && link.OwnershipTransferredAt != nil {
				if err := s.revertOwnership(ctx, link); err != nil {
					return err
				}
			}

			if err := s.linkRepo.Update(ctx, link); err != nil {
				return err
			}
			return s.linkRepo.AppendEvent(ctx, &models.LinkEvent{
				LinkID:  link.ID,
				Action:  models.LinkActionRevoked,
				ActorID: actor.UserID,
			})
		}

		return apperrors.ErrInvalidTransition
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Alignment link cancelled",
		zap.String("link_id", linkID.String()),
		zap.String("status", string(link.Status)),
		zap.Bool("keep_ownership", keepOwnership))

	return link, nil
}

func (s *linkService) authorizeCancel(ctx context.Context, actor models.Actor, link *models.OkrLink) error {
	if actor.IsAdmin() || actor.UserID == link.RequestedBy {
		return nil
	}
	src, err := s.resolveEndpoint(ctx, link.Source)
	if err != nil {
		return err
	}
	if actor.UserID != src.OwnerID {
		return apperrors.ErrNotAuthorized
	}
	return nil
}

// revertOwnership restores the owner captured at transfer time.
func (s *linkService) revertOwnership(ctx context.Context, link *models.OkrLink) error {
	if link.PreviousOwnerID == nil {
		return nil
	}

	switch link.Source.Kind {
	case models.EndpointObjective:
		return s.objectiveRepo.UpdateOwnership(ctx, link.Source.ID, *link.PreviousOwnerID, link.PreviousDepartmentID)
	case models.EndpointKeyResult:
		return s.krRepo.UpdateAssignee(ctx, link.Source.ID, link.PreviousOwnerID)
	}
	return nil
}

func (s *linkService) GetLink(ctx context.Context, linkID uuid.UUID) (*models.OkrLink, error) {
	return s.linkRepo.GetByID(ctx, linkID)
}

func (s *linkService) GetEvents(ctx context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error) {
	if _, err := s.linkRepo.GetByID(ctx, linkID); err != nil {
		return nil, err
	}
	return s.linkRepo.ListEventsByLink(ctx, linkID)
}
