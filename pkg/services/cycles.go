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

// CycleService closes OKR cycles, pinning final computed progress onto every
// Objective in the cycle before flipping its status. The whole close is one
// transaction: a failure anywhere leaves the cycle active and every
// Objective's stored progress untouched.
type CycleService interface {
	GetCycle(ctx context.Context, id uuid.UUID) (*models.Cycle, error)
	GetActiveCycle(ctx context.Context) (*models.Cycle, error)
	// Close snapshots progress for all non-archived Objectives in the cycle
	// and marks it inactive. A cycle whose end date has not passed needs
	// force; admins only.
	Close(ctx context.Context, actor models.Actor, cycleID uuid.UUID, force bool) (*models.Cycle, error)
}

type cycleService struct {
	db            *database.DB
	cycleRepo     repositories.CycleRepository
	objectiveRepo repositories.ObjectiveRepository
	progress      ProgressService
	clock         Clock
	logger        *zap.Logger
}

// NewCycleService creates a new CycleService.
func NewCycleService(
	db *database.DB,
	cycleRepo repositories.CycleRepository,
	objectiveRepo repositories.ObjectiveRepository,
	progress ProgressService,
	clock Clock,
	logger *zap.Logger,
) CycleService {
	return &cycleService{
		db:            db,
		cycleRepo:     cycleRepo,
		objectiveRepo: objectiveRepo,
		progress:      progress,
		clock:         clock,
		logger:        logger.Named("cycle-service"),
	}
}

var _ CycleService = (*cycleService)(nil)

func (s *cycleService) GetCycle(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	return s.cycleRepo.GetByID(ctx, id)
}

func (s *cycleService) GetActiveCycle(ctx context.Context) (*models.Cycle, error) {
	return s.cycleRepo.GetActive(ctx)
}

func (s *cycleService) Close(ctx context.Context, actor models.Actor, cycleID uuid.UUID, force bool) (*models.Cycle, error) {
	if !actor.IsAdmin() {
		return nil, apperrors.ErrNotAuthorized
	}

	cycle, err := s.cycleRepo.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusActive {
		return nil, apperrors.ErrInvalidTransition
	}

	now := s.clock.Now()
	if !cycle.HasEnded(now) && !force {
		return nil, apperrors.ErrCycleNotEnded
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		objectives, err := s.objectiveRepo.GetByCycle(ctx, cycleID)
		if err != nil {
			return err
		}

		for _, objective := range objectives {
			progress, err := s.progress.ObjectiveProgress(ctx, objective.ID)
			if err != nil {
				return fmt.Errorf("snapshot progress for objective %s: %w", objective.ID, err)
			}
			if err := s.objectiveRepo.UpdateProgress(ctx, objective.ID, progress); err != nil {
				return fmt.Errorf("persist progress for objective %s: %w", objective.ID, err)
			}
		}

		return s.cycleRepo.Close(ctx, cycleID, now)
	})
	if err != nil {
		return nil, err
	}

	cycle.Status = models.CycleStatusInactive
	cycle.ClosedAt = &now

	s.logger.Info("Cycle closed",
		zap.String("cycle_id", cycleID.String()),
		zap.Bool("force", force),
		zap.String("actor", actor.UserID.String()))

	return cycle, nil
}
