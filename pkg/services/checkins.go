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

// CheckInInput carries the fields of a new check-in.
type CheckInInput struct {
	ProgressValue float64
	CheckInType   models.CheckInType
	Confidence    *float64
	IsCompleted   bool
	Note          string
}

// CheckInService records progress check-ins against Key Results and handles
// deletion with rollback to the previous check-in's values.
type CheckInService interface {
	// Create records a check-in and updates the Key Result's current value
	// and stored progress in the same transaction.
	Create(ctx context.Context, actor models.Actor, keyResultID uuid.UUID, input CheckInInput) (*models.CheckIn, error)
	// Delete removes a check-in. Deleting the most recent one rolls the Key
	// Result back to the next-most-recent check-in's values, or to zero when
	// none remain.
	Delete(ctx context.Context, actor models.Actor, checkInID uuid.UUID) error
	ListByKeyResult(ctx context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error)
}

type checkInService struct {
	db          *database.DB
	checkInRepo repositories.CheckInRepository
	krRepo      repositories.KeyResultRepository
	logger      *zap.Logger
}

// NewCheckInService creates a new CheckInService.
func NewCheckInService(
	db *database.DB,
	checkInRepo repositories.CheckInRepository,
	krRepo repositories.KeyResultRepository,
	logger *zap.Logger,
) CheckInService {
	return &checkInService{
		db:          db,
		checkInRepo: checkInRepo,
		krRepo:      krRepo,
		logger:      logger.Named("checkin-service"),
	}
}

var _ CheckInService = (*checkInService)(nil)

func (s *checkInService) Create(ctx context.Context, actor models.Actor, keyResultID uuid.UUID, input CheckInInput) (*models.CheckIn, error) {
	if !models.IsValidCheckInType(input.CheckInType) {
		return nil, apperrors.NewValidationError("check_in_type", "must be 'percentage' or 'quantity'")
	}
	if input.Confidence != nil && (*input.Confidence < 0 || *input.Confidence > 10) {
		return nil, apperrors.NewValidationError("confidence", "must be between 0 and 10")
	}

	kr, err := s.krRepo.GetByID(ctx, keyResultID)
	if err != nil {
		return nil, err
	}
	if kr.IsArchived() {
		return nil, apperrors.ErrNotFound
	}

	// Percentage check-ins carry the percent directly; quantity check-ins
	// carry the new current value and the percent is derived from the target.
	var percent float64
	switch {
	case input.IsCompleted:
		percent = 100
	case input.CheckInType == models.CheckInTypeQuantity:
		if kr.TargetValue > 0 {
			percent = input.ProgressValue / kr.TargetValue * 100
		}
	default:
		percent = input.ProgressValue
	}
	percent = ClampPercent(percent)

	checkIn := &models.CheckIn{
		KeyResultID:     keyResultID,
		AuthorID:        actor.UserID,
		ProgressValue:   input.ProgressValue,
		ProgressPercent: percent,
		CheckInType:     input.CheckInType,
		Confidence:      input.Confidence,
		IsCompleted:     input.IsCompleted,
		Note:            input.Note,
	}

	err = database.WithTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.checkInRepo.Create(ctx, checkIn); err != nil {
			return err
		}
		return s.krRepo.UpdateValues(ctx, keyResultID, input.ProgressValue, &percent)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Check-in recorded",
		zap.String("key_result_id", keyResultID.String()),
		zap.Float64("progress_percent", percent),
		zap.String("author", actor.UserID.String()))

	return checkIn, nil
}

func (s *checkInService) Delete(ctx context.Context, actor models.Actor, checkInID uuid.UUID) error {
	return database.WithTx(ctx, s.db, func(ctx context.Context) error {
		checkIn, err := s.checkInRepo.GetByID(ctx, checkInID)
		if err != nil {
			return err
		}

		if actor.UserID != checkIn.AuthorID && !actor.IsAdmin() {
			return apperrors.ErrNotAuthorized
		}

		latest, err := s.checkInRepo.GetLatestByKeyResult(ctx, checkIn.KeyResultID)
		if err != nil {
			return err
		}
		wasLatest := latest != nil && latest.ID == checkIn.ID

		if err := s.checkInRepo.Delete(ctx, checkInID); err != nil {
			return err
		}
		if !wasLatest {
			return nil
		}

		// Roll the Key Result back to the next-most-recent check-in.
		previous, err := s.checkInRepo.GetLatestByKeyResult(ctx, checkIn.KeyResultID)
		if err != nil {
			return err
		}
		if previous != nil {
			return s.krRepo.UpdateValues(ctx, checkIn.KeyResultID, previous.ProgressValue, &previous.ProgressPercent)
		}
		return s.krRepo.UpdateValues(ctx, checkIn.KeyResultID, 0, nil)
	})
}

func (s *checkInService) ListByKeyResult(ctx context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error) {
	if _, err := s.krRepo.GetByID(ctx, keyResultID); err != nil {
		return nil, err
	}
	checkIns, err := s.checkInRepo.ListByKeyResult(ctx, keyResultID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	return checkIns, nil
}
