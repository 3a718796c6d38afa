package services

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
)

// companyLevelWeight is the extra weight company-level Objectives carry in
// the weighted organization average.
const companyLevelWeight = 1.5

// ============================================================================
// Pure computation
// ============================================================================

// ClampPercent bounds a progress value to [0,100] and rounds to 2 decimals.
func ClampPercent(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*100) / 100
}

// KeyResultProgress derives a Key Result's progress, in priority order:
// the most recent check-in's percent, the KR's own stored percent, the
// current/target ratio, then zero.
func KeyResultProgress(kr *models.KeyResult, latestCheckIn *models.CheckIn) float64 {
	if latestCheckIn != nil {
		return ClampPercent(latestCheckIn.ProgressPercent)
	}
	if kr.ProgressPercent != nil {
		return ClampPercent(*kr.ProgressPercent)
	}
	if kr.TargetValue > 0 {
		return ClampPercent(kr.CurrentValue / kr.TargetValue * 100)
	}
	return 0
}

// MeanProgress is the arithmetic mean of the given progress values, or 0
// for an empty slice. Objective progress is the mean of its direct,
// non-archived Key Results.
func MeanProgress(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return ClampPercent(sum / float64(len(values)))
}

// LevelProgress pairs an Objective's level with its computed progress for
// the weighted organization average.
type LevelProgress struct {
	Level    models.Level
	Progress float64
}

// WeightedOrgAverage averages Objective progress with company-level
// Objectives weighted 1.5 and all others 1.0. Used only for the company
// OKR overview.
func WeightedOrgAverage(entries []LevelProgress) float64 {
	if len(entries) == 0 {
		return 0
	}
	var sum, weights float64
	for _, e := range entries {
		w := 1.0
		if e.Level == models.LevelCompany {
			w = companyLevelWeight
		}
		sum += e.Progress * w
		weights += w
	}
	return ClampPercent(sum / weights)
}

// AtRisk classifies a Key Result for risk reporting. Key Results with zero
// check-ins are never at risk: not yet started is distinct from falling
// behind.
func AtRisk(progress float64, checkInCount int, threshold float64) bool {
	return checkInCount > 0 && progress < threshold
}

// ============================================================================
// ProgressService
// ============================================================================

// ProgressService computes derived progress for Key Results, Objectives,
// and organization-wide averages. All reads, no writes.
type ProgressService interface {
	// KeyResultProgress computes a Key Result's progress from its latest
	// check-in, stored percent, or value ratio.
	KeyResultProgress(ctx context.Context, kr *models.KeyResult) (float64, error)
	// ObjectiveProgress computes the mean progress of an Objective's direct
	// non-archived Key Results.
	ObjectiveProgress(ctx context.Context, objectiveID uuid.UUID) (float64, error)
	// OrgAverage computes the plain mean of all company-level Objectives'
	// progress in a cycle.
	OrgAverage(ctx context.Context, cycleID uuid.UUID) (float64, error)
	// WeightedOrgAverage computes the level-weighted mean over every
	// non-archived Objective in a cycle.
	WeightedOrgAverage(ctx context.Context, cycleID uuid.UUID) (float64, error)
}

type progressService struct {
	objectiveRepo repositories.ObjectiveRepository
	krRepo        repositories.KeyResultRepository
	checkInRepo   repositories.CheckInRepository
	logger        *zap.Logger
}

// NewProgressService creates a new ProgressService.
func NewProgressService(
	objectiveRepo repositories.ObjectiveRepository,
	krRepo repositories.KeyResultRepository,
	checkInRepo repositories.CheckInRepository,
	logger *zap.Logger,
) ProgressService {
	return &progressService{
		objectiveRepo: objectiveRepo,
		krRepo:        krRepo,
		checkInRepo:   checkInRepo,
		logger:        logger.Named("progress-service"),
	}
}

var _ ProgressService = (*progressService)(nil)

func (s *progressService) KeyResultProgress(ctx context.Context, kr *models.KeyResult) (float64, error) {
	latest, err := s.checkInRepo.GetLatestByKeyResult(ctx, kr.ID)
	if err != nil {
		return 0, fmt.Errorf("get latest check-in: %w", err)
	}
	return KeyResultProgress(kr, latest), nil
}

func (s *progressService) ObjectiveProgress(ctx context.Context, objectiveID uuid.UUID) (float64, error) {
	krs, err := s.krRepo.GetByObjective(ctx, objectiveID)
	if err != nil {
		return 0, fmt.Errorf("get key results: %w", err)
	}

	values := make([]float64, 0, len(krs))
	for _, kr := range krs {
		p, err := s.KeyResultProgress(ctx, kr)
		if err != nil {
			return 0, err
		}
		values = append(values, p)
	}

	return MeanProgress(values), nil
}

func (s *progressService) OrgAverage(ctx context.Context, cycleID uuid.UUID) (float64, error) {
	objectives, err := s.objectiveRepo.GetByCycleAndLevel(ctx, cycleID, models.LevelCompany)
	if err != nil {
		return 0, fmt.Errorf("get company objectives: %w", err)
	}

	values := make([]float64, 0, len(objectives))
	for _, o := range objectives {
		p, err := s.ObjectiveProgress(ctx, o.ID)
		if err != nil {
			return 0, err
		}
		values = append(values, p)
	}

	return MeanProgress(values), nil
}

func (s *progressService) WeightedOrgAverage(ctx context.Context, cycleID uuid.UUID) (float64, error) {
	objectives, err := s.objectiveRepo.GetByCycle(ctx, cycleID)
	if err != nil {
		return 0, fmt.Errorf("get cycle objectives: %w", err)
	}

	entries := make([]LevelProgress, 0, len(objectives))
	for _, o := range objectives {
		p, err := s.ObjectiveProgress(ctx, o.ID)
		if err != nil {
			return 0, err
		}
		entries = append(entries, LevelProgress{Level: o.Level, Progress: p})
	}

	return WeightedOrgAverage(entries), nil
}
