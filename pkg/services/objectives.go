package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
)

// ObjectiveDetail is an Objective with its computed progress and direct
// Key Results.
type ObjectiveDetail struct {
	*models.Objective
	Progress   float64             `json:"progress"`
	KeyResults []*models.KeyResult `json:"key_results"`
}

// ObjectiveSummary is an Objective with its computed progress, used by list
// responses.
type ObjectiveSummary struct {
	*models.Objective
	Progress float64 `json:"progress"`
}

// ObjectiveService is the read surface for Objectives.
type ObjectiveService interface {
	Get(ctx context.Context, objectiveID uuid.UUID) (*ObjectiveDetail, error)
	// List returns the non-archived Objectives in a cycle, optionally
	// filtered by level, each with computed progress.
	List(ctx context.Context, cycleID uuid.UUID, level *models.Level) ([]ObjectiveSummary, error)
}

type objectiveService struct {
	objectiveRepo repositories.ObjectiveRepository
	krRepo        repositories.KeyResultRepository
	progress      ProgressService
}

// NewObjectiveService creates a new objective read service.
func NewObjectiveService(
	objectiveRepo repositories.ObjectiveRepository,
	krRepo repositories.KeyResultRepository,
	progress ProgressService,
) ObjectiveService {
	return &objectiveService{
		objectiveRepo: objectiveRepo,
		krRepo:        krRepo,
		progress:      progress,
	}
}

var _ ObjectiveService = (*objectiveService)(nil)

func (s *objectiveService) Get(ctx context.Context, objectiveID uuid.UUID) (*ObjectiveDetail, error) {
	objective, err := s.objectiveRepo.GetByID(ctx, objectiveID)
	if err != nil {
		return nil, err
	}

	progress, err := s.progress.ObjectiveProgress(ctx, objectiveID)
	if err != nil {
		return nil, err
	}

	krs, err := s.krRepo.GetByObjective(ctx, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("get key results: %w", err)
	}

	return &ObjectiveDetail{Objective: objective, Progress: progress, KeyResults: krs}, nil
}

func (s *objectiveService) List(ctx context.Context, cycleID uuid.UUID, level *models.Level) ([]ObjectiveSummary, error) {
	var (
		objectives []*models.Objective
		err        error
	)
	if level != nil {
		objectives, err = s.objectiveRepo.GetByCycleAndLevel(ctx, cycleID, *level)
	} else {
		objectives, err = s.objectiveRepo.GetByCycle(ctx, cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("list objectives: %w", err)
	}

	summaries := make([]ObjectiveSummary, 0, len(objectives))
	for _, o := range objectives {
		p, err := s.progress.ObjectiveProgress(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ObjectiveSummary{Objective: o, Progress: p})
	}
	return summaries, nil
}
