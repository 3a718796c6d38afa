package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
)

// DefaultTreeMaxDepth caps alignment tree recursion. The level-ordering
// invariant should keep real trees shallow; the cap guarantees termination
// even if a bad approval ever closed a cycle.
const DefaultTreeMaxDepth = 10

// TreeNode is one node of an alignment tree: an Objective or a Key Result
// with its computed progress and children.
type TreeNode struct {
	Type       models.EndpointKind  `json:"type"`
	ID         uuid.UUID            `json:"id"`
	Title      string               `json:"title"`
	Progress   float64              `json:"progress"`
	Level      models.Level         `json:"level,omitempty"`
	CycleID    uuid.UUID            `json:"cycle_id,omitempty"`
	OwnerID    uuid.UUID            `json:"owner_id,omitempty"`
	AssigneeID *uuid.UUID           `json:"assignee_id,omitempty"`
	Unit       models.KeyResultUnit `json:"unit,omitempty"`
	Children   []*TreeNode          `json:"children"`
}

// TreeService assembles the alignment tree rooted at an Objective. Building
// is read-only and never fails on a malformed link graph: traversal is
// depth-capped instead.
type TreeService interface {
	// BuildTree assembles the tree rooted at objectiveID. cycleID, when
	// non-nil, filters linked children to sources belonging to that cycle.
	// maxDepth <= 0 selects DefaultTreeMaxDepth.
	BuildTree(ctx context.Context, objectiveID uuid.UUID, cycleID *uuid.UUID, maxDepth int) (*TreeNode, error)
}

type treeService struct {
	objectiveRepo repositories.ObjectiveRepository
	krRepo        repositories.KeyResultRepository
	linkRepo      repositories.OkrLinkRepository
	progress      ProgressService
	logger        *zap.Logger
}

// NewTreeService creates a new TreeService.
func NewTreeService(
	objectiveRepo repositories.ObjectiveRepository,
	krRepo repositories.KeyResultRepository,
	linkRepo repositories.OkrLinkRepository,
	progress ProgressService,
	logger *zap.Logger,
) TreeService {
	return &treeService{
		objectiveRepo: objectiveRepo,
		krRepo:        krRepo,
		linkRepo:      linkRepo,
		progress:      progress,
		logger:        logger.Named("tree-service"),
	}
}

var _ TreeService = (*treeService)(nil)

func (s *treeService) BuildTree(ctx context.Context, objectiveID uuid.UUID, cycleID *uuid.UUID, maxDepth int) (*TreeNode, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultTreeMaxDepth
	}

	objective, err := s.objectiveRepo.GetByID(ctx, objectiveID)
	if err != nil {
		return nil, err
	}

	return s.buildObjectiveNode(ctx, objective, cycleID, 0, maxDepth)
}

func (s *treeService) buildObjectiveNode(ctx context.Context, objective *models.Objective, cycleID *uuid.UUID, depth, maxDepth int) (*TreeNode, error) {
	progress, err := s.progress.ObjectiveProgress(ctx, objective.ID)
	if err != nil {
		return nil, fmt.Errorf("objective progress for tree node: %w", err)
	}

	node := &TreeNode{
		Type:     models.EndpointObjective,
		ID:       objective.ID,
		Title:    objective.Title,
		Progress: progress,
		Level:    objective.Level,
		CycleID:  objective.CycleID,
		OwnerID:  objective.OwnerID,
		Children: []*TreeNode{},
	}

	if depth >= maxDepth {
		return node, nil
	}

	seen := map[uuid.UUID]bool{}

	// (a) Direct non-archived Key Results.
	krs, err := s.krRepo.GetByObjective(ctx, objective.ID)
	if err != nil {
		return nil, fmt.Errorf("key results for tree node: %w", err)
	}
	krNodes := make(map[uuid.UUID]*TreeNode, len(krs))
	krIDs := make([]uuid.UUID, 0, len(krs))
	for _, kr := range krs {
		if seen[kr.ID] {
			continue
		}
		seen[kr.ID] = true
		krNode, err := s.buildKeyResultNode(ctx, kr)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, krNode)
		krNodes[kr.ID] = krNode
		krIDs = append(krIDs, kr.ID)
	}

	// (b) Entities aligned into this Objective as a whole.
	objectiveLinks, err := s.linkRepo.ListApprovedActiveByTargetObjective(ctx, objective.ID)
	if err != nil {
		return nil, fmt.Errorf("links into objective: %w", err)
	}
	for _, link := range objectiveLinks {
		child, err := s.buildSourceNode(ctx, link, cycleID, depth, maxDepth, seen)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}

	// (c) Entities aligned into one of this Objective's Key Results attach
	// under that Key Result node, not the Objective.
	krLinks, err := s.linkRepo.ListApprovedActiveByTargetKeyResults(ctx, krIDs)
	if err != nil {
		return nil, fmt.Errorf("links into key results: %w", err)
	}
	for _, link := range krLinks {
		parent, ok := krNodes[link.Target.ID]
		if !ok {
			continue
		}
		child, err := s.buildSourceNode(ctx, link, cycleID, depth, maxDepth, seen)
		if err != nil {
			return nil, err
		}
		if child != nil {
			parent.Children = append(parent.Children, child)
		}
	}

	return node, nil
}

// buildSourceNode resolves a link's source into a child node, honoring the
// cycle filter and the per-parent de-duplication set. Returns nil for
// sources that are filtered out, archived, or already present.
func (s *treeService) buildSourceNode(ctx context.Context, link *models.OkrLink, cycleID *uuid.UUID, depth, maxDepth int, seen map[uuid.UUID]bool) (*TreeNode, error) {
	if seen[link.Source.ID] {
		return nil, nil
	}

	switch link.Source.Kind {
	case models.EndpointObjective:
		source, err := s.objectiveRepo.GetByID(ctx, link.Source.ID)
		if err != nil {
			// A dangling link must not break tree rendering.
			s.logger.Warn("Skipping unresolvable link source",
				zap.String("link_id", link.ID.String()),
				zap.Error(err))
			return nil, nil
		}
		if source.IsArchived() {
			return nil, nil
		}
		// The cycle filter applies to the source side only: a cross-cycle
		// link is still traversed when its source belongs to the filter.
		if cycleID != nil && source.CycleID != *cycleID {
			return nil, nil
		}
		seen[link.Source.ID] = true
		return s.buildObjectiveNode(ctx, source, cycleID, depth+1, maxDepth)

	case models.EndpointKeyResult:
		source, err := s.krRepo.GetByID(ctx, link.Source.ID)
		if err != nil {
			s.logger.Warn("Skipping unresolvable link source",
				zap.String("link_id", link.ID.String()),
				zap.Error(err))
			return nil, nil
		}
		if source.IsArchived() {
			return nil, nil
		}
		if cycleID != nil {
			owner, err := s.objectiveRepo.GetByID(ctx, source.ObjectiveID)
			if err != nil || owner.CycleID != *cycleID {
				return nil, nil
			}
		}
		seen[link.Source.ID] = true
		return s.buildKeyResultNode(ctx, source)
	}

	return nil, nil
}

func (s *treeService) buildKeyResultNode(ctx context.Context, kr *models.KeyResult) (*TreeNode, error) {
	progress, err := s.progress.KeyResultProgress(ctx, kr)
	if err != nil {
		return nil, fmt.Errorf("key result progress for tree node: %w", err)
	}

	return &TreeNode{
		Type:       models.EndpointKeyResult,
		ID:         kr.ID,
		Title:      kr.Title,
		Progress:   progress,
		AssigneeID: kr.AssigneeID,
		Unit:       kr.Unit,
		Children:   []*TreeNode{},
	}, nil
}
