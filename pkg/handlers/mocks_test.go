package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockLinkServiceForHandler implements services.LinkService for handler tests.
type mockLinkServiceForHandler struct {
	link   *models.OkrLink
	events []*models.LinkEvent

	requestErr  error
	decideErr   error
	resubmitErr error
	cancelErr   error
	getErr      error
	eventsErr   error

	lastSource            models.LinkEndpoint
	lastTarget            models.LinkEndpoint
	lastDecision          models.LinkStatus
	lastTransferOwnership bool
	lastKeepOwnership     bool
	lastNote              string
}

func (m *mockLinkServiceForHandler) RequestLink(ctx context.Context, actor models.Actor, source, target models.LinkEndpoint, note string) (*models.OkrLink, error) {
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	m.lastSource = source
	m.lastTarget = target
	m.lastNote = note
	return m.link, nil
}

func (m *mockLinkServiceForHandler) Decide(ctx context.Context, actor models.Actor, linkID uuid.UUID, decision models.LinkStatus, note string, transferOwnership bool) (*models.OkrLink, error) {
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	m.lastDecision = decision
	m.lastNote = note
	m.lastTransferOwnership = transferOwnership
	return m.link, nil
}

func (m *mockLinkServiceForHandler) Resubmit(ctx context.Context, actor models.Actor, linkID uuid.UUID, note string) (*models.OkrLink, error) {
	if m.resubmitErr != nil {
		return nil, m.resubmitErr
	}
	m.lastNote = note
	return m.link, nil
}

func (m *mockLinkServiceForHandler) Cancel(ctx context.Context, actor models.Actor, linkID uuid.UUID, keepOwnership bool) (*models.OkrLink, error) {
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	m.lastKeepOwnership = keepOwnership
	return m.link, nil
}

func (m *mockLinkServiceForHandler) GetLink(ctx context.Context, linkID uuid.UUID) (*models.OkrLink, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.link, nil
}

func (m *mockLinkServiceForHandler) GetEvents(ctx context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error) {
	if m.eventsErr != nil {
		return nil, m.eventsErr
	}
	return m.events, nil
}

// mockCheckInServiceForHandler implements services.CheckInService for handler tests.
type mockCheckInServiceForHandler struct {
	checkIn  *models.CheckIn
	checkIns []*models.CheckIn

	createErr error
	deleteErr error
	listErr   error

	lastInput services.CheckInInput
	deleted   []uuid.UUID
}

func (m *mockCheckInServiceForHandler) Create(ctx context.Context, actor models.Actor, keyResultID uuid.UUID, input services.CheckInInput) (*models.CheckIn, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.lastInput = input
	return m.checkIn, nil
}

func (m *mockCheckInServiceForHandler) Delete(ctx context.Context, actor models.Actor, checkInID uuid.UUID) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, checkInID)
	return nil
}

func (m *mockCheckInServiceForHandler) ListByKeyResult(ctx context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.checkIns, nil
}

// mockCycleServiceForHandler implements services.CycleService for handler tests.
type mockCycleServiceForHandler struct {
	cycle *models.Cycle

	getErr   error
	closeErr error

	lastForce bool
}

func (m *mockCycleServiceForHandler) GetCycle(ctx context.Context, id uuid.UUID) (*models.Cycle, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.cycle, nil
}

func (m *mockCycleServiceForHandler) GetActiveCycle(ctx context.Context) (*models.Cycle, error) {
	return m.cycle, nil
}

func (m *mockCycleServiceForHandler) Close(ctx context.Context, actor models.Actor, cycleID uuid.UUID, force bool) (*models.Cycle, error) {
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	m.lastForce = force
	return m.cycle, nil
}

// mockDashboardServiceForHandler implements services.DashboardService for handler tests.
type mockDashboardServiceForHandler struct {
	dashboard *services.Dashboard
	getErr    error

	lastAt      time.Time
	invalidated []uuid.UUID
}

func (m *mockDashboardServiceForHandler) GetDashboard(ctx context.Context, userID uuid.UUID, at time.Time) (*services.Dashboard, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.lastAt = at
	return m.dashboard, nil
}

func (m *mockDashboardServiceForHandler) InvalidateOrgCache(ctx context.Context, cycleID uuid.UUID) {
	m.invalidated = append(m.invalidated, cycleID)
}

// mockTreeServiceForHandler implements services.TreeService for handler tests.
type mockTreeServiceForHandler struct {
	tree     *services.TreeNode
	buildErr error

	lastCycleID  *uuid.UUID
	lastMaxDepth int
}

func (m *mockTreeServiceForHandler) BuildTree(ctx context.Context, objectiveID uuid.UUID, cycleID *uuid.UUID, maxDepth int) (*services.TreeNode, error) {
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	m.lastCycleID = cycleID
	m.lastMaxDepth = maxDepth
	return m.tree, nil
}

// mockObjectiveServiceForHandler implements services.ObjectiveService for handler tests.
type mockObjectiveServiceForHandler struct {
	detail    *services.ObjectiveDetail
	summaries []services.ObjectiveSummary

	getErr  error
	listErr error

	lastLevel *models.Level
}

func (m *mockObjectiveServiceForHandler) Get(ctx context.Context, objectiveID uuid.UUID) (*services.ObjectiveDetail, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.detail, nil
}

func (m *mockObjectiveServiceForHandler) List(ctx context.Context, cycleID uuid.UUID, level *models.Level) ([]services.ObjectiveSummary, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.lastLevel = level
	return m.summaries, nil
}

// actorRequest wraps req with an authenticated actor, the way the middleware
// does for real requests.
func actorRequest(req *http.Request, actor models.Actor) *http.Request {
	return req.WithContext(models.WithActor(req.Context(), actor))
}
