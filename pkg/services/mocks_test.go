package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northstar-hq/northstar-engine/pkg/apperrors"
	"github.com/northstar-hq/northstar-engine/pkg/database"
	"github.com/northstar-hq/northstar-engine/pkg/models"
)

// stubTx satisfies pgx.Tx through embedding so WithTx sees an open
// transaction in context and skips Begin/Commit. Repository calls in these
// tests go through mocks and never touch the embedded interface.
type stubTx struct {
	pgx.Tx
}

// txContext returns a context that WithTx treats as already transactional.
func txContext() context.Context {
	return database.WithQuerier(context.Background(), stubTx{})
}

// testTime is a fixed reference instant: Wednesday 2025-03-12 10:00 UTC.
func testTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, "2025-03-12T10:00:00Z")
	if err != nil {
		t.Fatalf("parse test time: %v", err)
	}
	return ts
}

// ===== Objective repository mock =====

type mockObjectiveRepo struct {
	objectives map[uuid.UUID]*models.Objective
	getErr     error
	updateErr  error
}

func newMockObjectiveRepo() *mockObjectiveRepo {
	return &mockObjectiveRepo{objectives: make(map[uuid.UUID]*models.Objective)}
}

func (m *mockObjectiveRepo) add(o *models.Objective) *models.Objective {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	m.objectives[o.ID] = o
	return o
}

func (m *mockObjectiveRepo) Create(_ context.Context, objective *models.Objective) error {
	objective.ID = uuid.New()
	objective.CreatedAt = time.Now()
	objective.UpdatedAt = time.Now()
	m.objectives[objective.ID] = objective
	return nil
}

func (m *mockObjectiveRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Objective, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.objectives[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return o, nil
}

func (m *mockObjectiveRepo) GetByCycle(_ context.Context, cycleID uuid.UUID) ([]*models.Objective, error) {
	var result []*models.Objective
	for _, o := range m.objectives {
		if o.CycleID == cycleID && !o.IsArchived() {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockObjectiveRepo) GetByCycleAndLevel(_ context.Context, cycleID uuid.UUID, level models.Level) ([]*models.Objective, error) {
	var result []*models.Objective
	for _, o := range m.objectives {
		if o.CycleID == cycleID && o.Level == level && !o.IsArchived() {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockObjectiveRepo) GetByOwner(_ context.Context, ownerID, cycleID uuid.UUID) ([]*models.Objective, error) {
	var result []*models.Objective
	for _, o := range m.objectives {
		if o.OwnerID == ownerID && o.CycleID == cycleID && !o.IsArchived() {
			result = append(result, o)
		}
	}
	return result, nil
}

func (m *mockObjectiveRepo) UpdateProgress(_ context.Context, id uuid.UUID, progressPercent float64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.objectives[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	o.ProgressPercent = progressPercent
	return nil
}

func (m *mockObjectiveRepo) UpdateOwnership(_ context.Context, id uuid.UUID, ownerID uuid.UUID, departmentID *uuid.UUID) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.objectives[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	o.OwnerID = ownerID
	o.DepartmentID = departmentID
	return nil
}

func (m *mockObjectiveRepo) Archive(_ context.Context, id uuid.UUID) error {
	o, ok := m.objectives[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	o.ArchivedAt = &now
	return nil
}

// ===== Key Result repository mock =====

type mockKeyResultRepo struct {
	keyResults map[uuid.UUID]*models.KeyResult
	objectives *mockObjectiveRepo
	getErr     error
	updateErr  error
}

func newMockKeyResultRepo(objectives *mockObjectiveRepo) *mockKeyResultRepo {
	return &mockKeyResultRepo{
		keyResults: make(map[uuid.UUID]*models.KeyResult),
		objectives: objectives,
	}
}

func (m *mockKeyResultRepo) add(kr *models.KeyResult) *models.KeyResult {
	if kr.ID == uuid.Nil {
		kr.ID = uuid.New()
	}
	if kr.Weight == 0 {
		kr.Weight = 1
	}
	m.keyResults[kr.ID] = kr
	return kr
}

func (m *mockKeyResultRepo) Create(_ context.Context, kr *models.KeyResult) error {
	kr.ID = uuid.New()
	m.keyResults[kr.ID] = kr
	return nil
}

func (m *mockKeyResultRepo) GetByID(_ context.Context, id uuid.UUID) (*models.KeyResult, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	kr, ok := m.keyResults[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return kr, nil
}

func (m *mockKeyResultRepo) GetByObjective(_ context.Context, objectiveID uuid.UUID) ([]*models.KeyResult, error) {
	var result []*models.KeyResult
	for _, kr := range m.keyResults {
		if kr.ObjectiveID == objectiveID && !kr.IsArchived() {
			result = append(result, kr)
		}
	}
	return result, nil
}

func (m *mockKeyResultRepo) GetByAssignee(_ context.Context, assigneeID uuid.UUID) ([]*models.KeyResult, error) {
	var result []*models.KeyResult
	for _, kr := range m.keyResults {
		if kr.AssigneeID != nil && *kr.AssigneeID == assigneeID && !kr.IsArchived() {
			result = append(result, kr)
		}
	}
	return result, nil
}

func (m *mockKeyResultRepo) UpdateValues(_ context.Context, id uuid.UUID, currentValue float64, progressPercent *float64) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	kr, ok := m.keyResults[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	kr.CurrentValue = currentValue
	kr.ProgressPercent = progressPercent
	return nil
}

func (m *mockKeyResultRepo) UpdateAssignee(_ context.Context, id uuid.UUID, assigneeID *uuid.UUID) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	kr, ok := m.keyResults[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	kr.AssigneeID = assigneeID
	return nil
}

func (m *mockKeyResultRepo) ListAssigneesByCycle(_ context.Context, cycleID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var result []uuid.UUID
	for _, kr := range m.keyResults {
		if kr.AssigneeID == nil || kr.IsArchived() {
			continue
		}
		o, ok := m.objectives.objectives[kr.ObjectiveID]
		if !ok || o.CycleID != cycleID || o.IsArchived() {
			continue
		}
		if !seen[*kr.AssigneeID] {
			seen[*kr.AssigneeID] = true
			result = append(result, *kr.AssigneeID)
		}
	}
	return result, nil
}

func (m *mockKeyResultRepo) Archive(_ context.Context, id uuid.UUID) error {
	kr, ok := m.keyResults[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	kr.ArchivedAt = &now
	return nil
}

// ===== Check-in repository mock =====

type mockCheckInRepo struct {
	checkIns  []*models.CheckIn
	createErr error
}

func newMockCheckInRepo() *mockCheckInRepo {
	return &mockCheckInRepo{}
}

func (m *mockCheckInRepo) add(c *models.CheckIn) *models.CheckIn {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.checkIns = append(m.checkIns, c)
	return c
}

func (m *mockCheckInRepo) Create(_ context.Context, checkIn *models.CheckIn) error {
	if m.createErr != nil {
		return m.createErr
	}
	checkIn.ID = uuid.New()
	if checkIn.CreatedAt.IsZero() {
		checkIn.CreatedAt = time.Now()
	}
	m.checkIns = append(m.checkIns, checkIn)
	return nil
}

func (m *mockCheckInRepo) GetByID(_ context.Context, id uuid.UUID) (*models.CheckIn, error) {
	for _, c := range m.checkIns {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockCheckInRepo) Delete(_ context.Context, id uuid.UUID) error {
	for i, c := range m.checkIns {
		if c.ID == id {
			m.checkIns = append(m.checkIns[:i], m.checkIns[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockCheckInRepo) GetLatestByKeyResult(_ context.Context, keyResultID uuid.UUID) (*models.CheckIn, error) {
	var latest *models.CheckIn
	for _, c := range m.checkIns {
		if c.KeyResultID != keyResultID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	return latest, nil
}

func (m *mockCheckInRepo) ListByKeyResult(_ context.Context, keyResultID uuid.UUID) ([]*models.CheckIn, error) {
	var result []*models.CheckIn
	for _, c := range m.checkIns {
		if c.KeyResultID == keyResultID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCheckInRepo) CountByKeyResult(_ context.Context, keyResultID uuid.UUID) (int, error) {
	count := 0
	for _, c := range m.checkIns {
		if c.KeyResultID == keyResultID {
			count++
		}
	}
	return count, nil
}

func (m *mockCheckInRepo) ListAuthorsSince(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var result []uuid.UUID
	for _, c := range m.checkIns {
		if c.CreatedAt.Before(since) || seen[c.AuthorID] {
			continue
		}
		seen[c.AuthorID] = true
		result = append(result, c.AuthorID)
	}
	return result, nil
}

func (m *mockCheckInRepo) AverageConfidenceSince(_ context.Context, since time.Time) (*float64, error) {
	sum, count := 0.0, 0
	for _, c := range m.checkIns {
		if c.CreatedAt.Before(since) || c.Confidence == nil {
			continue
		}
		sum += *c.Confidence
		count++
	}
	if count == 0 {
		return nil, nil
	}
	avg := sum / float64(count)
	return &avg, nil
}

// ===== OKR link repository mock =====

type mockOkrLinkRepo struct {
	links     map[uuid.UUID]*models.OkrLink
	events    []*models.LinkEvent
	createErr error
}

func newMockOkrLinkRepo() *mockOkrLinkRepo {
	return &mockOkrLinkRepo{links: make(map[uuid.UUID]*models.OkrLink)}
}

func (m *mockOkrLinkRepo) add(l *models.OkrLink) *models.OkrLink {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.links[l.ID] = l
	return l
}

func (m *mockOkrLinkRepo) Create(_ context.Context, link *models.OkrLink) error {
	if m.createErr != nil {
		return m.createErr
	}
	link.ID = uuid.New()
	link.CreatedAt = time.Now()
	link.UpdatedAt = time.Now()
	m.links[link.ID] = link
	return nil
}

func (m *mockOkrLinkRepo) GetByID(_ context.Context, id uuid.UUID) (*models.OkrLink, error) {
	l, ok := m.links[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return l, nil
}

func (m *mockOkrLinkRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.OkrLink, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOkrLinkRepo) Update(_ context.Context, link *models.OkrLink) error {
	if _, ok := m.links[link.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.links[link.ID] = link
	return nil
}

func (m *mockOkrLinkRepo) ExistsActive(_ context.Context, source, target models.LinkEndpoint) (bool, error) {
	for _, l := range m.links {
		if l.Source == source && l.Target == target && l.IsActive &&
			l.Status != models.LinkStatusRejected && l.Status != models.LinkStatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOkrLinkRepo) ListApprovedActiveByTargetObjective(_ context.Context, objectiveID uuid.UUID) ([]*models.OkrLink, error) {
	var result []*models.OkrLink
	for _, l := range m.links {
		if l.Target == models.ObjectiveEndpoint(objectiveID) && l.IsApprovedActive() {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockOkrLinkRepo) ListApprovedActiveByTargetKeyResults(_ context.Context, keyResultIDs []uuid.UUID) ([]*models.OkrLink, error) {
	var result []*models.OkrLink
	for _, l := range m.links {
		for _, id := range keyResultIDs {
			if l.Target == models.KeyResultEndpoint(id) && l.IsApprovedActive() {
				result = append(result, l)
			}
		}
	}
	return result, nil
}

func (m *mockOkrLinkRepo) ListActiveBySource(_ context.Context, source models.LinkEndpoint) ([]*models.OkrLink, error) {
	var result []*models.OkrLink
	for _, l := range m.links {
		if l.Source == source && l.IsActive &&
			(l.Status == models.LinkStatusPending || l.Status == models.LinkStatusApproved) {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *mockOkrLinkRepo) AppendEvent(_ context.Context, event *models.LinkEvent) error {
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	m.events = append(m.events, event)
	return nil
}

func (m *mockOkrLinkRepo) ListEventsByLink(_ context.Context, linkID uuid.UUID) ([]*models.LinkEvent, error) {
	var result []*models.LinkEvent
	for _, e := range m.events {
		if e.LinkID == linkID {
			result = append(result, e)
		}
	}
	return result, nil
}

// eventActions returns the recorded actions for a link, in append order.
func (m *mockOkrLinkRepo) eventActions(linkID uuid.UUID) []string {
	var actions []string
	for _, e := range m.events {
		if e.LinkID == linkID {
			actions = append(actions, e.Action)
		}
	}
	return actions
}

// ===== Cycle repository mock =====

type mockCycleRepo struct {
	cycles   map[uuid.UUID]*models.Cycle
	closeErr error
}

func newMockCycleRepo() *mockCycleRepo {
	return &mockCycleRepo{cycles: make(map[uuid.UUID]*models.Cycle)}
}

func (m *mockCycleRepo) add(c *models.Cycle) *models.Cycle {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.cycles[c.ID] = c
	return c
}

func (m *mockCycleRepo) Create(_ context.Context, cycle *models.Cycle) error {
	cycle.ID = uuid.New()
	m.cycles[cycle.ID] = cycle
	return nil
}

func (m *mockCycleRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Cycle, error) {
	c, ok := m.cycles[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (m *mockCycleRepo) GetActive(_ context.Context) (*models.Cycle, error) {
	for _, c := range m.cycles {
		if c.Status == models.CycleStatusActive {
			return c, nil
		}
	}
	return nil, nil
}

func (m *mockCycleRepo) Close(_ context.Context, id uuid.UUID, closedAt time.Time) error {
	if m.closeErr != nil {
		return m.closeErr
	}
	c, ok := m.cycles[id]
	if !ok || c.Status != models.CycleStatusActive {
		return apperrors.ErrNotFound
	}
	c.Status = models.CycleStatusInactive
	c.ClosedAt = &closedAt
	return nil
}
