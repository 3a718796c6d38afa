package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/apperrors"
	"github.com/northstar-hq/northstar-engine/pkg/models"
)

func adminActor() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
}

func TestCyclesHandler_Get_ReturnsCycle(t *testing.T) {
	cycle := &models.Cycle{
		ID:        uuid.New(),
		Name:      "Q1 2025",
		StartDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Status:    models.CycleStatusActive,
	}
	handler := NewCyclesHandler(&mockCycleServiceForHandler{cycle: cycle}, &mockDashboardServiceForHandler{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/cycles/"+cycle.ID.String(), nil)
	req.SetPathValue("cyid", cycle.ID.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Success)

	dataBytes, err := json.Marshal(response.Data)
	require.NoError(t, err)

	var got models.Cycle
	require.NoError(t, json.Unmarshal(dataBytes, &got))
	assert.Equal(t, "Q1 2025", got.Name)
}

func TestCyclesHandler_Get_NotFound(t *testing.T) {
	handler := NewCyclesHandler(&mockCycleServiceForHandler{getErr: apperrors.ErrNotFound}, &mockDashboardServiceForHandler{}, zap.NewNop())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/cycles/"+id.String(), nil)
	req.SetPathValue("cyid", id.String())
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCyclesHandler_Close_InvalidatesOrgCache(t *testing.T) {
	closedAt := time.Now()
	cycle := &models.Cycle{
		ID:       uuid.New(),
		Name:     "Q1 2025",
		Status:   models.CycleStatusInactive,
		ClosedAt: &closedAt,
	}
	mockCycles := &mockCycleServiceForHandler{cycle: cycle}
	mockDashboard := &mockDashboardServiceForHandler{}
	handler := NewCyclesHandler(mockCycles, mockDashboard, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/cycles/"+cycle.ID.String()+"/close", nil)
	req.SetPathValue("cyid", cycle.ID.String())
	req = actorRequest(req, adminActor())
	rec := httptest.NewRecorder()

	handler.Close(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, mockCycles.lastForce)
	assert.Equal(t, []uuid.UUID{cycle.ID}, mockDashboard.invalidated)
}

func TestCyclesHandler_Close_ForceQueryParam(t *testing.T) {
	cycle := &models.Cycle{ID: uuid.New(), Status: models.CycleStatusInactive}
	mockCycles := &mockCycleServiceForHandler{cycle: cycle}
	handler := NewCyclesHandler(mockCycles, &mockDashboardServiceForHandler{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/cycles/"+cycle.ID.String()+"/close?force=true", nil)
	req.SetPathValue("cyid", cycle.ID.String())
	req = actorRequest(req, adminActor())
	rec := httptest.NewRecorder()

	handler.Close(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mockCycles.lastForce)
}

func TestCyclesHandler_Close_NotEnded(t *testing.T) {
	mockDashboard := &mockDashboardServiceForHandler{}
	handler := NewCyclesHandler(&mockCycleServiceForHandler{closeErr: apperrors.ErrCycleNotEnded}, mockDashboard, zap.NewNop())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/cycles/"+id.String()+"/close", nil)
	req.SetPathValue("cyid", id.String())
	req = actorRequest(req, adminActor())
	rec := httptest.NewRecorder()

	handler.Close(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, mockDashboard.invalidated)
}

func TestCyclesHandler_Close_NonAdminForbidden(t *testing.T) {
	handler := NewCyclesHandler(&mockCycleServiceForHandler{closeErr: apperrors.ErrNotAuthorized}, &mockDashboardServiceForHandler{}, zap.NewNop())

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/cycles/"+id.String()+"/close", nil)
	req.SetPathValue("cyid", id.String())
	req = actorRequest(req, memberActor())
	rec := httptest.NewRecorder()

	handler.Close(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
