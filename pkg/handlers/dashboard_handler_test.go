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
	"github.com/northstar-hq/northstar-engine/pkg/services"
)

func TestDashboardHandler_Dashboard_ReturnsPayload(t *testing.T) {
	actor := memberActor()
	confidence := 7.5
	dashboard := &services.Dashboard{
		Cycle: &models.Cycle{ID: uuid.New(), Name: "Q1 2025", Status: models.CycleStatusActive},
		Objectives: []services.ObjectiveView{
			{Objective: &models.Objective{ID: uuid.New(), OwnerID: actor.UserID}, Progress: 55},
		},
		KeyResults: []services.KeyResultView{},
		AtRisk:     []services.KeyResultView{},
		Overdue:    []services.KeyResultView{},
		Compliance: services.Compliance{
			CheckedIn:   []uuid.UUID{actor.UserID},
			NeedCheckIn: []uuid.UUID{},
			Confidence:  &confidence,
		},
		Org: services.OrgSummary{Average: 48.2, WeightedAverage: 51.9},
	}
	mockDashboard := &mockDashboardServiceForHandler{dashboard: dashboard}
	handler := NewDashboardHandler(mockDashboard, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = actorRequest(req, actor)
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, mockDashboard.lastAt.IsZero())

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.True(t, response.Success)

	dataBytes, err := json.Marshal(response.Data)
	require.NoError(t, err)

	var got services.Dashboard
	require.NoError(t, json.Unmarshal(dataBytes, &got))
	require.NotNil(t, got.Cycle)
	assert.Equal(t, "Q1 2025", got.Cycle.Name)
	require.Len(t, got.Objectives, 1)
	assert.InDelta(t, 55, got.Objectives[0].Progress, 0.001)
	assert.InDelta(t, 48.2, got.Org.Average, 0.001)
}

func TestDashboardHandler_Dashboard_DateParamPinsNow(t *testing.T) {
	mockDashboard := &mockDashboardServiceForHandler{dashboard: &services.Dashboard{}}
	handler := NewDashboardHandler(mockDashboard, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?date=2025-03-12", nil)
	req = actorRequest(req, memberActor())
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), mockDashboard.lastAt)
}

func TestDashboardHandler_Dashboard_RFC3339Date(t *testing.T) {
	mockDashboard := &mockDashboardServiceForHandler{dashboard: &services.Dashboard{}}
	handler := NewDashboardHandler(mockDashboard, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?date=2025-03-12T10%3A00%3A00Z", nil)
	req = actorRequest(req, memberActor())
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC), mockDashboard.lastAt)
}

func TestDashboardHandler_Dashboard_InvalidDate(t *testing.T) {
	handler := NewDashboardHandler(&mockDashboardServiceForHandler{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard?date=yesterday", nil)
	req = actorRequest(req, memberActor())
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var response ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "invalid_date", response.Error)
}

func TestDashboardHandler_Dashboard_MissingActor(t *testing.T) {
	handler := NewDashboardHandler(&mockDashboardServiceForHandler{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDashboardHandler_Dashboard_ServiceError(t *testing.T) {
	handler := NewDashboardHandler(&mockDashboardServiceForHandler{getErr: apperrors.ErrNotFound}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req = actorRequest(req, memberActor())
	rec := httptest.NewRecorder()

	handler.Dashboard(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
