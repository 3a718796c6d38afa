package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/northstar-hq/northstar-engine/pkg/models"
	"github.com/northstar-hq/northstar-engine/pkg/repositories"
)

// ObjectiveView is an Objective with its computed (not stored) progress.
type ObjectiveView struct {
	Objective *models.Objective `json:"objective"`
	Progress  float64           `json:"progress"`
}

// KeyResultView is a Key Result with computed progress and check-in stats.
// Stale marks views whose latest check-in predates the current reporting week.
type KeyResultView struct {
	KeyResult    *models.KeyResult `json:"key_result"`
	Progress     float64           `json:"progress"`
	CheckInCount int               `json:"check_in_count"`
	LastCheckIn  *time.Time        `json:"last_check_in,omitempty"`
	Stale        bool              `json:"stale"`
}

// Compliance summarizes weekly check-in discipline across the active cycle.
type Compliance struct {
	CheckedIn   []uuid.UUID `json:"checked_in"`
	NeedCheckIn []uuid.UUID `json:"need_check_in"`
	Confidence  *float64    `json:"confidence"`
	Risks       int         `json:"risks"`
}

// OrgSummary is the company-wide progress rollup.
type OrgSummary struct {
	Average         float64 `json:"average"`
	WeightedAverage float64 `json:"weighted_average"`
}

// Dashboard is the aggregate payload for a user's OKR dashboard.
type Dashboard struct {
	Cycle      *models.Cycle   `json:"cycle,omitempty"`
	Objectives []ObjectiveView `json:"objectives"`
	KeyResults []KeyResultView `json:"key_results"`
	AtRisk     []KeyResultView `json:"at_risk"`
	Overdue    []KeyResultView `json:"overdue"`
	Compliance Compliance      `json:"compliance"`
	Org        OrgSummary      `json:"org"`
}

// DashboardConfig holds dashboard tuning knobs.
type DashboardConfig struct {
	RiskThresholdPercent float64
	CacheTTL             time.Duration
}

// DashboardService assembles the per-user dashboard with risk, overdue and
// weekly compliance reporting over the active cycle.
type DashboardService interface {
	// GetDashboard builds the dashboard for a user. A zero `at` means the
	// clock's current time.
	GetDashboard(ctx context.Context, userID uuid.UUID, at time.Time) (*Dashboard, error)
	// InvalidateOrgCache drops the cached org rollup, called on cycle close.
	InvalidateOrgCache(ctx context.Context, cycleID uuid.UUID)
}

type dashboardService struct {
	cycleRepo     repositories.CycleRepository
	objectiveRepo repositories.ObjectiveRepository
	krRepo        repositories.KeyResultRepository
	checkInRepo   repositories.CheckInRepository
	progress      ProgressService
	clock         Clock
	cache         *redis.Client
	cfg           DashboardConfig
	logger        *zap.Logger
}

// NewDashboardService creates a new DashboardService. cache may be nil.
func NewDashboardService(
	cycleRepo repositories.CycleRepository,
	objectiveRepo repositories.ObjectiveRepository,
	krRepo repositories.KeyResultRepository,
	checkInRepo repositories.CheckInRepository,
	progress ProgressService,
	clock Clock,
	cache *redis.Client,
	cfg DashboardConfig,
	logger *zap.Logger,
) DashboardService {
	if cfg.RiskThresholdPercent == 0 {
		cfg.RiskThresholdPercent = 50
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Minute
	}
	return &dashboardService{
		cycleRepo:     cycleRepo,
		objectiveRepo: objectiveRepo,
		krRepo:        krRepo,
		checkInRepo:   checkInRepo,
		progress:      progress,
		clock:         clock,
		cache:         cache,
		cfg:           cfg,
		logger:        logger.Named("dashboard-service"),
	}
}

var _ DashboardService = (*dashboardService)(nil)

func (s *dashboardService) GetDashboard(ctx context.Context, userID uuid.UUID, at time.Time) (*Dashboard, error) {
	if at.IsZero() {
		at = s.clock.Now()
	}

	dashboard := &Dashboard{
		Objectives: []ObjectiveView{},
		KeyResults: []KeyResultView{},
		AtRisk:     []KeyResultView{},
		Overdue:    []KeyResultView{},
	}

	cycle, err := s.cycleRepo.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get active cycle: %w", err)
	}
	if cycle == nil {
		return dashboard, nil
	}
	dashboard.Cycle = cycle

	objectives, err := s.objectiveRepo.GetByOwner(ctx, userID, cycle.ID)
	if err != nil {
		return nil, fmt.Errorf("get user objectives: %w", err)
	}
	for _, o := range objectives {
		p, err := s.progress.ObjectiveProgress(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		dashboard.Objectives = append(dashboard.Objectives, ObjectiveView{Objective: o, Progress: p})
	}

	krs, err := s.krRepo.GetByAssignee(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user key results: %w", err)
	}
	weekStart := startOfWeek(at)
	for _, kr := range krs {
		view, err := s.buildKeyResultView(ctx, kr)
		if err != nil {
			return nil, err
		}
		view.Stale = view.LastCheckIn != nil && view.LastCheckIn.Before(weekStart)
		dashboard.KeyResults = append(dashboard.KeyResults, view)

		// Key Results without a single check-in are excluded from risk and
		// overdue reporting: not yet started is not falling behind.
		if view.CheckInCount == 0 {
			continue
		}
		if AtRisk(view.Progress, view.CheckInCount, s.cfg.RiskThresholdPercent) {
			dashboard.AtRisk = append(dashboard.AtRisk, view)
		}
		if view.Progress < 100 {
			dashboard.Overdue = append(dashboard.Overdue, view)
		}
	}

	compliance, err := s.buildCompliance(ctx, cycle.ID, weekStart, len(dashboard.AtRisk))
	if err != nil {
		return nil, err
	}
	dashboard.Compliance = compliance

	org, err := s.orgSummary(ctx, cycle.ID)
	if err != nil {
		return nil, err
	}
	dashboard.Org = org

	return dashboard, nil
}

func (s *dashboardService) buildKeyResultView(ctx context.Context, kr *models.KeyResult) (KeyResultView, error) {
	latest, err := s.checkInRepo.GetLatestByKeyResult(ctx, kr.ID)
	if err != nil {
		return KeyResultView{}, err
	}
	count, err := s.checkInRepo.CountByKeyResult(ctx, kr.ID)
	if err != nil {
		return KeyResultView{}, err
	}

	view := KeyResultView{
		KeyResult:    kr,
		Progress:     KeyResultProgress(kr, latest),
		CheckInCount: count,
	}
	if latest != nil {
		view.LastCheckIn = &latest.CreatedAt
	}
	return view, nil
}

func (s *dashboardService) buildCompliance(ctx context.Context, cycleID uuid.UUID, weekStart time.Time, risks int) (Compliance, error) {
	assignees, err := s.krRepo.ListAssigneesByCycle(ctx, cycleID)
	if err != nil {
		return Compliance{}, fmt.Errorf("list assignees: %w", err)
	}
	authors, err := s.checkInRepo.ListAuthorsSince(ctx, weekStart)
	if err != nil {
		return Compliance{}, fmt.Errorf("list check-in authors: %w", err)
	}
	confidence, err := s.checkInRepo.AverageConfidenceSince(ctx, weekStart)
	if err != nil {
		return Compliance{}, fmt.Errorf("average confidence: %w", err)
	}

	checkedIn := map[uuid.UUID]bool{}
	for _, a := range authors {
		checkedIn[a] = true
	}

	compliance := Compliance{
		CheckedIn:   []uuid.UUID{},
		NeedCheckIn: []uuid.UUID{},
		Confidence:  confidence,
		Risks:       risks,
	}
	for _, a := range assignees {
		if checkedIn[a] {
			compliance.CheckedIn = append(compliance.CheckedIn, a)
		} else {
			compliance.NeedCheckIn = append(compliance.NeedCheckIn, a)
		}
	}
	return compliance, nil
}

func (s *dashboardService) orgSummary(ctx context.Context, cycleID uuid.UUID) (OrgSummary, error) {
	if summary, ok := s.cachedOrgSummary(ctx, cycleID); ok {
		return summary, nil
	}

	average, err := s.progress.OrgAverage(ctx, cycleID)
	if err != nil {
		return OrgSummary{}, err
	}
	weighted, err := s.progress.WeightedOrgAverage(ctx, cycleID)
	if err != nil {
		return OrgSummary{}, err
	}

	summary := OrgSummary{Average: average, WeightedAverage: weighted}
	s.storeOrgSummary(ctx, cycleID, summary)
	return summary, nil
}

func orgCacheKey(cycleID uuid.UUID) string {
	return "northstar:org-summary:" + cycleID.String()
}

func (s *dashboardService) cachedOrgSummary(ctx context.Context, cycleID uuid.UUID) (OrgSummary, bool) {
	if s.cache == nil {
		return OrgSummary{}, false
	}
	data, err := s.cache.Get(ctx, orgCacheKey(cycleID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("Org summary cache read failed", zap.Error(err))
		}
		return OrgSummary{}, false
	}
	var summary OrgSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return OrgSummary{}, false
	}
	return summary, true
}

func (s *dashboardService) storeOrgSummary(ctx context.Context, cycleID uuid.UUID, summary OrgSummary) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, orgCacheKey(cycleID), data, s.cfg.CacheTTL).Err(); err != nil {
		s.logger.Warn("Org summary cache write failed", zap.Error(err))
	}
}

func (s *dashboardService) InvalidateOrgCache(ctx context.Context, cycleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, orgCacheKey(cycleID)).Err(); err != nil {
		s.logger.Warn("Org summary cache invalidation failed", zap.Error(err))
	}
}

// startOfWeek returns Monday 00:00 of the week containing t, in t's location.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}
