package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/workload-insights/internal/adapters/primary/http/middleware"
	"github.com/lorrc/workload-insights/internal/adapters/primary/validation"
	"github.com/lorrc/workload-insights/internal/core/domain"
	apperrors "github.com/lorrc/workload-insights/internal/core/errors"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

const (
	defaultAlertLimit    = 100
	defaultVelocityWeeks = 8
)

var entityTypes = []string{
	string(domain.EntityTask),
	string(domain.EntityEmployee),
	string(domain.EntityProject),
	string(domain.EntityTeam),
}

// InsightsHandler serves derived analytics and the risk alert lifecycle.
type InsightsHandler struct {
	workloadService ports.WorkloadService
	riskService     ports.RiskService
	detectLimiter   *mw.RateLimiter
	errorHandler    *ErrorHandler
	logger          *slog.Logger
}

// NewInsightsHandler creates a new insights handler. detectLimiter may be nil
// to leave detection runs unthrottled.
func NewInsightsHandler(
	workloadService ports.WorkloadService,
	riskService ports.RiskService,
	detectLimiter *mw.RateLimiter,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *InsightsHandler {
	return &InsightsHandler{
		workloadService: workloadService,
		riskService:     riskService,
		detectLimiter:   detectLimiter,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "insights"),
	}
}

// Router returns a router with the insights routes mounted at its root.
func (h *InsightsHandler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the insights routes on the given router. Detection,
// resolution and the org-wide estimator ranking require a lead or admin caller.
func (h *InsightsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/concentration", h.HandleConcentration)
	r.Get("/team-health", h.HandleTeamHealth)
	r.Get("/estimation/{employeeID}", h.HandleEstimationAccuracy)
	r.Get("/projects", h.HandleProjectsSummary)
	r.Get("/projects/{projectID}/health", h.HandleProjectHealth)
	r.Get("/velocity", h.HandleVelocity)
	r.Get("/risks", h.HandleListRisks)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAlertManager)
		r.Get("/estimation-patterns", h.HandleEstimationPatterns)
		r.With(h.detectLimit).Post("/detect-risks", h.HandleDetectRisks)
		r.Post("/risks/{alertID}/resolve", h.HandleResolveRisk)
	})
}

func (h *InsightsHandler) detectLimit(next http.Handler) http.Handler {
	if h.detectLimiter == nil {
		return next
	}
	return h.detectLimiter.Middleware(next)
}

// --- DTOs ---

// ResourceShareDTO is one resource's share of the remaining ETA.
type ResourceShareDTO struct {
	EmployeeID int64   `json:"employeeId"`
	Name       string  `json:"name"`
	YetToSpend float64 `json:"yetToSpend"`
	Percentage float64 `json:"percentage"`
}

// ConcentrationResponse describes how concentrated the remaining work is.
type ConcentrationResponse struct {
	TotalRemaining    float64            `json:"totalRemaining"`
	ResourceCount     int                `json:"resourceCount"`
	Top3Concentration float64            `json:"top3Concentration"`
	IsConcentrated    bool               `json:"isConcentrated"`
	Distribution      []ResourceShareDTO `json:"distribution"`
}

// TeamHealthResponse is the team health score for one period.
type TeamHealthResponse struct {
	Period       string         `json:"period"`
	HealthScore  int            `json:"healthScore"`
	TeamSize     int            `json:"teamSize"`
	Distribution map[string]int `json:"distribution"`
	Alerts       []string       `json:"alerts"`
	Totals       TeamTotalsDTO  `json:"totals"`
}

// TaskTypeAccuracyDTO is estimation accuracy for one task type.
type TaskTypeAccuracyDTO struct {
	TaskType    string  `json:"taskType"`
	AvgAccuracy float64 `json:"avgAccuracy"`
	SampleSize  int     `json:"sampleSize"`
}

// EstimationAccuracyResponse is one resource's estimation track record.
type EstimationAccuracyResponse struct {
	EmployeeID     int64                 `json:"employeeId"`
	HasData        bool                  `json:"hasData"`
	SampleSize     int                   `json:"sampleSize"`
	AvgAccuracy    float64               `json:"avgAccuracy"`
	EstimationBias float64               `json:"estimationBias"`
	BiasDirection  string                `json:"biasDirection"`
	Variance       float64               `json:"variance"`
	Consistency    string                `json:"consistency"`
	ByTaskType     []TaskTypeAccuracyDTO `json:"byTaskType"`
}

// ProjectHealthResponse is a project's health score and its inputs.
type ProjectHealthResponse struct {
	Score           int               `json:"score"`
	Grade           string            `json:"grade"`
	CompletionRate  int               `json:"completionRate"`
	BurnRate        int               `json:"burnRate"`
	ActiveTaskRatio int               `json:"activeTaskRatio"`
	Metrics         ProjectMetricsDTO `json:"metrics"`
}

// VelocityWeekDTO is the work closed in one week.
type VelocityWeekDTO struct {
	WeekStart      string  `json:"weekStart"`
	WeekEnd        string  `json:"weekEnd"`
	TasksCompleted int     `json:"tasksCompleted"`
	ETACompleted   float64 `json:"etaCompleted"`
}

// EstimatorPatternDTO is one resource's estimation bias.
type EstimatorPatternDTO struct {
	ResourceID    int64   `json:"resourceId"`
	ResourceName  string  `json:"resourceName"`
	SampleSize    int     `json:"sampleSize"`
	AvgAccuracy   float64 `json:"avgAccuracy"`
	AvgBias       float64 `json:"avgBias"`
	BiasDirection string  `json:"biasDirection"`
}

// EstimationPatternsResponse ranks estimators by bias.
type EstimationPatternsResponse struct {
	Patterns           []EstimatorPatternDTO `json:"patterns"`
	TopUnderestimators []EstimatorPatternDTO `json:"topUnderestimators"`
	TopOverestimators  []EstimatorPatternDTO `json:"topOverestimators"`
}

// RiskAlertDTO is a stored risk alert.
type RiskAlertDTO struct {
	ID          int64          `json:"id"`
	Type        string         `json:"type"`
	Severity    string         `json:"severity"`
	EntityType  string         `json:"entityType"`
	EntityID    string         `json:"entityId"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
	IsResolved  bool           `json:"isResolved"`
	ResolvedBy  *string        `json:"resolvedBy"`
	ResolvedAt  *string        `json:"resolvedAt"`
	CreatedAt   string         `json:"createdAt"`
}

// DetectorFailureDTO names a detector that could not run.
type DetectorFailureDTO struct {
	Detector string `json:"detector"`
	Error    string `json:"error"`
}

// DetectionResponse is the outcome of one detection run.
type DetectionResponse struct {
	Alerts   []RiskAlertDTO       `json:"alerts"`
	Inserted []RiskAlertDTO       `json:"inserted"`
	Skipped  int                  `json:"skipped"`
	Partial  bool                 `json:"partial"`
	Failures []DetectorFailureDTO `json:"failures"`
}

func toRiskAlertDTO(a domain.RiskAlert) RiskAlertDTO {
	var resolvedAt *string
	if a.ResolvedAt != nil {
		value := a.ResolvedAt.Format(time.RFC3339)
		resolvedAt = &value
	}

	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return RiskAlertDTO{
		ID:          a.ID,
		Type:        string(a.Type),
		Severity:    string(a.Severity),
		EntityType:  string(a.EntityType),
		EntityID:    a.EntityID,
		Title:       a.Title,
		Description: a.Description,
		Metadata:    metadata,
		IsResolved:  a.IsResolved,
		ResolvedBy:  a.ResolvedBy,
		ResolvedAt:  resolvedAt,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func toRiskAlertDTOs(alerts []domain.RiskAlert) []RiskAlertDTO {
	response := make([]RiskAlertDTO, 0, len(alerts))
	for _, a := range alerts {
		response = append(response, toRiskAlertDTO(a))
	}
	return response
}

func toEstimatorPatternDTOs(patterns []domain.EstimatorPattern) []EstimatorPatternDTO {
	response := make([]EstimatorPatternDTO, 0, len(patterns))
	for _, p := range patterns {
		response = append(response, EstimatorPatternDTO(p))
	}
	return response
}

func toDetectionResponse(report *ports.DetectionReport) DetectionResponse {
	failures := make([]DetectorFailureDTO, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, DetectorFailureDTO{
			Detector: string(f.Detector),
			Error:    f.Err.Error(),
		})
	}

	return DetectionResponse{
		Alerts:   toRiskAlertDTOs(report.Alerts),
		Inserted: toRiskAlertDTOs(report.Inserted),
		Skipped:  report.Skipped,
		Partial:  report.Partial(),
		Failures: failures,
	}
}

// --- Handlers ---

// HandleConcentration handles GET /insights/concentration
func (h *InsightsHandler) HandleConcentration(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.OptionalID(r, "projectId")
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	lc, err := h.workloadService.LoadConcentration(r.Context(), projectID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := ConcentrationResponse{
		TotalRemaining:    lc.TotalRemaining,
		ResourceCount:     lc.ResourceCount,
		Top3Concentration: lc.Top3Concentration,
		IsConcentrated:    lc.IsConcentrated,
		Distribution:      make([]ResourceShareDTO, 0, len(lc.Distribution)),
	}
	for _, share := range lc.Distribution {
		response.Distribution = append(response.Distribution, ResourceShareDTO{
			EmployeeID: share.EmployeeID,
			Name:       share.Name,
			YetToSpend: share.YetToSpend,
			Percentage: share.Percentage,
		})
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleTeamHealth handles GET /insights/team-health
func (h *InsightsHandler) HandleTeamHealth(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	report, err := h.workloadService.TeamHealth(r.Context(), period)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	totals := report.Overview.Totals
	WriteJSON(w, http.StatusOK, TeamHealthResponse{
		Period:       string(report.Period),
		HealthScore:  report.Health.HealthScore,
		TeamSize:     report.Health.TeamSize,
		Distribution: toStateCounts(report.Health.Distribution),
		Alerts:       report.Health.Alerts,
		Totals: TeamTotalsDTO{
			Resources:       totals.Resources,
			TotalETA:        totals.TotalETA,
			TimeSpent:       totals.TimeSpent,
			YetToSpend:      totals.YetToSpend,
			Bandwidth:       totals.Bandwidth,
			AvgAvailability: totals.AvgAvailability,
		},
	})
}

// HandleEstimationAccuracy handles GET /insights/estimation/{employeeID}
func (h *InsightsHandler) HandleEstimationAccuracy(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	employeeID := v.ID("employeeID", chi.URLParam(r, "employeeID"))
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	acc, err := h.workloadService.EstimationAccuracy(r.Context(), employeeID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := EstimationAccuracyResponse{
		EmployeeID:     employeeID,
		HasData:        acc.HasData,
		SampleSize:     acc.SampleSize,
		AvgAccuracy:    acc.AvgAccuracy,
		EstimationBias: acc.EstimationBias,
		BiasDirection:  acc.BiasDirection,
		Variance:       acc.Variance,
		Consistency:    acc.Consistency,
		ByTaskType:     make([]TaskTypeAccuracyDTO, 0, len(acc.ByTaskType)),
	}
	for _, tt := range acc.ByTaskType {
		response.ByTaskType = append(response.ByTaskType, TaskTypeAccuracyDTO{
			TaskType:    tt.TaskType,
			AvgAccuracy: tt.AvgAccuracy,
			SampleSize:  tt.SampleSize,
		})
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleProjectHealth handles GET /insights/projects/{projectID}/health
func (h *InsightsHandler) HandleProjectHealth(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.ID("projectID", chi.URLParam(r, "projectID"))
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	health, err := h.workloadService.ProjectHealth(r.Context(), projectID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, ProjectHealthResponse{
		Score:           health.Score,
		Grade:           health.Grade,
		CompletionRate:  health.CompletionRate,
		BurnRate:        health.BurnRate,
		ActiveTaskRatio: health.ActiveTaskRatio,
		Metrics:         toProjectMetricsDTO(health.Metrics),
	})
}

// HandleProjectsSummary handles GET /insights/projects
func (h *InsightsHandler) HandleProjectsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.workloadService.ProjectsSummary(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := make([]ProjectMetricsDTO, 0, len(summary))
	for _, pm := range summary {
		response = append(response, toProjectMetricsDTO(pm))
	}
	WriteList(w, response)
}

// HandleVelocity handles GET /insights/velocity
func (h *InsightsHandler) HandleVelocity(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.OptionalID(r, "projectId")
	weeks := v.Int(r, "weeks", defaultVelocityWeeks)
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	trend, err := h.workloadService.VelocityTrends(r.Context(), projectID, weeks)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := make([]VelocityWeekDTO, 0, len(trend))
	for _, vw := range trend {
		response = append(response, VelocityWeekDTO{
			WeekStart:      vw.WeekStart.Format(time.DateOnly),
			WeekEnd:        vw.WeekEnd.Format(time.DateOnly),
			TasksCompleted: vw.TasksCompleted,
			ETACompleted:   vw.ETACompleted,
		})
	}
	WriteList(w, response)
}

// HandleEstimationPatterns handles GET /insights/estimation-patterns
func (h *InsightsHandler) HandleEstimationPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.workloadService.EstimationPatterns(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, EstimationPatternsResponse{
		Patterns:           toEstimatorPatternDTOs(patterns.Patterns),
		TopUnderestimators: toEstimatorPatternDTOs(patterns.TopUnderestimators),
		TopOverestimators:  toEstimatorPatternDTOs(patterns.TopOverestimators),
	})
}

// HandleListRisks handles GET /insights/risks
func (h *InsightsHandler) HandleListRisks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	entityType := strings.TrimSpace(query.Get("entityType"))

	v := validation.NewValidator()
	v.OneOf("entityType", entityType, entityTypes)
	limit := v.Int(r, "limit", defaultAlertLimit)
	v.Range("limit", limit, 1, 500)
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	filter := domain.AlertFilter{
		Type:       domain.RiskType(strings.TrimSpace(query.Get("type"))),
		Severity:   domain.Severity(strings.ToLower(strings.TrimSpace(query.Get("severity")))),
		EntityType: domain.EntityType(entityType),
		Unresolved: validation.ParseBoolQueryParam(r, "unresolved", false),
		Limit:      limit,
	}

	alerts, err := h.riskService.ListAlerts(r.Context(), filter)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, toRiskAlertDTOs(alerts))
}

// HandleDetectRisks handles POST /insights/detect-risks. A run where some
// detectors failed still answers 200 with the failures listed.
func (h *InsightsHandler) HandleDetectRisks(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	report, err := h.riskService.DetectAll(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	h.logger.InfoContext(r.Context(), "risk detection requested",
		"actor", claims.Actor(),
		"alerts", len(report.Alerts),
		"inserted", len(report.Inserted),
		"failures", len(report.Failures),
	)

	WriteJSON(w, http.StatusOK, toDetectionResponse(report))
}

// HandleResolveRisk handles POST /insights/risks/{alertID}/resolve
func (h *InsightsHandler) HandleResolveRisk(w http.ResponseWriter, r *http.Request) {
	claims, ok := mw.ClaimsFromContext(r.Context())
	if !ok {
		h.errorHandler.Handle(w, r, apperrors.NewUnauthorizedError("Authentication required"))
		return
	}

	v := validation.NewValidator()
	alertID := v.ID("alertID", chi.URLParam(r, "alertID"))
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	alert, err := h.riskService.ResolveAlert(r.Context(), alertID, claims.Actor())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, toRiskAlertDTO(*alert))
}
