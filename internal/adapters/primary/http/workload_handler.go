package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lorrc/workload-insights/internal/adapters/primary/validation"
	"github.com/lorrc/workload-insights/internal/core/domain"
	"github.com/lorrc/workload-insights/internal/core/ports"
)

const (
	defaultForecastWeeks    = 4
	defaultTaskLimit        = 50
	defaultProjectTaskLimit = 100
	maxTaskLimit            = 500
)

// WorkloadHandler serves the per-resource and per-project workload views.
type WorkloadHandler struct {
	workloadService ports.WorkloadService
	errorHandler    *ErrorHandler
	logger          *slog.Logger
}

// NewWorkloadHandler creates a new workload handler
func NewWorkloadHandler(workloadService ports.WorkloadService, errorHandler *ErrorHandler, logger *slog.Logger) *WorkloadHandler {
	return &WorkloadHandler{
		workloadService: workloadService,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "workload"),
	}
}

// Router returns a router with the workload routes mounted at its root.
func (h *WorkloadHandler) Router() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the workload routes on the given router.
func (h *WorkloadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/overview", h.HandleOverview)
	r.Get("/obligation-flow", h.HandleObligationFlow)
	r.Route("/resources/{employeeID}", func(r chi.Router) {
		r.Get("/", h.HandleResourceDetail)
		r.Get("/tasks", h.HandleResourceTasks)
		r.Get("/forecast", h.HandleForecast)
	})
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Get("/", h.HandleProjectWorkload)
		r.Get("/tasks", h.HandleProjectTasks)
		r.Get("/team", h.HandleProjectTeam)
	})
}

// --- DTOs ---

// ResourceMetricsDTO is the JSON form of one resource's metrics.
type ResourceMetricsDTO struct {
	EmployeeID        int64   `json:"employeeId"`
	EmployeeName      string  `json:"employeeName"`
	Email             string  `json:"email"`
	Role              string  `json:"role"`
	AssigneeID        int64   `json:"assigneeId"`
	TotalETA          float64 `json:"totalEta"`
	TimeSpent         float64 `json:"timeSpent"`
	YetToSpend        float64 `json:"yetToSpend"`
	TotalWorkingHours float64 `json:"totalWorkingHours"`
	Bandwidth         float64 `json:"bandwidth"`
	AvailabilityPct   float64 `json:"availabilityPct"`
	ActiveTaskCount   int     `json:"activeTaskCount"`
	OverETAPct        float64 `json:"overEtaPct"`
	UnderETAPct       float64 `json:"underEtaPct"`
	Remarks           string  `json:"remarks"`
}

// ClassificationDTO is a workload state with its display attributes.
type ClassificationDTO struct {
	State      string   `json:"state"`
	Label      string   `json:"label"`
	Color      string   `json:"color"`
	Priority   int      `json:"priority"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// ResourceWorkloadDTO pairs metrics with their classification.
type ResourceWorkloadDTO struct {
	ResourceMetricsDTO
	Classification ClassificationDTO `json:"classification"`
}

// TeamTotalsDTO is the team-wide sum of an overview.
type TeamTotalsDTO struct {
	Resources       int     `json:"resources"`
	TotalETA        float64 `json:"totalEta"`
	TimeSpent       float64 `json:"timeSpent"`
	YetToSpend      float64 `json:"yetToSpend"`
	Bandwidth       float64 `json:"bandwidth"`
	AvgAvailability float64 `json:"avgAvailability"`
}

// OverviewResponse is the team workload for one period.
type OverviewResponse struct {
	Period         string                `json:"period"`
	StartDate      string                `json:"startDate"`
	EndDate        string                `json:"endDate"`
	WorkingHours   float64               `json:"workingHours"`
	Resources      []ResourceWorkloadDTO `json:"resources"`
	Totals         TeamTotalsDTO         `json:"totals"`
	StateBreakdown map[string]int        `json:"stateBreakdown"`
}

// EmployeeDTO is the HRMS identity of a resource.
type EmployeeDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	JobTitle string `json:"jobTitle"`
}

// ResourceDetailResponse is one resource's metrics. Metrics and
// Classification are null when the employee has no tracker account.
type ResourceDetailResponse struct {
	Employee       EmployeeDTO         `json:"employee"`
	Metrics        *ResourceMetricsDTO `json:"metrics"`
	Classification *ClassificationDTO  `json:"classification"`
}

// TaskDTO is a tracker task with display labels.
type TaskDTO struct {
	ID          int64   `json:"id"`
	ProjectID   int64   `json:"projectId"`
	ProjectName string  `json:"projectName"`
	Summary     string  `json:"summary"`
	HandlerName string  `json:"handlerName,omitempty"`
	Status      string  `json:"status"`
	Resolution  string  `json:"resolution"`
	TaskType    *string `json:"taskType"`
	ETAHours    float64 `json:"etaHours"`
	TimeSpent   float64 `json:"timeSpent"`
	IsActive    bool    `json:"isActive"`
	DueDate     *string `json:"dueDate"`
	LastUpdated string  `json:"lastUpdated"`
}

// ForecastWeekDTO is one projected week.
type ForecastWeekDTO struct {
	Week                  int     `json:"week"`
	RemainingETA          float64 `json:"remainingEta"`
	ProjectedBandwidth    float64 `json:"projectedBandwidth"`
	ProjectedAvailability float64 `json:"projectedAvailability"`
	IsOverloaded          bool    `json:"isOverloaded"`
}

// ForecastResponse is the bandwidth forecast of one resource.
type ForecastResponse struct {
	Current  *ResourceMetricsDTO `json:"current"`
	Forecast []ForecastWeekDTO   `json:"forecast"`
}

// ProjectMetricsDTO summarizes one project.
type ProjectMetricsDTO struct {
	ProjectID      int64   `json:"projectId"`
	ProjectName    string  `json:"projectName"`
	TotalTasks     int     `json:"totalTasks"`
	ActiveTasks    int     `json:"activeTasks"`
	CompletedTasks int     `json:"completedTasks"`
	CompletionRate int     `json:"completionRate"`
	TotalETA       float64 `json:"totalEta"`
	TotalTimeSpent float64 `json:"totalTimeSpent"`
	BurnRate       int     `json:"burnRate"`
}

// ProjectWorkloadResponse is the workload of everyone on one project.
type ProjectWorkloadResponse struct {
	Project   ProjectMetricsDTO    `json:"project"`
	Resources []ResourceMetricsDTO `json:"resources"`
}

// HandlerAllocationDTO is one handler's active load on a project.
type HandlerAllocationDTO struct {
	HandlerID *int64  `json:"handlerId"`
	Name      string  `json:"name"`
	Email     string  `json:"email,omitempty"`
	TotalETA  float64 `json:"totalEta"`
	TaskCount int     `json:"taskCount"`
}

// ObligationWeekDTO is one week of team obligation.
type ObligationWeekDTO struct {
	Week           int     `json:"week"`
	WeekStart      string  `json:"weekStart"`
	RemainingETA   float64 `json:"remainingEta"`
	AvailableHours float64 `json:"availableHours"`
	UtilizationPct int     `json:"utilizationPct"`
	IsOverloaded   bool    `json:"isOverloaded"`
}

// ObligationFlowResponse is the week-by-week team obligation.
type ObligationFlowResponse struct {
	Weeks        []ObligationWeekDTO `json:"weeks"`
	OverloadWeek *int                `json:"overloadWeek"`
}

func toResourceMetricsDTO(m domain.ResourceMetrics) ResourceMetricsDTO {
	return ResourceMetricsDTO{
		EmployeeID:        m.EmployeeID,
		EmployeeName:      m.EmployeeName,
		Email:             m.Email,
		Role:              m.Role,
		AssigneeID:        m.AssigneeID,
		TotalETA:          m.TotalETA,
		TimeSpent:         m.TimeSpent,
		YetToSpend:        m.YetToSpend,
		TotalWorkingHours: m.TotalWorkingHours,
		Bandwidth:         m.Bandwidth,
		AvailabilityPct:   m.AvailabilityPct,
		ActiveTaskCount:   m.ActiveTaskCount,
		OverETAPct:        m.OverETAPct,
		UnderETAPct:       m.UnderETAPct,
		Remarks:           m.Remarks,
	}
}

func toResourceMetricsDTOs(metrics []domain.ResourceMetrics) []ResourceMetricsDTO {
	response := make([]ResourceMetricsDTO, 0, len(metrics))
	for _, m := range metrics {
		response = append(response, toResourceMetricsDTO(m))
	}
	return response
}

func toClassificationDTO(c domain.Classification) ClassificationDTO {
	reasons := c.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return ClassificationDTO{
		State:      string(c.State),
		Label:      c.State.Label(),
		Color:      c.State.Color(),
		Priority:   c.State.Priority(),
		Confidence: c.Confidence,
		Reasons:    reasons,
	}
}

func toStateCounts(dist map[domain.WorkloadState]int) map[string]int {
	counts := make(map[string]int, len(dist))
	for state, n := range dist {
		counts[string(state)] = n
	}
	return counts
}

func toOverviewResponse(ov *domain.WorkloadOverview) OverviewResponse {
	resources := make([]ResourceWorkloadDTO, 0, len(ov.Resources))
	for _, rw := range ov.Resources {
		resources = append(resources, ResourceWorkloadDTO{
			ResourceMetricsDTO: toResourceMetricsDTO(rw.Metrics),
			Classification:     toClassificationDTO(rw.Classification),
		})
	}

	return OverviewResponse{
		Period:       string(ov.Period),
		StartDate:    ov.Range.Start.Format(time.DateOnly),
		EndDate:      ov.Range.End.Format(time.DateOnly),
		WorkingHours: ov.WorkingHours,
		Resources:    resources,
		Totals: TeamTotalsDTO{
			Resources:       ov.Totals.Resources,
			TotalETA:        ov.Totals.TotalETA,
			TimeSpent:       ov.Totals.TimeSpent,
			YetToSpend:      ov.Totals.YetToSpend,
			Bandwidth:       ov.Totals.Bandwidth,
			AvgAvailability: ov.Totals.AvgAvailability,
		},
		StateBreakdown: toStateCounts(ov.StateBreakdown),
	}
}

func toTaskDTO(t domain.Task) TaskDTO {
	var dueDate *string
	if t.DueDate != nil {
		value := t.DueDate.Format(time.RFC3339)
		dueDate = &value
	}

	return TaskDTO{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ProjectName: t.ProjectName,
		Summary:     t.Summary,
		HandlerName: t.HandlerName,
		Status:      t.StatusLabel(),
		Resolution:  t.ResolutionLabel(),
		TaskType:    t.TaskType,
		ETAHours:    t.ETAHours(),
		TimeSpent:   t.TimeSpentHours(),
		IsActive:    t.IsActive(),
		DueDate:     dueDate,
		LastUpdated: t.LastUpdated.Format(time.RFC3339),
	}
}

func toTaskDTOs(tasks []domain.Task) []TaskDTO {
	response := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		response = append(response, toTaskDTO(t))
	}
	return response
}

func toProjectMetricsDTO(pm domain.ProjectMetrics) ProjectMetricsDTO {
	return ProjectMetricsDTO{
		ProjectID:      pm.ProjectID,
		ProjectName:    pm.ProjectName,
		TotalTasks:     pm.TotalTasks,
		ActiveTasks:    pm.ActiveTasks,
		CompletedTasks: pm.CompletedTasks,
		CompletionRate: pm.CompletionRate,
		TotalETA:       pm.TotalETA,
		TotalTimeSpent: pm.TotalTimeSpent,
		BurnRate:       pm.BurnRate,
	}
}

// parsePeriod reads the optional "period" query parameter. Absent means week.
func parsePeriod(r *http.Request) (domain.Period, error) {
	return domain.ParsePeriod(r.URL.Query().Get("period"))
}

// --- Handlers ---

// HandleOverview handles GET /workload/overview
func (h *WorkloadHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriod(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	overview, err := h.workloadService.Overview(r.Context(), period)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, toOverviewResponse(overview))
}

// HandleResourceDetail handles GET /workload/resources/{employeeID}
func (h *WorkloadHandler) HandleResourceDetail(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	employeeID := v.ID("employeeID", chi.URLParam(r, "employeeID"))
	period, periodErr := parsePeriod(r)
	v.Custom("period", periodErr == nil, "Must be 'week' or 'month'")
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	detail, err := h.workloadService.ResourceDetail(r.Context(), employeeID, period)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := ResourceDetailResponse{
		Employee: EmployeeDTO{
			ID:       detail.Employee.ID,
			Name:     detail.Employee.FullName(),
			Email:    detail.Employee.Email,
			JobTitle: detail.Employee.RoleOrUnknown(),
		},
	}
	if detail.Metrics != nil {
		m := toResourceMetricsDTO(*detail.Metrics)
		response.Metrics = &m
	}
	if detail.Classification != nil {
		c := toClassificationDTO(*detail.Classification)
		response.Classification = &c
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleResourceTasks handles GET /workload/resources/{employeeID}/tasks
func (h *WorkloadHandler) HandleResourceTasks(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	employeeID := v.ID("employeeID", chi.URLParam(r, "employeeID"))
	limit := v.Int(r, "limit", defaultTaskLimit)
	v.Range("limit", limit, 1, maxTaskLimit)
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	tasks, err := h.workloadService.ResourceTasks(r.Context(), ports.ResourceTasksParams{
		EmployeeID: employeeID,
		ActiveOnly: validation.ParseBoolQueryParam(r, "activeOnly", false),
		Limit:      limit,
	})
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, toTaskDTOs(tasks))
}

// HandleForecast handles GET /workload/resources/{employeeID}/forecast
func (h *WorkloadHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	employeeID := v.ID("employeeID", chi.URLParam(r, "employeeID"))
	weeks := v.Int(r, "weeks", defaultForecastWeeks)
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	forecast, err := h.workloadService.BandwidthForecast(r.Context(), employeeID, weeks)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := ForecastResponse{Forecast: make([]ForecastWeekDTO, 0, len(forecast.Forecast))}
	if forecast.Current != nil {
		current := toResourceMetricsDTO(*forecast.Current)
		response.Current = &current
	}
	for _, fw := range forecast.Forecast {
		response.Forecast = append(response.Forecast, ForecastWeekDTO{
			Week:                  fw.Week,
			RemainingETA:          fw.RemainingETA,
			ProjectedBandwidth:    fw.ProjectedBandwidth,
			ProjectedAvailability: fw.ProjectedAvailability,
			IsOverloaded:          fw.IsOverloaded,
		})
	}

	WriteJSON(w, http.StatusOK, response)
}

// HandleProjectWorkload handles GET /workload/projects/{projectID}
func (h *WorkloadHandler) HandleProjectWorkload(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.ID("projectID", chi.URLParam(r, "projectID"))
	period, periodErr := parsePeriod(r)
	v.Custom("period", periodErr == nil, "Must be 'week' or 'month'")
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	pw, err := h.workloadService.ProjectWorkload(r.Context(), projectID, period)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteJSON(w, http.StatusOK, ProjectWorkloadResponse{
		Project:   toProjectMetricsDTO(pw.Metrics),
		Resources: toResourceMetricsDTOs(pw.Resources),
	})
}

// HandleProjectTasks handles GET /workload/projects/{projectID}/tasks
func (h *WorkloadHandler) HandleProjectTasks(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.ID("projectID", chi.URLParam(r, "projectID"))
	limit := v.Int(r, "limit", defaultProjectTaskLimit)
	v.Range("limit", limit, 1, maxTaskLimit)
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	tasks, err := h.workloadService.ProjectTasks(r.Context(), projectID, limit)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, toTaskDTOs(tasks))
}

// HandleProjectTeam handles GET /workload/projects/{projectID}/team
func (h *WorkloadHandler) HandleProjectTeam(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	projectID := v.ID("projectID", chi.URLParam(r, "projectID"))
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	alloc, err := h.workloadService.ProjectTeamAllocation(r.Context(), projectID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := make([]HandlerAllocationDTO, 0, len(alloc))
	for _, a := range alloc {
		response = append(response, HandlerAllocationDTO{
			HandlerID: a.HandlerID,
			Name:      a.Name,
			Email:     a.Email,
			TotalETA:  a.ETA,
			TaskCount: a.TaskCount,
		})
	}
	WriteList(w, response)
}

// HandleObligationFlow handles GET /workload/obligation-flow
func (h *WorkloadHandler) HandleObligationFlow(w http.ResponseWriter, r *http.Request) {
	v := validation.NewValidator()
	weeks := v.Int(r, "weeks", defaultForecastWeeks)
	projectID := v.OptionalID(r, "projectId")
	if HandleError(w, r, v.Err(), h.errorHandler) {
		return
	}

	flow, err := h.workloadService.ObligationFlow(r.Context(), weeks, projectID)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	response := ObligationFlowResponse{
		Weeks:        make([]ObligationWeekDTO, 0, len(flow.Weeks)),
		OverloadWeek: flow.OverloadWeek,
	}
	for _, ow := range flow.Weeks {
		response.Weeks = append(response.Weeks, ObligationWeekDTO{
			Week:           ow.Week,
			WeekStart:      ow.WeekStart.Format(time.DateOnly),
			RemainingETA:   ow.RemainingETA,
			AvailableHours: ow.AvailableHours,
			UtilizationPct: ow.UtilizationPct,
			IsOverloaded:   ow.IsOverloaded,
		})
	}

	WriteJSON(w, http.StatusOK, response)
}
