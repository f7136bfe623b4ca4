package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/careerbase/apigov/internal/storage"
	"github.com/careerbase/apigov/pkg/models"
)

// Request/Response types

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the readiness check response
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
}

// WindowQuery defines the shared time window parameters.
// Dates accept "2006-01-02" or RFC3339.
type WindowQuery struct {
	Service string `form:"service"`
	From    string `form:"from"`
	To      string `form:"to"`
}

// QuotaQuery defines parameters for the single-service quota endpoint
type QuotaQuery struct {
	Service string `form:"service" binding:"required"`
	Period  string `form:"period"` // optional: daily, weekly, monthly
}

// ErrorsQuery defines parameters for the recent errors endpoint
type ErrorsQuery struct {
	Service string `form:"service"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// AlertsQuery defines parameters for the active alerts endpoint
type AlertsQuery struct {
	Service string `form:"service"`
}

// LatencyQuery defines parameters for the latency endpoint
type LatencyQuery struct {
	Service  string `form:"service"`
	Endpoint string `form:"endpoint"`
	From     string `form:"from"`
	To       string `form:"to"`
}

// ResolveAlertRequest is the request to manually resolve an alert
type ResolveAlertRequest struct {
	ResolvedBy string `json:"resolved_by" binding:"required"`
}

// GenerateReportRequest is the request to generate reports on demand
type GenerateReportRequest struct {
	PeriodType string `json:"period_type" binding:"required,oneof=daily weekly monthly"`
	At         string `json:"at,omitempty"` // instant inside the period; empty = previous period
}

// ListReportsQuery defines parameters for the stored reports endpoint
type ListReportsQuery struct {
	Service string `form:"service"`
	Period  string `form:"period" binding:"omitempty,oneof=daily weekly monthly"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Handlers

func (s *Server) handleHealth(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
	}
	if !s.ready.Load() {
		response.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleReady(c *gin.Context) {
	response := ReadyResponse{
		Ready:     s.ready.Load(),
		Timestamp: time.Now(),
	}
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleListServices(c *gin.Context) {
	services, err := s.facade.Services(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services, "count": len(services)})
}

func (s *Server) handleUsage(c *gin.Context) {
	var query WindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	from, to, err := parseWindow(query.From, query.To)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	usage, err := s.facade.Usage(c.Request.Context(), query.Service, from, to)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) handleQuota(c *gin.Context) {
	var query QuotaQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}
	if query.Period != "" && !models.PeriodType(query.Period).Valid() {
		s.badRequest(c, fmt.Errorf("period must be daily, weekly, or monthly"))
		return
	}

	statuses, err := s.facade.RemainingQuota(c.Request.Context(), query.Service)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.notFound(c, fmt.Errorf("service %q not found", query.Service))
			return
		}
		s.internalError(c, err)
		return
	}

	if query.Period != "" {
		filtered := statuses[:0]
		for _, st := range statuses {
			if st.PeriodType == models.PeriodType(query.Period) {
				filtered = append(filtered, st)
			}
		}
		statuses = filtered
	}
	c.JSON(http.StatusOK, gin.H{"service": query.Service, "quota": statuses})
}

func (s *Server) handleQuotaAll(c *gin.Context) {
	all, err := s.facade.RemainingQuotaAll(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quota": all})
}

func (s *Server) handleRecentErrors(c *gin.Context) {
	var query ErrorsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	records, err := s.facade.RecentErrors(c.Request.Context(), query.Service, query.Limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"errors": records, "count": len(records)})
}

func (s *Server) handleActiveAlerts(c *gin.Context) {
	var query AlertsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	alerts, err := s.facade.ActiveAlerts(c.Request.Context(), query.Service)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleResolveAlert(c *gin.Context) {
	id := c.Param("id")

	var req ResolveAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	err := s.facade.ResolveAlert(c.Request.Context(), id, req.ResolvedBy)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.notFound(c, fmt.Errorf("alert %q not found or already resolved", id))
			return
		}
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true, "id": id})
}

func (s *Server) handleLatency(c *gin.Context) {
	var query LatencyQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	from, to, err := parseWindow(query.From, query.To)
	if err != nil {
		s.badRequest(c, err)
		return
	}

	stats, err := s.facade.Percentiles(c.Request.Context(), query.Service, query.Endpoint, from, to)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGenerateReport(c *gin.Context) {
	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	var at time.Time
	if req.At != "" {
		parsed, err := parseTime(req.At)
		if err != nil {
			s.badRequest(c, fmt.Errorf("invalid at: %w", err))
			return
		}
		at = parsed
	}

	reports, err := s.facade.GenerateReport(c.Request.Context(), models.PeriodType(req.PeriodType), at)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) handleListReports(c *gin.Context) {
	var query ListReportsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		s.badRequest(c, err)
		return
	}

	reports, err := s.facade.ListReports(c.Request.Context(), query.Service, models.PeriodType(query.Period), query.Limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

func (s *Server) handleDashboard(c *gin.Context) {
	dashboard, err := s.facade.Dashboard(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// Response helpers

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:     sanitizeValidationError(err),
		RequestID: c.GetString("request_id"),
	})
}

func (s *Server) notFound(c *gin.Context, err error) {
	c.JSON(http.StatusNotFound, ErrorResponse{
		Error:     err.Error(),
		RequestID: c.GetString("request_id"),
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed",
		"path", c.Request.URL.Path,
		"request_id", c.GetString("request_id"),
		"error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:     "internal server error",
		RequestID: c.GetString("request_id"),
	})
}

// parseWindow parses optional from/to query values; empty strings stay zero
// so the facade applies its default trailing window
func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = parseTime(fromStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid from: %w", err)
		}
	}
	if toStr != "" {
		to, err = parseTime(toStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid to: %w", err)
		}
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return from, to, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

// sanitizeValidationError converts internal field names to JSON field names
// so validation messages match the request shape
func sanitizeValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}

	var messages []string
	for _, fe := range validationErrs {
		jsonFieldName := toSnakeCase(fe.Field())
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", jsonFieldName))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", jsonFieldName, fe.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", jsonFieldName, fe.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", jsonFieldName, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", jsonFieldName, fe.Tag()))
		}
	}
	return strings.Join(messages, "; ")
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
