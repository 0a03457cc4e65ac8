package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/loopband/backend/internal/greenaudit"
	"go.uber.org/zap"
)

const (
	adminSubjectContextKey = "loopband_admin_subject"
	triggerSecretHeader    = "X-Trigger-Secret"
)

var (
	errMissingAuditService = errors.New("audit service dependency required")
	errMissingAuthorizer   = errors.New("trigger authorizer dependency required")
)

// TriggerAuthorizer validates admin bearer tokens and scheduler secrets.
type TriggerAuthorizer interface {
	ValidateAdminToken(token string) (string, error)
	MatchesTriggerSecret(presented string) bool
}

// Dependencies wires the handler's collaborators.
type Dependencies struct {
	AuditService *greenaudit.Service
	Authorizer   TriggerAuthorizer
	Clock        func() time.Time
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the audit service.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.AuditService == nil {
		return nil, errMissingAuditService
	}
	if deps.Authorizer == nil {
		return nil, errMissingAuthorizer
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", triggerSecretHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		audit:      deps.AuditService,
		authorizer: deps.Authorizer,
		clock:      clock,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/api/reports", handler.handleListReports)
	router.GET("/api/reports/:month", handler.handleGetReport)

	router.POST("/api/audit/run", handler.authorizeTrigger, handler.handleRunAudit)

	admin := router.Group("/api")
	admin.Use(handler.authorizeAdmin)
	admin.POST("/activity-entries", handler.handleRecordEntry)
	admin.POST("/offsets", handler.handleRecordOffset)
	admin.GET("/offsets", handler.handleListOffsets)

	return router, nil
}

type httpHandler struct {
	audit      *greenaudit.Service
	authorizer TriggerAuthorizer
	clock      func() time.Time
	logger     *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// authorizeTrigger accepts either an admin bearer token or the scheduler's
// shared secret. No data is touched before this check passes.
func (h *httpHandler) authorizeTrigger(c *gin.Context) {
	if secret := c.GetHeader(triggerSecretHeader); secret != "" {
		if h.authorizer.MatchesTriggerSecret(secret) {
			c.Next()
			return
		}
		h.logger.Warn("audit trigger rejected: bad shared secret")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.authorizeAdmin(c)
}

func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	subject, err := h.authorizer.ValidateAdminToken(token)
	if err != nil {
		h.logger.Warn("admin token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(adminSubjectContextKey, subject)
	c.Next()
}

// handleRunAudit triggers the full pipeline for the requested month. A
// missing or malformed month parameter falls back to the previous UTC month.
func (h *httpHandler) handleRunAudit(c *gin.Context) {
	period := greenaudit.ResolvePeriodMonth(c.Query("month"), h.clock())

	result, err := h.audit.RunAudit(c.Request.Context(), period)
	if err != nil {
		h.logger.Error("audit run failed", zap.String("period_month", period.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

type reportSummaryPayload struct {
	PeriodMonth        string  `json:"period_month"`
	MethodologyVersion string  `json:"methodology_version"`
	Scope1Kg           float64 `json:"scope1_kg"`
	Scope2LocationKg   float64 `json:"scope2_location_kg"`
	Scope2MarketKg     float64 `json:"scope2_market_kg"`
	GrossLocationKg    float64 `json:"gross_location_kg"`
	GrossMarketKg      float64 `json:"gross_market_kg"`
	OffsetsKg          float64 `json:"offsets_kg"`
	ResidualLocationKg float64 `json:"residual_location_kg"`
	ResidualMarketKg   float64 `json:"residual_market_kg"`
	ArchiveSHA256      string  `json:"archive_sha256"`
	GeneratedAtSeconds int64   `json:"generated_at_s"`
}

type reportDetailPayload struct {
	reportSummaryPayload
	Assumptions     json.RawMessage `json:"assumptions"`
	Metrics         json.RawMessage `json:"metrics"`
	ArchiveMarkdown string          `json:"archive_markdown"`
}

func summarizeReport(report greenaudit.MonthlyReport) reportSummaryPayload {
	return reportSummaryPayload{
		PeriodMonth:        report.PeriodMonth,
		MethodologyVersion: report.MethodologyVersion,
		Scope1Kg:           report.Scope1Kg,
		Scope2LocationKg:   report.Scope2LocationKg,
		Scope2MarketKg:     report.Scope2MarketKg,
		GrossLocationKg:    report.GrossLocationKg,
		GrossMarketKg:      report.GrossMarketKg,
		OffsetsKg:          report.OffsetsKg,
		ResidualLocationKg: report.ResidualLocationKg,
		ResidualMarketKg:   report.ResidualMarketKg,
		ArchiveSHA256:      report.ArchiveSHA256,
		GeneratedAtSeconds: report.GeneratedAtSeconds,
	}
}

func (h *httpHandler) handleListReports(c *gin.Context) {
	reports, err := h.audit.ListReports(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payload := make([]reportSummaryPayload, 0, len(reports))
	for _, report := range reports {
		payload = append(payload, summarizeReport(report))
	}
	c.JSON(http.StatusOK, gin.H{"reports": payload})
}

func (h *httpHandler) handleGetReport(c *gin.Context) {
	period, err := greenaudit.ParsePeriodMonth(c.Param("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
		return
	}

	report, err := h.audit.GetReport(c.Request.Context(), period)
	if err != nil {
		if errors.Is(err, greenaudit.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report_not_found"})
			return
		}
		h.logger.Error("failed to load report", zap.String("period_month", period.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed"})
		return
	}

	c.JSON(http.StatusOK, reportDetailPayload{
		reportSummaryPayload: summarizeReport(report),
		Assumptions:          json.RawMessage(report.AssumptionsJSON),
		Metrics:              json.RawMessage(report.MetricsJSON),
		ArchiveMarkdown:      report.ArchiveMarkdown,
	})
}

type recordEntryPayload struct {
	Month                  string   `json:"month"`
	Scope                  int      `json:"scope"`
	SourceType             string   `json:"source_type"`
	SourceName             string   `json:"source_name"`
	ActivityValue          float64  `json:"activity_value"`
	ActivityUnit           string   `json:"activity_unit"`
	EmissionFactorLocation *float64 `json:"emission_factor_location"`
	EmissionFactorMarket   *float64 `json:"emission_factor_market"`
	DataQuality            string   `json:"data_quality"`
}

func (h *httpHandler) handleRecordEntry(c *gin.Context) {
	var request recordEntryPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	period, err := greenaudit.ParsePeriodMonth(request.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
		return
	}
	sourceType, err := greenaudit.NewSourceType(request.SourceType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_source_type"})
		return
	}
	sourceName, err := greenaudit.NewSourceName(request.SourceName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_source_name"})
		return
	}
	quality, err := greenaudit.ParseDataQuality(request.DataQuality)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_data_quality"})
		return
	}
	if request.ActivityValue < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_activity_value"})
		return
	}

	entry, err := h.audit.RecordMeasuredEntry(c.Request.Context(), greenaudit.MeasuredEntryRequest{
		Period:                 period,
		Scope:                  greenaudit.Scope(request.Scope),
		SourceType:             sourceType,
		SourceName:             sourceName,
		ActivityValue:          request.ActivityValue,
		ActivityUnit:           request.ActivityUnit,
		EmissionFactorLocation: request.EmissionFactorLocation,
		EmissionFactorMarket:   request.EmissionFactorMarket,
		DataQuality:            quality,
	})
	if err != nil {
		h.logger.Error("failed to record activity entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record_failed"})
		return
	}

	c.JSON(http.StatusOK, activityEntryPayload{
		Month:         entry.PeriodMonth,
		Scope:         entry.Scope,
		SourceType:    entry.SourceType,
		SourceName:    entry.SourceName,
		ActivityValue: entry.ActivityValue,
		ActivityUnit:  entry.ActivityUnit,
		DataQuality:   entry.DataQuality,
	})
}

type activityEntryPayload struct {
	Month         string  `json:"month"`
	Scope         int     `json:"scope"`
	SourceType    string  `json:"source_type"`
	SourceName    string  `json:"source_name"`
	ActivityValue float64 `json:"activity_value"`
	ActivityUnit  string  `json:"activity_unit"`
	DataQuality   string  `json:"data_quality"`
}

type recordOffsetPayload struct {
	Month       string  `json:"month"`
	Provider    string  `json:"provider"`
	ProjectName string  `json:"project_name"`
	QuantityKg  float64 `json:"quantity_kg"`
	Status      string  `json:"status"`
}

func (h *httpHandler) handleRecordOffset(c *gin.Context) {
	var request recordOffsetPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	period, err := greenaudit.ParsePeriodMonth(request.Month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
		return
	}
	status, err := greenaudit.ParseOffsetStatus(request.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
		return
	}
	if request.QuantityKg < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_quantity"})
		return
	}

	record, err := h.audit.RecordOffset(c.Request.Context(), greenaudit.OffsetRequest{
		Period:      period,
		Provider:    request.Provider,
		ProjectName: request.ProjectName,
		QuantityKg:  request.QuantityKg,
		Status:      status,
	})
	if err != nil {
		h.logger.Error("failed to record offset", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record_failed"})
		return
	}

	c.JSON(http.StatusOK, offsetPayload{
		OffsetID:    record.OffsetID,
		Month:       record.PeriodMonth,
		Provider:    record.Provider,
		ProjectName: record.ProjectName,
		QuantityKg:  record.QuantityKg,
		Status:      record.Status,
	})
}

type offsetPayload struct {
	OffsetID    string  `json:"offset_id"`
	Month       string  `json:"month"`
	Provider    string  `json:"provider"`
	ProjectName string  `json:"project_name"`
	QuantityKg  float64 `json:"quantity_kg"`
	Status      string  `json:"status"`
}

func (h *httpHandler) handleListOffsets(c *gin.Context) {
	period, err := greenaudit.ParsePeriodMonth(c.Query("month"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_month"})
		return
	}

	records, err := h.audit.ListOffsets(c.Request.Context(), period)
	if err != nil {
		h.logger.Error("failed to list offsets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payload := make([]offsetPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, offsetPayload{
			OffsetID:    record.OffsetID,
			Month:       record.PeriodMonth,
			Provider:    record.Provider,
			ProjectName: record.ProjectName,
			QuantityKg:  record.QuantityKg,
			Status:      record.Status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"offsets": payload})
}
