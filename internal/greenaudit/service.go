package greenaudit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingCollector  = errors.New("counter source is required")
	errMissingIDProvider = errors.New("id provider is required")
	errNegativeValue     = errors.New("activity value must be non-negative")
	errNegativeQuantity  = errors.New("offset quantity must be non-negative")
	noOpLogger           = zap.NewNop()
)

// ErrReportNotFound indicates that no report exists for the requested month.
var ErrReportNotFound = errors.New("greenaudit: report not found")

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "greenaudit.service.new"
	opRunAudit     = "greenaudit.run_audit"
	opRecordEntry  = "greenaudit.record_entry"
	opRecordOffset = "greenaudit.record_offset"
	opListOffsets  = "greenaudit.list_offsets"
	opGetReport    = "greenaudit.get_report"
	opListReports  = "greenaudit.list_reports"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// CounterSource supplies raw operational counters for a UTC month window.
type CounterSource interface {
	MonthlyCounters(ctx context.Context, windowStart, windowEnd time.Time) (OperationalCounters, error)
}

// IDProvider issues identifiers for offset records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies of the audit service.
type ServiceConfig struct {
	Database    *gorm.DB
	Collector   CounterSource
	Clock       func() time.Time
	IDProvider  IDProvider
	Methodology MethodologyProfile
	Logger      *zap.Logger
}

// Service runs the monthly Green ICT audit pipeline and manages the activity
// and offset ledgers it reads from.
type Service struct {
	db          *gorm.DB
	collector   CounterSource
	clock       func() time.Time
	idProvider  IDProvider
	methodology MethodologyProfile
	logger      *zap.Logger

	// monthLocks serializes audit runs per period month so the
	// estimate-write-then-calculate-read sequence cannot interleave with a
	// concurrent run for the same month.
	locksMu    sync.Mutex
	monthLocks map[string]*sync.Mutex
}

// NewService validates dependencies and constructs the audit service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Collector == nil {
		return nil, newServiceError(opServiceNew, "missing_collector", errMissingCollector)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	methodology := cfg.Methodology
	if methodology.Version == "" {
		methodology = DefaultMethodology()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:          cfg.Database,
		collector:   cfg.Collector,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		methodology: methodology,
		logger:      logger,
		monthLocks:  make(map[string]*sync.Mutex),
	}, nil
}

// AuditResult is the synchronous response contract of one audit run.
type AuditResult struct {
	PeriodMonth        string        `json:"period_month"`
	MethodologyVersion string        `json:"methodology_version"`
	Scope1Kg           float64       `json:"scope1_kg"`
	Scope2LocationKg   float64       `json:"scope2_location_kg"`
	Scope2MarketKg     float64       `json:"scope2_market_kg"`
	GrossLocationKg    float64       `json:"gross_location_kg"`
	GrossMarketKg      float64       `json:"gross_market_kg"`
	OffsetsKg          float64       `json:"offsets_kg"`
	ResidualLocationKg float64       `json:"residual_location_kg"`
	ResidualMarketKg   float64       `json:"residual_market_kg"`
	ArchiveSHA256      string        `json:"archive_sha256"`
	Metrics            ReportMetrics `json:"metrics"`
}

// RunAudit executes the full pipeline for one month: collect counters,
// estimate electricity, upsert the two estimate ledger rows, calculate
// emissions over the whole ledger, net retired offsets, and persist the
// archived report. Reruns overwrite the month's estimate rows and report.
//
// The estimate upsert and the final report write are separate storage
// operations; if a later stage fails the estimate rows are not rolled back.
func (s *Service) RunAudit(ctx context.Context, period PeriodMonth) (AuditResult, error) {
	lock := s.lockForMonth(period)
	lock.Lock()
	defer lock.Unlock()

	counters, err := s.collector.MonthlyCounters(ctx, period.Start(), period.End())
	if err != nil {
		s.logError(opRunAudit, "collect_failed", err, zap.String("period_month", period.String()))
		return AuditResult{}, newServiceError(opRunAudit, "collect_failed", err)
	}
	counters = counters.Clamp()
	estimate := s.methodology.EstimateEnergy(counters)

	recordedAt := s.clock().UTC()
	if err := s.upsertEstimates(ctx, period, estimate, recordedAt); err != nil {
		s.logError(opRunAudit, "estimate_upsert_failed", err, zap.String("period_month", period.String()))
		return AuditResult{}, newServiceError(opRunAudit, "estimate_upsert_failed", err)
	}

	metrics := ReportMetrics{
		CheckIns:       counters.CheckIns,
		GradeRecords:   counters.GradeRecords,
		GradedQuantity: counters.GradedQuantity,
		CreatedEvents:  counters.CreatedEvents,
		ActiveUsers:    counters.ActiveUsers,
		TotalKwh:       estimate.TotalKwh,
		SwissOpsKwh:    estimate.SwissOpsKwh,
		EUCloudKwh:     estimate.EUCloudKwh,
	}
	assumptions := newReportAssumptions(s.methodology, period)

	var result AuditResult
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []ActivityLogEntry
		if err := tx.
			Where("period_month = ?", period.String()).
			Order("scope ASC, source_type ASC, source_name ASC").
			Find(&entries).Error; err != nil {
			return fmt.Errorf("load activity ledger: %w", err)
		}

		totals := calculateEmissions(entries)

		var offsetsKg float64
		if err := tx.Model(&OffsetRecord{}).
			Where("period_month = ? AND status = ?", period.String(), string(OffsetStatusRetired)).
			Select("COALESCE(SUM(quantity_kg), 0)").
			Scan(&offsetsKg).Error; err != nil {
			return fmt.Errorf("sum retired offsets: %w", err)
		}
		offsetsKg = round4(offsetsKg)

		rendered := renderArchive(archiveInput{
			Period:      period,
			GeneratedAt: recordedAt,
			Totals:      totals,
			OffsetsKg:   offsetsKg,
			Entries:     entries,
			Assumptions: assumptions,
			Metrics:     metrics,
		})
		digest := hashArchive(rendered)

		assumptionsJSON, err := json.Marshal(assumptions)
		if err != nil {
			return fmt.Errorf("encode assumptions: %w", err)
		}
		metricsJSON, err := json.Marshal(metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}

		report := MonthlyReport{
			PeriodMonth:        period.String(),
			MethodologyVersion: s.methodology.Version,
			Scope1Kg:           totals.Scope1Kg,
			Scope2LocationKg:   totals.Scope2LocationKg,
			Scope2MarketKg:     totals.Scope2MarketKg,
			GrossLocationKg:    totals.GrossLocationKg(),
			GrossMarketKg:      totals.GrossMarketKg(),
			OffsetsKg:          offsetsKg,
			ResidualLocationKg: residualKg(totals.GrossLocationKg(), offsetsKg),
			ResidualMarketKg:   residualKg(totals.GrossMarketKg(), offsetsKg),
			AssumptionsJSON:    string(assumptionsJSON),
			MetricsJSON:        string(metricsJSON),
			ArchiveMarkdown:    rendered,
			ArchiveSHA256:      digest,
			GeneratedAtSeconds: recordedAt.Unix(),
			Published:          true,
		}
		if err := tx.Save(&report).Error; err != nil {
			return fmt.Errorf("persist report: %w", err)
		}

		result = AuditResult{
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
			Metrics:            metrics,
		}
		return nil
	})
	if txErr != nil {
		s.logError(opRunAudit, "report_build_failed", txErr, zap.String("period_month", period.String()))
		return AuditResult{}, newServiceError(opRunAudit, "report_build_failed", txErr)
	}

	s.logger.Info("audit run completed",
		zap.String("period_month", period.String()),
		zap.String("methodology_version", result.MethodologyVersion),
		zap.Float64("residual_location_kg", result.ResidualLocationKg),
		zap.String("archive_sha256", result.ArchiveSHA256))
	return result, nil
}

func (s *Service) lockForMonth(period PeriodMonth) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.monthLocks[period.String()]
	if !ok {
		lock = &sync.Mutex{}
		s.monthLocks[period.String()] = lock
	}
	return lock
}

// ReportExists reports whether a monthly report has already been generated.
func (s *Service) ReportExists(ctx context.Context, period PeriodMonth) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&MonthlyReport{}).
		Where("period_month = ?", period.String()).
		Count(&count).Error; err != nil {
		return false, newServiceError(opGetReport, "query_failed", err)
	}
	return count > 0, nil
}

// GetReport loads the persisted report for a month.
func (s *Service) GetReport(ctx context.Context, period PeriodMonth) (MonthlyReport, error) {
	var report MonthlyReport
	err := s.db.WithContext(ctx).
		Where("period_month = ?", period.String()).
		Take(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MonthlyReport{}, newServiceError(opGetReport, "not_found", ErrReportNotFound)
	}
	if err != nil {
		s.logError(opGetReport, "query_failed", err, zap.String("period_month", period.String()))
		return MonthlyReport{}, newServiceError(opGetReport, "query_failed", err)
	}
	return report, nil
}

// ListReports returns all published reports, newest period first.
func (s *Service) ListReports(ctx context.Context) ([]MonthlyReport, error) {
	var reports []MonthlyReport
	if err := s.db.WithContext(ctx).
		Where("published = ?", true).
		Order("period_month DESC").
		Find(&reports).Error; err != nil {
		s.logError(opListReports, "query_failed", err)
		return nil, newServiceError(opListReports, "query_failed", err)
	}
	return reports, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("green audit service error", attrs...)
}
