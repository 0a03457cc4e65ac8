package greenaudit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const unitKwh = "kWh"

// upsertEstimates writes exactly two estimated ledger rows for the month, one
// per deployment region, keyed by the reserved system estimate source names.
// Rerunning the audit overwrites these rows rather than duplicating them.
func (s *Service) upsertEstimates(ctx context.Context, period PeriodMonth, estimate EnergyEstimate, recordedAt time.Time) error {
	swissFactor := ResolveFactor(ScopeElectricity, SourceTypeElectricityCH)
	cloudFactor := ResolveFactor(ScopeElectricity, SourceTypeElectricityEUCloud)

	rows := []ActivityLogEntry{
		{
			PeriodMonth:            period.String(),
			Scope:                  int(ScopeElectricity),
			SourceType:             string(SourceTypeElectricityCH),
			SourceName:             string(SourceNameEstimateSwitzerland),
			ActivityValue:          estimate.SwissOpsKwh,
			ActivityUnit:           unitKwh,
			EmissionFactorLocation: &swissFactor,
			EmissionFactorMarket:   &swissFactor,
			DataQuality:            string(DataQualityEstimated),
			RecordedAtSeconds:      recordedAt.Unix(),
		},
		{
			PeriodMonth:            period.String(),
			Scope:                  int(ScopeElectricity),
			SourceType:             string(SourceTypeElectricityEUCloud),
			SourceName:             string(SourceNameEstimateEUCloud),
			ActivityValue:          estimate.EUCloudKwh,
			ActivityUnit:           unitKwh,
			EmissionFactorLocation: &cloudFactor,
			EmissionFactorMarket:   &cloudFactor,
			DataQuality:            string(DataQualityEstimated),
			RecordedAtSeconds:      recordedAt.Unix(),
		},
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "period_month"}, {Name: "scope"},
				{Name: "source_type"}, {Name: "source_name"},
			},
			UpdateAll: true,
		}).
		Create(&rows).Error
}

// MeasuredEntryRequest describes an operator-submitted activity entry.
type MeasuredEntryRequest struct {
	Period                 PeriodMonth
	Scope                  Scope
	SourceType             SourceType
	SourceName             SourceName
	ActivityValue          float64
	ActivityUnit           string
	EmissionFactorLocation *float64
	EmissionFactorMarket   *float64
	DataQuality            DataQuality
}

// RecordMeasuredEntry upserts an operator-entered activity row. The source
// name has already been validated against the reserved estimate names by
// NewSourceName, so operator rows can never collide with system estimates.
func (s *Service) RecordMeasuredEntry(ctx context.Context, request MeasuredEntryRequest) (ActivityLogEntry, error) {
	if request.ActivityValue < 0 {
		return ActivityLogEntry{}, newServiceError(opRecordEntry, "negative_value", errNegativeValue)
	}
	if request.ActivityUnit == "" {
		return ActivityLogEntry{}, newServiceError(opRecordEntry, "missing_unit", fmt.Errorf("activity unit is required"))
	}

	entry := ActivityLogEntry{
		PeriodMonth:            request.Period.String(),
		Scope:                  int(request.Scope),
		SourceType:             string(request.SourceType),
		SourceName:             string(request.SourceName),
		ActivityValue:          request.ActivityValue,
		ActivityUnit:           request.ActivityUnit,
		EmissionFactorLocation: request.EmissionFactorLocation,
		EmissionFactorMarket:   request.EmissionFactorMarket,
		DataQuality:            string(request.DataQuality),
		RecordedAtSeconds:      s.clock().UTC().Unix(),
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "period_month"}, {Name: "scope"},
				{Name: "source_type"}, {Name: "source_name"},
			},
			UpdateAll: true,
		}).
		Create(&entry).Error
	if err != nil {
		s.logError(opRecordEntry, "upsert_failed", err,
			zap.String("period_month", entry.PeriodMonth),
			zap.String("source_name", entry.SourceName))
		return ActivityLogEntry{}, newServiceError(opRecordEntry, "upsert_failed", err)
	}
	return entry, nil
}

// OffsetRequest describes a new carbon offset record.
type OffsetRequest struct {
	Period      PeriodMonth
	Provider    string
	ProjectName string
	QuantityKg  float64
	Status      OffsetStatus
}

// RecordOffset creates an offset record. Offsets are append-only: there is no
// update path, corrections are new records.
func (s *Service) RecordOffset(ctx context.Context, request OffsetRequest) (OffsetRecord, error) {
	if request.QuantityKg < 0 {
		return OffsetRecord{}, newServiceError(opRecordOffset, "negative_quantity", errNegativeQuantity)
	}
	if request.Provider == "" {
		return OffsetRecord{}, newServiceError(opRecordOffset, "missing_provider", fmt.Errorf("provider is required"))
	}

	offsetID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opRecordOffset, "id_generation_failed", err)
		return OffsetRecord{}, newServiceError(opRecordOffset, "id_generation_failed", err)
	}

	record := OffsetRecord{
		OffsetID:         offsetID,
		PeriodMonth:      request.Period.String(),
		Provider:         request.Provider,
		ProjectName:      request.ProjectName,
		QuantityKg:       request.QuantityKg,
		Status:           string(request.Status),
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		s.logError(opRecordOffset, "insert_failed", err,
			zap.String("period_month", record.PeriodMonth),
			zap.String("provider", record.Provider))
		return OffsetRecord{}, newServiceError(opRecordOffset, "insert_failed", err)
	}
	return record, nil
}

// ListOffsets returns all offset records for a month, oldest first.
func (s *Service) ListOffsets(ctx context.Context, period PeriodMonth) ([]OffsetRecord, error) {
	var records []OffsetRecord
	if err := s.db.WithContext(ctx).
		Where("period_month = ?", period.String()).
		Order("created_at_s ASC").
		Find(&records).Error; err != nil {
		s.logError(opListOffsets, "query_failed", err, zap.String("period_month", period.String()))
		return nil, newServiceError(opListOffsets, "query_failed", err)
	}
	return records, nil
}
