package greenaudit

import (
	"errors"
	"fmt"
	"strings"
)

const maxLabelLength = 190

// Scope distinguishes direct (1) and electricity-related (2) emissions per the
// GHG Protocol. Values outside the known set are tolerated by the calculator
// but contribute nothing.
type Scope int

const (
	// ScopeDirect covers fuel combustion and other direct emissions.
	ScopeDirect Scope = 1
	// ScopeElectricity covers purchased electricity.
	ScopeElectricity Scope = 2
)

// SourceType categorises an activity entry for factor resolution.
type SourceType string

const (
	SourceTypeElectricityCH      SourceType = "electricity_ch"
	SourceTypeElectricityEUCloud SourceType = "electricity_eu_cloud"
	SourceTypeDieselLiters       SourceType = "diesel_liters"
	SourceTypePetrolLiters       SourceType = "petrol_liters"
	SourceTypeNaturalGasKwh      SourceType = "natural_gas_kwh"
)

// SourceName discriminates independent entries of the same scope and type
// within one month. The system estimate names are reserved: operator-entered
// rows may never use them, so a measured row cannot silently overwrite a
// system estimate.
type SourceName string

const (
	// SourceNameEstimateSwitzerland tags the Swiss-operations share of the
	// monthly electricity estimate.
	SourceNameEstimateSwitzerland SourceName = "system_estimate_switzerland"
	// SourceNameEstimateEUCloud tags the EU cloud share of the monthly
	// electricity estimate.
	SourceNameEstimateEUCloud SourceName = "system_estimate_eu_cloud"
)

var (
	// ErrInvalidSourceName indicates an empty, oversized, or reserved source name.
	ErrInvalidSourceName = errors.New("greenaudit: invalid source name")
	// ErrInvalidSourceType indicates an empty or oversized source type.
	ErrInvalidSourceType = errors.New("greenaudit: invalid source type")
)

// NewSourceName validates operator-supplied input and returns a SourceName.
// Reserved system estimate names are rejected.
func NewSourceName(rawInput string) (SourceName, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSourceName)
	}
	if len(trimmed) > maxLabelLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSourceName, maxLabelLength)
	}
	if SourceName(trimmed) == SourceNameEstimateSwitzerland || SourceName(trimmed) == SourceNameEstimateEUCloud {
		return "", fmt.Errorf("%w: %q is reserved for system estimates", ErrInvalidSourceName, trimmed)
	}
	return SourceName(trimmed), nil
}

// NewSourceType validates raw input and returns a SourceType.
func NewSourceType(rawInput string) (SourceType, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSourceType)
	}
	if len(trimmed) > maxLabelLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidSourceType, maxLabelLength)
	}
	return SourceType(trimmed), nil
}

// DataQuality grades how an activity value was obtained.
type DataQuality string

const (
	DataQualityMeasured  DataQuality = "measured"
	DataQualityEstimated DataQuality = "estimated"
	DataQualityAssumed   DataQuality = "assumed"
)

// ErrInvalidDataQuality indicates an unknown data quality label.
var ErrInvalidDataQuality = errors.New("greenaudit: invalid data quality")

// ParseDataQuality maps raw input onto a known DataQuality.
func ParseDataQuality(rawInput string) (DataQuality, error) {
	switch DataQuality(strings.ToLower(strings.TrimSpace(rawInput))) {
	case DataQualityMeasured:
		return DataQualityMeasured, nil
	case DataQualityEstimated:
		return DataQualityEstimated, nil
	case DataQualityAssumed:
		return DataQualityAssumed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDataQuality, rawInput)
	}
}

// OffsetStatus tracks the lifecycle of a carbon offset record. Only retired
// offsets count toward netting.
type OffsetStatus string

const (
	OffsetStatusPlanned   OffsetStatus = "planned"
	OffsetStatusPurchased OffsetStatus = "purchased"
	OffsetStatusRetired   OffsetStatus = "retired"
)

// ErrInvalidOffsetStatus indicates an unknown offset status label.
var ErrInvalidOffsetStatus = errors.New("greenaudit: invalid offset status")

// ParseOffsetStatus maps raw input onto a known OffsetStatus.
func ParseOffsetStatus(rawInput string) (OffsetStatus, error) {
	switch OffsetStatus(strings.ToLower(strings.TrimSpace(rawInput))) {
	case OffsetStatusPlanned:
		return OffsetStatusPlanned, nil
	case OffsetStatusPurchased:
		return OffsetStatusPurchased, nil
	case OffsetStatusRetired:
		return OffsetStatusRetired, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOffsetStatus, rawInput)
	}
}

// ActivityLogEntry stores one measured or estimated emission-relevant activity
// for a month. The composite primary key gives re-submission upsert semantics.
type ActivityLogEntry struct {
	PeriodMonth            string   `gorm:"column:period_month;primaryKey;size:7;not null"`
	Scope                  int      `gorm:"column:scope;primaryKey;not null"`
	SourceType             string   `gorm:"column:source_type;primaryKey;size:190;not null"`
	SourceName             string   `gorm:"column:source_name;primaryKey;size:190;not null"`
	ActivityValue          float64  `gorm:"column:activity_value;not null"`
	ActivityUnit           string   `gorm:"column:activity_unit;size:32;not null"`
	EmissionFactorLocation *float64 `gorm:"column:emission_factor_location"`
	EmissionFactorMarket   *float64 `gorm:"column:emission_factor_market"`
	DataQuality            string   `gorm:"column:data_quality;size:16;not null"`
	RecordedAtSeconds      int64    `gorm:"column:recorded_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (ActivityLogEntry) TableName() string {
	return "emission_activity_log"
}

// OffsetRecord stores a purchased or retired carbon offset applicable to a
// month. Retired records are immutable; corrections are new records.
type OffsetRecord struct {
	OffsetID          string  `gorm:"column:offset_id;primaryKey;size:190;not null"`
	PeriodMonth       string  `gorm:"column:period_month;size:7;not null;index:idx_offsets_month_status,priority:1"`
	Provider          string  `gorm:"column:provider;size:190;not null"`
	ProjectName       string  `gorm:"column:project_name;size:320;not null"`
	QuantityKg        float64 `gorm:"column:quantity_kg;not null"`
	Status            string  `gorm:"column:status;size:16;not null;index:idx_offsets_month_status,priority:2"`
	CreatedAtSeconds  int64   `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (OffsetRecord) TableName() string {
	return "carbon_offsets"
}

// MonthlyReport is the canonical, publishable output of one audit run. It is a
// derived materialization: it owns no primary data, only a snapshot.
type MonthlyReport struct {
	PeriodMonth        string  `gorm:"column:period_month;primaryKey;size:7;not null"`
	MethodologyVersion string  `gorm:"column:methodology_version;size:64;not null"`
	Scope1Kg           float64 `gorm:"column:scope1_kg;not null"`
	Scope2LocationKg   float64 `gorm:"column:scope2_location_kg;not null"`
	Scope2MarketKg     float64 `gorm:"column:scope2_market_kg;not null"`
	GrossLocationKg    float64 `gorm:"column:gross_location_kg;not null"`
	GrossMarketKg      float64 `gorm:"column:gross_market_kg;not null"`
	OffsetsKg          float64 `gorm:"column:offsets_kg;not null"`
	ResidualLocationKg float64 `gorm:"column:residual_location_kg;not null"`
	ResidualMarketKg   float64 `gorm:"column:residual_market_kg;not null"`
	AssumptionsJSON    string  `gorm:"column:assumptions_json;type:text;not null"`
	MetricsJSON        string  `gorm:"column:metrics_json;type:text;not null"`
	ArchiveMarkdown    string  `gorm:"column:archive_markdown;type:text;not null"`
	ArchiveSHA256      string  `gorm:"column:archive_sha256;size:64;not null"`
	GeneratedAtSeconds int64   `gorm:"column:generated_at_s;not null"`
	Published          bool    `gorm:"column:published;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (MonthlyReport) TableName() string {
	return "monthly_green_reports"
}
