package greenaudit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// FactorAssumption discloses one default emission factor used for entries
// lacking an explicit factor.
type FactorAssumption struct {
	Scope        int     `json:"scope"`
	SourceType   string  `json:"source_type"`
	KgCO2ePerUnit float64 `json:"kg_co2e_per_unit"`
}

// ReportAssumptions snapshots everything a reader needs to reproduce the
// report: the estimation profile, the default factor table, and the exact
// month window.
type ReportAssumptions struct {
	MethodologyVersion string             `json:"methodology_version"`
	BaseKwh            float64            `json:"base_kwh"`
	KwhPerCheckIn      float64            `json:"kwh_per_check_in"`
	KwhPerGradeRecord  float64            `json:"kwh_per_grade_record"`
	KwhPerGradedItem   float64            `json:"kwh_per_graded_item"`
	KwhPerCreatedEvent float64            `json:"kwh_per_created_event"`
	KwhPerActiveUser   float64            `json:"kwh_per_active_user"`
	SwissOpsShare      float64            `json:"swiss_ops_share"`
	EUCloudShare       float64            `json:"eu_cloud_share"`
	DefaultFactors     []FactorAssumption `json:"default_factors"`
	WindowStartUTC     string             `json:"window_start_utc"`
	WindowEndUTC       string             `json:"window_end_utc"`
}

// ReportMetrics snapshots the raw estimator inputs and the derived kWh split.
type ReportMetrics struct {
	CheckIns       int64   `json:"check_ins"`
	GradeRecords   int64   `json:"grade_records"`
	GradedQuantity int64   `json:"graded_quantity"`
	CreatedEvents  int64   `json:"created_events"`
	ActiveUsers    int64   `json:"active_users"`
	TotalKwh       float64 `json:"total_kwh"`
	SwissOpsKwh    float64 `json:"swiss_ops_kwh"`
	EUCloudKwh     float64 `json:"eu_cloud_kwh"`
}

func newReportAssumptions(profile MethodologyProfile, period PeriodMonth) ReportAssumptions {
	factors := make([]FactorAssumption, 0, len(defaultEmissionFactors))
	for key, factor := range defaultEmissionFactors {
		factors = append(factors, FactorAssumption{
			Scope:        int(key.scope),
			SourceType:   string(key.sourceType),
			KgCO2ePerUnit: factor,
		})
	}
	sort.Slice(factors, func(i, j int) bool {
		if factors[i].Scope != factors[j].Scope {
			return factors[i].Scope < factors[j].Scope
		}
		return factors[i].SourceType < factors[j].SourceType
	})

	return ReportAssumptions{
		MethodologyVersion: profile.Version,
		BaseKwh:            profile.BaseKwh,
		KwhPerCheckIn:      profile.KwhPerCheckIn,
		KwhPerGradeRecord:  profile.KwhPerGradeRecord,
		KwhPerGradedItem:   profile.KwhPerGradedItem,
		KwhPerCreatedEvent: profile.KwhPerCreatedEvent,
		KwhPerActiveUser:   profile.KwhPerActiveUser,
		SwissOpsShare:      profile.SwissOpsShare,
		EUCloudShare:       profile.EUCloudShare,
		DefaultFactors:     factors,
		WindowStartUTC:     period.Start().Format(time.RFC3339),
		WindowEndUTC:       period.End().Format(time.RFC3339),
	}
}

type archiveInput struct {
	Period      PeriodMonth
	GeneratedAt time.Time
	Totals      EmissionTotals
	OffsetsKg   float64
	Entries     []ActivityLogEntry
	Assumptions ReportAssumptions
	Metrics     ReportMetrics
}

// renderArchive produces the canonical markdown disclosure for one month.
// Rendering is deterministic: entries are sorted by (scope, source type,
// source name) and every float is printed with fixed precision, so identical
// inputs yield byte-identical text.
func renderArchive(input archiveInput) string {
	entries := make([]ActivityLogEntry, len(input.Entries))
	copy(entries, input.Entries)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Scope != entries[j].Scope {
			return entries[i].Scope < entries[j].Scope
		}
		if entries[i].SourceType != entries[j].SourceType {
			return entries[i].SourceType < entries[j].SourceType
		}
		return entries[i].SourceName < entries[j].SourceName
	})

	var builder strings.Builder
	fmt.Fprintf(&builder, "# Green ICT Emissions Report %s\n\n", input.Period.String())
	fmt.Fprintf(&builder, "Generated: %s\n", input.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&builder, "Methodology: %s\n\n", input.Assumptions.MethodologyVersion)

	builder.WriteString("## Summary (kg CO2e)\n\n")
	fmt.Fprintf(&builder, "- Scope 1: %.4f\n", input.Totals.Scope1Kg)
	fmt.Fprintf(&builder, "- Scope 2 (location-based): %.4f\n", input.Totals.Scope2LocationKg)
	fmt.Fprintf(&builder, "- Scope 2 (market-based): %.4f\n", input.Totals.Scope2MarketKg)
	fmt.Fprintf(&builder, "- Gross (location-based): %.4f\n", input.Totals.GrossLocationKg())
	fmt.Fprintf(&builder, "- Gross (market-based): %.4f\n", input.Totals.GrossMarketKg())
	fmt.Fprintf(&builder, "- Offsets retired: %.4f\n", input.OffsetsKg)
	fmt.Fprintf(&builder, "- Residual (location-based): %.4f\n", residualKg(input.Totals.GrossLocationKg(), input.OffsetsKg))
	fmt.Fprintf(&builder, "- Residual (market-based): %.4f\n\n", residualKg(input.Totals.GrossMarketKg(), input.OffsetsKg))

	builder.WriteString("## Activity entries\n\n")
	builder.WriteString("| Scope | Source type | Source name | Value | Unit | Quality |\n")
	builder.WriteString("|---|---|---|---|---|---|\n")
	for _, entry := range entries {
		fmt.Fprintf(&builder, "| %d | %s | %s | %.4f | %s | %s |\n",
			entry.Scope, entry.SourceType, entry.SourceName,
			entry.ActivityValue, entry.ActivityUnit, entry.DataQuality)
	}
	builder.WriteString("\n")

	builder.WriteString("## Estimator inputs\n\n")
	fmt.Fprintf(&builder, "- Check-ins: %d\n", input.Metrics.CheckIns)
	fmt.Fprintf(&builder, "- Grade records: %d\n", input.Metrics.GradeRecords)
	fmt.Fprintf(&builder, "- Graded quantity: %d\n", input.Metrics.GradedQuantity)
	fmt.Fprintf(&builder, "- Created events: %d\n", input.Metrics.CreatedEvents)
	fmt.Fprintf(&builder, "- Active users: %d\n", input.Metrics.ActiveUsers)
	fmt.Fprintf(&builder, "- Estimated electricity: %.4f kWh (CH %.4f / EU cloud %.4f)\n\n",
		input.Metrics.TotalKwh, input.Metrics.SwissOpsKwh, input.Metrics.EUCloudKwh)

	builder.WriteString("## Assumptions\n\n")
	fmt.Fprintf(&builder, "- Window: %s .. %s\n", input.Assumptions.WindowStartUTC, input.Assumptions.WindowEndUTC)
	fmt.Fprintf(&builder, "- Estimation model: %.4f kWh base + %.4f/check-in + %.4f/grade record + %.4f/graded item + %.4f/event + %.4f/active user\n",
		input.Assumptions.BaseKwh, input.Assumptions.KwhPerCheckIn, input.Assumptions.KwhPerGradeRecord,
		input.Assumptions.KwhPerGradedItem, input.Assumptions.KwhPerCreatedEvent, input.Assumptions.KwhPerActiveUser)
	fmt.Fprintf(&builder, "- Regional split: %.2f Swiss operations / %.2f EU cloud\n", input.Assumptions.SwissOpsShare, input.Assumptions.EUCloudShare)
	builder.WriteString("- Default emission factors (kg CO2e per unit):\n")
	for _, factor := range input.Assumptions.DefaultFactors {
		fmt.Fprintf(&builder, "  - scope %d %s: %.4f\n", factor.Scope, factor.SourceType, factor.KgCO2ePerUnit)
	}

	return builder.String()
}

// hashArchive computes the SHA-256 digest of the rendered archive text. Anyone
// holding the published markdown can recompute this to verify it was not
// altered after publication.
func hashArchive(rendered string) string {
	digest := sha256.Sum256([]byte(rendered))
	return hex.EncodeToString(digest[:])
}
