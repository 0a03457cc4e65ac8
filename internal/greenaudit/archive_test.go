package greenaudit

import (
	"strings"
	"testing"
	"time"
)

func referenceArchiveInput(t *testing.T) archiveInput {
	t.Helper()
	period := mustPeriodMonth(t, "2026-02")
	return archiveInput{
		Period:      period,
		GeneratedAt: time.Unix(1770000000, 0).UTC(),
		Totals:      EmissionTotals{Scope1Kg: 26.8, Scope2LocationKg: 1.4496, Scope2MarketKg: 1.4496},
		OffsetsKg:   5,
		Entries: []ActivityLogEntry{
			{
				Scope: int(ScopeElectricity), SourceType: string(SourceTypeElectricityCH),
				SourceName: string(SourceNameEstimateSwitzerland), ActivityValue: 10.57,
				ActivityUnit: unitKwh, DataQuality: string(DataQualityEstimated),
			},
			{
				Scope: int(ScopeDirect), SourceType: string(SourceTypeDieselLiters),
				SourceName: "generator", ActivityValue: 10,
				ActivityUnit: "liters", DataQuality: string(DataQualityMeasured),
			},
		},
		Assumptions: newReportAssumptions(DefaultMethodology(), period),
		Metrics: ReportMetrics{
			CheckIns: 100, GradeRecords: 50, GradedQuantity: 1000,
			CreatedEvents: 5, ActiveUsers: 20,
			TotalKwh: 15.10, SwissOpsKwh: 10.57, EUCloudKwh: 4.53,
		},
	}
}

func TestRenderArchiveIsReproducible(t *testing.T) {
	first := renderArchive(referenceArchiveInput(t))
	second := renderArchive(referenceArchiveInput(t))

	if first != second {
		t.Fatalf("expected byte-identical renderings")
	}
	if hashArchive(first) != hashArchive(second) {
		t.Fatalf("expected identical digests for identical text")
	}
}

func TestRenderArchiveSortsEntriesDeterministically(t *testing.T) {
	input := referenceArchiveInput(t)
	reversed := referenceArchiveInput(t)
	reversed.Entries[0], reversed.Entries[1] = reversed.Entries[1], reversed.Entries[0]

	if renderArchive(input) != renderArchive(reversed) {
		t.Fatalf("entry order in the input must not affect the rendering")
	}
}

func TestRenderArchiveContainsDisclosures(t *testing.T) {
	rendered := renderArchive(referenceArchiveInput(t))

	for _, fragment := range []string{
		"# Green ICT Emissions Report 2026-02",
		"Methodology: greenict-v1",
		"- Scope 1: 26.8000",
		"- Scope 2 (location-based): 1.4496",
		"- Gross (location-based): 28.2496",
		"- Offsets retired: 5.0000",
		"- Residual (location-based): 23.2496",
		"| 1 | diesel_liters | generator | 10.0000 | liters | measured |",
		"| 2 | electricity_ch | system_estimate_switzerland | 10.5700 | kWh | estimated |",
		"- Check-ins: 100",
		"- Estimated electricity: 15.1000 kWh (CH 10.5700 / EU cloud 4.5300)",
		"- Window: 2026-02-01T00:00:00Z .. 2026-03-01T00:00:00Z",
		"  - scope 2 electricity_ch: 0.0300",
	} {
		if !strings.Contains(rendered, fragment) {
			t.Fatalf("rendering missing %q:\n%s", fragment, rendered)
		}
	}
}

func TestHashArchiveChangesWithContent(t *testing.T) {
	input := referenceArchiveInput(t)
	baseline := hashArchive(renderArchive(input))

	input.OffsetsKg = 6
	if hashArchive(renderArchive(input)) == baseline {
		t.Fatalf("expected digest to change when offsets change")
	}
}

func TestHashArchiveKnownDigestLength(t *testing.T) {
	digest := hashArchive("loopband")
	if len(digest) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(digest))
	}
}
