package database

import (
	"path/filepath"
	"testing"

	"github.com/loopband/backend/internal/greenaudit"
)

func TestOpenSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite("", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestOpenSQLiteMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loopband_test.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	report := greenaudit.MonthlyReport{
		PeriodMonth:        "2026-02",
		MethodologyVersion: "greenict-v1",
		AssumptionsJSON:    "{}",
		MetricsJSON:        "{}",
		ArchiveMarkdown:    "# test",
		ArchiveSHA256:      "00",
		Published:          true,
	}
	if err := db.Create(&report).Error; err != nil {
		t.Fatalf("expected migrated report table, got %v", err)
	}

	var applied migrationRecord
	if err := db.Where("name = ?", migrationNormalizeOffsetStatus).Take(&applied).Error; err != nil {
		t.Fatalf("expected named migration to be recorded: %v", err)
	}
}

func TestOpenSQLiteReopensWithoutReapplyingMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loopband_test.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	var first migrationRecord
	if err := db.Where("name = ?", migrationNormalizeOffsetStatus).Take(&first).Error; err != nil {
		t.Fatalf("migration record missing: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.Close()

	db, err = OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	var count int64
	if err := db.Model(&migrationRecord{}).
		Where("name = ?", migrationNormalizeOffsetStatus).
		Count(&count).Error; err != nil {
		t.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected migration recorded once, got %d", count)
	}
}

func TestNormalizeOffsetStatusMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loopband_test.db")

	db, err := OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	legacy := greenaudit.OffsetRecord{
		OffsetID:    "offset-1",
		PeriodMonth: "2026-01",
		Provider:    "myclimate",
		ProjectName: "reforestation",
		QuantityKg:  10,
		Status:      "Retired",
	}
	if err := db.Create(&legacy).Error; err != nil {
		t.Fatalf("failed to seed offset: %v", err)
	}

	if err := normalizeOffsetStatus(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	var stored greenaudit.OffsetRecord
	if err := db.Where("offset_id = ?", "offset-1").Take(&stored).Error; err != nil {
		t.Fatalf("failed to load offset: %v", err)
	}
	if stored.Status != "retired" {
		t.Fatalf("expected lowercased status, got %q", stored.Status)
	}
}
