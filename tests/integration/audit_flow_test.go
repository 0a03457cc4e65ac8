package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loopband/backend/internal/activity"
	"github.com/loopband/backend/internal/auth"
	"github.com/loopband/backend/internal/database"
	"github.com/loopband/backend/internal/greenaudit"
	"github.com/loopband/backend/internal/server"
	"github.com/gin-gonic/gin"
)

var fixedClock = func() time.Time {
	return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func newTestStack(t *testing.T) (http.Handler, *auth.TriggerAuthorizer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "loopband_it.db"), nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	inWindow := time.Date(2026, time.February, 10, 9, 0, 0, 0, time.UTC).Unix()
	if err := db.Create(&[]activity.CheckIn{
		{CheckInID: "ci-1", EventID: "ev-1", UserID: "user-1", CheckedInAtSeconds: inWindow},
		{CheckInID: "ci-2", EventID: "ev-1", UserID: "user-2", CheckedInAtSeconds: inWindow},
	}).Error; err != nil {
		t.Fatalf("failed to seed check-ins: %v", err)
	}
	if err := db.Create(&activity.GradeRecord{
		RecordID: "gr-1", EventID: "ev-1", UserID: "user-1",
		Quantity: 40, Grade: "A", GradedAtSeconds: inWindow,
	}).Error; err != nil {
		t.Fatalf("failed to seed grade record: %v", err)
	}
	if err := db.Create(&activity.Event{
		EventID: "ev-1", OrganizerID: "org-1", Title: "February cleanup",
		StartsAtSeconds: inWindow, CreatedAtSeconds: inWindow,
	}).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	authorizer, err := auth.NewTriggerAuthorizer(auth.TriggerAuthorizerConfig{
		SigningSecret: []byte("integration-signing-secret"),
		TriggerSecret: "integration-trigger-secret",
		Clock:         fixedClock,
	})
	if err != nil {
		t.Fatalf("failed to construct authorizer: %v", err)
	}

	collector, err := activity.NewCollector(db)
	if err != nil {
		t.Fatalf("failed to construct collector: %v", err)
	}

	auditService, err := greenaudit.NewService(greenaudit.ServiceConfig{
		Database:   db,
		Collector:  collector,
		Clock:      fixedClock,
		IDProvider: greenaudit.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to construct audit service: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		AuditService: auditService,
		Authorizer:   authorizer,
		Clock:        fixedClock,
	})
	if err != nil {
		t.Fatalf("failed to construct handler: %v", err)
	}
	return handler, authorizer
}

func do(handler http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func TestAuditTriggerThroughHTTP(t *testing.T) {
	handler, authorizer := newTestStack(t)

	token, _, err := authorizer.IssueAdminToken(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("failed to issue admin token: %v", err)
	}
	adminHeaders := map[string]string{"Authorization": "Bearer " + token}

	// Operator records a measured diesel entry and a retired offset first.
	entryBody := `{"month":"2026-02","scope":1,"source_type":"diesel_liters","source_name":"event_generator","activity_value":10,"activity_unit":"liters","data_quality":"measured"}`
	if response := do(handler, http.MethodPost, "/api/activity-entries", entryBody, adminHeaders); response.Code != http.StatusOK {
		t.Fatalf("failed to record entry: %d %s", response.Code, response.Body.String())
	}
	offsetBody := `{"month":"2026-02","provider":"myclimate","project_name":"reforestation","quantity_kg":5,"status":"retired"}`
	if response := do(handler, http.MethodPost, "/api/offsets", offsetBody, adminHeaders); response.Code != http.StatusOK {
		t.Fatalf("failed to record offset: %d %s", response.Code, response.Body.String())
	}

	run := do(handler, http.MethodPost, "/api/audit/run?month=2026-02", "", adminHeaders)
	if run.Code != http.StatusOK {
		t.Fatalf("audit run failed: %d %s", run.Code, run.Body.String())
	}

	var result greenaudit.AuditResult
	if err := json.Unmarshal(run.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode audit response: %v", err)
	}
	if result.PeriodMonth != "2026-02" {
		t.Fatalf("unexpected period: %q", result.PeriodMonth)
	}
	if result.Metrics.CheckIns != 2 || result.Metrics.GradeRecords != 1 ||
		result.Metrics.GradedQuantity != 40 || result.Metrics.CreatedEvents != 1 ||
		result.Metrics.ActiveUsers != 2 {
		t.Fatalf("unexpected operational counters: %+v", result.Metrics)
	}
	if result.Scope1Kg != 26.8 {
		t.Fatalf("expected measured diesel scope 1 26.8 kg, got %v", result.Scope1Kg)
	}
	if result.OffsetsKg != 5 {
		t.Fatalf("expected 5 kg retired offsets, got %v", result.OffsetsKg)
	}
	if result.ResidualLocationKg >= result.GrossLocationKg {
		t.Fatalf("expected offsets to reduce the residual: %+v", result)
	}

	// The published report is world readable and carries a verifiable digest.
	detail := do(handler, http.MethodGet, "/api/reports/2026-02", "", nil)
	if detail.Code != http.StatusOK {
		t.Fatalf("report fetch failed: %d", detail.Code)
	}
	var report struct {
		ArchiveSHA256   string `json:"archive_sha256"`
		ArchiveMarkdown string `json:"archive_markdown"`
	}
	if err := json.Unmarshal(detail.Body.Bytes(), &report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	if report.ArchiveSHA256 != result.ArchiveSHA256 {
		t.Fatalf("report digest does not match audit response")
	}
	if !strings.Contains(report.ArchiveMarkdown, "event_generator") {
		t.Fatalf("expected the measured entry to be itemized in the archive")
	}
}

func TestAuditRerunIsIdempotentThroughHTTP(t *testing.T) {
	handler, _ := newTestStack(t)
	trigger := map[string]string{"X-Trigger-Secret": "integration-trigger-secret"}

	first := do(handler, http.MethodPost, "/api/audit/run?month=2026-02", "", trigger)
	second := do(handler, http.MethodPost, "/api/audit/run?month=2026-02", "", trigger)
	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("audit runs failed: %d %d", first.Code, second.Code)
	}

	var firstResult, secondResult greenaudit.AuditResult
	if err := json.Unmarshal(first.Body.Bytes(), &firstResult); err != nil {
		t.Fatalf("failed to decode first response: %v", err)
	}
	if err := json.Unmarshal(second.Body.Bytes(), &secondResult); err != nil {
		t.Fatalf("failed to decode second response: %v", err)
	}
	if firstResult.ArchiveSHA256 != secondResult.ArchiveSHA256 {
		t.Fatalf("expected identical digests across reruns")
	}

	list := do(handler, http.MethodGet, "/api/reports", "", nil)
	var listing struct {
		Reports []json.RawMessage `json:"reports"`
	}
	if err := json.Unmarshal(list.Body.Bytes(), &listing); err != nil {
		t.Fatalf("failed to decode listing: %v", err)
	}
	if len(listing.Reports) != 1 {
		t.Fatalf("expected a single report after rerun, got %d", len(listing.Reports))
	}
}

func TestAuditTriggerRejectsAnonymous(t *testing.T) {
	handler, _ := newTestStack(t)

	if response := do(handler, http.MethodPost, "/api/audit/run?month=2026-02", "", nil); response.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", response.Code)
	}
}
