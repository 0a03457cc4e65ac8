package greenaudit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func mustPeriodMonth(t *testing.T, value string) PeriodMonth {
	t.Helper()
	period, err := ParsePeriodMonth(value)
	if err != nil {
		t.Fatalf("unexpected period month error: %v", err)
	}
	return period
}

func mustSourceName(t *testing.T, value string) SourceName {
	t.Helper()
	name, err := NewSourceName(value)
	if err != nil {
		t.Fatalf("unexpected source name error: %v", err)
	}
	return name
}

func mustSourceType(t *testing.T, value string) SourceType {
	t.Helper()
	sourceType, err := NewSourceType(value)
	if err != nil {
		t.Fatalf("unexpected source type error: %v", err)
	}
	return sourceType
}

func floatPtr(value float64) *float64 {
	return &value
}

type staticIDGenerator struct {
	ids   []string
	index int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.index >= len(g.ids) {
		return "", errors.New("exhausted ids")
	}
	id := g.ids[g.index]
	g.index++
	return id, nil
}

type fakeCollector struct {
	counters OperationalCounters
	err      error
	calls    int
}

func (c *fakeCollector) MonthlyCounters(_ context.Context, _, _ time.Time) (OperationalCounters, error) {
	c.calls++
	if c.err != nil {
		return OperationalCounters{}, c.err
	}
	return c.counters, nil
}

func referenceCounters() OperationalCounters {
	return OperationalCounters{
		CheckIns:       100,
		GradeRecords:   50,
		GradedQuantity: 1000,
		CreatedEvents:  5,
		ActiveUsers:    20,
	}
}

func newTestService(t *testing.T, collector CounterSource, ids []string) (*Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:greenaudit_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ActivityLogEntry{}, &OffsetRecord{}, &MonthlyReport{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	generator := &staticIDGenerator{ids: ids}
	clock := func() time.Time { return time.Unix(1770000000, 0).UTC() }

	service, err := NewService(ServiceConfig{
		Database:   db,
		Collector:  collector,
		Clock:      clock,
		IDProvider: generator,
	})
	if err != nil {
		t.Fatalf("failed to construct audit service: %v", err)
	}

	return service, db
}
