package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/loopband/backend/internal/greenaudit"
	"gorm.io/gorm"
)

// Collector derives monthly operational counters from the raw platform
// tables. All queries use the half-open UTC window [start, end).
type Collector struct {
	db *gorm.DB
}

// NewCollector constructs a collector over the platform database.
func NewCollector(db *gorm.DB) (*Collector, error) {
	if db == nil {
		return nil, fmt.Errorf("activity: database connection required")
	}
	return &Collector{db: db}, nil
}

// MonthlyCounters counts check-ins, grade records, graded lanyards, created
// events, and distinct active users inside the window.
func (c *Collector) MonthlyCounters(ctx context.Context, windowStart, windowEnd time.Time) (greenaudit.OperationalCounters, error) {
	startSeconds := windowStart.UTC().Unix()
	endSeconds := windowEnd.UTC().Unix()
	db := c.db.WithContext(ctx)

	var counters greenaudit.OperationalCounters

	if err := db.Model(&CheckIn{}).
		Where("checked_in_at_s >= ? AND checked_in_at_s < ?", startSeconds, endSeconds).
		Count(&counters.CheckIns).Error; err != nil {
		return greenaudit.OperationalCounters{}, fmt.Errorf("count check-ins: %w", err)
	}

	if err := db.Model(&GradeRecord{}).
		Where("graded_at_s >= ? AND graded_at_s < ?", startSeconds, endSeconds).
		Count(&counters.GradeRecords).Error; err != nil {
		return greenaudit.OperationalCounters{}, fmt.Errorf("count grade records: %w", err)
	}

	if err := db.Model(&GradeRecord{}).
		Where("graded_at_s >= ? AND graded_at_s < ?", startSeconds, endSeconds).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&counters.GradedQuantity).Error; err != nil {
		return greenaudit.OperationalCounters{}, fmt.Errorf("sum graded quantity: %w", err)
	}

	if err := db.Model(&Event{}).
		Where("created_at_s >= ? AND created_at_s < ?", startSeconds, endSeconds).
		Count(&counters.CreatedEvents).Error; err != nil {
		return greenaudit.OperationalCounters{}, fmt.Errorf("count created events: %w", err)
	}

	activeUsersQuery := `
		SELECT COUNT(*) FROM (
			SELECT user_id FROM event_check_ins WHERE checked_in_at_s >= ? AND checked_in_at_s < ?
			UNION
			SELECT user_id FROM lanyard_grade_records WHERE graded_at_s >= ? AND graded_at_s < ?
		) AS active`
	if err := db.Raw(activeUsersQuery, startSeconds, endSeconds, startSeconds, endSeconds).
		Scan(&counters.ActiveUsers).Error; err != nil {
		return greenaudit.OperationalCounters{}, fmt.Errorf("count active users: %w", err)
	}

	return counters, nil
}
