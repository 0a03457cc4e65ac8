package activity

// CheckIn records one volunteer GPS check-in at an event.
type CheckIn struct {
	CheckInID          string  `gorm:"column:check_in_id;primaryKey;size:190;not null"`
	EventID            string  `gorm:"column:event_id;size:190;not null;index"`
	UserID             string  `gorm:"column:user_id;size:190;not null;index:idx_check_ins_user_time,priority:1"`
	Latitude           float64 `gorm:"column:latitude;not null"`
	Longitude          float64 `gorm:"column:longitude;not null"`
	CheckedInAtSeconds int64   `gorm:"column:checked_in_at_s;not null;index:idx_check_ins_user_time,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (CheckIn) TableName() string {
	return "event_check_ins"
}

// GradeRecord records one batch of collected lanyards graded by a volunteer.
type GradeRecord struct {
	RecordID        string `gorm:"column:record_id;primaryKey;size:190;not null"`
	EventID         string `gorm:"column:event_id;size:190;not null;index"`
	UserID          string `gorm:"column:user_id;size:190;not null;index"`
	Quantity        int64  `gorm:"column:quantity;not null"`
	Grade           string `gorm:"column:grade;size:8;not null"`
	GradedAtSeconds int64  `gorm:"column:graded_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (GradeRecord) TableName() string {
	return "lanyard_grade_records"
}

// Event records one organiser-registered collection event.
type Event struct {
	EventID          string `gorm:"column:event_id;primaryKey;size:190;not null"`
	OrganizerID      string `gorm:"column:organizer_id;size:190;not null;index"`
	Title            string `gorm:"column:title;size:320;not null"`
	DepositCents     int64  `gorm:"column:deposit_cents;not null;default:0"`
	StartsAtSeconds  int64  `gorm:"column:starts_at_s;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}
