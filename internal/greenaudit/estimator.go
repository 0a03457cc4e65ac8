package greenaudit

import "math"

// OperationalCounters aggregates one month of raw platform activity. All
// counts are non-negative; Clamp enforces the contract before estimation.
type OperationalCounters struct {
	CheckIns       int64
	GradeRecords   int64
	GradedQuantity int64
	CreatedEvents  int64
	ActiveUsers    int64
}

// Clamp replaces negative counters with zero.
func (c OperationalCounters) Clamp() OperationalCounters {
	return OperationalCounters{
		CheckIns:       maxInt64(c.CheckIns, 0),
		GradeRecords:   maxInt64(c.GradeRecords, 0),
		GradedQuantity: maxInt64(c.GradedQuantity, 0),
		CreatedEvents:  maxInt64(c.CreatedEvents, 0),
		ActiveUsers:    maxInt64(c.ActiveUsers, 0),
	}
}

// MethodologyProfile holds the disclosed linear coefficients converting
// operational counters into an electricity-consumption proxy, plus the
// regional split. Version changes in step with coefficient changes so
// historical reports stay comparable.
type MethodologyProfile struct {
	Version            string
	BaseKwh            float64
	KwhPerCheckIn      float64
	KwhPerGradeRecord  float64
	KwhPerGradedItem   float64
	KwhPerCreatedEvent float64
	KwhPerActiveUser   float64
	SwissOpsShare      float64
	EUCloudShare       float64
}

// DefaultMethodology returns the greenict-v1 estimation profile.
func DefaultMethodology() MethodologyProfile {
	return MethodologyProfile{
		Version:            "greenict-v1",
		BaseKwh:            12.0,
		KwhPerCheckIn:      0.02,
		KwhPerGradeRecord:  0.005,
		KwhPerGradedItem:   0.0005,
		KwhPerCreatedEvent: 0.03,
		KwhPerActiveUser:   0.01,
		SwissOpsShare:      0.70,
		EUCloudShare:       0.30,
	}
}

// EnergyEstimate is the deterministic kWh breakdown for one month.
type EnergyEstimate struct {
	TotalKwh    float64
	SwissOpsKwh float64
	EUCloudKwh  float64
	Components  map[string]float64
}

// EstimateEnergy converts operational counters into the monthly electricity
// proxy. Pure function: identical counters always yield identical output.
// All values are rounded to 4 decimal places for reproducibility.
func (p MethodologyProfile) EstimateEnergy(counters OperationalCounters) EnergyEstimate {
	components := map[string]float64{
		"base":            round4(p.BaseKwh),
		"check_ins":       round4(float64(counters.CheckIns) * p.KwhPerCheckIn),
		"grade_records":   round4(float64(counters.GradeRecords) * p.KwhPerGradeRecord),
		"graded_quantity": round4(float64(counters.GradedQuantity) * p.KwhPerGradedItem),
		"created_events":  round4(float64(counters.CreatedEvents) * p.KwhPerCreatedEvent),
		"active_users":    round4(float64(counters.ActiveUsers) * p.KwhPerActiveUser),
	}

	total := 0.0
	for _, value := range components {
		total += value
	}
	total = round4(total)

	return EnergyEstimate{
		TotalKwh:    total,
		SwissOpsKwh: round4(total * p.SwissOpsShare),
		EUCloudKwh:  round4(total * p.EUCloudShare),
		Components:  components,
	}
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
