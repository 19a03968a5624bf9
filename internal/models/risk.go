package models

// RiskLevel classifies the blast radius of a generated SQL command.
type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskUnknown RiskLevel = "unknown"
)

// RiskClassification is the pure verdict over a command string.
// Valid=false means the command must never be sent to the database.
type RiskClassification struct {
	Valid  bool      `json:"valid"`
	Level  RiskLevel `json:"risk_level"`
	Reason string    `json:"reason"`
}

// AutonomyLevel governs whether classified commands execute automatically.
// It affects execution only, never proposal generation.
type AutonomyLevel string

const (
	AutonomyObservation AutonomyLevel = "observation"
	AutonomyAssisted    AutonomyLevel = "assisted"
	AutonomyTrust       AutonomyLevel = "trust"
	AutonomyAutonomous  AutonomyLevel = "autonomous"
)

// DefaultAutonomyLevel applies when a database has no explicit setting.
const DefaultAutonomyLevel = AutonomyAssisted

// Valid reports whether the level is one of the four enumerated values.
func (l AutonomyLevel) Valid() bool {
	switch l {
	case AutonomyObservation, AutonomyAssisted, AutonomyTrust, AutonomyAutonomous:
		return true
	}
	return false
}

// ParseAutonomyLevel validates a raw configuration value.
func ParseAutonomyLevel(raw string) (AutonomyLevel, error) {
	l := AutonomyLevel(raw)
	if !l.Valid() {
		return "", ErrInvalidAutonomyLevel
	}
	return l, nil
}
