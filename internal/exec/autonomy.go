package exec

import "github.com/pgsteward/pgsteward/internal/models"

// CanAutoExecute decides whether a classified command may run without a
// human approval, given the database's autonomy level. The level only ever
// gates execution; proposal generation is unaffected by it.
//
//	observation  never
//	assisted     never (the default)
//	trust        only low-risk commands
//	autonomous   any valid command
func CanAutoExecute(c models.RiskClassification, level models.AutonomyLevel) bool {
	switch level {
	case models.AutonomyTrust:
		return c.Valid && c.Level == models.RiskLow
	case models.AutonomyAutonomous:
		return c.Valid
	default:
		// observation, assisted, and anything unrecognized.
		return false
	}
}
