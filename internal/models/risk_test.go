package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAutonomyLevel_Valid tests recognition of the four autonomy levels.
func TestAutonomyLevel_Valid(t *testing.T) {
	for _, level := range []AutonomyLevel{
		AutonomyObservation, AutonomyAssisted, AutonomyTrust, AutonomyAutonomous,
	} {
		assert.True(t, level.Valid(), "level %s should be valid", level)
	}

	assert.False(t, AutonomyLevel("").Valid())
	assert.False(t, AutonomyLevel("yolo").Valid())
	assert.False(t, AutonomyLevel("Trust").Valid(), "levels are case sensitive")
}

// TestParseAutonomyLevel tests parsing of raw configuration values.
func TestParseAutonomyLevel(t *testing.T) {
	level, err := ParseAutonomyLevel("autonomous")
	require.NoError(t, err)
	assert.Equal(t, AutonomyAutonomous, level)

	_, err = ParseAutonomyLevel("full-send")
	assert.ErrorIs(t, err, ErrInvalidAutonomyLevel)
}
