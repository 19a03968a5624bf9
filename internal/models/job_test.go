package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPipeline_Valid tests recognition of runnable pipeline names.
func TestPipeline_Valid(t *testing.T) {
	for _, p := range []Pipeline{PipelineAnalysis, PipelineMaintenance, PipelinePartition} {
		assert.True(t, p.Valid(), "pipeline %s should be valid", p)
	}

	assert.False(t, Pipeline("").Valid())
	assert.False(t, Pipeline("reticulate").Valid())
}

// TestJobStatus_Terminal tests which job statuses are final.
func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatus("paused").Terminal())
}
