package status

import (
	"testing"

	"github.com/bmizerany/assert"
)

func TestRunStatus_And(t *testing.T) {
	assert.Equal(t, STARTED, STARTING.And(STARTED))
	assert.Equal(t, FAILED, COMPLETED.And(FAILED))
	assert.Equal(t, FAILED, FAILED.And(STARTED))
	assert.Equal(t, STOPPING, STARTED.And(STOPPING))
	assert.Equal(t, STARTED, RunStatus("bogus").And(STARTED))
}

func TestRunStatus_Terminal(t *testing.T) {
	assert.Equal(t, false, STARTING.Terminal())
	assert.Equal(t, false, STARTED.Terminal())
	assert.Equal(t, false, STOPPING.Terminal())
	assert.Equal(t, true, STOPPED.Terminal())
	assert.Equal(t, true, COMPLETED.Terminal())
	assert.Equal(t, true, FAILED.Terminal())
}
