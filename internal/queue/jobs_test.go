package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSweepTask(t *testing.T) {
	task, err := NewSweepTask(30 * time.Minute)
	require.NoError(t, err)
	assert.Equal(t, SweepStagingTask, task.Type())

	var payload SweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, int64(1800), payload.MaxAgeSeconds)
	assert.Equal(t, 30*time.Minute, payload.MaxAge())
}
