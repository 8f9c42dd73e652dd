package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func optionValues(opts []asynq.Option) map[asynq.OptionType]interface{} {
	out := make(map[asynq.OptionType]interface{}, len(opts))
	for _, o := range opts {
		out[o.Type()] = o.Value()
	}
	return out
}

func TestProcessImportOptions(t *testing.T) {
	jobID := uuid.New()

	got := optionValues(processImportOptions(jobID, 6*time.Hour))
	assert.Equal(t, jobID.String(), got[asynq.TaskIDOpt])
	assert.Equal(t, 0, got[asynq.MaxRetryOpt])
	assert.Equal(t, ImportQueue, got[asynq.QueueOpt])
	assert.Equal(t, 6*time.Hour, got[asynq.TimeoutOpt])

	got = optionValues(processImportOptions(jobID, 0))
	assert.NotContains(t, got, asynq.TimeoutOpt)
}

func TestProcessImportTaskPayload(t *testing.T) {
	jobID := uuid.New()
	task, err := NewProcessImportTask(jobID, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, TypeProcessImport, task.Type())

	p, err := ParseProcessImportPayload(task)
	require.NoError(t, err)
	assert.Equal(t, jobID, p.ImportJobID)

	_, err = ParseProcessImportPayload(asynq.NewTask(TypeProcessImport, []byte(`{}`)))
	assert.Error(t, err)
}
