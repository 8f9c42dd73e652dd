package importclient

import (
	"errors"
	"sync"
	"testing"

	"review-hub-backend/db/models"
	"review-hub-backend/internal/reviewcsv"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var simplifiedHeaders = []string{"date", "platform", "rating", "text"}

func toPreview(t *testing.T, s *Store) {
	t.Helper()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "reviews.csv", Size: 120}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	require.NoError(t, s.Dispatch(MappingConfirmed{}))
}

func TestStoreHappyPath(t *testing.T) {
	s := NewStore()
	toPreview(t, s)
	assert.Equal(t, StagePreview, s.GetState().Stage)
	assert.Equal(t, "platform", s.GetState().Mapping[reviewcsv.FieldProvider])

	require.NoError(t, s.Dispatch(ValidationDone{Summary: reviewcsv.Summary{TotalRows: 3, AcceptedRows: 3}}))
	require.NoError(t, s.Dispatch(ImportStarted{Policy: reviewcsv.StrictPolicy}))
	assert.Equal(t, StageImporting, s.GetState().Stage)

	id := uuid.New()
	require.NoError(t, s.Dispatch(JobAccepted{JobID: id}))
	require.NoError(t, s.Dispatch(ProgressUpdated{Percent: 55}))
	require.NoError(t, s.Dispatch(ImportFinished{Results: Results{Inserted: 3, JobStatus: models.ImportJobCompleted}}))

	st := s.GetState()
	assert.Equal(t, StageResults, st.Stage)
	assert.Equal(t, id, st.JobID)
	assert.Equal(t, float64(100), st.Progress)
	assert.Equal(t, 3, st.Results.Inserted)
}

func TestStoreRejectsOutOfOrderActions(t *testing.T) {
	s := NewStore()

	err := s.Dispatch(MappingConfirmed{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	err = s.Dispatch(ImportFinished{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StageUpload, s.GetState().Stage)
}

func TestStoreMappingMustBeComplete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	require.NoError(t, s.Dispatch(MappingChanged{Field: reviewcsv.FieldRating}))

	err := s.Dispatch(MappingConfirmed{})
	assert.ErrorIs(t, err, ErrMappingIncomplete)
	assert.Equal(t, StageMapping, s.GetState().Stage)

	require.NoError(t, s.Dispatch(MappingChanged{Field: reviewcsv.FieldRating, Header: "rating"}))
	require.NoError(t, s.Dispatch(MappingConfirmed{}))
}

func TestStoreMappingRejectsUnknownNames(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))

	assert.ErrorIs(t, s.Dispatch(MappingChanged{Field: "mood", Header: "rating"}), reviewcsv.ErrUnknownField)
	assert.ErrorIs(t, s.Dispatch(MappingChanged{Field: reviewcsv.FieldRating, Header: "stars"}), reviewcsv.ErrUnknownHeader)
}

func TestStoreMappingCanonicalizesAliases(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: []string{"date", "platform", "points"}}))
	assert.False(t, s.GetState().Mapping.IsComplete())

	require.NoError(t, s.Dispatch(MappingChanged{Field: "stars", Header: "points"}))
	m := s.GetState().Mapping
	assert.Equal(t, "points", m[reviewcsv.FieldRating])
	assert.NotContains(t, m, reviewcsv.Field("stars"))
	assert.True(t, m.IsComplete())
	require.NoError(t, s.Dispatch(MappingConfirmed{}))

	require.NoError(t, s.Dispatch(Reset{}))
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	require.NoError(t, s.Dispatch(MappingChanged{Field: "Body"}))
	assert.NotContains(t, s.GetState().Mapping, reviewcsv.FieldText)
}

func TestStoreMappingChangeDoesNotLeakIntoOldSnapshots(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	before := s.GetState()

	require.NoError(t, s.Dispatch(MappingChanged{Field: reviewcsv.FieldText}))
	assert.Equal(t, "text", before.Mapping[reviewcsv.FieldText])
	assert.NotContains(t, s.GetState().Mapping, reviewcsv.FieldText)
}

func TestStorePolicyBlocksImport(t *testing.T) {
	s := NewStore()
	toPreview(t, s)
	require.NoError(t, s.Dispatch(ValidationDone{Summary: reviewcsv.Summary{TotalRows: 4, AcceptedRows: 1, RejectedRows: 3}}))

	err := s.Dispatch(ImportStarted{Policy: reviewcsv.StrictPolicy})
	assert.ErrorIs(t, err, ErrImportBlocked)
	assert.Equal(t, StagePreview, s.GetState().Stage)
}

func TestStoreProgressIsMonotonic(t *testing.T) {
	s := NewStore()
	for _, p := range []float64{10, 40, 20, 140} {
		require.NoError(t, s.Dispatch(ProgressUpdated{Percent: p}))
	}
	assert.Equal(t, float64(100), s.GetState().Progress)
}

func TestStoreFailedAndReset(t *testing.T) {
	s := NewStore()
	toPreview(t, s)

	require.NoError(t, s.Dispatch(Failed{Err: errors.New("boom")}))
	assert.Equal(t, StageFailed, s.GetState().Stage)
	assert.Equal(t, "boom", s.GetState().Err)

	require.NoError(t, s.Dispatch(Reset{}))
	assert.Equal(t, State{Stage: StageUpload}, s.GetState())
}

func TestStoreFailedIsRefusedAfterResults(t *testing.T) {
	s := NewStore()
	toPreview(t, s)
	require.NoError(t, s.Dispatch(ValidationDone{Summary: reviewcsv.Summary{TotalRows: 1, AcceptedRows: 1}}))
	require.NoError(t, s.Dispatch(ImportStarted{}))
	require.NoError(t, s.Dispatch(ImportFinished{Results: Results{JobStatus: models.ImportJobFailed}}))

	assert.ErrorIs(t, s.Dispatch(Failed{Err: errors.New("late")}), ErrInvalidTransition)
	assert.Equal(t, StageResults, s.GetState().Stage)
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	s := NewStore()

	var mu sync.Mutex
	var stages []Stage
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		stages = append(stages, st.Stage)
	})

	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	_ = s.Dispatch(ImportFinished{})
	unsubscribe()
	require.NoError(t, s.Dispatch(MappingConfirmed{}))

	assert.Equal(t, []Stage{StageUpload, StageMapping}, stages)
}

func TestStoreMappingConfirmRejectsSharedHeader(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Dispatch(FileSelected{Filename: "x.csv"}))
	require.NoError(t, s.Dispatch(HeadersParsed{Headers: simplifiedHeaders}))
	require.NoError(t, s.Dispatch(MappingChanged{Field: reviewcsv.FieldRespondedAt, Header: "date"}))

	assert.ErrorIs(t, s.Dispatch(MappingConfirmed{}), reviewcsv.ErrDuplicateMapping)
	assert.Equal(t, StageMapping, s.GetState().Stage)
}
