// Package importclient drives a CSV import from the client side: it parses
// and validates a file locally, submits the accepted rows in chunks and
// follows the server job until it finishes.
package importclient

import (
	"errors"
	"fmt"
	"sync"

	"review-hub-backend/db/models"
	"review-hub-backend/imports/requests"
	"review-hub-backend/internal/reviewcsv"

	"github.com/google/uuid"
)

type Stage string

const (
	StageUpload    Stage = "upload"
	StageMapping   Stage = "mapping"
	StagePreview   Stage = "preview"
	StageImporting Stage = "importing"
	StageResults   Stage = "results"
	StageFailed    Stage = "failed"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in this stage")
	ErrMappingIncomplete = errors.New("required fields are not mapped")
	ErrImportBlocked     = errors.New("import blocked by validation policy")
)

// State is a snapshot of one import. Listeners receive copies, so the maps
// and slices in it must not be modified.
type State struct {
	Stage    Stage
	Filename string
	FileSize int64
	Headers  []string
	Mapping  reviewcsv.ColumnMapping
	Summary  *reviewcsv.Summary
	Policy   reviewcsv.Policy
	// Progress is a percentage that never goes down.
	Progress float64
	JobID    uuid.UUID
	Job      *requests.ImportStatus
	Results  *Results
	Err      string
}

// Action is a state change request handled by Reduce.
type Action interface {
	apply(State) (State, error)
}

type FileSelected struct {
	Filename string
	Size     int64
}

type HeadersParsed struct {
	Headers []string
}

// MappingChanged points field at header. An empty header ignores the field.
type MappingChanged struct {
	Field  reviewcsv.Field
	Header string
}

type MappingConfirmed struct{}

type ValidationDone struct {
	Summary reviewcsv.Summary
}

type ImportStarted struct {
	Policy reviewcsv.Policy
}

type ProgressUpdated struct {
	Percent float64
}

type JobAccepted struct {
	JobID uuid.UUID
}

type JobUpdated struct {
	Job requests.ImportStatus
}

type ImportFinished struct {
	Results Results
}

// Failed ends the import with a message from any stage but results.
type Failed struct {
	Err error
}

type Reset struct{}

func stageError(a Action, s Stage) error {
	return fmt.Errorf("%w: %T in %s", ErrInvalidTransition, a, s)
}

func (a FileSelected) apply(s State) (State, error) {
	if s.Stage != StageUpload {
		return s, stageError(a, s.Stage)
	}
	s.Filename, s.FileSize = a.Filename, a.Size
	return s, nil
}

func (a HeadersParsed) apply(s State) (State, error) {
	if s.Stage != StageUpload {
		return s, stageError(a, s.Stage)
	}
	s.Headers = a.Headers
	s.Mapping = reviewcsv.ProposeMapping(a.Headers)
	s.Stage = StageMapping
	return s, nil
}

func (a MappingChanged) apply(s State) (State, error) {
	if s.Stage != StageMapping {
		return s, stageError(a, s.Stage)
	}
	field, ok := reviewcsv.ParseField(string(a.Field))
	if !ok {
		return s, fmt.Errorf("%w: %q", reviewcsv.ErrUnknownField, a.Field)
	}
	next := make(reviewcsv.ColumnMapping, len(s.Mapping)+1)
	for f, h := range s.Mapping {
		next[f] = h
	}
	if a.Header == "" {
		next.Ignore(field)
	} else {
		if err := headerExists(s.Headers, a.Header); err != nil {
			return s, err
		}
		next.Set(field, a.Header)
	}
	s.Mapping = next
	return s, nil
}

func headerExists(headers []string, h string) error {
	for _, x := range headers {
		if x == h {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", reviewcsv.ErrUnknownHeader, h)
}

func (a MappingConfirmed) apply(s State) (State, error) {
	if s.Stage != StageMapping {
		return s, stageError(a, s.Stage)
	}
	if !s.Mapping.IsComplete() {
		return s, fmt.Errorf("%w: %v", ErrMappingIncomplete, s.Mapping.Missing())
	}
	if err := s.Mapping.Distinct(); err != nil {
		return s, err
	}
	s.Stage = StagePreview
	return s, nil
}

func (a ValidationDone) apply(s State) (State, error) {
	if s.Stage != StagePreview {
		return s, stageError(a, s.Stage)
	}
	summary := a.Summary
	s.Summary = &summary
	return s, nil
}

func (a ImportStarted) apply(s State) (State, error) {
	if s.Stage != StagePreview || s.Summary == nil {
		return s, stageError(a, s.Stage)
	}
	if reason := a.Policy.Reason(*s.Summary); reason != "" {
		return s, fmt.Errorf("%w: %s", ErrImportBlocked, reason)
	}
	s.Policy = a.Policy
	s.Stage = StageImporting
	return s, nil
}

func (a ProgressUpdated) apply(s State) (State, error) {
	s.Progress = max(s.Progress, min(a.Percent, 100))
	return s, nil
}

func (a JobAccepted) apply(s State) (State, error) {
	if s.Stage != StageImporting {
		return s, stageError(a, s.Stage)
	}
	s.JobID = a.JobID
	return s, nil
}

func (a JobUpdated) apply(s State) (State, error) {
	if s.Stage != StageImporting {
		return s, stageError(a, s.Stage)
	}
	job := a.Job
	s.Job = &job
	return s, nil
}

func (a ImportFinished) apply(s State) (State, error) {
	if s.Stage != StageImporting {
		return s, stageError(a, s.Stage)
	}
	results := a.Results
	s.Results = &results
	s.Stage = StageResults
	if results.JobStatus == models.ImportJobCompleted || results.JobStatus == models.ImportJobCompletedWithErrors {
		s.Progress = 100
	}
	return s, nil
}

func (a Failed) apply(s State) (State, error) {
	if s.Stage == StageResults {
		return s, stageError(a, s.Stage)
	}
	s.Stage = StageFailed
	if a.Err != nil {
		s.Err = a.Err.Error()
	}
	return s, nil
}

func (a Reset) apply(State) (State, error) {
	return State{Stage: StageUpload}, nil
}

// Reduce returns the state after a. On error s is returned unchanged.
func Reduce(s State, a Action) (State, error) {
	next, err := a.apply(s)
	if err != nil {
		return s, err
	}
	return next, nil
}

type Listener func(State)

// Store holds the current State and notifies listeners after every
// accepted action.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
}

func NewStore() *Store {
	return &Store{state: State{Stage: StageUpload}, listeners: make(map[int]Listener)}
}

func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Dispatch applies a. Listeners run outside the lock in no fixed order.
func (s *Store) Dispatch(a Action) error {
	s.mu.Lock()
	next, err := Reduce(s.state, a)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return nil
}
