package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ImportJobStatus string

const (
	ImportJobPending             ImportJobStatus = "pending"
	ImportJobProcessing          ImportJobStatus = "processing"
	ImportJobCompleted           ImportJobStatus = "completed"
	ImportJobCompletedWithErrors ImportJobStatus = "completed_with_errors"
	ImportJobFailed              ImportJobStatus = "failed"
	ImportJobCancelled           ImportJobStatus = "cancelled"
)

// IsTerminal reports whether the status can no longer change.
func (s ImportJobStatus) IsTerminal() bool {
	switch s {
	case ImportJobCompleted, ImportJobCompletedWithErrors, ImportJobFailed, ImportJobCancelled:
		return true
	}
	return false
}

var importJobTransitions = map[ImportJobStatus][]ImportJobStatus{
	ImportJobPending:    {ImportJobProcessing, ImportJobCancelled, ImportJobFailed},
	ImportJobProcessing: {ImportJobCompleted, ImportJobCompletedWithErrors, ImportJobFailed, ImportJobCancelled},
}

// CanTransition reports whether from -> to is a legal job transition.
func (s ImportJobStatus) CanTransition(to ImportJobStatus) bool {
	for _, next := range importJobTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every status that may move to target.
func SourcesFor(target ImportJobStatus) []ImportJobStatus {
	var out []ImportJobStatus
	for _, from := range []ImportJobStatus{ImportJobPending, ImportJobProcessing} {
		if from.CanTransition(target) {
			out = append(out, from)
		}
	}
	return out
}

// ImportJob tracks one CSV upload from staging to a terminal status.
type ImportJob struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	IntegrationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"integration_id"`
	Filename      string          `gorm:"not null" json:"filename"`
	FileSize      int64           `json:"file_size"`
	Status        ImportJobStatus `gorm:"size:32;not null;default:'pending';index" json:"status"`

	TotalRows     int `gorm:"default:0" json:"total_rows"`
	StagedRows    int `gorm:"default:0" json:"staged_rows"`
	StagedChunks  int `gorm:"default:0" json:"staged_chunks"`
	ProcessedRows int `gorm:"default:0" json:"processed_rows"`
	ImportedRows  int `gorm:"default:0" json:"imported_rows"`
	FailedRows    int `gorm:"default:0" json:"failed_rows"`
	InsertedRows  int `gorm:"default:0" json:"inserted_rows"`
	UpdatedRows   int `gorm:"default:0" json:"updated_rows"`
	UnchangedRows int `gorm:"default:0" json:"unchanged_rows"`

	Headers       datatypes.JSON `json:"headers"`
	ColumnMapping datatypes.JSON `json:"column_mapping"`
	NotifyEmail   *string        `json:"notify_email,omitempty"`
	ErrorMessage  *string        `gorm:"type:text" json:"error_message"`
	ReportPath    *string        `json:"-"`

	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (j *ImportJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// IsSealed reports whether every announced row has been staged.
func (j *ImportJob) IsSealed() bool {
	return j.TotalRows > 0 && j.StagedRows >= j.TotalRows
}

// ImportChunk holds staged rows until the background job consumes them.
type ImportChunk struct {
	ID          uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	ImportJobID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_import_chunks_job_index,priority:1" json:"import_job_id"`
	ChunkIndex  int            `gorm:"not null;uniqueIndex:idx_import_chunks_job_index,priority:2" json:"chunk_index"`
	FirstRow    int            `json:"first_row"`
	RowCount    int            `json:"row_count"`
	Rows        datatypes.JSON `gorm:"not null" json:"rows"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (c *ImportChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// StagedRow is the JSON element stored in ImportChunk.Rows.
type StagedRow struct {
	RowNumber int      `json:"row_number"`
	Values    []string `json:"values"`
}

type ImportErrorType string

const (
	ImportErrorValidation ImportErrorType = "validation"
	ImportErrorMapping    ImportErrorType = "mapping"
	ImportErrorHashing    ImportErrorType = "hashing"
	ImportErrorStorage    ImportErrorType = "storage"
)

// ImportError records why a row was not imported. A row has at most one.
type ImportError struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	ImportJobID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_import_errors_job_row,priority:1" json:"import_job_id"`
	RowNumber    int             `gorm:"not null;uniqueIndex:idx_import_errors_job_row,priority:2" json:"row_number"`
	ErrorType    ImportErrorType `gorm:"size:32;not null" json:"error_type"`
	ErrorMessage string          `gorm:"type:text;not null" json:"error_message"`
	RowData      datatypes.JSON  `json:"row_data"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (e *ImportError) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
