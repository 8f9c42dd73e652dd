package requests

import (
	"time"

	"review-hub-backend/db/models"

	"github.com/google/uuid"
)

// CreateImportRequest opens a job and carries its first chunk of rows.
type CreateImportRequest struct {
	IntegrationID uuid.UUID         `json:"integration_id"`
	Filename      string            `json:"filename"`
	FileSize      int64             `json:"file_size"`
	Headers       []string          `json:"headers"`
	ColumnMapping map[string]string `json:"column_mapping"` // source column index or name -> field
	CSVRows       [][]string        `json:"csv_rows"`
	RowNumbers    []int             `json:"row_numbers,omitempty"`
	TotalRows     int               `json:"total_rows,omitempty"`
	NotifyEmail   string            `json:"notify_email,omitempty"`
}

// AppendChunkRequest stages the next chunk of a pending job.
type AppendChunkRequest struct {
	ChunkIndex int        `json:"chunk_index"`
	CSVRows    [][]string `json:"csv_rows"`
	RowNumbers []int      `json:"row_numbers,omitempty"`
}

// ImportAccepted is the data block answered for staged rows.
type ImportAccepted struct {
	ImportJobID  uuid.UUID              `json:"import_job_id"`
	Status       models.ImportJobStatus `json:"status"`
	StagedRows   int                    `json:"staged_rows"`
	StagedChunks int                    `json:"staged_chunks"`
	TotalRows    int                    `json:"total_rows"`
	Sealed       bool                   `json:"sealed"`
}

// ImportStatus is the polling view of a job.
type ImportStatus struct {
	ID            uuid.UUID              `json:"id"`
	IntegrationID uuid.UUID              `json:"integration_id"`
	Filename      string                 `json:"filename"`
	Status        models.ImportJobStatus `json:"status"`
	TotalRows     int                    `json:"total_rows"`
	StagedRows    int                    `json:"staged_rows"`
	ProcessedRows int                    `json:"processed_rows"`
	ImportedRows  int                    `json:"imported_rows"`
	FailedRows    int                    `json:"failed_rows"`
	InsertedRows  int                    `json:"inserted_rows"`
	UpdatedRows   int                    `json:"updated_rows"`
	UnchangedRows int                    `json:"unchanged_rows"`
	ErrorMessage  *string                `json:"error_message,omitempty"`
	HasReport     bool                   `json:"has_report"`
	ReportURL     string                 `json:"report_url,omitempty"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

func NewImportStatus(job *models.ImportJob) ImportStatus {
	return ImportStatus{
		ID:            job.ID,
		IntegrationID: job.IntegrationID,
		Filename:      job.Filename,
		Status:        job.Status,
		TotalRows:     job.TotalRows,
		StagedRows:    job.StagedRows,
		ProcessedRows: job.ProcessedRows,
		ImportedRows:  job.ImportedRows,
		FailedRows:    job.FailedRows,
		InsertedRows:  job.InsertedRows,
		UpdatedRows:   job.UpdatedRows,
		UnchangedRows: job.UnchangedRows,
		ErrorMessage:  job.ErrorMessage,
		HasReport:     job.ReportPath != nil,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		CreatedAt:     job.CreatedAt,
	}
}

// RowError is one recorded row failure.
type RowError struct {
	RowNumber    int                    `json:"row_number"`
	ErrorType    models.ImportErrorType `json:"error_type"`
	ErrorMessage string                 `json:"error_message"`
	RowData      map[string]string      `json:"row_data,omitempty"`
}

// PreviewResponse is the dry run of an uploaded file.
type PreviewResponse struct {
	Filename        string            `json:"filename"`
	Headers         []string          `json:"headers"`
	ProposedMapping map[string]string `json:"proposed_mapping"`
	MissingFields   []string          `json:"missing_fields"`
	SampleRows      [][]string        `json:"sample_rows"`
	TotalRows       int               `json:"total_rows"`
	AcceptedRows    int               `json:"accepted_rows"`
	RejectedRows    int               `json:"rejected_rows"`
	Warnings        int               `json:"warnings"`
	Messages        []string          `json:"messages"`
	CanImport       bool              `json:"can_import"`
	BlockedReason   string            `json:"blocked_reason,omitempty"`
}
