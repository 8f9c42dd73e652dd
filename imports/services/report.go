package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/db/models"
	"review-hub-backend/imports/repositories"
	"review-hub-backend/utils"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// MailFunc sends a plain text message with an optional attachment.
type MailFunc func(to, body, subject, attachmentPath string) error

// ErrorReporter renders the failed rows of a job to an xlsx workbook and
// mails it to the address the job was created with.
type ErrorReporter struct {
	jobs   repositories.ImportJobRepository
	emails repositories.EmailLogRepository
	dir    string
	send   MailFunc
}

// NewErrorReporter returns a reporter writing to dir. A nil send disables
// mail.
func NewErrorReporter(jobs repositories.ImportJobRepository, emails repositories.EmailLogRepository, dir string, send MailFunc) *ErrorReporter {
	return &ErrorReporter{jobs: jobs, emails: emails, dir: dir, send: send}
}

var reportHeaders = []string{"Row", "Error type", "Message", "Row data"}

// BuildReport writes every recorded error of job and remembers the path on
// the job.
func (r *ErrorReporter) BuildReport(ctx context.Context, job *models.ImportJob) (string, error) {
	errs, _, err := r.jobs.GetErrors(ctx, job.ID, 0, 0)
	if err != nil {
		return "", fmt.Errorf("load row errors: %w", err)
	}
	if len(errs) == 0 {
		return "", ErrNoReport
	}

	rows := make([][]interface{}, 0, len(errs))
	for _, e := range errs {
		rows = append(rows, []interface{}{e.RowNumber, string(e.ErrorType), e.ErrorMessage, formatRowData(e.RowData)})
	}

	path, err := utils.GenerateExcel(r.dir, "import_errors_"+job.ID.String(), "Errors", reportHeaders, rows)
	if err != nil {
		return "", err
	}
	if err := r.jobs.SetReportPath(ctx, job.ID, path); err != nil {
		config.Logger.Warn("Could not store report path", zap.String("import_job_id", job.ID.String()), zap.Error(err))
	}
	job.ReportPath = &path
	return path, nil
}

// ReportFailures builds the report and mails it when the job has a
// notification address.
func (r *ErrorReporter) ReportFailures(ctx context.Context, job *models.ImportJob) error {
	path, err := r.BuildReport(ctx, job)
	if err != nil {
		return err
	}
	if r.send == nil || job.NotifyEmail == nil || *job.NotifyEmail == "" {
		return nil
	}

	subject := fmt.Sprintf("Review import %s: %d rows failed", job.Filename, job.FailedRows)
	body := fmt.Sprintf(
		"Your import of %s finished with status %s.\n\nImported rows: %d\nFailed rows: %d\n\nThe attached workbook lists every failed row.",
		job.Filename, job.Status, job.ImportedRows, job.FailedRows,
	)

	sendErr := r.send(*job.NotifyEmail, body, subject, path)
	jobID := job.ID
	entry := &models.EmailLog{
		ImportJobID:    &jobID,
		Recipient:      *job.NotifyEmail,
		Subject:        subject,
		Message:        body,
		AttachmentPath: path,
		Delivered:      sendErr == nil,
		SentAt:         time.Now().UTC(),
	}
	if err := r.emails.Create(ctx, entry); err != nil {
		config.Logger.Warn("Could not log report email", zap.String("import_job_id", job.ID.String()), zap.Error(err))
	}
	return sendErr
}

func formatRowData(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return string(raw)
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+data[k])
	}
	return strings.Join(parts, ", ")
}
