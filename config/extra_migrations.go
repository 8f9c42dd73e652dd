package config

import "gorm.io/gorm"

// CreateActiveImportJobIndex adds a partial index over jobs that are not yet
// terminal. The stale job sweeper and the per-user listing scan these. Only
// postgres supports the WHERE clause, other dialects are skipped.
func CreateActiveImportJobIndex(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_import_jobs_active
		ON import_jobs (status, updated_at)
		WHERE status IN ('pending', 'processing');
	`).Error
}
