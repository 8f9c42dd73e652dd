package config

import (
	"time"
)

// IngestionConfig holds the CSV import limits and worker settings.
type IngestionConfig struct {
	MaxFileBytes       int64
	SimpleMaxFileBytes int64
	ChunkSize          int
	MaxChunkRows       int
	ProgressEvery      int
	MaxErrorRate       float64
	WorkerConcurrency  int
	StaleAfter         time.Duration
	ReportTTL          time.Duration
	ReportDir          string
	ProgressPushEvery  time.Duration
	// JobTimeout bounds one import task. The default leaves room for a full
	// 50 MB file at a few milliseconds per row.
	JobTimeout time.Duration
}

func DefaultIngestionConfig() IngestionConfig {
	return IngestionConfig{
		MaxFileBytes:       50 << 20,
		SimpleMaxFileBytes: 10 << 20,
		ChunkSize:          1000,
		MaxChunkRows:       5000,
		ProgressEvery:      10,
		MaxErrorRate:       0,
		WorkerConcurrency:  4,
		StaleAfter:         30 * time.Minute,
		ReportTTL:          7 * 24 * time.Hour,
		ReportDir:          "./public/files",
		ProgressPushEvery:  500 * time.Millisecond,
		JobTimeout:         6 * time.Hour,
	}
}

// LoadIngestionConfig overlays IMPORT_* variables on the defaults.
func LoadIngestionConfig() IngestionConfig {
	d := DefaultIngestionConfig()
	return IngestionConfig{
		MaxFileBytes:       GetEnvInt64("IMPORT_MAX_FILE_BYTES", d.MaxFileBytes),
		SimpleMaxFileBytes: GetEnvInt64("IMPORT_SIMPLE_MAX_FILE_BYTES", d.SimpleMaxFileBytes),
		ChunkSize:          GetEnvInt("IMPORT_CHUNK_SIZE", d.ChunkSize),
		MaxChunkRows:       GetEnvInt("IMPORT_MAX_CHUNK_ROWS", d.MaxChunkRows),
		ProgressEvery:      GetEnvInt("IMPORT_PROGRESS_EVERY", d.ProgressEvery),
		MaxErrorRate:       GetEnvFloat("IMPORT_MAX_ERROR_RATE", d.MaxErrorRate),
		WorkerConcurrency:  GetEnvInt("IMPORT_WORKER_CONCURRENCY", d.WorkerConcurrency),
		StaleAfter:         GetEnvDuration("IMPORT_STALE_AFTER", d.StaleAfter),
		ReportTTL:          GetEnvDuration("REPORT_TTL", d.ReportTTL),
		ReportDir:          GetEnv("REPORT_DIR", d.ReportDir),
		ProgressPushEvery:  GetEnvDuration("IMPORT_PROGRESS_PUSH_EVERY", d.ProgressPushEvery),
		JobTimeout:         GetEnvDuration("IMPORT_JOB_TIMEOUT", d.JobTimeout),
	}
}
