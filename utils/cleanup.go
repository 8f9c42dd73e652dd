package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"review-hub-backend/config"

	"go.uber.org/zap"
)

// CleanupExpiredFiles removes regular files in dirPath that are older than
// ttl and returns how many were deleted. A missing directory is not an error.
func CleanupExpiredFiles(dirPath string, ttl time.Duration) (int, error) {
	entries, err := os.ReadDir(dirPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading files directory: %v", err)
	}

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= ttl {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		if err := os.Remove(filePath); err != nil {
			config.Logger.Warn("Error deleting expired file", zap.String("path", filePath), zap.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		config.Logger.Info("Expired files deleted", zap.String("dir", dirPath), zap.Int("count", deleted))
	}
	return deleted, nil
}
