package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// LoadEnv reads .env once. Variables already set in the process win.
func LoadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: no .env file loaded: %v", err)
		}
	})
}

// GetEnv returns the value of key, or the first fallback when unset.
func GetEnv(key string, fallback ...string) string {
	LoadEnv()
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

func GetEnvInt(key string, fallback int) int {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func GetEnvInt64(key string, fallback int64) int64 {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func GetEnvFloat(key string, fallback float64) float64 {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %v", key, v, fallback)
		return fallback
	}
	return f
}

// GetEnvDuration parses Go durations such as "15m" or "72h".
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func GetEnvBool(key string, fallback bool) bool {
	v := GetEnv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
