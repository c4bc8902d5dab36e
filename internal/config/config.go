package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendFirestore = "firestore"
	BackendLocal     = "local"

	ObjectStoreGCS = "gcs"
	ObjectStoreS3  = "s3"
)

// Config holds all configuration values.
type Config struct {
	Port     string
	LogLevel string
	LogFile  string

	// Document database
	Backend    string
	ProjectID  string
	DatabaseID string
	DBPath     string

	// Backup object store
	ObjectStore  string
	Bucket       string
	BackupPrefix string
	S3Endpoint   string
	S3Region     string
	S3AccessKey  string
	S3SecretKey  string

	// Backups
	BackupSchedule string
	RetentionDays  int
	PollInterval   time.Duration
	PollTimeout    time.Duration

	// Auth
	AdminToken string
	JWTSecret  string

	LocalPassphrase string
}

// Load reads configuration from environment variables. Malformed numbers and
// durations are reported rather than silently defaulted.
func Load() (Config, error) {
	var errs []error
	cfg := Config{
		Port:     getEnv("CATALOGD_PORT", "8080"),
		LogLevel: getEnv("CATALOGD_LOG_LEVEL", "info"),
		LogFile:  getEnv("CATALOGD_LOG_FILE", ""),

		Backend:    strings.ToLower(getEnv("CATALOGD_BACKEND", BackendFirestore)),
		ProjectID:  getEnv("CATALOGD_PROJECT_ID", getEnv("GOOGLE_CLOUD_PROJECT", os.Getenv("GCLOUD_PROJECT"))),
		DatabaseID: getEnv("CATALOGD_DATABASE_ID", "(default)"),
		DBPath:     getEnv("CATALOGD_DB_PATH", "catalogd.db"),

		ObjectStore:  strings.ToLower(getEnv("CATALOGD_OBJECT_STORE", ObjectStoreGCS)),
		Bucket:       getEnv("CATALOGD_BUCKET", ""),
		BackupPrefix: strings.Trim(getEnv("CATALOGD_BACKUP_PREFIX", "firestore"), "/"),
		S3Endpoint:   getEnv("CATALOGD_S3_ENDPOINT", ""),
		S3Region:     getEnv("CATALOGD_S3_REGION", "us-east-1"),
		S3AccessKey:  getEnv("CATALOGD_S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("CATALOGD_S3_SECRET_KEY", ""),

		BackupSchedule: getEnv("CATALOGD_BACKUP_SCHEDULE", "0 3 * * *"),

		AdminToken: getEnv("CATALOGD_ADMIN_TOKEN", ""),
		JWTSecret:  getEnv("CATALOGD_JWT_SECRET", ""),

		LocalPassphrase: getEnv("CATALOGD_LOCAL_PASSPHRASE", ""),
	}

	var err error
	if cfg.RetentionDays, err = strconv.Atoi(getEnv("CATALOGD_RETENTION_DAYS", "30")); err != nil {
		errs = append(errs, fmt.Errorf("CATALOGD_RETENTION_DAYS: %w", err))
	}
	if cfg.PollInterval, err = time.ParseDuration(getEnv("CATALOGD_POLL_INTERVAL", "5s")); err != nil {
		errs = append(errs, fmt.Errorf("CATALOGD_POLL_INTERVAL: %w", err))
	}
	if cfg.PollTimeout, err = time.ParseDuration(getEnv("CATALOGD_POLL_TIMEOUT", "15m")); err != nil {
		errs = append(errs, fmt.Errorf("CATALOGD_POLL_TIMEOUT: %w", err))
	}

	return cfg, errors.Join(errs...)
}

// Validate reports missing or inconsistent required values.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendFirestore:
		if c.ProjectID == "" {
			errs = append(errs, errors.New("CATALOGD_PROJECT_ID is required for the firestore backend"))
		}
	case BackendLocal:
		if c.DBPath == "" {
			errs = append(errs, errors.New("CATALOGD_DB_PATH is required for the local backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOGD_BACKEND %q", c.Backend))
	}

	switch c.ObjectStore {
	case ObjectStoreGCS, ObjectStoreS3:
	default:
		errs = append(errs, fmt.Errorf("unknown CATALOGD_OBJECT_STORE %q", c.ObjectStore))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("CATALOGD_BUCKET is required"))
	}
	if c.Backend == BackendFirestore && c.ObjectStore != ObjectStoreGCS {
		errs = append(errs, errors.New("the firestore backend exports only to gcs"))
	}
	if c.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("CATALOGD_RETENTION_DAYS must not be negative, got %d", c.RetentionDays))
	}
	if c.PollInterval <= 0 || c.PollTimeout <= 0 {
		errs = append(errs, errors.New("poll interval and timeout must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
