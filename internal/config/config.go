// Package config defines the process configuration for the postroom
// workers. Configuration is loaded once at cold start and immutable
// thereafter.
//
// Values resolve through a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails the process
// immediately on startup.
package config

import (
	"time"

	"postroom/internal/types"
)

// SecretString aliases types.SecretString, the redacted secret type used
// for configuration values that must never reach a log line.
type SecretString = types.SecretString

// Config is the top-level configuration for the postroom workers. Each
// binary receives only the subsets it needs.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"postroom"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Database DatabaseConfig
	AWS      AWSConfig
	Letters  LettersConfig
	Admin    AdminConfig
}

// DatabaseConfig holds the notification store connection settings.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds bucket names, queue URLs, and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-west-1"`

	// Letter buckets
	ScanIntakeBucket     string `envconfig:"LETTERS_SCAN_BUCKET" validate:"required"`
	SanitiseIntakeBucket string `envconfig:"LETTER_SANITISE_BUCKET" validate:"required"`
	InvalidArchiveBucket string `envconfig:"INVALID_PDF_BUCKET" validate:"required"`
	TestArchiveBucket    string `envconfig:"TEST_LETTERS_BUCKET" validate:"required"`
	LiveArchiveBucket    string `envconfig:"LETTERS_PDF_BUCKET" validate:"required"`
	ErrorArchiveBucket   string `envconfig:"LETTERS_SCAN_FAILED_BUCKET" validate:"required"`
	PrintDispatchBucket  string `envconfig:"LETTERS_DISPATCH_BUCKET" validate:"required"`

	// Task queues
	LetterTasksQueue  string `envconfig:"SQS_LETTER_TASKS" validate:"required,url"`
	ScanEventsQueue   string `envconfig:"SQS_SCAN_EVENTS" validate:"required,url"`
	RenderJobsQueue   string `envconfig:"SQS_RENDER_JOBS" validate:"required,url"`
	SanitiseJobsQueue string `envconfig:"SQS_SANITISE_JOBS" validate:"required,url"`
	AntivirusQueue    string `envconfig:"SQS_ANTIVIRUS" validate:"required,url"`
	ZipJobsQueue      string `envconfig:"SQS_ZIP_JOBS" validate:"required,url"`

	// LocalStack support, empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// LettersConfig holds the pipeline tuning knobs and the payload sealing
// secret shared with the external rendering and sanitising services.
type LettersConfig struct {
	SealingSecret SecretString `envconfig:"LETTERS_SEALING_SECRET" validate:"required,min=32"`

	AntivirusEnabled bool `envconfig:"ANTIVIRUS_ENABLED" default:"true"`

	MaxRetries int           `envconfig:"LETTER_TASK_MAX_RETRIES" default:"15"`
	RetryDelay time.Duration `envconfig:"LETTER_TASK_RETRY_DELAY" default:"5m"`

	MaxZipBytes int64 `envconfig:"LETTERS_ZIP_MAX_BYTES" default:"2147483648"`
	MaxZipCount int   `envconfig:"LETTERS_ZIP_MAX_COUNT" default:"5000"`
}

// AdminConfig holds the operator HTTP surface settings.
type AdminConfig struct {
	Port   string       `envconfig:"PORT" default:"8080"`
	APIKey SecretString `envconfig:"ADMIN_API_KEY" validate:"required"`
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates environment values could not be parsed into
	// their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
