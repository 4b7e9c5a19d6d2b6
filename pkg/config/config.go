// pkg/config/config.go
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	// Sheet service access
	SmartsheetToken   string
	SmartsheetBaseURL string
	PageSize          int
	RequestsPerSecond float64
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// HTTP updater endpoint
	ListenAddr string

	// Last-run marker storage (optional)
	AzureConnectionString string
	StateContainer        string
	StateBlob             string

	// Audit database (optional)
	AuditDSN string

	// Fan-out destinations for the missing-check and status jobs
	DestSheetsJSON string

	// Department routing override for the updater endpoint
	DepartmentSheetsJSON string

	// Cron schedules
	FoundationSchedule        string
	GroundImprovementSchedule string
	InsulationSchedule        string
	MissingCheckSchedule      string
	StatusUpdateSchedule      string

	// Dry-run switches
	DryRunFoundation        bool
	DryRunGroundImprovement bool
	DryRunInsulation        bool
	DryRunMissingCheck      bool
	DryRunStatusUpdate      bool
	DryRunUpdater           bool

	// Status change log
	StatusCSVPath string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from the environment. A .env file in the
// working directory is read first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		SmartsheetToken:   getEnv("SMARTSHEET_ACCESS_TOKEN", ""),
		SmartsheetBaseURL: getEnv("SMARTSHEET_BASE_URL", ""),
		PageSize:          getEnvAsInt("SMARTSHEET_PAGE_SIZE", 500),
		RequestsPerSecond: getEnvAsFloat("SMARTSHEET_RPS", 5),
		ReadTimeout:       time.Duration(getEnvAsInt("SMARTSHEET_READ_TIMEOUT_SECONDS", 60)) * time.Second,
		WriteTimeout:      time.Duration(getEnvAsInt("SMARTSHEET_WRITE_TIMEOUT_SECONDS", 20)) * time.Second,

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		AzureConnectionString: getEnv("AZURE_STORAGE_CONNECTION_STRING", ""),
		StateContainer:        getEnv("STATE_CONTAINER", "sheetsync-state"),
		StateBlob:             getEnv("STATE_BLOB", "last_run.json"),

		AuditDSN: getEnv("AUDIT_DATABASE_URL", ""),

		DestSheetsJSON: getEnv("DEST_SHEETS_JSON", ""),

		DepartmentSheetsJSON: getEnv("DEPARTMENT_SHEET_MAP", ""),

		FoundationSchedule:        getEnv("FOUNDATION_SCHEDULE", "0 */4 * * *"),
		GroundImprovementSchedule: getEnv("GROUND_IMPROVEMENT_SCHEDULE", "10 */4 * * *"),
		InsulationSchedule:        getEnv("INSULATION_SCHEDULE", "20 */4 * * *"),
		MissingCheckSchedule:      getEnv("MISSING_CHECK_SCHEDULE", "30 6 * * *"),
		StatusUpdateSchedule:      getEnv("STATUS_UPDATE_SCHEDULE", "40 */4 * * *"),

		DryRunFoundation:        getEnvAsBool("DRY_RUN_FOUNDATION", false),
		DryRunGroundImprovement: getEnvAsBool("DRY_RUN_GROUND_IMPROVEMENT", false),
		DryRunInsulation:        getEnvAsBool("DRY_RUN_INSULATION", false),
		DryRunMissingCheck:      getEnvAsBool("DRY_RUN_MISSING_CHECK", false),
		DryRunStatusUpdate:      getEnvAsBool("DRY_RUN_STATUS_UPDATE", false),
		DryRunUpdater:           getEnvAsBool("DRY_RUN_UPDATER", false),

		StatusCSVPath: getEnv("STATUS_CSV_PATH", "/tmp/status_changes.csv"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.SmartsheetToken == "" {
		return errors.New("SMARTSHEET_ACCESS_TOKEN environment variable is required")
	}

	if c.PageSize <= 0 {
		return errors.New("page size must be positive")
	}

	if c.RequestsPerSecond <= 0 {
		return errors.New("request rate must be positive")
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
