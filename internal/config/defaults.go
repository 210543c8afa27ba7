package config

// Default values, overridable by file, environment, and flags.
const (
	DefaultChunkSize      = 500
	DefaultStateFile      = "wpmigrate.db"
	DefaultReportDir      = "reports"
	DefaultRetryAttempts  = 5
	DefaultTimeoutSeconds = 30

	DefaultLegacyPort = 3306
	DefaultTargetPort = 5432
)

// defaults is the confmap layer loaded before any other provider.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"legacy.host":           "localhost",
		"legacy.port":           DefaultLegacyPort,
		"legacy.user":           "root",
		"target.host":           "localhost",
		"target.port":           DefaultTargetPort,
		"target.sslmode":        "prefer",
		"chunk_size":            DefaultChunkSize,
		"state_path":            DefaultStateFile,
		"report_dir":            DefaultReportDir,
		"retry.max_attempts":    DefaultRetryAttempts,
		"retry.timeout_seconds": DefaultTimeoutSeconds,
		"verbose":               false,
	}
}
