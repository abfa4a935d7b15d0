package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout bounds a single request, including retries on HTTP 429.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StorageConfig locates the database and the attachment cache.
type StorageConfig struct {
	// Database is the SQLite file path (default data/mtb.db).
	Database string `json:"database" yaml:"database"`

	// CacheDir holds downloaded attachments (default data/cache).
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// ArchiveConfig holds settings for the bulletin archive fetcher.
type ArchiveConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the archive host, used to resolve relative links and to
	// build edition URLs (default https://ix.jku.at).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// ArchiveURL is the listing page that enumerates editions.
	ArchiveURL string `json:"archive_url" yaml:"archive_url"`

	// Delay is the pause between consecutive archive requests (default 2s).
	Delay time.Duration `json:"delay" yaml:"delay"`

	// MaxPages caps the number of listing pages followed per scan (default 10).
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// AIConfig holds shared settings for components that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (default "claude-haiku-4-5").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint. Empty uses the SDK default.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 2).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// AnalysisConfig holds settings for relevance analysis.
type AnalysisConfig struct {
	AIConfig `yaml:",inline"`

	// DeepModel is used for attachment analysis. Empty falls back to Model.
	DeepModel string `json:"deep_model" yaml:"deep_model"`

	// RoleDescription seeds the stored setting on first start.
	RoleDescription string `json:"role_description" yaml:"role_description"`

	// Threshold seeds the stored relevance threshold (default 60).
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Timeout bounds a single classifier call (default 90s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RequestsPerMinute throttles classifier calls (default 50).
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`

	// Workers is the size of the analyze pool. 1 analyzes items sequentially.
	Workers int `json:"workers" yaml:"workers"`
}

// ConversionBackend identifies the attachment-to-text tool.
type ConversionBackend string

const (
	BackendPdftotext  ConversionBackend = "pdftotext"
	BackendMarkitdown ConversionBackend = "markitdown"
)

// ConversionConfig selects how attachments are turned into text for deep
// analysis.
type ConversionConfig struct {
	Backend ConversionBackend `json:"backend" yaml:"backend"`
}

// SyncConfig holds settings for the sync orchestrator.
type SyncConfig struct {
	// InitialLookback bounds the first scan when nothing has been analyzed
	// yet (default 30 days).
	InitialLookback time.Duration `json:"initial_lookback" yaml:"initial_lookback"`

	// Cron schedules periodic syncs when non-empty, e.g. "0 7 * * *".
	Cron string `json:"cron" yaml:"cron"`
}

// ServerConfig holds settings for the HTTP control surface.
type ServerConfig struct {
	Port            int           `json:"port" yaml:"port"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Config groups all component configurations.
type Config struct {
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive"`
	Analysis   AnalysisConfig   `json:"analysis" yaml:"analysis"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Sync       SyncConfig       `json:"sync" yaml:"sync"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}
