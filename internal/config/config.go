package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the docsync service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Store     StoreConfig     `yaml:"store"`
	Git       GitConfig       `yaml:"git,omitempty"`
	Sync      SyncConfig      `yaml:"sync"`
	Search    SearchConfig    `yaml:"search"`
	Site      SiteConfig      `yaml:"site"`
	NATS      *NATSConfig     `yaml:"nats,omitempty"`
	Reconcile ReconcileConfig `yaml:"reconcile,omitempty"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Listen  string        `yaml:"listen"`  // bind address for API + webhook endpoints
	Webhook WebhookConfig `yaml:"webhook"` // inbound push-event configuration
}

// WebhookConfig represents webhook endpoint configuration.
type WebhookConfig struct {
	Path   string `yaml:"path"`   // endpoint path, default /webhooks/github
	Secret string `yaml:"secret"` // shared HMAC secret; ${ENV} expansion applies
}

// WorkspaceConfig represents the clone workspace layout.
type WorkspaceConfig struct {
	Dir string `yaml:"dir"` // root directory for repository working copies
}

// StoreConfig represents the registry/journal database location.
type StoreConfig struct {
	Path string `yaml:"path"` // sqlite file for enrollments and sync events
}

// GitConfig controls how enrollment clone URLs are formed and authenticated.
type GitConfig struct {
	CloneBaseURL string      `yaml:"clone_base_url,omitempty"` // prefix for owner/name clone URLs
	Auth         *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig represents authentication configuration for git operations.
type AuthConfig struct {
	Type     string `yaml:"type"` // none, ssh, token, or basic
	Token    string `yaml:"token,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// SearchConfig represents the search index database.
type SearchConfig struct {
	Path       string `yaml:"path"`        // sqlite file for the FTS index
	MaxResults int    `yaml:"max_results"` // result page cap per query
}

// SyncConfig holds pipeline tuning knobs and retry options.
type SyncConfig struct {
	Concurrency       int              `yaml:"concurrency,omitempty"`  // max parallel repository syncs
	JobDeadline       string           `yaml:"job_deadline,omitempty"` // wall-clock limit per sync job
	DedupWindow       string           `yaml:"dedup_window,omitempty"` // duplicate-delivery suppression window
	FetchTimeout      string           `yaml:"fetch_timeout,omitempty"`
	ShallowDepth      int              `yaml:"shallow_depth,omitempty"`
	DocsDir           string           `yaml:"docs_dir,omitempty"` // documentation root inside each repository
	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// SiteConfig carries the global chrome merged into the unified config artifact.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Theme       string `yaml:"theme,omitempty"`
	OutputDir   string `yaml:"output_dir"`  // root for the published content tree and navigation snapshots
	ConfigPath  string `yaml:"config_path"` // where the merged navigation/config document is written
}

// NATSConfig enables optional sync-event publishing; nil disables it.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
	StatusBucket  string `yaml:"status_bucket,omitempty"`
}

// ReconcileConfig controls the periodic drift-repair pass.
type ReconcileConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Interval string `yaml:"interval,omitempty"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	if err := loadEnvFile(); err != nil {
		// Don't fail if .env doesn't exist, just log it
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse unmarshals configuration bytes, expands environment references,
// applies defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := NewDefaultApplier().ApplyDefaults(&config); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Duration accessors. Fields hold user-facing strings ("30s", "5m"); the
// parsed forms are consumed by the coordinator and fetcher. Defaults are
// guaranteed by ApplyDefaults, so parse failures here mean validation was
// skipped and fall back to the same defaults.

func (s SyncConfig) JobDeadlineDuration() time.Duration {
	return parseDurationOr(s.JobDeadline, 10*time.Minute)
}

func (s SyncConfig) DedupWindowDuration() time.Duration {
	return parseDurationOr(s.DedupWindow, 5*time.Minute)
}

func (s SyncConfig) FetchTimeoutDuration() time.Duration {
	return parseDurationOr(s.FetchTimeout, 2*time.Minute)
}

func (s SyncConfig) RetryInitialDelayDuration() time.Duration {
	return parseDurationOr(s.RetryInitialDelay, time.Second)
}

func (s SyncConfig) RetryMaxDelayDuration() time.Duration {
	return parseDurationOr(s.RetryMaxDelay, 30*time.Second)
}

func (r ReconcileConfig) IntervalDuration() time.Duration {
	return parseDurationOr(r.Interval, time.Hour)
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	exampleConfig := Config{
		Server: ServerConfig{
			Listen: ":8080",
			Webhook: WebhookConfig{
				Path:   "/webhooks/github",
				Secret: "${DOCSYNC_WEBHOOK_SECRET}",
			},
		},
		Workspace: WorkspaceConfig{Dir: "./workspace"},
		Store:     StoreConfig{Path: "./docsync.db"},
		Git: GitConfig{
			CloneBaseURL: "https://github.com",
			Auth:         &AuthConfig{Type: "token", Token: "${DOCSYNC_GIT_TOKEN}"},
		},
		Search: SearchConfig{Path: "./search.db", MaxResults: 50},
		Sync: SyncConfig{
			Concurrency:  4,
			JobDeadline:  "10m",
			DedupWindow:  "5m",
			FetchTimeout: "2m",
			ShallowDepth: 1,
			DocsDir:      "docs",
			MaxRetries:   2,
			RetryBackoff: RetryBackoffLinear,
		},
		Site: SiteConfig{
			Title:      "Documentation",
			BaseURL:    "https://docs.example.com",
			OutputDir:  "./site",
			ConfigPath: "./site/site-config.yaml",
		},
		Reconcile: ReconcileConfig{Enabled: true, Interval: "1h"},
	}

	data, err := yaml.Marshal(&exampleConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	header := "# docsync configuration\n# Environment variables are expanded with ${VAR} syntax.\n\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
