package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidateConfig validates the complete configuration structure.
func ValidateConfig(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

// newConfigurationValidator creates a comprehensive configuration validator.
func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

// validate performs configuration validation using domain-specific methods.
func (cv *configurationValidator) validate() error {
	if err := cv.validateServer(); err != nil {
		return err
	}
	if err := cv.validateGit(); err != nil {
		return err
	}
	if err := cv.validateSync(); err != nil {
		return err
	}
	if err := cv.validateSite(); err != nil {
		return err
	}
	if err := cv.validateNATS(); err != nil {
		return err
	}
	return nil
}

// validateServer validates server and webhook configuration.
func (cv *configurationValidator) validateServer() error {
	if !strings.HasPrefix(cv.config.Server.Webhook.Path, "/") {
		return fmt.Errorf("server.webhook.path must start with '/': %q", cv.config.Server.Webhook.Path)
	}
	return nil
}

// validateGit validates the clone source and authentication settings.
func (cv *configurationValidator) validateGit() error {
	g := cv.config.Git
	if !strings.Contains(g.CloneBaseURL, "://") {
		return fmt.Errorf("git.clone_base_url must be an absolute URL: %q", g.CloneBaseURL)
	}
	if g.Auth == nil {
		return nil
	}
	switch g.Auth.Type {
	case "", "none", "ssh":
	case "token":
		if g.Auth.Token == "" {
			return fmt.Errorf("git.auth.token is required for token authentication")
		}
	case "basic":
		if g.Auth.Username == "" || g.Auth.Password == "" {
			return fmt.Errorf("git.auth requires username and password for basic authentication")
		}
	default:
		return fmt.Errorf("git.auth.type must be none, ssh, token, or basic: %q", g.Auth.Type)
	}
	return nil
}

// validateSync validates pipeline tuning and retry durations.
func (cv *configurationValidator) validateSync() error {
	s := cv.config.Sync
	if s.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be >= 1, got %d", s.Concurrency)
	}
	for _, f := range []struct{ name, raw string }{
		{"sync.job_deadline", s.JobDeadline},
		{"sync.dedup_window", s.DedupWindow},
		{"sync.fetch_timeout", s.FetchTimeout},
		{"sync.retry_initial_delay", s.RetryInitialDelay},
		{"sync.retry_max_delay", s.RetryMaxDelay},
	} {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: duration must be positive, got %q", f.name, f.raw)
		}
	}
	if s.FetchTimeoutDuration() > s.JobDeadlineDuration() {
		return fmt.Errorf("sync.fetch_timeout (%s) exceeds sync.job_deadline (%s)", s.FetchTimeout, s.JobDeadline)
	}
	if strings.HasPrefix(s.DocsDir, "/") || strings.Contains(s.DocsDir, "..") {
		return fmt.Errorf("sync.docs_dir must be a relative path inside the repository: %q", s.DocsDir)
	}
	return nil
}

// validateSite validates the unified config artifact settings.
func (cv *configurationValidator) validateSite() error {
	if cv.config.Site.OutputDir == "" {
		return fmt.Errorf("site.output_dir is required")
	}
	if cv.config.Site.ConfigPath == "" {
		return fmt.Errorf("site.config_path is required")
	}
	if cv.config.Site.BaseURL != "" && !strings.Contains(cv.config.Site.BaseURL, "://") {
		return fmt.Errorf("site.base_url must be an absolute URL: %q", cv.config.Site.BaseURL)
	}
	return nil
}

// validateNATS checks optional event publishing settings.
func (cv *configurationValidator) validateNATS() error {
	if cv.config.NATS == nil {
		return nil
	}
	if cv.config.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when the nats section is present")
	}
	return nil
}
