package config

import (
	"fmt"
	"path/filepath"
)

// ConfigDefaultApplier applies defaults for a specific configuration domain.
type ConfigDefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ServerDefaultApplier handles Server configuration defaults.
type ServerDefaultApplier struct{}

func (s *ServerDefaultApplier) Domain() string { return "server" }

func (s *ServerDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Webhook.Path == "" {
		cfg.Server.Webhook.Path = "/webhooks/github"
	}
	return nil
}

// WorkspaceDefaultApplier handles workspace defaults.
type WorkspaceDefaultApplier struct{}

func (w *WorkspaceDefaultApplier) Domain() string { return "workspace" }

func (w *WorkspaceDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = "./workspace"
	}
	return nil
}

// StoreDefaultApplier handles store defaults.
type StoreDefaultApplier struct{}

func (s *StoreDefaultApplier) Domain() string { return "store" }

func (s *StoreDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./docsync.db"
	}
	return nil
}

// GitDefaultApplier handles clone source defaults.
type GitDefaultApplier struct{}

func (g *GitDefaultApplier) Domain() string { return "git" }

func (g *GitDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Git.CloneBaseURL == "" {
		cfg.Git.CloneBaseURL = "https://github.com"
	}
	return nil
}

// SyncDefaultApplier handles sync pipeline defaults.
type SyncDefaultApplier struct{}

func (s *SyncDefaultApplier) Domain() string { return "sync" }

func (s *SyncDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Sync.Concurrency <= 0 {
		cfg.Sync.Concurrency = 4
	}
	if cfg.Sync.JobDeadline == "" {
		cfg.Sync.JobDeadline = "10m"
	}
	if cfg.Sync.DedupWindow == "" {
		cfg.Sync.DedupWindow = "5m"
	}
	if cfg.Sync.FetchTimeout == "" {
		cfg.Sync.FetchTimeout = "2m"
	}
	// ShallowDepth 0 means full history; negative coerced to the shallow default.
	if cfg.Sync.ShallowDepth < 0 {
		cfg.Sync.ShallowDepth = 1
	}
	if cfg.Sync.DocsDir == "" {
		cfg.Sync.DocsDir = "docs"
	}
	if cfg.Sync.MaxRetries < 0 {
		cfg.Sync.MaxRetries = 0
	}
	if cfg.Sync.RetryBackoff == "" {
		cfg.Sync.RetryBackoff = RetryBackoffLinear
	} else {
		cfg.Sync.RetryBackoff = NormalizeRetryBackoff(string(cfg.Sync.RetryBackoff))
		if cfg.Sync.RetryBackoff == "" { // fallback to default if unknown
			cfg.Sync.RetryBackoff = RetryBackoffLinear
		}
	}
	if cfg.Sync.RetryInitialDelay == "" {
		cfg.Sync.RetryInitialDelay = "1s"
	}
	if cfg.Sync.RetryMaxDelay == "" {
		cfg.Sync.RetryMaxDelay = "30s"
	}
	return nil
}

// SearchDefaultApplier handles search index defaults.
type SearchDefaultApplier struct{}

func (s *SearchDefaultApplier) Domain() string { return "search" }

func (s *SearchDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Search.Path == "" {
		cfg.Search.Path = "./search.db"
	}
	if cfg.Search.MaxResults <= 0 {
		cfg.Search.MaxResults = 50
	}
	return nil
}

// SiteDefaultApplier handles unified site chrome defaults.
type SiteDefaultApplier struct{}

func (s *SiteDefaultApplier) Domain() string { return "site" }

func (s *SiteDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Site.Title == "" {
		cfg.Site.Title = "Documentation"
	}
	if cfg.Site.OutputDir == "" {
		cfg.Site.OutputDir = "./site"
	}
	if cfg.Site.ConfigPath == "" {
		cfg.Site.ConfigPath = filepath.Join(cfg.Site.OutputDir, "site-config.yaml")
	}
	return nil
}

// ReconcileDefaultApplier handles reconcile schedule defaults.
type ReconcileDefaultApplier struct{}

func (r *ReconcileDefaultApplier) Domain() string { return "reconcile" }

func (r *ReconcileDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.Reconcile.Interval == "" {
		cfg.Reconcile.Interval = "1h"
	}
	return nil
}

// CompositeDefaultApplier applies defaults across all configuration domains.
type CompositeDefaultApplier struct {
	appliers []ConfigDefaultApplier
}

// NewDefaultApplier creates a composite default applier with all domain appliers.
func NewDefaultApplier() *CompositeDefaultApplier {
	return &CompositeDefaultApplier{
		appliers: []ConfigDefaultApplier{
			&ServerDefaultApplier{},
			&WorkspaceDefaultApplier{},
			&StoreDefaultApplier{},
			&GitDefaultApplier{},
			&SyncDefaultApplier{},
			&SearchDefaultApplier{},
			&SiteDefaultApplier{},
			&ReconcileDefaultApplier{},
		},
	}
}

// ApplyDefaults applies defaults for all configuration domains.
func (c *CompositeDefaultApplier) ApplyDefaults(cfg *Config) error {
	for _, applier := range c.appliers {
		if err := applier.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("applying defaults for %s: %w", applier.Domain(), err)
		}
	}
	return nil
}

// GetApplierByDomain returns a specific domain applier (useful for testing).
func (c *CompositeDefaultApplier) GetApplierByDomain(domain string) ConfigDefaultApplier {
	for _, applier := range c.appliers {
		if applier.Domain() == domain {
			return applier
		}
	}
	return nil
}
