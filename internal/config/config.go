// Package config provides configuration loading and management for the broker.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// UnknownTaskAcknowledge marks tasks of an unrecognized type as done
	// without touching any store.
	UnknownTaskAcknowledge = "acknowledge"

	// UnknownTaskFail marks tasks of an unrecognized type as failed.
	UnknownTaskFail = "fail"
)

const (
	defaultAddress           = ":8080"
	defaultApplicationGraph  = "http://mu.semte.ch/application"
	defaultTasksGraph        = "http://mu.semte.ch/graphs/tasks"
	defaultOfferingsDocument = "private/tests/my-offerings.ttl"
	defaultProductsDocument  = "private/tests/my-products.ttl"
	defaultSyncInterval      = 30 * time.Second
	defaultSyncJitter        = 5 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Server   ServerConfig    `yaml:"server,omitempty"`
	Catalog  CatalogConfig   `yaml:"catalog"`
	Pods     PodsConfig      `yaml:"pods,omitempty"`
	Sync     SyncConfig      `yaml:"sync,omitempty"`
	Session  SessionConfig   `yaml:"session"`
	Payments *PaymentsConfig `yaml:"payments,omitempty"`
}

// ServerConfig defines the HTTP listener settings
type ServerConfig struct {
	// Address is the listen address in host:port form
	// Defaults to ":8080" if not specified
	Address string `yaml:"address,omitempty"`
}

// CatalogConfig defines the SPARQL endpoint holding the broker's catalog
type CatalogConfig struct {
	// Endpoint is the SPARQL endpoint URL serving both queries and updates
	Endpoint string `yaml:"endpoint"`

	// ApplicationGraph is the named graph holding catalog and order data
	// Defaults to "http://mu.semte.ch/application"
	ApplicationGraph string `yaml:"applicationGraph,omitempty"`

	// TasksGraph is the named graph holding the task queue
	// Defaults to "http://mu.semte.ch/graphs/tasks"
	TasksGraph string `yaml:"tasksGraph,omitempty"`
}

// PodsConfig defines where party documents live inside each pod
type PodsConfig struct {
	// OfferingsDocument is the pod-relative path of the offerings document
	OfferingsDocument string `yaml:"offeringsDocument,omitempty"`

	// ProductsDocument is the pod-relative path of the products document
	ProductsDocument string `yaml:"productsDocument,omitempty"`
}

// SyncConfig defines task polling settings
type SyncConfig struct {
	// Interval between polling rounds (e.g., "30s", "5m")
	Interval string `yaml:"interval,omitempty"`

	// Jitter randomizes each polling interval by up to this duration
	Jitter string `yaml:"jitter,omitempty"`

	// UnknownTaskPolicy decides what happens to tasks of an unrecognized
	// type: "acknowledge" (default) or "fail"
	UnknownTaskPolicy string `yaml:"unknownTaskPolicy,omitempty"`
}

// SessionConfig defines the broker's own identity-provider login
type SessionConfig struct {
	// ClientID is the OAuth client id registered at the identity provider
	ClientID string `yaml:"clientId"`

	// ClientSecret is the OAuth client secret. Prefer ClientSecretFile in
	// production deployments.
	ClientSecret string `yaml:"clientSecret,omitempty"`

	// ClientSecretFile is the path to a file containing the client secret
	// The file should contain only the secret with optional trailing whitespace
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	// Issuer is the identity provider base URL used for OIDC discovery
	Issuer string `yaml:"issuer"`
}

// PaymentsConfig defines the payment provider callback settings
type PaymentsConfig struct {
	// RedirectURL is where buyers land after completing a payment
	RedirectURL string `yaml:"redirectUrl"`

	// WebhookURL is the broker's publicly reachable payment webhook
	WebhookURL string `yaml:"webhookUrl"`

	// BaseURL overrides the payment API base URL, mainly for testing
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// GetClientSecret returns the session client secret using the following priority:
// 1. Read from ClientSecretFile if specified
// 2. Read from SHOP_SESSION_CLIENT_SECRET environment variable
// 3. The inline clientSecret field
//
// The secret from file will have leading/trailing whitespace trimmed.
func (s *SessionConfig) GetClientSecret() (string, error) {
	// Priority 1: Read from file if specified
	if s.ClientSecretFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(s.ClientSecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret from file %s: %w", s.ClientSecretFile, err)
		}

		// Trim whitespace (including newlines) from file content
		secret := strings.TrimSpace(string(data))
		return secret, nil
	}

	// Priority 2: Check environment variable
	if envSecret := os.Getenv("SHOP_SESSION_CLIENT_SECRET"); envSecret != "" {
		return envSecret, nil
	}

	// Priority 3: Inline value
	if s.ClientSecret != "" {
		return s.ClientSecret, nil
	}

	return "", fmt.Errorf(
		"no session client secret configured: set clientSecretFile, SHOP_SESSION_CLIENT_SECRET, or clientSecret",
	)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	// As of now, this is required because there's no other options to load
	// configuration. Once we add more options, we can remove this check.
	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	// Read the entire file into memory
	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML content
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetAddress returns the listen address, using ":8080" if not specified
func (c *Config) GetAddress() string {
	if c.Server.Address == "" {
		return defaultAddress
	}
	return c.Server.Address
}

// GetApplicationGraph returns the application graph IRI with its default
func (c *Config) GetApplicationGraph() string {
	if c.Catalog.ApplicationGraph == "" {
		return defaultApplicationGraph
	}
	return c.Catalog.ApplicationGraph
}

// GetTasksGraph returns the tasks graph IRI with its default
func (c *Config) GetTasksGraph() string {
	if c.Catalog.TasksGraph == "" {
		return defaultTasksGraph
	}
	return c.Catalog.TasksGraph
}

// GetOfferingsDocument returns the pod-relative offerings document path
func (c *Config) GetOfferingsDocument() string {
	if c.Pods.OfferingsDocument == "" {
		return defaultOfferingsDocument
	}
	return c.Pods.OfferingsDocument
}

// GetProductsDocument returns the pod-relative products document path
func (c *Config) GetProductsDocument() string {
	if c.Pods.ProductsDocument == "" {
		return defaultProductsDocument
	}
	return c.Pods.ProductsDocument
}

// GetSyncInterval returns the polling interval with its default.
// Validation guarantees a configured value parses.
func (c *Config) GetSyncInterval() time.Duration {
	if c.Sync.Interval == "" {
		return defaultSyncInterval
	}
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return defaultSyncInterval
	}
	return d
}

// GetSyncJitter returns the polling jitter with its default
func (c *Config) GetSyncJitter() time.Duration {
	if c.Sync.Jitter == "" {
		return defaultSyncJitter
	}
	d, err := time.ParseDuration(c.Sync.Jitter)
	if err != nil {
		return defaultSyncJitter
	}
	return d
}

// GetUnknownTaskPolicy returns the unknown-task policy with its default
func (c *Config) GetUnknownTaskPolicy() string {
	if c.Sync.UnknownTaskPolicy == "" {
		return UnknownTaskAcknowledge
	}
	return c.Sync.UnknownTaskPolicy
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateCatalogConfig(&c.Catalog); err != nil {
		return err
	}

	if err := validateSyncConfig(&c.Sync); err != nil {
		return err
	}

	if err := validateSessionConfig(&c.Session); err != nil {
		return err
	}

	return validatePaymentsConfig(c.Payments)
}

// validateCatalogConfig validates the SPARQL endpoint and graph IRIs
func validateCatalogConfig(cfg *CatalogConfig) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("catalog.endpoint is required")
	}
	if err := validateAbsoluteURL(cfg.Endpoint); err != nil {
		return fmt.Errorf("catalog.endpoint: %w", err)
	}

	if cfg.ApplicationGraph != "" {
		if err := validateAbsoluteURL(cfg.ApplicationGraph); err != nil {
			return fmt.Errorf("catalog.applicationGraph: %w", err)
		}
	}
	if cfg.TasksGraph != "" {
		if err := validateAbsoluteURL(cfg.TasksGraph); err != nil {
			return fmt.Errorf("catalog.tasksGraph: %w", err)
		}
	}
	return nil
}

// validateSyncConfig validates polling durations and the unknown-task policy
func validateSyncConfig(cfg *SyncConfig) error {
	if cfg.Interval != "" {
		if _, err := time.ParseDuration(cfg.Interval); err != nil {
			return fmt.Errorf("sync.interval must be a valid duration (e.g., '30s', '5m'): %w", err)
		}
	}
	if cfg.Jitter != "" {
		if _, err := time.ParseDuration(cfg.Jitter); err != nil {
			return fmt.Errorf("sync.jitter must be a valid duration (e.g., '5s'): %w", err)
		}
	}

	switch cfg.UnknownTaskPolicy {
	case "", UnknownTaskAcknowledge, UnknownTaskFail:
		return nil
	default:
		return fmt.Errorf("sync.unknownTaskPolicy must be %q or %q, got %q",
			UnknownTaskAcknowledge, UnknownTaskFail, cfg.UnknownTaskPolicy)
	}
}

// validateSessionConfig validates the identity-provider login settings
func validateSessionConfig(cfg *SessionConfig) error {
	if cfg.ClientID == "" {
		return fmt.Errorf("session.clientId is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("session.issuer is required")
	}
	if err := validateAbsoluteURL(cfg.Issuer); err != nil {
		return fmt.Errorf("session.issuer: %w", err)
	}
	return nil
}

// validatePaymentsConfig validates the payment callback URLs when configured
func validatePaymentsConfig(cfg *PaymentsConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.RedirectURL != "" {
		if err := validateAbsoluteURL(cfg.RedirectURL); err != nil {
			return fmt.Errorf("payments.redirectUrl: %w", err)
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateAbsoluteURL(cfg.WebhookURL); err != nil {
			return fmt.Errorf("payments.webhookUrl: %w", err)
		}
	}
	if cfg.BaseURL != "" {
		if err := validateAbsoluteURL(cfg.BaseURL); err != nil {
			return fmt.Errorf("payments.baseUrl: %w", err)
		}
	}
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("URL %q must be absolute with a host", raw)
	}
	return nil
}
