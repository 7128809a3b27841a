// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/claimcheck/lib/capture"
	"github.com/bureau-foundation/claimcheck/lib/claimstore"
)

// EnvVar names the environment variable [Load] reads the config path
// from.
const EnvVar = "CLAIMCHECK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the claimcheck configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// ClaimStore configures the external payload store.
	ClaimStore ClaimStoreConfig `yaml:"claimstore"`

	// Capture configures capture policy.
	Capture CaptureConfig `yaml:"capture"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	ClaimStore *ClaimStoreConfig `yaml:"claimstore,omitempty"`
	Capture    *CaptureConfig    `yaml:"capture,omitempty"`
}

// ClaimStoreConfig configures the external payload store.
type ClaimStoreConfig struct {
	// LocalDirectory is the check-in directory captures are written to.
	// Empty means captures go straight to SharedDirectory.
	LocalDirectory string `yaml:"local_directory"`

	// SharedDirectory is the check-out directory captures are redeemed
	// from.
	SharedDirectory string `yaml:"shared_directory"`

	// Threshold is the inline threshold in encoded characters.
	// Default: 0 (claimstore.DefaultThreshold)
	Threshold int64 `yaml:"threshold"`

	// Compression is the inline codec: zstd, lz4 or none.
	// Default: zstd
	Compression string `yaml:"compression"`

	// VerifyDigest enables digest checks on redeemed payloads.
	// Default: true. Always true in production unless overridden.
	VerifyDigest *bool `yaml:"verify_digest,omitempty"`
}

// CaptureConfig configures capture policy.
type CaptureConfig struct {
	// DefaultTracking is the tracking level used when no policy is
	// named: none, step, context, body or claim.
	// Default: body
	DefaultTracking string `yaml:"default_tracking"`

	// Policies maps tracking policy names to tracking levels.
	Policies map[string]string `yaml:"policies,omitempty"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	verify := true

	return &Config{
		Environment: Development,
		ClaimStore: ClaimStoreConfig{
			SharedDirectory: filepath.Join(homeDir, ".cache", "claimcheck", "shared"),
			Compression:     claimstore.CompressionZstd.String(),
			VerifyDigest:    &verify,
		},
		Capture: CaptureConfig{
			DefaultTracking: capture.TrackBody.String(),
		},
	}
}

// Load loads configuration from the CLAIMCHECK_CONFIG environment
// variable. There are no fallbacks: if it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your claimcheck.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: redeemed payloads are always verified.
		if overrides == nil {
			verify := true
			overrides = &ConfigOverrides{
				ClaimStore: &ClaimStoreConfig{VerifyDigest: &verify},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.ClaimStore != nil {
		store := overrides.ClaimStore
		if store.LocalDirectory != "" {
			c.ClaimStore.LocalDirectory = store.LocalDirectory
		}
		if store.SharedDirectory != "" {
			c.ClaimStore.SharedDirectory = store.SharedDirectory
		}
		if store.Threshold != 0 {
			c.ClaimStore.Threshold = store.Threshold
		}
		if store.Compression != "" {
			c.ClaimStore.Compression = store.Compression
		}
		if store.VerifyDigest != nil {
			c.ClaimStore.VerifyDigest = store.VerifyDigest
		}
	}

	if overrides.Capture != nil {
		if overrides.Capture.DefaultTracking != "" {
			c.Capture.DefaultTracking = overrides.Capture.DefaultTracking
		}
		// Policy tables merge by name.
		for name, level := range overrides.Capture.Policies {
			if c.Capture.Policies == nil {
				c.Capture.Policies = make(map[string]string)
			}
			c.Capture.Policies[name] = level
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.ClaimStore.SharedDirectory = expandVars(c.ClaimStore.SharedDirectory, vars)
	vars["CLAIMCHECK_SHARED"] = c.ClaimStore.SharedDirectory // For a local directory derived from it.
	c.ClaimStore.LocalDirectory = expandVars(c.ClaimStore.LocalDirectory, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.ClaimStore.SharedDirectory == "" {
		errs = append(errs, errors.New("claimstore.shared_directory is required"))
	}

	if c.ClaimStore.Threshold < 0 {
		errs = append(errs, fmt.Errorf("claimstore.threshold must not be negative, got %d", c.ClaimStore.Threshold))
	}

	if _, err := claimstore.ParseCompression(c.ClaimStore.Compression); err != nil {
		errs = append(errs, fmt.Errorf("claimstore.compression: %w", err))
	}

	if _, err := capture.ParseTrackingModes(c.Capture.DefaultTracking); err != nil {
		errs = append(errs, fmt.Errorf("capture.default_tracking: %w", err))
	}

	names := make([]string, 0, len(c.Capture.Policies))
	for name := range c.Capture.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := capture.ParseTrackingModes(c.Capture.Policies[name]); err != nil {
			errs = append(errs, fmt.Errorf("capture.policies.%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// VerifiesDigest reports whether redeemed payloads are verified.
func (c *ClaimStoreConfig) VerifiesDigest() bool {
	return c.VerifyDigest == nil || *c.VerifyDigest
}

// StoreConfig converts the claimstore section into a [claimstore.Config].
// The caller supplies the logger and clock.
func (c *Config) StoreConfig() (claimstore.Config, error) {
	compression, err := claimstore.ParseCompression(c.ClaimStore.Compression)
	if err != nil {
		return claimstore.Config{}, fmt.Errorf("claimstore.compression: %w", err)
	}
	return claimstore.Config{
		LocalDirectory:         c.ClaimStore.LocalDirectory,
		SharedDirectory:        c.ClaimStore.SharedDirectory,
		Threshold:              c.ClaimStore.Threshold,
		Compression:            compression,
		SkipDigestVerification: !c.ClaimStore.VerifiesDigest(),
	}, nil
}

// DefaultTracking returns the parsed default tracking level.
func (c *Config) DefaultTracking() (capture.TrackingModes, error) {
	return capture.ParseTrackingModes(c.Capture.DefaultTracking)
}

// TrackingPolicies returns the policy table as a resolver.
func (c *Config) TrackingPolicies() (capture.StaticPolicies, error) {
	policies := make(capture.StaticPolicies, len(c.Capture.Policies))
	for name, level := range c.Capture.Policies {
		modes, err := capture.ParseTrackingModes(level)
		if err != nil {
			return nil, fmt.Errorf("capture.policies.%s: %w", name, err)
		}
		policies[name] = modes
	}
	return policies, nil
}
