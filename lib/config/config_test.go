// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/claimcheck/lib/capture"
	"github.com/bureau-foundation/claimcheck/lib/claimstore"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "claimcheck.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.ClaimStore.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.ClaimStore.Compression)
	}

	if !cfg.ClaimStore.VerifiesDigest() {
		t.Error("expected verify_digest=true by default")
	}

	if cfg.Capture.DefaultTracking != "body" {
		t.Errorf("expected default_tracking=body, got %s", cfg.Capture.DefaultTracking)
	}

	if cfg.ClaimStore.LocalDirectory != "" {
		t.Errorf("expected no local directory by default, got %s", cfg.ClaimStore.LocalDirectory)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when CLAIMCHECK_CONFIG not set, got nil")
	}

	expectedMsg := "CLAIMCHECK_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
claimstore:
  shared_directory: /test/shared
`)
	t.Setenv(EnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.ClaimStore.SharedDirectory != "/test/shared" {
		t.Errorf("expected shared_directory=/test/shared, got %s", cfg.ClaimStore.SharedDirectory)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

claimstore:
  local_directory: /fast/checkin
  shared_directory: /durable/checkout
  threshold: 4096
  compression: lz4
  verify_digest: false

capture:
  default_tracking: claim
  policies:
    orders: claim
    audit: body
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.ClaimStore.LocalDirectory != "/fast/checkin" {
		t.Errorf("expected local_directory=/fast/checkin, got %s", cfg.ClaimStore.LocalDirectory)
	}

	if cfg.ClaimStore.SharedDirectory != "/durable/checkout" {
		t.Errorf("expected shared_directory=/durable/checkout, got %s", cfg.ClaimStore.SharedDirectory)
	}

	if cfg.ClaimStore.Threshold != 4096 {
		t.Errorf("expected threshold=4096, got %d", cfg.ClaimStore.Threshold)
	}

	if cfg.ClaimStore.VerifiesDigest() {
		t.Error("expected verify_digest=false")
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() failed: %v", err)
	}

	storeConfig, err := cfg.StoreConfig()
	if err != nil {
		t.Fatalf("StoreConfig() failed: %v", err)
	}
	if storeConfig.Compression != claimstore.CompressionLZ4 {
		t.Errorf("expected lz4 compression, got %v", storeConfig.Compression)
	}
	if !storeConfig.SkipDigestVerification {
		t.Error("expected digest verification to be skipped")
	}

	tracking, err := cfg.DefaultTracking()
	if err != nil || tracking != capture.TrackClaim {
		t.Errorf("DefaultTracking() = %v, %v; want claim", tracking, err)
	}

	policies, err := cfg.TrackingPolicies()
	if err != nil {
		t.Fatalf("TrackingPolicies() failed: %v", err)
	}
	if policies["orders"] != capture.TrackClaim || policies["audit"] != capture.TrackBody {
		t.Errorf("unexpected policies: %v", policies)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

claimstore:
  shared_directory: /default/shared
  compression: none
  verify_digest: false

capture:
  default_tracking: step
  policies:
    orders: body

production:
  claimstore:
    shared_directory: /prod/shared
    compression: zstd
    verify_digest: true
  capture:
    default_tracking: claim
    policies:
      invoices: claim
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	// Production overrides should be applied.
	if cfg.ClaimStore.SharedDirectory != "/prod/shared" {
		t.Errorf("expected shared_directory=/prod/shared, got %s", cfg.ClaimStore.SharedDirectory)
	}

	if cfg.ClaimStore.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.ClaimStore.Compression)
	}

	if !cfg.ClaimStore.VerifiesDigest() {
		t.Error("expected verify_digest=true from production override")
	}

	if cfg.Capture.DefaultTracking != "claim" {
		t.Errorf("expected default_tracking=claim, got %s", cfg.Capture.DefaultTracking)
	}

	// Policy tables merge.
	if cfg.Capture.Policies["orders"] != "body" || cfg.Capture.Policies["invoices"] != "claim" {
		t.Errorf("unexpected merged policies: %v", cfg.Capture.Policies)
	}
}

func TestProductionDefaultsVerifyDigest(t *testing.T) {
	configPath := writeConfig(t, `
environment: production
claimstore:
  shared_directory: /prod/shared
  verify_digest: false
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if !cfg.ClaimStore.VerifiesDigest() {
		t.Error("expected production without overrides to verify digests")
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Environment variables other than the ones expanded in paths
	// must not change config file values.
	t.Setenv("CLAIMCHECK_SHARED_DIRECTORY", "/env/shared")
	t.Setenv("CLAIMCHECK_ENVIRONMENT", "staging")

	configPath := writeConfig(t, `
environment: development
claimstore:
  shared_directory: /file/shared
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s (env vars should not override)", cfg.Environment)
	}

	if cfg.ClaimStore.SharedDirectory != "/file/shared" {
		t.Errorf("expected shared_directory=/file/shared from file, got %s (env vars should not override)", cfg.ClaimStore.SharedDirectory)
	}
}

func TestDirectoryExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	configPath := writeConfig(t, `
claimstore:
  shared_directory: ${HOME}/claims
  local_directory: ${CLAIMCHECK_SHARED}/../checkin
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.ClaimStore.SharedDirectory != "/home/tester/claims" {
		t.Errorf("expected shared_directory=/home/tester/claims, got %s", cfg.ClaimStore.SharedDirectory)
	}

	if cfg.ClaimStore.LocalDirectory != "/home/tester/claims/../checkin" {
		t.Errorf("expected local_directory derived from shared, got %s", cfg.ClaimStore.LocalDirectory)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/claimcheck",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/claimcheck",
		},
		{
			input:    "${MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty shared directory",
			modify: func(c *Config) {
				c.ClaimStore.SharedDirectory = ""
			},
			wantErr: true,
		},
		{
			name: "negative threshold",
			modify: func(c *Config) {
				c.ClaimStore.Threshold = -1
			},
			wantErr: true,
		},
		{
			name: "unknown compression",
			modify: func(c *Config) {
				c.ClaimStore.Compression = "brotli"
			},
			wantErr: true,
		},
		{
			name: "unknown default tracking",
			modify: func(c *Config) {
				c.Capture.DefaultTracking = "everything"
			},
			wantErr: true,
		},
		{
			name: "unknown policy level",
			modify: func(c *Config) {
				c.Capture.Policies = map[string]string{"orders": "sometimes"}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
