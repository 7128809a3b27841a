// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for claimcheck.
//
// Configuration is loaded from a single file specified by either the
// CLAIMCHECK_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// digest verification of redeemed payloads is forced on unless the
// production section says otherwise.
//
// Variable expansion is performed on directory fields after loading:
// ${HOME}, ${CLAIMCHECK_SHARED} (in local_directory), and
// ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with ClaimStore and Capture sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.StoreConfig], [Config.TrackingPolicies] -- conversion
//     to the claimstore and capture types
package config
