// Package config loads versionpatcher's user configuration.
//
// Settings come from three layers, later layers winning: a YAML document
// (by default versionpatcher.yaml in os.UserConfigDir), environment
// variables (optionally seeded from a .env file) and command-line flags
// applied by the caller. The YAML document is validated against an embedded
// JSON schema before it is decoded.
package config
