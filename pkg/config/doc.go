// Package config loads the YAML configuration of the runtime core:
// per-interface health tracker settings, reconnection backoff, and
// incident snapshot persistence.
//
// All settings are optional. Zero values fall back to the package
// defaults at construction time, so an empty file is a valid
// configuration. Validation is eager: Load and Parse reject invalid
// values instead of deferring the failure to first use.
package config
