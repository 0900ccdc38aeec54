// Package config loads, normalizes, and validates tubeshelf configuration.
//
// It supplies repository defaults, expands tilde paths, reads TOML files, and
// honours TUBESHELF_-prefixed environment overrides. The Config type
// centralizes every knob the daemon and CLI need so downstream code receives
// sanitized paths and clear validation errors.
package config
