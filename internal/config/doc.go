// Package config loads, validates, and defaults the TOML configuration used
// by the earshot CLI, daemon, and extraction worker.
//
// Load applies defaults first, then the config file, then normalization
// (path expansion, bound clamping), then validation. Validation fails fast on
// a missing required credential so a misconfigured deployment never gets as
// far as touching the catalog or the worker.
package config
