// Package testsupport provides shared helpers for package tests: temp-backed
// configs and stores seeded with the credentials validation requires.
package testsupport

import (
	"path/filepath"
	"testing"

	"earshot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Catalog.APIKey = "test"
	cfg.Catalog.ChannelID = "UCtest"
	cfg.Dispatch.SharedSecret = "test-secret"
	cfg.LLM.APIKey = "test"
	cfg.Worker.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithSharedSecret overrides the dispatch shared secret on the test config.
func WithSharedSecret(secret string) ConfigOption {
	return func(c *config.Config) {
		c.Dispatch.SharedSecret = secret
	}
}

// WithWorkerURL points the dispatch client at the given endpoint.
func WithWorkerURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Dispatch.WorkerURL = url
	}
}
