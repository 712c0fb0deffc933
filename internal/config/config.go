package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Catalog contains configuration for the external content catalog.
type Catalog struct {
	APIKey     string `toml:"api_key"`
	ChannelID  string `toml:"channel_id"`
	FetchLimit int    `toml:"fetch_limit"`
}

// Dispatch contains client-side settings for talking to the extraction worker.
type Dispatch struct {
	WorkerURL             string `toml:"worker_url"`
	SharedSecret          string `toml:"shared_secret"`
	RetryAttempts         int    `toml:"retry_attempts"`
	RetryBaseSeconds      int    `toml:"retry_base_seconds"`
	RetryMaxSeconds       int    `toml:"retry_max_seconds"`
	RequestTimeoutMinutes int    `toml:"request_timeout_minutes"`
}

// Worker contains server-side settings for the extraction worker process.
type Worker struct {
	Bind        string `toml:"bind"`
	YtDlpPath   string `toml:"yt_dlp_path"`
	FFmpegPath  string `toml:"ffmpeg_path"`
	ToolTimeout int    `toml:"tool_timeout_seconds"`
}

// STT contains configuration for the speech-to-text backend.
type STT struct {
	AlternativeLanguages []string `toml:"alternative_languages"`
}

// LLM contains connection settings for the reasoning model.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Agent contains orchestrator settings shared by all agent kinds.
type Agent struct {
	MaxSteps int `toml:"max_steps"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Scheduler contains daemon-mode batch scheduling configuration.
type Scheduler struct {
	CronSpec string `toml:"cron_spec"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for earshot.
//
// Sections by subsystem:
//   - Paths: data and log directories
//   - Catalog: YouTube Data API key and channel to watch
//   - Dispatch: worker endpoint, shared secret, retry policy
//   - Worker: bind address and external tool settings
//   - STT: speech-to-text language hints
//   - LLM: reasoning-model connection settings
//   - Agent: orchestrator step ceiling
//   - Notifications: ntfy settings
//   - Scheduler: daemon cron spec
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Catalog       Catalog       `toml:"catalog"`
	Dispatch      Dispatch      `toml:"dispatch"`
	Worker        Worker        `toml:"worker"`
	STT           STT           `toml:"stt"`
	LLM           LLM           `toml:"llm"`
	Agent         Agent         `toml:"agent"`
	Notifications Notifications `toml:"notifications"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/earshot/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("earshot.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the sqlite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "earshot.db")
}

// RunLockPath returns the flock path guarding overlapping local batch runs.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.DataDir, "earshot-run.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
