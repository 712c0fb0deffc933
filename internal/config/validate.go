package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.APIKey == "" {
		return requiredFieldError("catalog.api_key")
	}
	if c.Catalog.ChannelID == "" {
		return requiredFieldError("catalog.channel_id")
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if c.Dispatch.SharedSecret == "" {
		return requiredFieldError("dispatch.shared_secret")
	}
	if c.Dispatch.WorkerURL == "" {
		return errors.New("dispatch.worker_url must be set")
	}
	if c.Dispatch.RetryBaseSeconds <= 0 {
		return errors.New("dispatch.retry_base_seconds must be positive")
	}
	if c.Dispatch.RetryMaxSeconds < c.Dispatch.RetryBaseSeconds {
		return errors.New("dispatch.retry_max_seconds must be >= dispatch.retry_base_seconds")
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		return requiredFieldError("llm.api_key")
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model must be set")
	}
	return nil
}

func (c *Config) validateTimings() error {
	for name, value := range map[string]int{
		"dispatch.request_timeout_minutes": c.Dispatch.RequestTimeoutMinutes,
		"worker.tool_timeout_seconds":      c.Worker.ToolTimeout,
		"notifications.request_timeout":    c.Notifications.RequestTimeout,
		"llm.timeout_seconds":              c.LLM.TimeoutSeconds,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func requiredFieldError(field string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/earshot/config.toml"
	}
	return fmt.Errorf("%s is required; edit %s (create with 'earshot config init')", field, defaultPath)
}
