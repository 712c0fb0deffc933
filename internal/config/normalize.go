package config

import "strings"

// normalize expands paths, trims credential whitespace, and clamps bounds
// before validation runs.
func (c *Config) normalize() error {
	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Catalog.APIKey = strings.TrimSpace(c.Catalog.APIKey)
	c.Catalog.ChannelID = strings.TrimSpace(c.Catalog.ChannelID)
	c.Dispatch.WorkerURL = strings.TrimRight(strings.TrimSpace(c.Dispatch.WorkerURL), "/")
	c.Dispatch.SharedSecret = strings.TrimSpace(c.Dispatch.SharedSecret)
	c.Worker.Bind = strings.TrimSpace(c.Worker.Bind)
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Scheduler.CronSpec = strings.TrimSpace(c.Scheduler.CronSpec)

	if c.Catalog.FetchLimit < 1 {
		c.Catalog.FetchLimit = 1
	}
	if c.Catalog.FetchLimit > 50 {
		c.Catalog.FetchLimit = 50
	}
	if c.Dispatch.RetryAttempts < 1 {
		c.Dispatch.RetryAttempts = defaultRetryAttempts
	}
	if c.Agent.MaxSteps < 1 {
		c.Agent.MaxSteps = defaultAgentMaxSteps
	}
	return nil
}
