package config

const (
	defaultDataDir               = "~/.local/share/earshot"
	defaultLogDir                = "~/.local/share/earshot/logs"
	defaultFetchLimit            = 25
	defaultWorkerURL             = "http://127.0.0.1:7817"
	defaultRetryAttempts         = 3
	defaultRetryBaseSeconds      = 2
	defaultRetryMaxSeconds       = 60
	defaultRequestTimeoutMinutes = 30
	defaultWorkerBind            = "127.0.0.1:7817"
	defaultToolTimeoutSeconds    = 1800
	defaultLLMBaseURL            = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel              = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds     = 120
	defaultAgentMaxSteps         = 4
	defaultNotifyRequestTimeout  = 10
	defaultCronSpec              = "0 * * * *"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Catalog: Catalog{
			FetchLimit: defaultFetchLimit,
		},
		Dispatch: Dispatch{
			WorkerURL:             defaultWorkerURL,
			RetryAttempts:         defaultRetryAttempts,
			RetryBaseSeconds:      defaultRetryBaseSeconds,
			RetryMaxSeconds:       defaultRetryMaxSeconds,
			RequestTimeoutMinutes: defaultRequestTimeoutMinutes,
		},
		Worker: Worker{
			Bind:        defaultWorkerBind,
			YtDlpPath:   "yt-dlp",
			FFmpegPath:  "ffmpeg",
			ToolTimeout: defaultToolTimeoutSeconds,
		},
		STT: STT{
			AlternativeLanguages: []string{"en-US"},
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Agent: Agent{
			MaxSteps: defaultAgentMaxSteps,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Scheduler: Scheduler{
			CronSpec: defaultCronSpec,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
