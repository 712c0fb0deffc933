package dispatch

import "strings"

// Extraction modes accepted by the worker.
const (
	ModePrerecorded = "prerecorded"
	ModeStreaming   = "streaming"
)

const defaultLanguageHint = "en"

// ExtractRequest is the signed payload sent to the worker's extract endpoint.
type ExtractRequest struct {
	ResourceURL  string `json:"resource_url"`
	LanguageHint string `json:"language_hint"`
	Mode         string `json:"mode"`
}

func (r *ExtractRequest) normalize() {
	r.ResourceURL = strings.TrimSpace(r.ResourceURL)
	r.LanguageHint = strings.TrimSpace(r.LanguageHint)
	if r.LanguageHint == "" {
		r.LanguageHint = defaultLanguageHint
	}
	r.Mode = strings.ToLower(strings.TrimSpace(r.Mode))
	if r.Mode == "" {
		r.Mode = ModePrerecorded
	}
}

// ExtractResponse is the worker's successful reply.
type ExtractResponse struct {
	Transcript   string `json:"text"`
	Language     string `json:"language"`
	DurationSecs int64  `json:"duration_seconds"`
}

// errorResponse is the worker's failure reply. Stage names the pipeline
// step that failed (download, transcode, backend).
type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}
