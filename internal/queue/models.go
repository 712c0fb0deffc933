package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusSucceeded,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status ends the normal lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Item represents a discovered catalog entry tracked through the pipeline.
type Item struct {
	ID           int64
	ExternalID   string
	Title        string
	PublishedAt  time.Time
	DurationSecs int64
	Status       Status
	ProcessedAt  *time.Time
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Transcript is the durable transcript owned 1:1 by an item.
type Transcript struct {
	ItemID    int64
	Body      string
	Language  string
	CreatedAt time.Time
}

// Urgency is the tri-state severity classification on a finding. It drives
// the notification threshold.
type Urgency string

const (
	UrgencyHigh   Urgency = "HIGH"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyLow    Urgency = "LOW"
)

// ParseUrgency converts a string into a known Urgency.
func ParseUrgency(value string) (Urgency, bool) {
	normalized := Urgency(strings.ToUpper(strings.TrimSpace(value)))
	switch normalized {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return normalized, true
	default:
		return "", false
	}
}

// Finding is one structured unit of extracted insight within an analysis
// record. Findings are embedded in the record, never persisted independently.
type Finding struct {
	Subject    string            `json:"subject"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Urgency    Urgency           `json:"urgency"`
	Quote      string            `json:"quote,omitempty"`
	Context    string            `json:"context,omitempty"`
}

// FilterUrgency returns the findings at exactly the given urgency level.
func FilterUrgency(findings []Finding, level Urgency) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Urgency == level {
			out = append(out, f)
		}
	}
	return out
}

// AnalysisRecord is the structured agent output for one (item, agent kind)
// pair. Reruns upsert in place.
type AnalysisRecord struct {
	ID         int64
	ItemID     int64
	AgentKind  string
	Findings   []Finding
	Summary    string
	Confidence string
	RawOutput  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HealthSummary describes aggregated item counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	Processing int
	Succeeded  int
	Failed     int
}
