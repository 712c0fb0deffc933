package agent

import (
	"fmt"
	"strings"

	"earshot/internal/llm"
	"earshot/internal/queue"
	"earshot/internal/services"
)

// Confidence levels a report may carry. The field is required; a report
// without a confidence never passes validation.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Report is a validated final agent output.
type Report struct {
	Findings   []queue.Finding
	Summary    string
	Confidence string
	Notes      string
}

// Step actions in the model's envelope.
const (
	actionContinue = "continue"
	actionFinal    = "final"
)

// Wire shapes use pointers so a missing key is distinguishable from a
// zero value. Required fields are never defaulted.
type stepEnvelope struct {
	Action  *string     `json:"action"`
	Thought string      `json:"thought"`
	Report  *reportWire `json:"report"`
}

type reportWire struct {
	Findings   *[]findingWire `json:"findings"`
	Summary    *string        `json:"summary"`
	Confidence *string        `json:"confidence"`
	Notes      string         `json:"notes"`
}

type findingWire struct {
	Subject    *string           `json:"subject"`
	Attributes map[string]string `json:"attributes"`
	Urgency    *string           `json:"urgency"`
	Quote      string            `json:"quote"`
	Context    string            `json:"context"`
}

func schemaError(component, message string, err error) error {
	return services.Wrap(services.ErrSchema, component, "decode", message, err)
}

func decodeStep(kind, content string) (*stepEnvelope, error) {
	var envelope stepEnvelope
	if err := llm.DecodeJSON(content, &envelope); err != nil {
		return nil, schemaError(kind, "step is not valid JSON", err)
	}
	if envelope.Action == nil {
		return nil, schemaError(kind, "step missing action", nil)
	}
	action := strings.ToLower(strings.TrimSpace(*envelope.Action))
	switch action {
	case actionContinue, actionFinal:
		*envelope.Action = action
	default:
		return nil, schemaError(kind, fmt.Sprintf("unknown action %q", *envelope.Action), nil)
	}
	if action == actionFinal && envelope.Report == nil {
		return nil, schemaError(kind, "final step missing report", nil)
	}
	return &envelope, nil
}

func (w *reportWire) validate(kind string) (Report, error) {
	var empty Report
	if w.Summary == nil || strings.TrimSpace(*w.Summary) == "" {
		return empty, schemaError(kind, "report missing summary", nil)
	}
	if w.Confidence == nil {
		return empty, schemaError(kind, "report missing confidence", nil)
	}
	confidence := strings.ToLower(strings.TrimSpace(*w.Confidence))
	switch confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		return empty, schemaError(kind, fmt.Sprintf("invalid confidence %q", *w.Confidence), nil)
	}
	if w.Findings == nil {
		return empty, schemaError(kind, "report missing findings", nil)
	}

	findings := make([]queue.Finding, 0, len(*w.Findings))
	for i, fw := range *w.Findings {
		if fw.Subject == nil || strings.TrimSpace(*fw.Subject) == "" {
			return empty, schemaError(kind, fmt.Sprintf("finding %d missing subject", i), nil)
		}
		if fw.Urgency == nil {
			return empty, schemaError(kind, fmt.Sprintf("finding %d missing urgency", i), nil)
		}
		urgency, ok := queue.ParseUrgency(*fw.Urgency)
		if !ok {
			return empty, schemaError(kind, fmt.Sprintf("finding %d has invalid urgency %q", i, *fw.Urgency), nil)
		}
		findings = append(findings, queue.Finding{
			Subject:    strings.TrimSpace(*fw.Subject),
			Attributes: fw.Attributes,
			Urgency:    urgency,
			Quote:      strings.TrimSpace(fw.Quote),
			Context:    strings.TrimSpace(fw.Context),
		})
	}
	return Report{
		Findings:   findings,
		Summary:    strings.TrimSpace(*w.Summary),
		Confidence: confidence,
		Notes:      strings.TrimSpace(w.Notes),
	}, nil
}
