package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"earshot/internal/llm"
	"earshot/internal/logging"
	"earshot/internal/services"
)

const defaultMaxSteps = 4

// Completer is the model dependency: one JSON-only completion per step.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt string, turns []llm.Turn) (string, error)
}

// State tracks a single analysis run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Input is the material one analysis run works on.
type Input struct {
	Title       string
	Transcript  string
	Language    string
	PublishedAt time.Time
}

// Result is a completed run: the validated report plus run metadata.
type Result struct {
	Report Report
	Steps  int
	// Raw is the model's final step payload before validation, kept for
	// the analysis record.
	Raw string
}

// Agent drives one analysis kind through the bounded step loop.
type Agent struct {
	kind     Kind
	complete Completer
	maxSteps int
	logger   *slog.Logger
	state    State
}

// New builds an agent for the given kind. A non-positive maxSteps falls
// back to the kind's own ceiling, then to the default.
func New(kind Kind, completer Completer, maxSteps int, logger *slog.Logger) *Agent {
	if maxSteps <= 0 {
		maxSteps = kind.MaxSteps
	}
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Agent{
		kind:     kind,
		complete: completer,
		maxSteps: maxSteps,
		logger:   logger.With(logging.String(logging.FieldAgentKind, kind.Name)),
		state:    StateIdle,
	}
}

// Kind returns the agent's analysis profile name.
func (a *Agent) Kind() string { return a.kind.Name }

// State returns the state of the most recent run.
func (a *Agent) State() State { return a.state }

const outputContract = `Respond with a single JSON object on every turn.

To keep reasoning (you have a limited number of turns):
  {"action": "continue", "thought": "<your working notes>"}

To finish:
  {"action": "final", "report": {
    "findings": [
      {"subject": "<name>", "attributes": {"<key>": "<value>"},
       "urgency": "HIGH|MEDIUM|LOW", "quote": "<supporting quote>",
       "context": "<optional context>"}
    ],
    "summary": "<one paragraph summary>",
    "confidence": "high|medium|low",
    "notes": "<optional caveats>"
  }}

The findings array, summary, and confidence are required in the final
report. An empty findings array is valid when nothing notable appears.`

// Analyze runs the step loop until the model submits a valid final report
// or the step ceiling is reached.
func (a *Agent) Analyze(ctx context.Context, input Input) (Result, error) {
	var empty Result
	if strings.TrimSpace(input.Transcript) == "" {
		a.state = StateFailed
		return empty, services.Wrap(services.ErrValidation, "agent", a.kind.Name, "transcript required", nil)
	}
	a.state = StateRunning

	systemPrompt := a.kind.Preamble + "\n\n" + outputContract
	turns := []llm.Turn{{Content: a.taskPayload(input)}}

	for step := 1; step <= a.maxSteps; step++ {
		content, err := a.complete.CompleteJSON(ctx, systemPrompt, turns)
		if err != nil {
			a.state = StateFailed
			return empty, services.Wrap(services.ErrTransient, "agent", a.kind.Name, fmt.Sprintf("step %d completion", step), err)
		}
		envelope, err := decodeStep(a.kind.Name, content)
		if err != nil {
			a.state = StateFailed
			return empty, err
		}

		if *envelope.Action == actionFinal {
			report, err := envelope.Report.validate(a.kind.Name)
			if err != nil {
				a.state = StateFailed
				return empty, err
			}
			a.state = StateCompleted
			a.logger.Info("analysis completed",
				logging.Int64("steps", int64(step)),
				logging.Int64("findings", int64(len(report.Findings))))
			return Result{Report: report, Steps: step, Raw: content}, nil
		}

		a.logger.Debug("analysis step", logging.Int64("step", int64(step)))
		turns = append(turns,
			llm.Turn{Content: content, Assistant: true},
			llm.Turn{Content: a.continuePrompt(step)},
		)
	}

	a.state = StateFailed
	return empty, fmt.Errorf("agent %s: no final report within %d steps", a.kind.Name, a.maxSteps)
}

func (a *Agent) taskPayload(input Input) string {
	var b strings.Builder
	b.WriteString("Analyze this transcript.\n\n")
	if title := strings.TrimSpace(input.Title); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	if lang := strings.TrimSpace(input.Language); lang != "" {
		fmt.Fprintf(&b, "Language: %s\n", lang)
	}
	if !input.PublishedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", input.PublishedAt.Format(time.RFC3339))
	}
	b.WriteString("\nTranscript:\n")
	b.WriteString(input.Transcript)
	return b.String()
}

func (a *Agent) continuePrompt(step int) string {
	remaining := a.maxSteps - step
	if remaining == 1 {
		return "This is your last turn. Submit your final report now."
	}
	return fmt.Sprintf("Continue. You have %d turns left.", remaining)
}
