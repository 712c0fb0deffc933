package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"earshot/internal/agent"
	"earshot/internal/llm"
	"earshot/internal/queue"
	"earshot/internal/services"
)

// scriptedCompleter replays canned responses, one per step.
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
	turnCount []int
}

func (s *scriptedCompleter) CompleteJSON(_ context.Context, _ string, turns []llm.Turn) (string, error) {
	s.turnCount = append(s.turnCount, len(turns))
	if s.err != nil {
		return "", s.err
	}
	if s.calls >= len(s.responses) {
		return "", errors.New("script exhausted")
	}
	resp := s.responses[s.calls]
	s.calls++
	return resp, nil
}

const validFinal = `{"action":"final","report":{
	"findings":[{"subject":"Acme Corp","attributes":{"sentiment":"negative"},"urgency":"HIGH","quote":"Acme is being sued"}],
	"summary":"One high urgency mention of Acme Corp.",
	"confidence":"high"
}}`

func testKind(t *testing.T) agent.Kind {
	t.Helper()
	kind, ok := agent.LookupKind(agent.MentionScoutKind)
	if !ok {
		t.Fatal("mention-scout kind must be built in")
	}
	return kind
}

func testInput() agent.Input {
	return agent.Input{Title: "Weekly news", Transcript: "Acme is being sued over the recall.", Language: "en"}
}

func TestAnalyzeFinalOnFirstStep(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{validFinal}}
	a := agent.New(testKind(t), completer, 4, nil)

	result, err := a.Analyze(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Steps != 1 {
		t.Fatalf("expected 1 step, got %d", result.Steps)
	}
	if len(result.Report.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Report.Findings))
	}
	finding := result.Report.Findings[0]
	if finding.Subject != "Acme Corp" || finding.Urgency != queue.UrgencyHigh {
		t.Fatalf("unexpected finding: %+v", finding)
	}
	if result.Report.Confidence != agent.ConfidenceHigh {
		t.Fatalf("unexpected confidence %q", result.Report.Confidence)
	}
	if a.State() != agent.StateCompleted {
		t.Fatalf("expected completed state, got %s", a.State())
	}
}

func TestAnalyzeMultiStepConversation(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"action":"continue","thought":"scanning for names"}`,
		`{"action":"continue","thought":"classifying urgency"}`,
		validFinal,
	}}
	a := agent.New(testKind(t), completer, 4, nil)

	result, err := a.Analyze(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", result.Steps)
	}
	// Each continue step adds the assistant turn and a user nudge.
	if len(completer.turnCount) != 3 || completer.turnCount[0] != 1 || completer.turnCount[1] != 3 || completer.turnCount[2] != 5 {
		t.Fatalf("unexpected turn growth: %v", completer.turnCount)
	}
}

func TestAnalyzeEnforcesStepCeiling(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"action":"continue"}`,
		`{"action":"continue"}`,
		`{"action":"continue"}`,
		validFinal,
	}}
	a := agent.New(testKind(t), completer, 3, nil)

	_, err := a.Analyze(context.Background(), testInput())
	if err == nil {
		t.Fatal("expected failure at the step ceiling")
	}
	if !strings.Contains(err.Error(), "3 steps") {
		t.Fatalf("expected ceiling in error, got %v", err)
	}
	if completer.calls != 3 {
		t.Fatalf("expected exactly 3 completions, got %d", completer.calls)
	}
	if a.State() != agent.StateFailed {
		t.Fatalf("expected failed state, got %s", a.State())
	}
}

func TestAnalyzeRejectsMissingConfidence(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"action":"final","report":{"findings":[],"summary":"nothing notable"}}`,
	}}
	a := agent.New(testKind(t), completer, 4, nil)

	_, err := a.Analyze(context.Background(), testInput())
	if !errors.Is(err, services.ErrSchema) {
		t.Fatalf("expected schema error for missing confidence, got %v", err)
	}
}

func TestAnalyzeRejectsInvalidPayloads(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I think the transcript mentions Acme."},
		{"missing action", `{"thought":"hmm"}`},
		{"unknown action", `{"action":"pause"}`},
		{"final without report", `{"action":"final"}`},
		{"missing findings", `{"action":"final","report":{"summary":"s","confidence":"low"}}`},
		{"missing summary", `{"action":"final","report":{"findings":[],"confidence":"low"}}`},
		{"invalid confidence", `{"action":"final","report":{"findings":[],"summary":"s","confidence":"certain"}}`},
		{"finding missing subject", `{"action":"final","report":{"findings":[{"urgency":"LOW"}],"summary":"s","confidence":"low"}}`},
		{"finding invalid urgency", `{"action":"final","report":{"findings":[{"subject":"x","urgency":"SEVERE"}],"summary":"s","confidence":"low"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			completer := &scriptedCompleter{responses: []string{tc.response}}
			a := agent.New(testKind(t), completer, 4, nil)
			_, err := a.Analyze(context.Background(), testInput())
			if !errors.Is(err, services.ErrSchema) {
				t.Fatalf("expected schema error, got %v", err)
			}
		})
	}
}

func TestAnalyzeAcceptsEmptyFindings(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{
		`{"action":"final","report":{"findings":[],"summary":"nothing notable","confidence":"medium"}}`,
	}}
	a := agent.New(testKind(t), completer, 4, nil)

	result, err := a.Analyze(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(result.Report.Findings) != 0 {
		t.Fatalf("expected no findings, got %d", len(result.Report.Findings))
	}
}

func TestAnalyzeStripsCodeFences(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{"```json\n" + validFinal + "\n```"}}
	a := agent.New(testKind(t), completer, 4, nil)

	if _, err := a.Analyze(context.Background(), testInput()); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
}

func TestAnalyzeRequiresTranscript(t *testing.T) {
	a := agent.New(testKind(t), &scriptedCompleter{}, 4, nil)
	_, err := a.Analyze(context.Background(), agent.Input{Title: "no body"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyzeWrapsCompleterFailure(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("upstream down")}
	a := agent.New(testKind(t), completer, 4, nil)
	_, err := a.Analyze(context.Background(), testInput())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}
