package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"earshot/internal/agent"
	"earshot/internal/dispatch"
	"earshot/internal/pipeline"
	"earshot/internal/queue"
	"earshot/internal/services"
	"earshot/internal/testsupport"
)

type fakeScanner struct {
	items []queue.Item
	err   error
}

func (f *fakeScanner) Fetch(context.Context, int) ([]queue.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeDispatcher struct {
	mu          sync.Mutex
	transcripts map[string]string // external id -> transcript
	failing     map[string]error  // external id -> error
	calls       []string
}

func (f *fakeDispatcher) Extract(_ context.Context, req dispatch.ExtractRequest) (dispatch.ExtractResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := strings.TrimPrefix(req.ResourceURL, "https://www.youtube.com/watch?v=")
	f.calls = append(f.calls, id)
	if err, ok := f.failing[id]; ok {
		return dispatch.ExtractResponse{}, err
	}
	body, ok := f.transcripts[id]
	if !ok {
		return dispatch.ExtractResponse{}, errors.New("unexpected resource " + id)
	}
	return dispatch.ExtractResponse{Transcript: body, Language: "en", DurationSecs: 60}, nil
}

type fakeAnalyzer struct {
	kind    string
	reports map[string]agent.Report // transcript -> report
	err     error
}

func (f *fakeAnalyzer) Kind() string { return f.kind }

func (f *fakeAnalyzer) Analyze(_ context.Context, input agent.Input) (agent.Result, error) {
	if f.err != nil {
		return agent.Result{}, f.err
	}
	report, ok := f.reports[input.Transcript]
	if !ok {
		return agent.Result{}, errors.New("no scripted report for transcript")
	}
	return agent.Result{Report: report, Steps: 1, Raw: "{}"}, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	findings  [][]queue.Finding
	errors    []string
	completed int
}

func (f *fakeNotifier) NotifyFindings(_ context.Context, _, _ string, findings []queue.Finding) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findings = append(f.findings, findings)
	return nil
}

func (f *fakeNotifier) NotifyRunCompleted(_ context.Context, _, _ int, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed++
	return nil
}

func (f *fakeNotifier) NotifyError(_ context.Context, _ error, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, label)
	return nil
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

func highFinding(subject string) queue.Finding {
	return queue.Finding{Subject: subject, Urgency: queue.UrgencyHigh, Quote: "quoted"}
}

func lowFinding(subject string) queue.Finding {
	return queue.Finding{Subject: subject, Urgency: queue.UrgencyLow}
}

func TestRunBatchEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	now := time.Now().UTC()
	scanner := &fakeScanner{items: []queue.Item{
		{ExternalID: "vid-a", Title: "Alpha", PublishedAt: now},
		{ExternalID: "vid-b", Title: "Bravo", PublishedAt: now},
		{ExternalID: "vid-c", Title: "Charlie", PublishedAt: now},
	}}
	dispatcher := &fakeDispatcher{
		transcripts: map[string]string{
			"vid-a": "alpha transcript mentioning Acme",
			"vid-c": "charlie transcript with nothing urgent",
		},
		failing: map[string]error{
			"vid-b": services.Wrap(services.ErrTransient, "dispatch", "extract", "failed after 3 attempts", errors.New("http 503")),
		},
	}
	analyzer := &fakeAnalyzer{
		kind: agent.MentionScoutKind,
		reports: map[string]agent.Report{
			"alpha transcript mentioning Acme": {
				Findings:   []queue.Finding{highFinding("Acme Corp"), lowFinding("Side Topic")},
				Summary:    "one urgent mention",
				Confidence: agent.ConfidenceHigh,
			},
			"charlie transcript with nothing urgent": {
				Findings:   []queue.Finding{lowFinding("Routine Corp")},
				Summary:    "routine mentions only",
				Confidence: agent.ConfidenceMedium,
			},
		},
	}
	notifier := &fakeNotifier{}

	runner := pipeline.NewRunner(cfg, store, scanner, dispatcher, []pipeline.Analyzer{analyzer}, notifier, nil)
	summary, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}

	if summary.Discovered != 3 {
		t.Fatalf("expected 3 discovered, got %d", summary.Discovered)
	}
	if summary.Processed != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Notified != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", summary.Notified)
	}

	// The failed item carries the failure reason and stays retryable.
	itemB, err := store.GetByExternalID(context.Background(), "vid-b")
	if err != nil {
		t.Fatalf("get item b: %v", err)
	}
	if itemB.Status != queue.StatusFailed {
		t.Fatalf("expected item b failed, got %s", itemB.Status)
	}
	if strings.TrimSpace(itemB.Notes) == "" {
		t.Fatal("expected failure reason recorded on item b")
	}

	// Transcripts and analyses exist only for the succeeded items.
	for _, externalID := range []string{"vid-a", "vid-c"} {
		item, err := store.GetByExternalID(context.Background(), externalID)
		if err != nil {
			t.Fatalf("get %s: %v", externalID, err)
		}
		if item.Status != queue.StatusSucceeded {
			t.Fatalf("expected %s succeeded, got %s", externalID, item.Status)
		}
		transcript, err := store.TranscriptFor(context.Background(), item.ID)
		if err != nil {
			t.Fatalf("transcript for %s: %v", externalID, err)
		}
		if transcript == nil {
			t.Fatalf("expected transcript for %s", externalID)
		}
		record, err := store.AnalysisFor(context.Background(), item.ID, agent.MentionScoutKind)
		if err != nil {
			t.Fatalf("analysis for %s: %v", externalID, err)
		}
		if record == nil {
			t.Fatalf("expected analysis record for %s", externalID)
		}
	}
	if itemBRecord, err := store.AnalysisFor(context.Background(), itemB.ID, agent.MentionScoutKind); err != nil {
		t.Fatalf("analysis for item b: %v", err)
	} else if itemBRecord != nil {
		t.Fatal("failed item must not have an analysis record")
	}

	// The alert carries only the high urgency findings.
	if len(notifier.findings) != 1 {
		t.Fatalf("expected 1 findings alert, got %d", len(notifier.findings))
	}
	sent := notifier.findings[0]
	if len(sent) != 1 || sent[0].Subject != "Acme Corp" || sent[0].Urgency != queue.UrgencyHigh {
		t.Fatalf("unexpected alert findings: %+v", sent)
	}
	if notifier.completed != 1 {
		t.Fatalf("expected 1 run-completed notification, got %d", notifier.completed)
	}
}

func TestRunBatchIsIdempotentAcrossRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	scanner := &fakeScanner{items: []queue.Item{
		{ExternalID: "vid-a", Title: "Alpha", PublishedAt: time.Now().UTC()},
	}}
	dispatcher := &fakeDispatcher{transcripts: map[string]string{"vid-a": "alpha transcript"}}
	analyzer := &fakeAnalyzer{
		kind: agent.MentionScoutKind,
		reports: map[string]agent.Report{
			"alpha transcript": {Findings: nil, Summary: "quiet", Confidence: agent.ConfidenceLow},
		},
	}
	runner := pipeline.NewRunner(cfg, store, scanner, dispatcher, []pipeline.Analyzer{analyzer}, &fakeNotifier{}, nil)

	first, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("first RunBatch: %v", err)
	}
	if first.Discovered != 1 || first.Succeeded != 1 {
		t.Fatalf("unexpected first summary: %+v", first)
	}

	second, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("second RunBatch: %v", err)
	}
	if second.Discovered != 0 || second.Processed != 0 {
		t.Fatalf("second run must not rediscover or reprocess: %+v", second)
	}
	if got := len(dispatcher.calls); got != 1 {
		t.Fatalf("expected 1 extraction across both runs, got %d", got)
	}
}

func TestRunBatchProcessesLeftoversWhenCatalogUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	leftover := testsupport.SeedItem(t, store, "vid-a", "Alpha")

	scanner := &fakeScanner{err: services.Wrap(services.ErrUnavailable, "catalog", "list", "", errors.New("quota"))}
	dispatcher := &fakeDispatcher{transcripts: map[string]string{"vid-a": "alpha transcript"}}
	notifier := &fakeNotifier{}
	runner := pipeline.NewRunner(cfg, store, scanner, dispatcher, nil, notifier, nil)

	summary, err := runner.RunBatch(context.Background())
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected catalog-unavailable error, got %v", err)
	}
	if len(notifier.errors) != 1 {
		t.Fatalf("expected 1 error notification, got %d", len(notifier.errors))
	}
	if summary.Discovered != 0 || summary.Processed != 1 || summary.Succeeded != 1 {
		t.Fatalf("leftover item must still be processed: %+v", summary)
	}
	if got := len(dispatcher.calls); got != 1 {
		t.Fatalf("expected 1 extraction, got %d", got)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected the catalog failure recorded, got %v", summary.Errors)
	}

	item, err := store.GetByExternalID(context.Background(), "vid-a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.ID != leftover.ID || item.Status != queue.StatusSucceeded {
		t.Fatalf("expected leftover succeeded, got %s", item.Status)
	}
}

func TestRunBatchRecoversStrandedProcessingItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stranded := testsupport.SeedItem(t, store, "vid-a", "Alpha")
	if won, err := store.Claim(context.Background(), stranded.ID); err != nil || !won {
		t.Fatalf("pre-claim: won=%v err=%v", won, err)
	}

	dispatcher := &fakeDispatcher{transcripts: map[string]string{"vid-a": "alpha transcript"}}
	runner := pipeline.NewRunner(cfg, store, &fakeScanner{}, dispatcher, nil, &fakeNotifier{}, nil)

	summary, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if summary.Processed != 1 || summary.Succeeded != 1 {
		t.Fatalf("expected stranded item requeued and processed: %+v", summary)
	}

	item, err := store.GetByExternalID(context.Background(), "vid-a")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Status != queue.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", item.Status)
	}
}

func TestRunBatchRefusesOverlappingRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	lock := flock.New(cfg.RunLockPath())
	acquired, err := lock.TryLock()
	if err != nil || !acquired {
		t.Fatalf("pre-acquire lock: acquired=%v err=%v", acquired, err)
	}
	defer lock.Unlock()

	runner := pipeline.NewRunner(cfg, store, &fakeScanner{}, &fakeDispatcher{}, nil, &fakeNotifier{}, nil)
	if _, err := runner.RunBatch(context.Background()); err == nil {
		t.Fatal("expected overlapping run to fail")
	}
}

func TestRunBatchRetriedItemIsReprocessed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	scanner := &fakeScanner{items: []queue.Item{
		{ExternalID: "vid-b", Title: "Bravo", PublishedAt: time.Now().UTC()},
	}}
	dispatcher := &fakeDispatcher{
		transcripts: map[string]string{"vid-b": "bravo transcript"},
		failing:     map[string]error{"vid-b": errors.New("worker down")},
	}
	analyzer := &fakeAnalyzer{
		kind: agent.MentionScoutKind,
		reports: map[string]agent.Report{
			"bravo transcript": {Findings: nil, Summary: "quiet", Confidence: agent.ConfidenceLow},
		},
	}
	runner := pipeline.NewRunner(cfg, store, scanner, dispatcher, []pipeline.Analyzer{analyzer}, &fakeNotifier{}, nil)

	if summary, err := runner.RunBatch(context.Background()); err != nil || summary.Failed != 1 {
		t.Fatalf("first run: summary=%+v err=%v", summary, err)
	}

	item, err := store.GetByExternalID(context.Background(), "vid-b")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if _, err := store.RetryFailed(context.Background(), item.ID); err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	dispatcher.mu.Lock()
	delete(dispatcher.failing, "vid-b")
	dispatcher.mu.Unlock()

	summary, err := runner.RunBatch(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Succeeded != 1 {
		t.Fatalf("expected retried item to succeed, got %+v", summary)
	}
	item, err = store.GetByExternalID(context.Background(), "vid-b")
	if err != nil {
		t.Fatalf("get item after retry: %v", err)
	}
	if item.Status != queue.StatusSucceeded {
		t.Fatalf("expected succeeded after retry, got %s", item.Status)
	}
	if strings.TrimSpace(item.Notes) != "" {
		t.Fatalf("expected notes cleared after success, got %q", item.Notes)
	}
}
