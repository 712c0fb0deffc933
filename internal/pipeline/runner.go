package pipeline

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"earshot/internal/agent"
	"earshot/internal/config"
	"earshot/internal/dispatch"
	"earshot/internal/logging"
	"earshot/internal/notify"
	"earshot/internal/queue"
	"earshot/internal/services"
)

const watchURLPrefix = "https://www.youtube.com/watch?v="

// Scanner lists recent catalog entries as normalized items.
type Scanner interface {
	Fetch(ctx context.Context, limit int) ([]queue.Item, error)
}

// Dispatcher sends an extraction request to the worker.
type Dispatcher interface {
	Extract(ctx context.Context, req dispatch.ExtractRequest) (dispatch.ExtractResponse, error)
}

// Analyzer runs one analysis kind over a transcript.
type Analyzer interface {
	Kind() string
	Analyze(ctx context.Context, input agent.Input) (agent.Result, error)
}

// Summary reports what one batch did.
type Summary struct {
	Discovered int
	Processed  int
	Succeeded  int
	Failed     int
	Notified   int
	Errors     []string
}

// Runner owns the batch loop. All collaborators are injected.
type Runner struct {
	cfg        *config.Config
	store      *queue.Store
	scanner    Scanner
	dispatcher Dispatcher
	agents     []Analyzer
	notifier   notify.Service
	logger     *slog.Logger
}

// NewRunner wires a batch runner from its collaborators.
func NewRunner(cfg *config.Config, store *queue.Store, scanner Scanner, dispatcher Dispatcher, agents []Analyzer, notifier notify.Service, logger *slog.Logger) *Runner {
	if notifier == nil {
		notifier = notify.NewService(config.Notifications{})
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		store:      store,
		scanner:    scanner,
		dispatcher: dispatcher,
		agents:     agents,
		notifier:   notifier,
		logger:     logger.With(logging.String(logging.FieldComponent, "pipeline")),
	}
}

// RunBatch executes one full discovery-to-notification pass. Only one
// batch may run per data directory at a time; overlapping runs fail fast.
func (r *Runner) RunBatch(ctx context.Context) (Summary, error) {
	var summary Summary

	lock := flock.New(r.cfg.RunLockPath())
	acquired, err := lock.TryLock()
	if err != nil {
		return summary, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "acquire run lock", err)
	}
	if !acquired {
		return summary, services.Wrap(services.ErrConfiguration, "pipeline", "lock", "another run holds the lock", nil)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			r.logger.Warn("release run lock failed", logging.Error(unlockErr))
		}
	}()

	started := time.Now()
	r.logger.Info("batch started")

	// Items stranded in processing by a crashed run are requeued before
	// scanning. Safe under the run lock: no other batch holds claims.
	if reset, err := r.store.ResetStuckProcessing(ctx); err != nil {
		r.logger.Warn("reset stuck items failed", logging.Error(err))
	} else if reset > 0 {
		r.logger.Info("requeued stranded items", logging.Int64("count", reset))
	}

	// A dead catalog does not abort the run: queued leftovers from earlier
	// runs still get processed, and the error rides along with the summary.
	var runErr error
	if err := r.discover(ctx, &summary); err != nil {
		runErr = err
		summary.Errors = append(summary.Errors, fmt.Sprintf("catalog scan: %v", err))
		r.logger.Error("catalog scan failed", logging.Error(err))
		r.notifyError(ctx, err, "catalog scan")
	}

	queued, err := r.store.ItemsByStatus(ctx, queue.StatusQueued)
	if err != nil {
		return summary, err
	}
	for _, item := range queued {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		r.processItem(ctx, item, &summary)
	}

	if summary.Processed > 0 {
		if err := r.notifier.NotifyRunCompleted(ctx, summary.Succeeded, summary.Failed, time.Since(started)); err != nil {
			r.logger.Warn("run-completed notification failed", logging.Error(err))
		}
	}
	r.logger.Info("batch finished",
		logging.Int64("discovered", int64(summary.Discovered)),
		logging.Int64("succeeded", int64(summary.Succeeded)),
		logging.Int64("failed", int64(summary.Failed)),
		logging.Int64("notified", int64(summary.Notified)))
	return summary, runErr
}

func (r *Runner) discover(ctx context.Context, summary *Summary) error {
	items, err := r.scanner.Fetch(ctx, r.cfg.Catalog.FetchLimit)
	if err != nil {
		return err
	}
	for _, item := range items {
		inserted, err := r.store.Upsert(ctx, item)
		if err != nil {
			return err
		}
		if inserted {
			summary.Discovered++
			r.logger.Info("item discovered",
				logging.String("external_id", item.ExternalID),
				logging.String("title", item.Title))
		}
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, item *queue.Item, summary *Summary) {
	won, err := r.store.Claim(ctx, item.ID)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("claim item %d: %v", item.ID, err))
		return
	}
	if !won {
		// Another runner got there first; not an error.
		return
	}
	summary.Processed++

	itemCtx := services.WithItemID(ctx, item.ID)
	itemCtx = services.WithRequestID(itemCtx, uuid.NewString())
	logger := logging.WithContext(itemCtx, r.logger).With(
		logging.String("external_id", item.ExternalID))
	logger.Info("processing item", logging.String("title", item.Title))

	resp, err := r.dispatcher.Extract(itemCtx, dispatch.ExtractRequest{
		ResourceURL: watchURLPrefix + item.ExternalID,
		Mode:        dispatch.ModePrerecorded,
	})
	if err != nil {
		r.failItem(itemCtx, item, summary, "extraction", err)
		return
	}
	if err := r.store.SaveTranscript(itemCtx, item.ID, resp.Transcript, resp.Language); err != nil {
		r.failItem(itemCtx, item, summary, "persist transcript", err)
		return
	}
	if err := r.store.MarkSucceeded(itemCtx, item.ID); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("mark item %d succeeded: %v", item.ID, err))
		return
	}
	summary.Succeeded++

	r.analyzeItem(itemCtx, item, resp, summary, logger)
}

func (r *Runner) analyzeItem(ctx context.Context, item *queue.Item, resp dispatch.ExtractResponse, summary *Summary, logger *slog.Logger) {
	input := agent.Input{
		Title:       item.Title,
		Transcript:  resp.Transcript,
		Language:    resp.Language,
		PublishedAt: item.PublishedAt,
	}
	for _, analyzer := range r.agents {
		result, err := analyzer.Analyze(ctx, input)
		if err != nil {
			// Analysis failures never undo a successful extraction.
			summary.Errors = append(summary.Errors, fmt.Sprintf("analyze item %d (%s): %v", item.ID, analyzer.Kind(), err))
			logger.Error("analysis failed",
				logging.String(logging.FieldAgentKind, analyzer.Kind()),
				logging.Error(err))
			continue
		}
		record := queue.AnalysisRecord{
			ItemID:     item.ID,
			AgentKind:  analyzer.Kind(),
			Findings:   result.Report.Findings,
			Summary:    result.Report.Summary,
			Confidence: result.Report.Confidence,
			RawOutput:  result.Raw,
		}
		if err := r.store.UpsertAnalysis(ctx, record); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("persist analysis for item %d (%s): %v", item.ID, analyzer.Kind(), err))
			continue
		}

		high := queue.FilterUrgency(result.Report.Findings, queue.UrgencyHigh)
		if len(high) == 0 {
			continue
		}
		if err := r.notifier.NotifyFindings(ctx, item.Title, analyzer.Kind(), high); err != nil {
			logger.Warn("findings notification failed", logging.Error(err))
			continue
		}
		summary.Notified++
	}
}

func (r *Runner) failItem(ctx context.Context, item *queue.Item, summary *Summary, stage string, cause error) {
	summary.Failed++
	reason := fmt.Sprintf("%s: %v", stage, cause)
	summary.Errors = append(summary.Errors, fmt.Sprintf("item %d: %s", item.ID, reason))
	r.logger.Error("item failed",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldStage, stage),
		logging.Error(cause))
	if err := r.store.MarkFailed(ctx, item.ID, reason); err != nil {
		r.logger.Error("mark item failed errored",
			logging.Int64(logging.FieldItemID, item.ID),
			logging.Error(err))
	}
	r.notifyError(ctx, cause, fmt.Sprintf("item %d %s", item.ID, stage))
}

func (r *Runner) notifyError(ctx context.Context, err error, label string) {
	if notifyErr := r.notifier.NotifyError(ctx, err, label); notifyErr != nil {
		r.logger.Warn("error notification failed", logging.Error(notifyErr))
	}
}
