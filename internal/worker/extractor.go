package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"earshot/internal/dispatch"
	"earshot/internal/logging"
	"earshot/internal/services"
	"earshot/internal/stt"
)

// Pipeline stage names reported on failure.
const (
	StageDownload  = "download"
	StageTranscode = "transcode"
	StageBackend   = "backend"
)

// WAV header plus mono 16-bit PCM at 16 kHz.
const (
	wavHeaderBytes    = 44
	wavBytesPerSecond = 16000 * 2
)

// stageError carries the failed stage alongside the underlying error.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// FailedStage extracts the stage name from an extraction error, if any.
func FailedStage(err error) string {
	var se *stageError
	if errors.As(err, &se) {
		return se.stage
	}
	return ""
}

// Extractor runs the download, transcode, and transcription stages for one
// request. Each run gets its own scratch directory under workDir which is
// removed before Extract returns, success or not.
type Extractor struct {
	fetcher    Fetcher
	transcoder Transcoder
	backend    stt.Backend
	workDir    string
	logger     *slog.Logger
}

// NewExtractor wires the three stages together. An empty workDir uses the
// system temp directory.
func NewExtractor(fetcher Fetcher, transcoder Transcoder, backend stt.Backend, workDir string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{
		fetcher:    fetcher,
		transcoder: transcoder,
		backend:    backend,
		workDir:    workDir,
		logger:     logger.With(logging.String(logging.FieldComponent, "extractor")),
	}
}

// Extract produces a transcript for the requested resource.
func (e *Extractor) Extract(ctx context.Context, req dispatch.ExtractRequest) (dispatch.ExtractResponse, error) {
	var empty dispatch.ExtractResponse
	scratch, err := os.MkdirTemp(e.workDir, "extract-*")
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "extractor", "workdir", "create scratch dir", err)
	}
	defer func() {
		if removeErr := os.RemoveAll(scratch); removeErr != nil {
			e.logger.Warn("scratch dir cleanup failed",
				logging.String("path", scratch), logging.Error(removeErr))
		}
	}()

	logger := e.logger.With(logging.String("resource_url", req.ResourceURL))
	logger.Info("extraction started", logging.String("mode", req.Mode))

	source, err := e.fetcher.Fetch(ctx, req.ResourceURL, scratch)
	if err != nil {
		return empty, &stageError{stage: StageDownload, err: err}
	}

	wavPath := filepath.Join(scratch, "audio.wav")
	if err := e.transcoder.Transcode(ctx, source, wavPath); err != nil {
		return empty, &stageError{stage: StageTranscode, err: err}
	}

	result, err := e.backend.Transcribe(ctx, wavPath, req.LanguageHint)
	if err != nil {
		return empty, &stageError{stage: StageBackend, err: err}
	}

	duration := wavDurationSecs(wavPath)
	logger.Info("extraction finished",
		logging.String("language", result.Language),
		logging.Int64("duration_secs", duration))
	return dispatch.ExtractResponse{
		Transcript:   result.Text,
		Language:     result.Language,
		DurationSecs: duration,
	}, nil
}

// wavDurationSecs derives the audio length from the file size. The format
// is fixed by the transcode stage, so byte math is enough.
func wavDurationSecs(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	payload := info.Size() - wavHeaderBytes
	if payload <= 0 {
		return 0
	}
	return payload / wavBytesPerSecond
}
