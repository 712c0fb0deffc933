package worker_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"earshot/internal/dispatch"
	"earshot/internal/dispatch/signature"
	"earshot/internal/logging"
	"earshot/internal/stt"
	"earshot/internal/worker"
)

type stubFetcher struct {
	calls atomic.Int64
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string, destDir string) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(destDir, "source.webm")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type stubTranscoder struct {
	calls    atomic.Int64
	err      error
	wavBytes int
}

func (t *stubTranscoder) Transcode(_ context.Context, _, dest string) error {
	t.calls.Add(1)
	if t.err != nil {
		return t.err
	}
	size := t.wavBytes
	if size == 0 {
		size = 44 + 32000*5 // five seconds of audio
	}
	return os.WriteFile(dest, make([]byte, size), 0o644)
}

type stubBackend struct {
	calls  atomic.Int64
	err    error
	result stt.Result
}

func (b *stubBackend) Transcribe(_ context.Context, wavPath, _ string) (stt.Result, error) {
	b.calls.Add(1)
	if b.err != nil {
		return stt.Result{}, b.err
	}
	if _, err := os.Stat(wavPath); err != nil {
		return stt.Result{}, err
	}
	return b.result, nil
}

type fixture struct {
	fetcher    *stubFetcher
	transcoder *stubTranscoder
	backend    *stubBackend
	server     *worker.Server
	workDir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:    &stubFetcher{},
		transcoder: &stubTranscoder{},
		backend:    &stubBackend{result: stt.Result{Text: "transcribed words", Language: "en-US"}},
		workDir:    t.TempDir(),
	}
	extractor := worker.NewExtractor(f.fetcher, f.transcoder, f.backend, f.workDir, logging.NewNop())
	server, err := worker.NewServer("127.0.0.1:0", "test-secret", extractor, worker.NewMetrics(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	f.server = server
	return f
}

func (f *fixture) post(t *testing.T, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(body))
	if sign {
		req.Header.Set(signature.Header, signature.Sign("test-secret", body))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func extractBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dispatch.ExtractRequest{
		ResourceURL:  "https://example.com/watch?v=abc",
		LanguageHint: "en",
		Mode:         dispatch.ModePrerecorded,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return body
}

func TestExtractHappyPath(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, extractBody(t), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Text            string `json:"text"`
		Language        string `json:"language"`
		DurationSeconds int64  `json:"duration_seconds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text != "transcribed words" || resp.Language != "en-US" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.DurationSeconds != 5 {
		t.Fatalf("expected 5s duration from wav size, got %d", resp.DurationSeconds)
	}
}

func TestExtractCleansScratchDir(t *testing.T) {
	f := newFixture(t)
	if rec := f.post(t, extractBody(t), true); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	f.backend.err = errors.New("backend exploded")
	if rec := f.post(t, extractBody(t), true); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	entries, err := os.ReadDir(f.workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected scratch dirs removed, found %d entries", len(entries))
	}
}

func TestExtractRejectsMissingSignatureWithoutWork(t *testing.T) {
	f := newFixture(t)
	rec := f.post(t, extractBody(t), false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if f.fetcher.calls.Load() != 0 || f.transcoder.calls.Load() != 0 || f.backend.calls.Load() != 0 {
		t.Fatal("no pipeline stage may run for an unsigned request")
	}
}

func TestExtractRejectsTamperedBodyWithoutWork(t *testing.T) {
	f := newFixture(t)
	body := extractBody(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", bytes.NewReader(body))
	req.Header.Set(signature.Header, signature.Sign("test-secret", []byte("different body")))
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if f.fetcher.calls.Load() != 0 {
		t.Fatal("no pipeline stage may run for a tampered request")
	}
}

func TestExtractRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)
	body := []byte("{not json")
	rec := f.post(t, body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExtractRejectsMissingResourceURL(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"language_hint":"en","mode":"prerecorded"}`)
	rec := f.post(t, body, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if f.fetcher.calls.Load() != 0 {
		t.Fatal("invalid request must not reach the download stage")
	}
}

func TestExtractReportsFailedStage(t *testing.T) {
	tests := []struct {
		name  string
		wire  func(*fixture)
		stage string
	}{
		{"download", func(f *fixture) { f.fetcher.err = errors.New("yt-dlp died") }, "download"},
		{"transcode", func(f *fixture) { f.transcoder.err = errors.New("ffmpeg died") }, "transcode"},
		{"backend", func(f *fixture) { f.backend.err = errors.New("stt died") }, "backend"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.wire(f)
			rec := f.post(t, extractBody(t), true)
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", rec.Code)
			}
			var failure struct {
				Error string `json:"error"`
				Stage string `json:"stage"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &failure); err != nil {
				t.Fatalf("decode failure body: %v", err)
			}
			if failure.Stage != tc.stage {
				t.Fatalf("expected stage %q, got %q", tc.stage, failure.Stage)
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	if status["status"] != "ok" {
		t.Fatalf("unexpected health payload: %v", status)
	}
}
