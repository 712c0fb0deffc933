package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"earshot/internal/services"
)

// Fetcher downloads a remote resource into destDir and returns the path of
// the downloaded media file.
type Fetcher interface {
	Fetch(ctx context.Context, resourceURL, destDir string) (string, error)
}

// Transcoder converts downloaded media into mono 16 kHz 16-bit PCM WAV.
type Transcoder interface {
	Transcode(ctx context.Context, source, dest string) error
}

// YtDlpFetcher shells out to yt-dlp for the download stage.
type YtDlpFetcher struct {
	Binary  string
	Timeout time.Duration
}

// NewYtDlpFetcher builds a fetcher for the given binary path. An empty path
// falls back to yt-dlp on PATH.
func NewYtDlpFetcher(binary string, timeout time.Duration) *YtDlpFetcher {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	return &YtDlpFetcher{Binary: binary, Timeout: timeout}
}

func (f *YtDlpFetcher) Fetch(ctx context.Context, resourceURL, destDir string) (string, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	dest := filepath.Join(destDir, "source.%(ext)s")
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-f", "bestaudio/best",
		"-o", dest,
	}
	// Ask yt-dlp for the resolved filename so the caller does not have to
	// guess the extension.
	args = append(args, "--print", "after_move:filepath", "--no-simulate", resourceURL)
	cmd := exec.CommandContext(ctx, f.Binary, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "worker", "download",
			fmt.Sprintf("yt-dlp failed: %s", commandDetail(err)), err)
	}
	path := strings.TrimSpace(string(output))
	if path == "" {
		return "", services.Wrap(services.ErrExternalTool, "worker", "download", "yt-dlp reported no output file", nil)
	}
	return path, nil
}

// FFmpegTranscoder shells out to ffmpeg for the transcode stage.
type FFmpegTranscoder struct {
	Binary  string
	Timeout time.Duration
}

// NewFFmpegTranscoder builds a transcoder for the given binary path. An
// empty path falls back to ffmpeg on PATH.
func NewFFmpegTranscoder(binary string, timeout time.Duration) *FFmpegTranscoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegTranscoder{Binary: binary, Timeout: timeout}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, source, dest string) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	cmd := exec.CommandContext(ctx, t.Binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return services.Wrap(services.ErrExternalTool, "worker", "transcode",
			fmt.Sprintf("ffmpeg failed: %s", strings.TrimSpace(string(output))), err)
	}
	return nil
}

func commandDetail(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
