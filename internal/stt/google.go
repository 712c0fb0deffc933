package stt

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"

	"earshot/internal/services"
)

// Audio contract with the transcode stage: mono 16-bit PCM at 16 kHz.
const sampleRateHertz = 16000

// GoogleBackend transcribes audio through Google Cloud Speech-to-Text.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
type GoogleBackend struct {
	client               *speech.Client
	alternativeLanguages []string
}

// NewGoogleBackend dials the Speech API.
func NewGoogleBackend(ctx context.Context, alternativeLanguages []string) (*GoogleBackend, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "stt", "dial", "create speech client", err)
	}
	alts := make([]string, 0, len(alternativeLanguages))
	for _, lang := range alternativeLanguages {
		if lang = strings.TrimSpace(lang); lang != "" {
			alts = append(alts, lang)
		}
	}
	return &GoogleBackend{client: client, alternativeLanguages: alts}, nil
}

// Close releases the underlying API connection.
func (b *GoogleBackend) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Transcribe runs a long-running recognition over the WAV file and joins the
// result segments in order.
func (b *GoogleBackend) Transcribe(ctx context.Context, wavPath, languageHint string) (Result, error) {
	var empty Result
	audio, err := os.ReadFile(wavPath)
	if err != nil {
		return empty, services.Wrap(services.ErrExternalTool, "stt", "transcribe", "read audio", err)
	}
	if len(audio) == 0 {
		return empty, services.Wrap(services.ErrValidation, "stt", "transcribe", "empty audio file", nil)
	}
	languageHint = strings.TrimSpace(languageHint)
	if languageHint == "" {
		languageHint = "en"
	}

	op, err := b.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            sampleRateHertz,
			AudioChannelCount:          1,
			LanguageCode:               languageHint,
			AlternativeLanguageCodes:   b.alternativeLanguages,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "stt", "transcribe", "start recognition", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return empty, services.Wrap(services.ErrTransient, "stt", "transcribe", "recognition failed", err)
	}

	var (
		segments []string
		language string
	)
	for _, result := range resp.GetResults() {
		alternatives := result.GetAlternatives()
		if len(alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(alternatives[0].GetTranscript()); text != "" {
			segments = append(segments, text)
		}
		if language == "" {
			language = result.GetLanguageCode()
		}
	}
	if len(segments) == 0 {
		return empty, fmt.Errorf("stt: transcribe: backend returned no speech segments")
	}
	return Result{Text: strings.Join(segments, " "), Language: language}, nil
}
