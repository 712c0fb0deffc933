// Package stt abstracts the speech-to-text backend used by the extraction
// worker. The worker hands a backend a mono 16 kHz WAV file and gets back a
// plain-text transcript.
package stt

import "context"

// Result is a completed transcription.
type Result struct {
	// Text is the full transcript with segments joined in order.
	Text string
	// Language is the BCP-47 code the backend detected, when available.
	Language string
}

// Backend turns prepared audio into a transcript.
type Backend interface {
	Transcribe(ctx context.Context, wavPath, languageHint string) (Result, error)
}
