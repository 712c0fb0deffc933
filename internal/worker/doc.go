// Package worker implements the isolated extraction service. It accepts
// signed extraction requests, downloads the resource, transcodes the audio
// to mono 16 kHz PCM, and hands it to a speech-to-text backend. All scratch
// files live in a per-request temp directory that is removed on every exit
// path.
package worker
