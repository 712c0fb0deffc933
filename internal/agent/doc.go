// Package agent runs bounded multi-step reasoning over transcripts. Each
// step is a JSON envelope from the model: either a request to keep thinking
// or a final report. Reports are validated against the output contract
// before anything downstream sees them.
package agent
