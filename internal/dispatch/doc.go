// Package dispatch sends extraction requests to the isolated worker over
// the signed HTTP protocol and retries transient failures with capped
// exponential backoff.
package dispatch
