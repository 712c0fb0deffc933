// Package pipeline drives one discovery-to-notification batch: scan the
// catalog, enqueue new items, and walk each queued item through extraction,
// analysis, and alerting. Items are processed strictly one at a time and a
// failure in one item never stops the batch.
package pipeline
