// Package notify pushes alerts through ntfy. When no topic is configured
// a noop implementation swallows every call so the pipeline never depends
// on notification delivery.
package notify
