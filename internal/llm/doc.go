// Package llm wraps the OpenRouter chat completion API for JSON-only
// exchanges. Responses are retried on rate limits and server errors and
// decoded tolerantly (code fences and prose around the JSON are stripped).
package llm
