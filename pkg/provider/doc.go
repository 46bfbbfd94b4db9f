// Package provider implements the upstream image-generation adapters
// (gemini, openai) behind a common Adapter contract, plus the Registry
// that resolves a provider name to a live instance with atomic,
// swap-only reloads.
package provider
