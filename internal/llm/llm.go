// Package llm is the text-generation boundary of the pipeline. Steps that
// produce human-readable reasoning talk to a Generator; the rest of the
// system only sees the generated string and the model name that produced it.
package llm

import "context"

// Generator produces a completion for a system/user prompt pair.
type Generator interface {
	// Generate returns the model's reply text.
	Generate(ctx context.Context, system, user string) (string, error)
	// ModelName identifies the backing model for metric attribution.
	ModelName() string
}
