package core

import "context"

// Generator produces structured text from a prompt.
// Implementations must be safe for concurrent use.
type Generator interface {
	// Generate executes a single upstream call. It does not retry.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider identifier used in errors and metrics.
	Name() string
}
