package repository

import (
	"context"
)

// LLMGenerator produces contract source and explanations from a chat model.
type LLMGenerator interface {
	// GenerateContract returns Solidity source for a natural-language request.
	GenerateContract(ctx context.Context, prompt string) (string, error)
	// ExplainContract returns a plain-language explanation of source.
	ExplainContract(ctx context.Context, source string) (string, error)
}
