package models

import (
	"context"
)

// Provider defines the interface for LLM backends.
type Provider interface {
	// Generate sends a request to the model and returns the response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// GetModel returns the currently active model name.
	GetModel() string
}
