package port

import "errors"

// Sentinel errors used across ports. Adapters wrap them with goerr to attach context.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrProviderError     = errors.New("provider error")
	ErrNoSearchResults   = errors.New("no search results")
	ErrModelLoad         = errors.New("embedding model failed to load")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrLengthMismatch    = errors.New("input length mismatch")
	ErrInvalidMetadata   = errors.New("invalid metadata")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrTimeout           = errors.New("timed out")
	ErrToolNotFound      = errors.New("tool not found")
	ErrUnknownModel      = errors.New("unknown model")
	ErrInvalidBackend    = errors.New("invalid backend")
)
