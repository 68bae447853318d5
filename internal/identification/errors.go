package identification

import (
	"errors"
	"fmt"

	"komf/internal/provider"
)

// ErrInvalidRequest marks requests rejected before any job is launched.
var ErrInvalidRequest = errors.New("invalid request")

// ProviderError wraps a failed provider call.
type ProviderError struct {
	Provider provider.Name
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies the failure for callers mapping errors to outcomes.
func (e *ProviderError) ErrorKind() string {
	return "provider"
}

func providerError(name provider.Name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: name, Op: op, Err: err}
}
