package ai

import (
	"context"
	"errors"

	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/m-mizutani/goerr/v2"
)

// callError maps a failed upstream call onto the port sentinels. Deadline
// errors become ErrTimeout, everything else ErrProviderError.
func callError(err error, msg string, opts ...goerr.Option) error {
	opts = append(opts, goerr.V("detail", err.Error()))
	if errors.Is(err, context.DeadlineExceeded) {
		return goerr.Wrap(port.ErrTimeout, msg, opts...)
	}
	return goerr.Wrap(port.ErrProviderError, msg, opts...)
}
