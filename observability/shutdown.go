package observability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultShutdownTimeout bounds the final flush when a run ends.
const DefaultShutdownTimeout = 10 * time.Second

// Shutdown flushes pending telemetry and closes provider. It keeps the values
// of ctx but not its cancellation, so a run stopped by SIGINT still exports
// the spans it recorded. A non-positive timeout uses DefaultShutdownTimeout.
func Shutdown(ctx context.Context, provider Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	if err := provider.ForceFlush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if err := provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
