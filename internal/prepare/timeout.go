package prepare

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/kapsel/pkg/requirement"
)

// DefaultCheckTimeout bounds a single provider check.
const DefaultCheckTimeout = 30 * time.Second

// withCheckTimeout creates a context with timeout for a provider check.
func withCheckTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError describes a check whose context ran out, or returns "" when
// the deadline was not hit.
func timeoutError(ctx context.Context, req *requirement.Requirement, timeout time.Duration) string {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ""
	}
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return fmt.Sprintf("Checking %s timed out after %s.\n  💡 Try: %s", req.Title(), timeout, timeoutSuggestion(req))
}

func timeoutSuggestion(req *requirement.Requirement) string {
	switch req.Kind() {
	case requirement.KindService:
		return fmt.Sprintf("Check that the %s server in %s is up and reachable from this machine", req.ServiceType(), req.EnvVar())
	case requirement.KindCondaEnv:
		return "Conda can be slow on large environments. Run with --check-timeout set higher"
	case requirement.KindDownload:
		return "Check your network connection and the download URL"
	}
	return "Run with --check-timeout set higher"
}
