package supervisor

import (
	"fmt"
	"strings"
)

// OrchestrationError is returned only when every downstream path for a
// query has been exhausted. It identifies the failing specialist and the
// providers that were attempted.
type OrchestrationError struct {
	// Specialist that could not produce a response.
	Specialist string

	// Providers attempted, in order.
	Providers []string

	// Err is the underlying failure.
	Err error
}

func (e *OrchestrationError) Error() string {
	if len(e.Providers) > 0 {
		return fmt.Sprintf("orchestration failed: specialist %q exhausted %d provider(s) [%s]: %v",
			e.Specialist, len(e.Providers), strings.Join(e.Providers, ", "), e.Err)
	}
	return fmt.Sprintf("orchestration failed: specialist %q: %v", e.Specialist, e.Err)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}
