package contract

import (
	"errors"
	"fmt"
	"strings"
)

// ViolationError reports a result that fails schema validation even after
// normalization. It is terminal for the call attempt that produced it: the
// caller retries, escalates, or aborts — the result is never partially used.
type ViolationError struct {
	Contract   string   // "triage", "synthesis", or "draft"
	Violations []string // one entry per failed constraint
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%s contract violation: %s", e.Contract, strings.Join(e.Violations, "; "))
}

// IsViolation reports whether err is (or wraps) a contract violation, as
// opposed to a transport failure or malformed (non-JSON) completion text.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}
