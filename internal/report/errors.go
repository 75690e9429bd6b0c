package report

import (
	"errors"
	"fmt"
)

// ErrNotFound means no report matched the given location and selector.
var ErrNotFound = errors.New("report: not found")

// MalformedError describes a report that violates the schema: a missing
// required field, a value outside its declared scale, or a duplicate
// metric name. Terminal for the load, never recovered from.
type MalformedError struct {
	Path   string
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("report: malformed: %s", e.Reason)
	}
	return fmt.Sprintf("report: malformed %q: %s", e.Path, e.Reason)
}

func malformed(path, format string, args ...any) error {
	return &MalformedError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
