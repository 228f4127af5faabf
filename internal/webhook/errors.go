package webhook

import (
	"fmt"
)

// Op names a webhook operation, used in errors and metrics.
type Op string

const (
	OpColoring  Op = "coloring"
	OpComposite Op = "composite"
	OpPost      Op = "post"
	OpSchedule  Op = "schedule"
	OpAIDog     Op = "ai_dog"
)

// Error is returned for every transport or semantic failure of a webhook
// call. StatusCode is zero when the request never got a response.
type Error struct {
	Op         Op
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s request failed: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s request failed: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s request failed: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}
