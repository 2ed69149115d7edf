package agent

import (
	"errors"
	"fmt"
	"strings"
)

// InvalidRequestError marks malformed caller input. It is the only error
// class the boundary surfaces to callers; generation-side failures degrade
// into a valid AgentResponse instead.
type InvalidRequestError struct {
	Detail string
}

func (e *InvalidRequestError) Error() string {
	return e.Detail
}

// NewInvalidRequest creates an InvalidRequestError with a formatted detail.
func NewInvalidRequest(format string, args ...any) error {
	return &InvalidRequestError{Detail: fmt.Sprintf(format, args...)}
}

// IsInvalidRequest reports whether err is an InvalidRequestError.
func IsInvalidRequest(err error) bool {
	var invalid *InvalidRequestError
	return errors.As(err, &invalid)
}

// ValidationErrors is the full set of schema violations found in one
// generation attempt. All violations are reported together so a single
// correction prompt can address them all.
type ValidationErrors []string

func (v ValidationErrors) Error() string {
	return strings.Join(v, "; ")
}
