package model

import (
	"errors"
	"fmt"
)

// ConfigurationError marks a malformed genome, representation mismatch, or
// invalid evaluation setup. It is always surfaced at construction time and
// never recovered.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Msg
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ErrDiverged marks numeric instability during a fitness evaluation. The
// evaluator recovers it locally as a +Inf fitness; it never reaches the
// search loop.
var ErrDiverged = errors.New("training diverged")
