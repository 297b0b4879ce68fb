package plan

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform is matched by every *UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports an (os, compiler) pair that a recipe's
// rule table does not declare.
type UnsupportedPlatformError struct {
	Recipe   string
	OS       string
	Compiler string
	Reason   string
}

func (e *UnsupportedPlatformError) Error() string {
	msg := fmt.Sprintf("%s: unsupported platform %s/%s", e.Recipe, e.OS, e.Compiler)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}
