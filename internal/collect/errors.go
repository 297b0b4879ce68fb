package collect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingArtifact is matched by every *MissingArtifactError.
var ErrMissingArtifact = errors.New("missing artifact")

// MissingArtifactError reports a required artifact kind that matched no file.
type MissingArtifactError struct {
	Recipe   string
	Kind     Kind
	Patterns []string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: no %s files matched %s", e.Recipe, e.Kind, strings.Join(e.Patterns, ", "))
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrMissingArtifact }
