package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedNodeKind is returned when a tree contains a node that is
	// not one of the kinds declared in this package.
	ErrUnsupportedNodeKind = errors.New("unsupported node kind")

	// ErrPathResolution is returned when a Path does not resolve against a
	// tree.
	ErrPathResolution = errors.New("path does not resolve")
)

// Unsupported returns an ErrUnsupportedNodeKind error naming n's Go type.
func Unsupported(n any) error {
	return fmt.Errorf("%w: %T", ErrUnsupportedNodeKind, n)
}

// PathError reports the step at which a Path failed to resolve.
type PathError struct {
	Path   Path
	Step   int // index of the failing step
	Reason string
}

func (e *PathError) Error() string {
	if e.Step < e.Path.Len() {
		return fmt.Sprintf("%v: %s at step %d (%v): %s",
			ErrPathResolution, e.Path, e.Step, e.Path.At(e.Step), e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrPathResolution, e.Path, e.Reason)
}

func (e *PathError) Unwrap() error { return ErrPathResolution }
