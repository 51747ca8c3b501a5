package cache

import (
	"errors"
	"fmt"
)

// ErrArity is returned when an executor is called with a number of explicit
// arguments other than its lambda declares.
var ErrArity = errors.New("wrong number of arguments")

// CompileError reports that the backend rejected a rewritten tree. Failed
// builds are not cached; the next call with the same key compiles again.
type CompileError struct {
	Key string
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cache: compile %s: %v", e.Key, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }
