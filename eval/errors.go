package eval

import "github.com/pkg/errors"

var (
	// ErrUnboundParameter is returned by Compile when the body references a
	// parameter no enclosing lambda declares.
	ErrUnboundParameter = errors.New("unbound parameter")

	// ErrArity is returned when a program or nested lambda is called with
	// the wrong number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	ErrInvalidOperands = errors.New("invalid operands")
	ErrNotCallable     = errors.New("value is not callable")
	ErrNoMember        = errors.New("no such member")
	ErrDivideByZero    = errors.New("integer divide by zero")
	ErrNilTarget       = errors.New("nil target")
)
