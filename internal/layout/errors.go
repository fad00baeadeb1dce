package layout

import (
	"errors"
	"fmt"

	"github.com/coreman2200/arcaluminis-layout/internal/render"
)

// Error kinds. Match with errors.Is.
var (
	// ErrConfigLoad is returned by Initialize and Reload when the settings
	// could not be loaded. It is never retried internally.
	ErrConfigLoad = errors.New("configuration load failed")
	// ErrLookup means an identifier does not map to a known device.
	ErrLookup = errors.New("device not found")
	// ErrValidation rejects a single operation: bad brightness, bitmap size
	// mismatch, out of bounds region.
	ErrValidation = render.ErrValidation
)

// Error carries the kind of failure plus the context it happened in.
type Error struct {
	Kind error  // one of ErrConfigLoad, ErrLookup, ErrValidation
	Op   string // operation, e.g. "resolve"
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	s := e.Op + ": " + e.Kind.Error()
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind, so errors.Is(err, ErrLookup) works whatever the
// cause chain holds.
func (e *Error) Is(target error) bool { return target == e.Kind }

func lookupError(op string, key DeviceKey) error {
	return &Error{Kind: ErrLookup, Op: op, Msg: "no device at " + key.String()}
}

func validationError(op string, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}
