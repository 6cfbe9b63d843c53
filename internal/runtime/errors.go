package runtime

import "errors"

// Kind discriminates the two error shapes the adapter ever surfaces,
// per the container runtime adapter contract: NotFound vs RuntimeError.
type Kind int

const (
	KindRuntimeError Kind = iota
	KindNotFound
)

// Error wraps an underlying runtime failure with a stable Kind so callers
// can branch without depending on engine-specific error types.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindNotFound
	}
	return false
}

func notFound(op string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

func runtimeErr(op string, err error) error {
	return &Error{Kind: KindRuntimeError, Op: op, Err: err}
}
