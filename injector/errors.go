package injector

import "github.com/pkg/errors"

// Error categories. Match them with errors.Is; the message of a returned
// error is the wrapped OS failure with its context.
var (
	ErrResolution    = errors.New("resolution error")
	ErrAccess        = errors.New("access error")
	ErrAllocation    = errors.New("allocation error")
	ErrWriteTooLarge = errors.New("write too large")
	ErrWrite         = errors.New("write error")
	ErrSpawn         = errors.New("spawn error")
	ErrJoin          = errors.New("join error")
	ErrSnapshot      = errors.New("snapshot error")
	ErrSemantic      = errors.New("remote call failed")

	// ErrHandleClosed is wrapped when a region or thread outlives its process handle.
	ErrHandleClosed = errors.New("process handle is closed")
)

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() error { return e.err }

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Cause() error { return e.err }

func withKind(kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}
