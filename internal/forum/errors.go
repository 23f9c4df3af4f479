package forum

import "github.com/pkg/errors"

// Sentinel errors for the storage contract. Callers classify with errors.Is;
// anything that does not match one of these is an upstream driver failure and
// is propagated unchanged.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrConflictingState = errors.New("conflicting state")
)

// NotFoundf wraps ErrNotFound with the entity kind and id that was missing.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// InvalidArgumentf wraps ErrInvalidArgument naming the offending parameter.
func InvalidArgumentf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}
