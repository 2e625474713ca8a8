package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("user already exists with this email")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrStorage            = errors.New("storage operation failed")
	ErrForbidden          = errors.New("access forbidden")
)

// ValidationError carries the reason a piece of input was rejected. It matches
// ErrValidation through errors.Is.
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError is a uniqueness violation with a caller-facing reason. It
// matches ErrUserExists through errors.Is.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Is(target error) bool { return target == ErrUserExists }

// ErrEmailTaken is returned when an update moves a user onto another user's email.
var ErrEmailTaken error = &ConflictError{Reason: "Email already exists"}

// StorageError wraps a failed remote blob operation. It matches ErrStorage
// through errors.Is and unwraps to the transport cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return "storage " + e.Op + " failed"
	}
	return "storage " + e.Op + " failed: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }
