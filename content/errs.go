package content

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrMultiplicityExceeded = errors.New("multiplicity exceeded")
	ErrMultiplicityViolated = errors.New("multiplicity violated")
	ErrGroupModeViolation   = errors.New("group mode violation")
	ErrValidationFailed     = errors.New("validation failed")
	ErrLocked               = errors.New("locked")
	ErrNoAccess             = errors.New("no access")
	ErrCorruptSnapshot      = errors.New("corrupt snapshot")
)
