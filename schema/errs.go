package schema

import "errors"

var (
	ErrUnknownType = errors.New("unknown type")
	ErrInvalidType = errors.New("invalid type")
)
