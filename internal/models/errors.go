package models

import "errors"

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state transition")
	ErrValidation           = errors.New("validation error")
	ErrConflict             = errors.New("conflicting concurrent update")
	ErrExhausted            = errors.New("retry attempts exhausted")
)
