package domain

import "errors"

// Activation errors
var (
	ErrInvalidConfig = errors.New("invalid presence config")
	ErrConnection    = errors.New("presence connection failed")
	ErrUpdate        = errors.New("presence update failed")
)

// Config errors
var (
	ErrConfigNotFound = errors.New("presence config not found")
	ErrNotConfigOwner = errors.New("presence config belongs to another user")
	ErrTooManyButtons = errors.New("at most 2 buttons are allowed")
	ErrInvalidButton  = errors.New("button needs a label and a url")
)
