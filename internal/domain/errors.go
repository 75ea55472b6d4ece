package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrBlankName       = errors.New("name must not be blank")
	ErrInvalidUsername = errors.New("invalid username")
	ErrDuplicateTaskID = errors.New("duplicate task id")
	ErrUnknownMutation = errors.New("unknown mutation kind")
)
