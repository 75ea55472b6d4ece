package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound    = errors.New("not found")
	ErrPermanent   = errors.New("permanent delivery failure")
	ErrNoBoardOpen = errors.New("no board open")
)
