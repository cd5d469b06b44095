package sync

import "errors"

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrConflictNotFound = errors.New("conflict not found")
	ErrUnknownTable     = errors.New("unknown table")
	ErrInvalidOperation = errors.New("invalid operation")
)
