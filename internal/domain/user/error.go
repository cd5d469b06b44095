package user

import "errors"

var (
	ErrNotFound     = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidAuth  = errors.New("invalid login or password")
	ErrLoginTaken   = errors.New("login already taken")
)
