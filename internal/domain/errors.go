package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidDetails = errors.New("invalid opportunity details")
	ErrWSDisconnect   = errors.New("websocket disconnected")
)
