package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidEvent    = errors.New("invalid event format")
)
