package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidReserves   = errors.New("invalid pool reserves")
	ErrInvalidPriceRange = errors.New("target price outside valid range")
	ErrDomain            = errors.New("value outside function domain")
	ErrSequenceGap       = errors.New("order book sequence gap")
	ErrSigningFailed     = errors.New("signing failed")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
