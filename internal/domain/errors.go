package domain

import "errors"

var (
	ErrAlreadyOpen        = errors.New("position already open")
	ErrNoPosition         = errors.New("no open position")
	ErrInvalidPortion     = errors.New("close portion must be in (0, 1]")
	ErrInvalidOrder       = errors.New("invalid order parameters")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
