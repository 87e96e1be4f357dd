package store

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidPrefix = errors.New("invalid folio prefix")
	ErrEmptyFolio    = errors.New("folio is required")

	// ErrDuplicateSerial is returned when a client already has equipment with the serial.
	ErrDuplicateSerial = errors.New("serial already registered for client")
)
