package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnsupportedDialect = errors.New("unsupported dialect")
	ErrUnknownField       = errors.New("unknown overlay field")
	ErrExtractionRunning  = errors.New("extraction already running for database")
)
