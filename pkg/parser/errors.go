package parser

import "errors"

var (
	// ErrUnsupportedFormat is returned when the input format is not supported.
	ErrUnsupportedFormat = errors.New("parser: unsupported format")

	// ErrMissingColumn is returned when neither an activities column nor a
	// case/activity column pair is present.
	ErrMissingColumn = errors.New("parser: required column missing")

	// ErrContextCanceled is returned when the context is canceled.
	ErrContextCanceled = errors.New("parser: context canceled")
)
