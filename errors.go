package slicetone

import "errors"

var (
	// ErrInvalidArgument is wrapped by every error caused by the caller
	// breaking a precondition; such calls never change any state.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedData is wrapped by decoding errors: a field had an invalid
	// value or the stream ended early. Nothing partially decoded is returned.
	ErrMalformedData = errors.New("malformed data")

	// ErrWriterClosed is returned when a WavWriter is used after Close.
	ErrWriterClosed = errors.New("wav writer already closed")
)
