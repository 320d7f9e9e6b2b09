package fileops

import "errors"

var (
	// ErrFileTooLarge reports a file_read target whose size exceeds the
	// 128 MiB request-buffer ceiling.
	ErrFileTooLarge = errors.New("file too large")

	// ErrIO is the sentinel every *IOError matches under errors.Is. The
	// *IOError's own message already carries the "<op>: <errno message>"
	// text the wire error detail requires, so callers report Error()
	// directly rather than formatting further.
	ErrIO = errors.New("io error")
)
