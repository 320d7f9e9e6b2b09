// Package errx wraps a package-level sentinel error with a formatted detail
// string, so callers can errors.Is against the sentinel while the message
// still carries the concrete failure.
package errx

import "fmt"

// Wrap returns an error reporting sentinel, with err's message appended.
// errors.Is(result, sentinel) and errors.Is(result, err) both hold.
func Wrap(sentinel, err error) error {
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With returns an error reporting sentinel, with format/args appended
// verbatim after it. format should start with its own separator (a space or
// ": ") since With does not add one. A %w verb in format wraps an
// additional error alongside sentinel.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
