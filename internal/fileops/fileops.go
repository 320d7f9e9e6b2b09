// Package fileops implements the four filesystem operations the guest agent
// exposes over the host-socket: read, write, stat, and delete of a single
// path. It works entirely in raw bytes; the opaque-bytes text encoding
// (base64) is the caller's concern, applied at the envelope boundary.
package fileops

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
	"unicode"

	"golang.org/x/sys/unix"
)

// MaxFileSize is the request-buffer ceiling a file_read target must not
// exceed.
const MaxFileSize = 128 * 1024 * 1024

// IOError reports a failed filesystem syscall as "<op>: <detail>", matching
// the wire error taxonomy's IoError(op, detail) shape exactly in its
// Error() text.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return e.Op + ": " + errnoText(e.Err) }
func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) Is(target error) bool { return target == ErrIO }

// errnoText extracts the underlying errno's message and capitalizes its
// first letter, matching glibc strerror's text (init.c:517 logs strerror(errno)
// directly; Go's syscall.Errno.Error() carries the same words lowercased).
func errnoText(err error) string {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return capitalizeFirst(pe.Err.Error())
	}
	return capitalizeFirst(err.Error())
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Result is the response shape for file_stat.
type Result struct {
	Path    string
	Size    int64
	Mode    string // permission bits, lower 12 bits, formatted octal
	ModTime string // ISO-8601 UTC, second precision
	IsDir   bool
}

// Read opens path read-only and returns its full contents. Files larger
// than MaxFileSize are rejected without being read.
func Read(path string) (content []byte, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &IOError{Op: "open", Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, 0, &IOError{Op: "fstat", Err: err}
	}
	if st.Size() > MaxFileSize {
		return nil, 0, ErrFileTooLarge
	}

	buf := make([]byte, st.Size())
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, 0, &IOError{Op: "read", Err: err}
	}
	return buf[:n], int64(n), nil
}

// Write decodes nothing itself — content is already raw bytes — and writes
// it to path, creating or truncating with mode 0644. A short write is
// reported as-is and is not retried or treated as failure; only a write
// error surfaces as IoError.
func Write(path string, content []byte) (bytesWritten int, err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, &IOError{Op: "open", Err: err}
	}
	defer f.Close()

	// A single write(2) call: os.File.Write would loop over partial writes
	// and turn any remaining shortfall into an error.
	n, err := unix.Write(int(f.Fd()), content)
	if err != nil {
		return 0, &IOError{Op: "write", Err: err}
	}
	return n, nil
}

// Stat returns the file_stat response fields for path.
func Stat(path string) (Result, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Result{}, &IOError{Op: "stat", Err: err}
	}
	return Result{
		Path:    path,
		Size:    st.Size(),
		Mode:    modeOctal(st.Mode()),
		ModTime: st.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
		IsDir:   st.IsDir(),
	}, nil
}

// modeOctal formats the lower 12 bits of the mode (permission bits plus
// setuid/setgid/sticky), matching init.c:522's `st.st_mode & 07777`.
// fs.FileMode.Perm() only carries the low 9 bits; the special bits live in
// their own ModeSetuid/ModeSetgid/ModeSticky flags and must be ORed back in.
func modeOctal(mode fs.FileMode) string {
	perm := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		perm |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		perm |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		perm |= 0o1000
	}
	return toOctal(perm)
}

func toOctal(v uint32) string {
	if v == 0 {
		return "0"
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%8)}, digits...)
		v /= 8
	}
	return string(digits)
}

// Delete removes path: an ordinary unlink, falling back to directory
// removal when the target is a directory. Non-empty directories surface
// whatever IoError the OS reports for that case.
func Delete(path string) error {
	err := unix.Unlink(path)
	if err == nil {
		return nil
	}
	if err == unix.EISDIR {
		if rmErr := unix.Rmdir(path); rmErr != nil {
			return &IOError{Op: "rmdir", Err: rmErr}
		}
		return nil
	}
	return &IOError{Op: "unlink", Err: err}
}

// ModTimeNow exists solely so tests can format an expected timestamp the
// same way Stat does, without duplicating the layout string.
func ModTimeNow() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}
