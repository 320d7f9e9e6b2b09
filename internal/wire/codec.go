// Package wire implements the codec and envelope grammar that ride the
// host-socket connection: canonical base64 for opaque byte payloads, and a
// hand-rolled scanner for the flat request/response record format. It is not
// encoding/json — the wire format is a single flat record with its own
// escaping and whitespace-tolerance rules, not general JSON.
package wire

import (
	"encoding/base64"
	"fmt"
)

// EncodeBytes maps raw bytes to their canonical text-safe form: 3-byte →
// 4-character packing with two padding characters, the standard alphabet
// with plus and slash. encoding/base64.StdEncoding already implements
// exactly this named encoding, so it is adopted directly rather than
// reimplemented.
func EncodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBytes reverses EncodeBytes. It rejects any input whose length class
// is inconsistent with the padding scheme, since StdEncoding's decoder
// already enforces that.
func DecodeBytes(t string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(t)
	if err != nil {
		return nil, errx(err)
	}
	return b, nil
}

func errx(err error) error {
	return fmt.Errorf("%w: %s", ErrMalformedEncoding, err)
}

// EscapeText renders s safe for embedding inside a quoted envelope field:
// quotes, backslashes, newline/carriage-return/tab get their two-character
// escapes, and any other control byte below 0x20 gets a \u00XX escape. The
// result never contains a literal newline, so it can never be mistaken for
// the end of a request (see the request-termination design note).
func EscapeText(s string) string {
	out := make([]byte, 0, len(s)+8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			out = append(out, '\\', '"')
		case '\\':
			out = append(out, '\\', '\\')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\t':
			out = append(out, '\\', 't')
		default:
			if c < 0x20 {
				out = append(out, []byte(fmt.Sprintf("\\u%04x", c))...)
			} else {
				out = append(out, c)
			}
		}
	}
	return string(out)
}

// UnescapeText reverses the escapes EscapeText produces, applied to s as the
// raw content between (but not including) a pair of quotes. An unrecognised
// escape sequence passes the following character through literally, which
// drops the backslash without raising an error — matching the original
// json_get_string's default case.
func UnescapeText(s string) (string, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: trailing backslash", ErrMalformedEnvelope)
		}
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		default:
			out = append(out, s[i])
		}
	}
	return string(out), nil
}
