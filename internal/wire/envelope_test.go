package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePing(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"ping"}`))
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Operation)
	assert.False(t, env.HasCmd)
}

func TestParseFileWrite(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"file_write","path":"/tmp/x","content":"aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, "file_write", env.Operation)
	assert.Equal(t, "/tmp/x", env.Fields["path"])
	assert.Equal(t, "aGVsbG8=", env.Fields["content"])
}

func TestParseExecWithCmdAndTimeout(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"exec","cmd":["/bin/echo","hi there"],"timeout":5000}`))
	require.NoError(t, err)
	require.True(t, env.HasCmd)
	assert.Equal(t, []string{"/bin/echo", "hi there"}, env.Cmd)
	assert.Equal(t, "5000", env.Fields["timeout"])
}

func TestParseNegativeTimeout(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"exec","cmd":["/bin/true"],"timeout":-1}`))
	require.NoError(t, err)
	assert.Equal(t, "-1", env.Fields["timeout"])
}

func TestParseToleratesWhitespace(t *testing.T) {
	env, err := Parse([]byte("{ \"operation\" : \"ping\" ,  \"path\" : \"/x\" }"))
	require.NoError(t, err)
	assert.Equal(t, "ping", env.Operation)
	assert.Equal(t, "/x", env.Fields["path"])
}

func TestParseEscapedQuotesAndBackslashes(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"file_write","content":"a\"b\\c\nd"}`))
	require.NoError(t, err)
	assert.Equal(t, "a\"b\\c\nd", env.Fields["content"])
}

func TestParseUnknownEscapePassesCharLiterally(t *testing.T) {
	env, err := Parse([]byte(`{"operation":"ping","path":"\q"}`))
	require.NoError(t, err)
	assert.Equal(t, "q", env.Fields["path"])
}

func TestParseMissingOperation(t *testing.T) {
	_, err := Parse([]byte(`{"path":"/x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestParseCmdMustBeArray(t *testing.T) {
	_, err := Parse([]byte(`{"operation":"exec","cmd":"/bin/echo"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestParseCmdElementsMustBeStrings(t *testing.T) {
	_, err := Parse([]byte(`{"operation":"exec","cmd":[1,2]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestParseCmdExceedsMaxElements(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"operation":"exec","cmd":[`)
	for i := 0; i < maxCmdElements+1; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`"a"`)
	}
	b.WriteString(`]}`)
	_, err := Parse([]byte(b.String()))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestParseEmptyCmdArrayParsesOK(t *testing.T) {
	// Rejecting an empty command is the connection handler's job
	// ("exec requires cmd (non-empty)"), not the grammar's.
	env, err := Parse([]byte(`{"operation":"exec","cmd":[]}`))
	require.NoError(t, err)
	assert.True(t, env.HasCmd)
	assert.Empty(t, env.Cmd)
}

func TestParseMalformedSyntax(t *testing.T) {
	cases := []string{
		``,
		`{`,
		`{"operation"}`,
		`{"operation":ping}`,
		`{"operation":"ping",}`,
	}
	for _, c := range cases {
		_, err := Parse([]byte(c))
		require.Error(t, err, c)
	}
}

func TestFormatOK(t *testing.T) {
	got := FormatOK(Field{"pong", true})
	assert.Equal(t, "{\"success\":true,\"data\":{\"pong\":true}}\n", string(got))
}

func TestFormatOKEscapesStringFields(t *testing.T) {
	got := FormatOK(Field{"content", "line\nbreak"})
	assert.Equal(t, "{\"success\":true,\"data\":{\"content\":\"line\\nbreak\"}}\n", string(got))
}

func TestFormatErr(t *testing.T) {
	got := FormatErr("unknown operation")
	assert.Equal(t, "{\"success\":false,\"error\":\"unknown operation\"}\n", string(got))
}

func TestFormatErrEscapesMessage(t *testing.T) {
	got := FormatErr(`stat: "weird" path`)
	assert.Equal(t, "{\"success\":false,\"error\":\"stat: \\\"weird\\\" path\"}\n", string(got))
}

func TestFormatOKNeverEmitsBareNewline(t *testing.T) {
	got := FormatOK(Field{"stdout", "a\nb\n"})
	s := string(got)
	// exactly the trailing terminator, none embedded in the escaped field
	assert.Equal(t, 1, strings.Count(s, "\n"))
}

func TestFormatOKExecResponseFields(t *testing.T) {
	got := FormatOK(
		Field{"exit_code", 0},
		Field{"stdout", "hi\n"},
		Field{"stderr", ""},
	)
	assert.Equal(t, "{\"success\":true,\"data\":{\"exit_code\":0,\"stdout\":\"hi\\n\",\"stderr\":\"\"}}\n", string(got))
}
