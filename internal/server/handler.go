// Package server implements the connection handler (C5) and listener (C6):
// the per-connection read/dispatch/respond/close task, and the accept loop
// that spawns one of those per incoming connection. Handle takes any
// net.Conn so it runs identically over a real vsock connection, net.Pipe,
// or TCP loopback.
package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/google/uuid"

	"github.com/hyperfleet/guest-init/internal/execsup"
	"github.com/hyperfleet/guest-init/internal/fileops"
	"github.com/hyperfleet/guest-init/internal/logging"
	"github.com/hyperfleet/guest-init/internal/wire"
)

const maxRequestSize = 128 * 1024 * 1024

// Handle services exactly one request on conn: read, parse, dispatch, write
// one response, close. It never panics on malformed input; every failure
// mode below the transport layer is converted into a response envelope.
func Handle(conn net.Conn, log *logging.Logger) {
	defer conn.Close()

	id := uuid.New().String()[:8]

	req, err := readRequest(conn)
	if err != nil {
		log.Warnf("[%s] read request: %s", id, err)
		writeResponse(conn, log, id, wire.FormatErr(err.Error()))
		return
	}

	env, err := wire.Parse(req)
	if err != nil {
		log.Warnf("[%s] parse request: %s", id, err)
		writeResponse(conn, log, id, wire.FormatErr(envelopeMessage(err)))
		return
	}

	log.Debugf("[%s] dispatching %s", id, env.Operation)
	writeResponse(conn, log, id, dispatch(env))
}

func writeResponse(conn net.Conn, log *logging.Logger, id string, resp []byte) {
	total := 0
	for total < len(resp) {
		n, err := conn.Write(resp[total:])
		if err != nil {
			log.Warnf("[%s] write response: %s", id, err)
			return
		}
		total += n
	}
}

// readRequest reads into a 128 MiB bounded buffer until a newline appears,
// the buffer fills, or the peer closes. A full buffer with no newline is
// rejected without reading whatever excess the peer still has queued.
func readRequest(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 64*1024)
	for {
		if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
			return buf[:nl+1], nil
		}
		if len(buf) >= maxRequestSize {
			return nil, ErrRequestTooLarge
		}
		readSize := len(tmp)
		if remaining := maxRequestSize - len(buf); remaining < readSize {
			readSize = remaining
		}
		n, err := conn.Read(tmp[:readSize])
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return buf, nil
			}
			return nil, err
		}
	}
}

// envelopeMessage strips the sentinel's own wrapper text so the client sees
// just the detail ("missing operation"), not the Go-side wrap prefix
// ("malformed envelope: missing operation").
func envelopeMessage(err error) string {
	for _, sentinel := range []error{wire.ErrMalformedEnvelope, wire.ErrMalformedEncoding} {
		if errors.Is(err, sentinel) {
			prefix := sentinel.Error() + ": "
			if s := err.Error(); len(s) > len(prefix) && s[:len(prefix)] == prefix {
				return s[len(prefix):]
			}
		}
	}
	return err.Error()
}

func dispatch(env *wire.Envelope) []byte {
	switch env.Operation {
	case "ping":
		return wire.FormatOK(wire.Field{Key: "pong", Value: true})
	case "file_read":
		return dispatchFileRead(env)
	case "file_write":
		return dispatchFileWrite(env)
	case "file_stat":
		return dispatchFileStat(env)
	case "file_delete":
		return dispatchFileDelete(env)
	case "exec":
		return dispatchExec(env)
	default:
		return wire.FormatErr("unknown operation")
	}
}

func dispatchFileRead(env *wire.Envelope) []byte {
	path, ok := env.Fields["path"]
	if !ok {
		return wire.FormatErr("missing path")
	}
	content, size, err := fileops.Read(path)
	if err != nil {
		return wire.FormatErr(fileErrMessage(err))
	}
	return wire.FormatOK(
		wire.Field{Key: "content", Value: wire.EncodeBytes(content)},
		wire.Field{Key: "size", Value: size},
	)
}

func dispatchFileWrite(env *wire.Envelope) []byte {
	path, hasPath := env.Fields["path"]
	content, hasContent := env.Fields["content"]
	if !hasPath || !hasContent {
		return wire.FormatErr("missing path or content")
	}
	decoded, err := wire.DecodeBytes(content)
	if err != nil {
		return wire.FormatErr("base64 decode failed")
	}
	n, err := fileops.Write(path, decoded)
	if err != nil {
		return wire.FormatErr(fileErrMessage(err))
	}
	return wire.FormatOK(wire.Field{Key: "bytes_written", Value: n})
}

func dispatchFileStat(env *wire.Envelope) []byte {
	path, ok := env.Fields["path"]
	if !ok {
		return wire.FormatErr("missing path")
	}
	res, err := fileops.Stat(path)
	if err != nil {
		return wire.FormatErr(fileErrMessage(err))
	}
	return wire.FormatOK(
		wire.Field{Key: "path", Value: res.Path},
		wire.Field{Key: "size", Value: res.Size},
		wire.Field{Key: "mode", Value: res.Mode},
		wire.Field{Key: "mod_time", Value: res.ModTime},
		wire.Field{Key: "is_dir", Value: res.IsDir},
	)
}

func dispatchFileDelete(env *wire.Envelope) []byte {
	path, ok := env.Fields["path"]
	if !ok {
		return wire.FormatErr("missing path")
	}
	if err := fileops.Delete(path); err != nil {
		return wire.FormatErr(fileErrMessage(err))
	}
	return wire.FormatOK()
}

func fileErrMessage(err error) string {
	if errors.Is(err, fileops.ErrFileTooLarge) {
		return "file too large"
	}
	return err.Error()
}

func dispatchExec(env *wire.Envelope) []byte {
	if !env.HasCmd {
		return wire.FormatErr("missing cmd")
	}
	if len(env.Cmd) == 0 {
		return wire.FormatErr("empty command")
	}

	timeoutMS := int64(-1)
	if raw, ok := env.Fields["timeout"]; ok {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
			timeoutMS = v
		}
	}

	result, err := execsup.Run(env.Cmd, timeoutMS)
	if err != nil {
		return wire.FormatErr(err.Error())
	}
	return wire.FormatOK(
		wire.Field{Key: "exit_code", Value: result.ExitCode},
		wire.Field{Key: "stdout", Value: string(result.Stdout)},
		wire.Field{Key: "stderr", Value: string(result.Stderr)},
	)
}
