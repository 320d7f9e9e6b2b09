package vsock

import "errors"

var (
	ErrCreateSocket = errors.New("vsock: create socket")
	ErrBind         = errors.New("vsock: bind")
	ErrListen       = errors.New("vsock: listen")
	ErrAccept       = errors.New("vsock: accept")
	ErrConnect      = errors.New("vsock: connect")
	ErrSetDeadline  = errors.New("vsock: set deadline")
	ErrOpenDevice   = errors.New("vsock: open /dev/vsock")
	ErrGetLocalCID  = errors.New("vsock: get local cid")
)
