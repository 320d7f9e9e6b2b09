package server

import (
	"errors"
	"net"

	"github.com/hyperfleet/guest-init/internal/logging"
)

// Serve accepts connections from ln until it is closed, spawning a detached
// Handle goroutine per connection. It returns once Accept reports the
// listener is closed — the caller (the lifecycle manager) is the one
// that closes ln as the first step of shutdown, so a returning Serve always
// means shutdown has already begun, never an unexpected failure.
//
// ln is a plain net.Listener: *vsock.Listener already satisfies it, and
// tests run this same loop over net.Listen("tcp", ...) since AF_VSOCK
// sockets cannot be created in a sandboxed test run.
func Serve(ln net.Listener, log *logging.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Infof("listener closed, exiting accept loop")
				return
			}
			log.Warnf("accept: %s", err)
			continue
		}
		go Handle(conn, log)
	}
}
