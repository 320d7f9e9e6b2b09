package vsock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddrString(t *testing.T) {
	a := &Addr{CID: 3, Port: DefaultPort}
	assert.Equal(t, "vsock", a.Network())
	assert.Equal(t, "3:52", a.String())
}

func TestDefaultPortAndBacklog(t *testing.T) {
	// These are part of the host-socket contract: a fixed, well-known port
	// and a fixed backlog, not configurable per deployment.
	assert.Equal(t, uint32(52), uint32(DefaultPort))
	assert.Equal(t, 16, Backlog)
}

// Listener/Conn creation itself requires a kernel with AF_VSOCK support and
// is exercised by the server package's tests over net.Pipe/TCP instead; see
// internal/server's tests and SPEC_FULL.md §2.3 for why.
