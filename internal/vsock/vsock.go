// Package vsock implements the guest side of the AF_VSOCK transport the
// host-socket protocol rides on: a Listener bound to the fixed well-known
// port, and a Conn that satisfies net.Conn so the rest of the agent never
// has to know its connections didn't come from net.Listen.
package vsock

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/hyperfleet/guest-init/internal/errx"
)

const (
	// VMADDR_CID_ANY accepts a bind on any local context identifier.
	VMADDR_CID_ANY = 0xFFFFFFFF
	// VMADDR_CID_HOST addresses the hypervisor host from inside the guest.
	VMADDR_CID_HOST = 2

	// DefaultPort is the host-socket's fixed, well-known port.
	DefaultPort = 52
	// Backlog is the listen backlog the host-socket binds with.
	Backlog = 16

	ioctlGetLocalCID = 0x7B9
)

// Addr is a vsock endpoint: a 32-bit context identifier plus a 32-bit port.
type Addr struct {
	CID  uint32
	Port uint32
}

func (a *Addr) Network() string { return "vsock" }
func (a *Addr) String() string  { return fmt.Sprintf("%d:%d", a.CID, a.Port) }

// Conn is one accepted or dialed vsock stream, satisfying net.Conn.
type Conn struct {
	fd     int
	local  *Addr
	remote *Addr

	readDeadline  time.Time
	writeDeadline time.Time
}

func (c *Conn) Read(b []byte) (int, error) {
	if err := applyTimeout(c.fd, unix.SO_RCVTIMEO, c.readDeadline); err != nil {
		return 0, err
	}
	for {
		n, err := unix.Read(c.fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, err
		}
		return n, nil
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	if err := applyTimeout(c.fd, unix.SO_SNDTIMEO, c.writeDeadline); err != nil {
		return 0, err
	}
	total := 0
	for total < len(b) {
		n, err := unix.Write(c.fd, b[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

func (c *Conn) LocalAddr() net.Addr  { return c.local }
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.SetReadDeadline(t); err != nil {
		return err
	}
	return c.SetWriteDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	c.readDeadline = t
	return nil
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline = t
	return nil
}

// applyTimeout converts an absolute deadline into the socket option form
// SO_RCVTIMEO/SO_SNDTIMEO actually take, since raw vsock sockets have no
// separate deadline primitive the way the runtime netpoller gives TCP.
func applyTimeout(fd int, opt int, deadline time.Time) error {
	var tv unix.Timeval
	if deadline.IsZero() {
		tv = unix.Timeval{Sec: 0, Usec: 0}
	} else {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return os.ErrDeadlineExceeded
		}
		tv = unix.NsecToTimeval(remaining.Nanoseconds())
	}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, opt, &tv); err != nil {
		return errx.Wrap(ErrSetDeadline, err)
	}
	return nil
}

// Listener accepts vsock connections on a bound port.
type Listener struct {
	fd     int
	addr   *Addr
	closed atomic.Bool
}

// Listen binds port on VMADDR_CID_ANY with the host-socket's fixed backlog.
func Listen(port uint32) (*Listener, error) {
	return ListenCID(VMADDR_CID_ANY, port)
}

// ListenCID binds cid:port with the host-socket's fixed backlog.
func ListenCID(cid, port uint32) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errx.Wrap(ErrCreateSocket, err)
	}

	sa := &unix.SockaddrVM{CID: cid, Port: port}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errx.Wrap(ErrBind, err)
	}
	if err := unix.Listen(fd, Backlog); err != nil {
		unix.Close(fd)
		return nil, errx.Wrap(ErrListen, err)
	}

	return &Listener{fd: fd, addr: &Addr{CID: cid, Port: port}}, nil
}

// Accept blocks until a connection arrives, retrying internally on EINTR so
// callers never have to special-case it.
func (l *Listener) Accept() (net.Conn, error) {
	for {
		nfd, sa, err := unix.Accept(l.fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			if l.closed.Load() {
				return nil, net.ErrClosed
			}
			return nil, errx.Wrap(ErrAccept, err)
		}
		remote := &Addr{}
		if svm, ok := sa.(*unix.SockaddrVM); ok {
			remote.CID = svm.CID
			remote.Port = svm.Port
		}
		return &Conn{fd: nfd, local: l.addr, remote: remote}, nil
	}
}

func (l *Listener) Close() error {
	l.closed.Store(true)
	return unix.Close(l.fd)
}

func (l *Listener) Addr() net.Addr { return l.addr }

// Dial connects to cid:port. Nothing in this module calls it.
func Dial(cid, port uint32) (*Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, errx.Wrap(ErrCreateSocket, err)
	}
	sa := &unix.SockaddrVM{CID: cid, Port: port}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errx.Wrap(ErrConnect, err)
	}
	return &Conn{
		fd:     fd,
		local:  &Addr{CID: VMADDR_CID_ANY, Port: 0},
		remote: &Addr{CID: cid, Port: port},
	}, nil
}

// GetLocalCID returns this guest's own context identifier.
func GetLocalCID() (uint32, error) {
	f, err := os.Open("/dev/vsock")
	if err != nil {
		return 0, errx.Wrap(ErrOpenDevice, err)
	}
	defer f.Close()

	var cid uint32
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), ioctlGetLocalCID, uintptr(unsafe.Pointer(&cid)))
	if errno != 0 {
		return 0, errx.Wrap(ErrGetLocalCID, errno)
	}
	return cid, nil
}
