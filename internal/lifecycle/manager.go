// Package lifecycle is the PID-1 supervisor: signal intake, periodic
// zombie reaping, and the orchestrated shutdown sequence that tears down
// user processes and mounts before issuing the final reboot or power-off.
// It is grounded on the original init's handle_sigterm/handle_sigint/
// reap_zombies/do_shutdown, re-expressed with atomic flags and a state
// machine instead of a volatile-sig_atomic_t main loop.
package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hyperfleet/guest-init/internal/logging"
)

// ReapInterval is how often the reaper polls for zombies while Running.
const ReapInterval = 100 * time.Millisecond

// GracePeriod is how long the shutdown sequence waits after broadcasting
// SIGTERM before escalating to SIGKILL.
const GracePeriod = 2 * time.Second

// unmountOrder lists the bootstrap mounts in reverse of how they were
// brought up, the order the shutdown sequence lazily unmounts them in.
var unmountOrder = []string{"/tmp", "/run", "/dev/pts", "/dev", "/sys", "/proc"}

// Manager owns the two lifecycle flags, the reaping loop, and the shutdown
// orchestration. There is exactly one Manager per process.
type Manager struct {
	log      *logging.Logger
	listener interface{ Close() error }

	shutdownRequested atomic.Bool
	rebootRequested   atomic.Bool
	wake              chan struct{}
	wakeOnce          sync.Once

	phase atomic.Int32
}

// New returns a Manager that will close listener as the first step of
// shutdown. listener is typically *vsock.Listener, accepted as a narrow
// io.Closer-shaped interface so the lifecycle package has no transport
// dependency.
func New(log *logging.Logger, listener interface{ Close() error }) *Manager {
	return &Manager{log: log, listener: listener, wake: make(chan struct{})}
}

func (m *Manager) CurrentPhase() Phase { return Phase(m.phase.Load()) }

func (m *Manager) transition(to Phase) {
	from := Phase(m.phase.Load())
	if err := validateTransition(from, to); err != nil {
		m.log.Errorf("%s", err)
		return
	}
	m.phase.Store(int32(to))
}

// requestShutdown and requestReboot are the only writers of the lifecycle
// flags, called solely from the signal-handling goroutine below. Each flag
// is set-once: a repeat signal of the same kind is a harmless no-op, and
// once either flag is set the wake channel closes exactly once regardless
// of which, or how many, signals arrive afterward.
func (m *Manager) requestShutdown() {
	m.shutdownRequested.Store(true)
	m.wakeOnce.Do(func() { close(m.wake) })
}

func (m *Manager) requestReboot() {
	m.rebootRequested.Store(true)
	m.wakeOnce.Do(func() { close(m.wake) })
}

// Run installs signal handling, starts the reaper, blocks until a shutdown
// or reboot signal arrives, and then runs the shutdown sequence to
// completion. It does not return under normal operation: the process is
// rebooted, powered off, or exits from inside runShutdown.
func (m *Manager) Run() {
	chld := make(chan struct{}, 1)
	m.handleSignals(chld)
	go m.reapLoop(chld)

	<-m.wake
	m.runShutdown()
}

func (m *Manager) handleSignals(chldWake chan struct{}) {
	sigs := make(chan os.Signal, 8)
	signal.Notify(sigs,
		syscall.SIGTERM, syscall.SIGINT,
		syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2,
		syscall.SIGCHLD,
	)
	go func() {
		for sig := range sigs {
			switch sig {
			case syscall.SIGTERM:
				m.log.Infof("received SIGTERM, shutdown requested")
				m.requestShutdown()
			case syscall.SIGINT:
				m.log.Infof("received SIGINT, reboot requested")
				m.requestReboot()
			case syscall.SIGCHLD:
				select {
				case chldWake <- struct{}{}:
				default:
				}
			case syscall.SIGHUP, syscall.SIGUSR1, syscall.SIGUSR2:
				// ignored: present only so the default disposition (which
				// would terminate the process) never fires for them.
			}
		}
	}()
}

// reapLoop collects terminated children every ReapInterval while Running,
// waking early on SIGCHLD. It stops as soon as shutdown begins; the
// shutdown sequence does its own final reap after the SIGKILL broadcast.
func (m *Manager) reapLoop(chldWake <-chan struct{}) {
	ticker := time.NewTicker(ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.wake:
			return
		case <-ticker.C:
			m.reapAvailable()
		case <-chldWake:
			m.reapAvailable()
		}
	}
}

func (m *Manager) reapAvailable() {
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if pid <= 0 || err != nil {
			return
		}
		switch {
		case ws.Exited():
			m.log.Debugf("process %d exited with status %d", pid, ws.ExitStatus())
		case ws.Signaled():
			m.log.Debugf("process %d killed by signal %d", pid, ws.Signal())
		}
	}
}

func (m *Manager) runShutdown() {
	doReboot := m.rebootRequested.Load()
	if doReboot {
		m.log.Infof("reboot initiated")
	} else {
		m.log.Infof("shutdown initiated")
	}

	m.transition(Quiescing)
	if err := m.listener.Close(); err != nil {
		m.log.Warnf("close listener: %s", err)
	}

	m.log.Infof("sending SIGTERM to all processes")
	if err := unix.Kill(-1, syscall.SIGTERM); err != nil {
		m.log.Warnf("broadcast SIGTERM: %s", err)
	}
	time.Sleep(GracePeriod)

	m.log.Infof("sending SIGKILL to remaining processes")
	if err := unix.Kill(-1, syscall.SIGKILL); err != nil {
		m.log.Warnf("broadcast SIGKILL: %s", err)
	}
	m.reapAvailable()

	m.transition(Terminating)
	unix.Sync()

	m.log.Infof("unmounting filesystems")
	for _, path := range unmountOrder {
		if err := unix.Unmount(path, unix.MNT_DETACH); err != nil {
			m.log.Warnf("unmount %s: %s", path, err)
		}
	}
	unix.Sync()

	m.transition(Final)
	if doReboot {
		m.log.Infof("rebooting")
		if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
			m.log.Errorf("reboot: %s", err)
		}
	} else {
		m.log.Infof("powering off")
		if err := unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF); err != nil {
			m.log.Errorf("power off: %s", err)
		}
	}
	os.Exit(0)
}
