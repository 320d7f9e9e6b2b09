// Package bootstrap performs the one-shot, best-effort guest setup the
// request server assumes has already run: mounting the standard
// pseudo-filesystems, creating canonical device nodes, bringing the
// loopback interface up, and setting the hostname. It is grounded on the
// original init's setup_filesystems/setup_networking/setup_hostname and
// the teacher's mountIgnore helper. Every step logs and continues on
// failure; nothing here may block the request server from starting.
package bootstrap

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/hyperfleet/guest-init/internal/errx"
	"github.com/hyperfleet/guest-init/internal/logging"
)

// Hostname is the fixed hostname assigned to every guest.
const Hostname = "hyperfleet"

type device struct {
	path string
	mode uint32
	dev  int
}

var devices = []device{
	{"/dev/null", unix.S_IFCHR | 0666, int(unix.Mkdev(1, 3))},
	{"/dev/zero", unix.S_IFCHR | 0666, int(unix.Mkdev(1, 5))},
	{"/dev/full", unix.S_IFCHR | 0666, int(unix.Mkdev(1, 7))},
	{"/dev/random", unix.S_IFCHR | 0666, int(unix.Mkdev(1, 8))},
	{"/dev/urandom", unix.S_IFCHR | 0666, int(unix.Mkdev(1, 9))},
	{"/dev/tty", unix.S_IFCHR | 0666, int(unix.Mkdev(5, 0))},
	{"/dev/console", unix.S_IFCHR | 0600, int(unix.Mkdev(5, 1))},
	{"/dev/ptmx", unix.S_IFCHR | 0666, int(unix.Mkdev(5, 2))},
}

var devSymlinks = map[string]string{
	"/dev/fd":     "/proc/self/fd",
	"/dev/stdin":  "/proc/self/fd/0",
	"/dev/stdout": "/proc/self/fd/1",
	"/dev/stderr": "/proc/self/fd/2",
}

// Run brings the guest to a working state. Every failure is logged and
// bootstrap moves on; a degraded environment must still get a running
// request server.
func Run(log *logging.Logger) {
	mountFilesystems(log)
	makeDeviceNodes(log)
	makeDevSymlinks(log)
	if err := bringUpLoopback(); err != nil {
		log.Warnf("failed to bring up loopback interface: %s", err)
	}
	if err := unix.Sethostname([]byte(Hostname)); err != nil {
		log.Warnf("sethostname: %s", err)
	} else {
		log.Debugf("hostname set to %s", Hostname)
	}
}

func mountFilesystems(log *logging.Logger) {
	log.Infof("mounting filesystems")

	mountIgnoreBusy(log, "proc", "/proc", "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, "")
	mountIgnoreBusy(log, "sysfs", "/sys", "sysfs", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, "")

	if err := unix.Mount("devtmpfs", "/dev", "devtmpfs", unix.MS_NOSUID, "mode=0755"); err != nil {
		mountIgnoreBusy(log, "tmpfs", "/dev", "tmpfs", unix.MS_NOSUID, "mode=0755")
	}

	os.MkdirAll("/dev/pts", 0755)
	mountIgnoreBusy(log, "devpts", "/dev/pts", "devpts", unix.MS_NOSUID|unix.MS_NOEXEC, "gid=5,mode=620,ptmxmode=666")
	mountIgnoreBusy(log, "tmpfs", "/run", "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "mode=0755")
	mountIgnoreBusy(log, "tmpfs", "/tmp", "tmpfs", unix.MS_NOSUID|unix.MS_NODEV, "mode=1777")
}

func mountIgnoreBusy(log *logging.Logger, source, target, fstype string, flags uintptr, data string) {
	os.MkdirAll(target, 0755)
	if err := unix.Mount(source, target, fstype, flags, data); err != nil {
		if err == unix.EBUSY {
			return
		}
		log.Warnf("mount %s on %s: %s", fstype, target, err)
	}
}

func makeDeviceNodes(log *logging.Logger) {
	for _, d := range devices {
		if _, err := os.Stat(d.path); err == nil {
			continue
		}
		if err := unix.Mknod(d.path, d.mode, d.dev); err != nil && err != unix.EEXIST {
			log.Debugf("mknod %s: %s", d.path, err)
		}
	}
}

func makeDevSymlinks(log *logging.Logger) {
	for link, target := range devSymlinks {
		if err := os.Symlink(target, link); err != nil && !os.IsExist(err) {
			log.Debugf("symlink %s -> %s: %s", link, target, err)
		}
	}
}

func bringUpLoopback() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return errx.With(ErrBringUpLoopback, " socket: %w", err)
	}
	defer unix.Close(fd)

	ifr, err := unix.NewIfreq("lo")
	if err != nil {
		return errx.With(ErrBringUpLoopback, " ifreq lo: %w", err)
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return errx.With(ErrBringUpLoopback, " get flags: %w", err)
	}

	flags := ifr.Uint16()
	want := uint16(unix.IFF_UP | unix.IFF_RUNNING)
	if flags&want == want {
		return nil
	}
	ifr.SetUint16(flags | want)
	if err := unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr); err != nil {
		return errx.With(ErrBringUpLoopback, " set flags: %w", err)
	}
	return nil
}
