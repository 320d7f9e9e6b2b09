//go:build linux

// init is PID 1 inside the guest VM. It brings up the minimal runtime
// environment, binds the vsock control socket, serves requests on it, and
// supervises every other process in the guest until a shutdown or reboot
// signal arrives.
package main

import (
	"fmt"
	"os"

	"github.com/hyperfleet/guest-init/internal/bootstrap"
	"github.com/hyperfleet/guest-init/internal/lifecycle"
	"github.com/hyperfleet/guest-init/internal/logging"
	"github.com/hyperfleet/guest-init/internal/server"
	"github.com/hyperfleet/guest-init/internal/vsock"
)

func main() {
	if pid := os.Getpid(); pid != 1 {
		fmt.Fprintf(os.Stderr, "init: refusing to run as pid %d, must be pid 1\n", pid)
		os.Exit(1)
	}

	threshold := logging.Info
	for _, arg := range os.Args[1:] {
		if arg == "-d" || arg == "--debug" {
			threshold = logging.Debug
		}
	}
	log := logging.New(os.Stderr, threshold)

	log.Infof("init starting, pid 1")
	bootstrap.Run(log)

	ln, err := vsock.Listen(vsock.DefaultPort)
	if err != nil {
		log.Errorf("failed to bind vsock listener on port %d: %s", vsock.DefaultPort, err)
		os.Exit(1)
	}
	log.Infof("listening on vsock port %d", vsock.DefaultPort)

	go server.Serve(ln, log)

	lifecycle.New(log, ln).Run()
}
