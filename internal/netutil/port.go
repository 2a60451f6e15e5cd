// Package netutil holds small helpers for local networking.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"mcp-remote/pkg/logging"
)

// LoopbackHost is the interface the callback server listens on.
const LoopbackHost = "127.0.0.1"

// PortBindError is returned when probing a port fails for a reason other
// than the port already being in use.
type PortBindError struct {
	Port int
	Err  error
}

func (e *PortBindError) Error() string {
	return fmt.Sprintf("failed to bind port %d: %v", e.Port, e.Err)
}

func (e *PortBindError) Unwrap() error {
	return e.Err
}

// FindAvailablePort returns preferred when it can be bound on the loopback
// interface, or an OS-assigned port when preferred is 0 or already in use.
//
// The checking listener is closed before returning, so another process may
// grab the port before the caller binds it.
func FindAvailablePort(preferred int) (int, error) {
	port, err := tryListen(preferred)
	if err == nil {
		return port, nil
	}
	if preferred != 0 && errors.Is(err, syscall.EADDRINUSE) {
		logging.Debug("Port", "Port %d is in use, asking the OS for a free one", preferred)
		port, err = tryListen(0)
		if err == nil {
			return port, nil
		}
		return 0, &PortBindError{Port: 0, Err: err}
	}
	return 0, &PortBindError{Port: preferred, Err: err}
}

func tryListen(port int) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(LoopbackHost, strconv.Itoa(port)))
	if err != nil {
		return 0, err
	}
	defer l.Close()

	addr, ok := l.Addr().(*net.TCPAddr)
	if !ok || addr.Port == 0 {
		return 0, fmt.Errorf("unexpected listener address %v", l.Addr())
	}
	return addr.Port, nil
}
