package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"

	"github.com/luciancaetano/arenanet"
)

const (
	// writeRetryLimit bounds EAGAIN retries on the non-blocking write path.
	writeRetryLimit = 100
	writeRetryWait  = 5 * time.Millisecond
)

// listenSocket creates, configures and binds the listening socket. Any step
// failing closes whatever was already created and returns the error.
func listenSocket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("%s: %w", arenanet.ErrSocketCreate, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%s: %w", arenanet.ErrSocketOption, err)
	}

	sa := &unix.SockaddrInet4{Port: port} // INADDR_ANY
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%s on port %d: %w", arenanet.ErrSocketBind, port, err)
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%s: %w", arenanet.ErrSocketListen, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("%s: %w", arenanet.ErrSocketOption, err)
	}

	return fd, nil
}

// acceptConn accepts one pending connection and switches it to non-blocking
// mode. Returns a would-block error when nothing is pending.
func acceptConn(listenFD int) (int, string, error) {
	fd, sa, err := unix.Accept(listenFD)
	if err != nil {
		return -1, "", err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, "", err
	}
	return fd, sockaddrString(sa), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)).String()
	}
	return "unknown"
}

// isWouldBlock classifies the non-blocking "no data / no space right now"
// result, which is not an error condition.
func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// writeAll writes data fully to a non-blocking socket, retrying briefly on
// would-block results. Any other error is returned to the caller, which
// treats it as a disconnect.
func writeAll(fd int, data []byte) error {
	sent := 0
	retries := 0
	for sent < len(data) {
		n, err := unix.Write(fd, data[sent:])
		if err != nil {
			if isWouldBlock(err) && retries < writeRetryLimit {
				retries++
				time.Sleep(writeRetryWait)
				continue
			}
			return err
		}
		sent += n
		retries = 0
	}
	return nil
}

func closeFD(fd int) {
	unix.Close(fd)
}
