/* gandalf - usbmuxd TCP relay daemon
 *
 * Loopback TCP listener
 */

package main

import (
	"net"
	"strconv"
	"time"
)

// Listener wraps net.Listener
//
// The listener is bound to the IPv4 loopback address only, so it
// accepts IPv4 connections to 127.0.0.1 and no IPv6 connections.
// Accept() additionally drops any connection whose local end is not
// a loopback address
type Listener struct {
	net.Listener // Underlying net.Listener
}

// NewListener creates a new Listener, bound to 127.0.0.1 on the
// given port: gandalf relays traffic to USB-attached devices, and
// nothing beyond the local machine is meant to reach it
func NewListener(port int) (net.Listener, error) {
	addr := "127.0.0.1:" + strconv.Itoa(port)

	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	return Listener{nl}, nil
}

// Accept a new connection
func (l Listener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return nil, err
		}

		tcpconn, ok := conn.(*net.TCPConn)
		if !ok {
			// Should never happen, actually
			conn.Close()
			continue
		}

		if !tcpconn.LocalAddr().(*net.TCPAddr).IP.IsLoopback() {
			tcpconn.SetLinger(0)
			tcpconn.Close()
			continue
		}

		tcpconn.SetKeepAlive(true)
		tcpconn.SetKeepAlivePeriod(20 * time.Second)

		return tcpconn, nil
	}
}
