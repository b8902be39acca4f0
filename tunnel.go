/* gandalf - usbmuxd TCP relay daemon
 *
 * Tunnel worker: a local TCP listener that, for each accepted
 * connection, opens a usbmuxd Connect and splices bytes both ways
 * until either side closes or the connection goes idle
 */

package main

import (
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Tunnel is one (local_port, device_id, udid, device_port) forwarding
// rule, backed by a single TCP listener
type Tunnel struct {
	Spec     TunnelSpec
	listener net.Listener
}

// NewTunnel creates and starts listening for a Tunnel. The caller
// must call Serve to start accepting connections
func NewTunnel(spec TunnelSpec) (*Tunnel, error) {
	listener, err := NewListener(spec.LocalPort)
	if err != nil {
		return nil, err
	}

	t := &Tunnel{Spec: spec, listener: listener}

	MetricsTunnelsActive.WithLabelValues(strconv.Itoa(spec.LocalPort)).Inc()

	return t, nil
}

// Serve runs the accept loop until the listener is closed
func (t *Tunnel) Serve() error {
	Log.Info('+', "tunnel: %s local_port=%d -> device_port=%d listening",
		t.Spec.UDID, t.Spec.LocalPort, t.Spec.DevicePort)

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return err
		}

		go t.serveConn(conn)
	}
}

// Close stops accepting new connections on this Tunnel
func (t *Tunnel) Close() error {
	MetricsTunnelsActive.WithLabelValues(strconv.Itoa(t.Spec.LocalPort)).Dec()
	return t.listener.Close()
}

// serveConn handles one accepted local connection: connect to the
// device through usbmuxd, then splice bytes until EOF, error, or
// idle timeout
func (t *Tunnel) serveConn(local net.Conn) {
	defer func() {
		v := recover()
		if v != nil {
			Log.Panic(v)
		}
	}()

	defer local.Close()

	session, err := DialMux()
	if err != nil {
		Log.Error('!', "tunnel: %s: dial usbmuxd: %s", t.Spec.UDID, err)
		return
	}
	defer session.Close()

	res, err := session.Connect(t.Spec.DeviceID, t.Spec.DevicePort)
	if err != nil {
		Log.Error('!', "tunnel: %s: connect: %s", t.Spec.UDID, err)
		return
	}

	switch res {
	case ResultSuccess:
		// fall through to splicing below

	case ResultDeviceRequestedNotConnected:
		Log.Info(' ', "tunnel: %s: device requested but not connected", t.Spec.UDID)
		return

	case ResultPortRequestedNotAvailable:
		Log.Info(' ', "tunnel: %s: port requested wasn't available", t.Spec.UDID)
		return

	default:
		Log.Debug(' ', "tunnel: %s: connect refused, result=%d", t.Spec.UDID, res)
		return
	}

	t.splice(local, session.Conn())
}

// splice pumps bytes bidirectionally between local and device until
// either side reaches EOF or the connection goes idle for longer
// than the configured idle timeout
func (t *Tunnel) splice(local, device net.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	idle := &idleWatchdog{timeout: Conf.IdleTimeout, cancel: cancel}
	idle.touch()

	group, _ := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer cancel()
		return t.copy(local, device, "to_device", idle)
	})
	group.Go(func() error {
		defer cancel()
		return t.copy(device, local, "from_device", idle)
	})

	go func() {
		<-ctx.Done()
		local.Close()
		device.Close()
	}()

	group.Wait()
}

// copy reads from src and writes to dst in buffer-sized chunks,
// touching the idle watchdog on every successful read, until EOF,
// a read/write error, or the watchdog fires
func (t *Tunnel) copy(dst io.Writer, src io.Reader, direction string, idle *idleWatchdog) error {
	buf := make([]byte, Conf.BufferSize)

	for {
		n, err := src.Read(buf)
		if n > 0 {
			idle.touch()

			_, werr := dst.Write(buf[:n])
			if werr != nil {
				return werr
			}

			MetricsBytesRelayed.WithLabelValues(direction).Add(float64(n))
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// idleWatchdog cancels a context if it is not touched within timeout.
// touch is called concurrently from both copy goroutines of a splice
type idleWatchdog struct {
	timeout time.Duration
	cancel  context.CancelFunc

	lock  sync.Mutex
	timer *time.Timer
}

// touch resets the watchdog's deadline
func (idle *idleWatchdog) touch() {
	idle.lock.Lock()
	defer idle.lock.Unlock()

	if idle.timer == nil {
		idle.timer = time.AfterFunc(idle.timeout, idle.cancel)
		return
	}
	idle.timer.Reset(idle.timeout)
}
