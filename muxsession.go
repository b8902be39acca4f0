/* gandalf - usbmuxd TCP relay daemon
 *
 * Mux session: one connection to usbmuxd's UNIX socket, used either
 * for a single request/reply exchange or as a long-lived event
 * subscription
 */

package main

import (
	"context"
	"net"
)

// MuxSession owns one connection to usbmuxd. It is never shared
// across goroutines
type MuxSession struct {
	conn net.Conn
}

// DialMux connects to the usbmuxd UNIX socket at the configured path
func DialMux() (*MuxSession, error) {
	conn, err := net.Dial("unix", Conf.UsbmuxdSocket)
	if err != nil {
		return nil, err
	}

	return &MuxSession{conn: conn}, nil
}

// Close closes the underlying socket
func (s *MuxSession) Close() error {
	return s.conn.Close()
}

// Connect sends a Connect request for (deviceID, devicePort) and
// reads exactly one reply, returning the decoded Result
func (s *MuxSession) Connect(deviceID, devicePort int) (Result, error) {
	payload, err := EncodeConnect(deviceID, devicePort)
	if err != nil {
		return 0, err
	}

	err = WriteFrame(s.conn, payload)
	if err != nil {
		return 0, err
	}

	ev, err := s.readEvent()
	if err != nil {
		return 0, err
	}

	res, ok := ev.(ResultEvent)
	if !ok {
		return 0, newProtocolError("Connect: expected Result, got %T", ev)
	}

	return res.Result, nil
}

// Conn returns the underlying net.Conn, for use as the device side
// of a tunnel's byte splice once Connect has succeeded
func (s *MuxSession) Conn() net.Conn {
	return s.conn
}

// MuxEventHandler is invoked for every event received on a Listen
// subscription. Returning an error terminates the subscription loop
type MuxEventHandler func(muxEvent) error

// Listen sends a Listen request, expects an immediate Result Success,
// and then loops reading events and invoking handler until the
// socket errors, the handler returns an error, or ctx is canceled
func (s *MuxSession) Listen(ctx context.Context, handler MuxEventHandler) error {
	payload, err := EncodeListen()
	if err != nil {
		return err
	}

	err = WriteFrame(s.conn, payload)
	if err != nil {
		return err
	}

	ev, err := s.readEvent()
	if err != nil {
		return err
	}

	res, ok := ev.(ResultEvent)
	if !ok || res.Result != ResultSuccess {
		return newProtocolError("Listen: expected Result Success, got %#v", ev)
	}

	// Unblock the read loop when ctx is canceled
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		ev, err := s.readEvent()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		err = handler(ev)
		if err != nil {
			return err
		}
	}
}

// readEvent reads one frame and decodes it as a muxEvent
func (s *MuxSession) readEvent() (muxEvent, error) {
	totalLength, _, _, _, err := ReadHeader(s.conn)
	if err != nil {
		return nil, err
	}

	payload, err := ReadPayload(s.conn, totalLength)
	if err != nil {
		return nil, err
	}

	Log.Begin().HexDump(LogTraceMux, '<', payload).Commit()

	return DecodeEvent(payload)
}
