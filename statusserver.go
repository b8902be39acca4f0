/* gandalf - usbmuxd TCP relay daemon
 *
 * Status server
 */

package main

import (
	"encoding/json"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"
)

// StatusEntry is the wire shape of one tunnel in a status snapshot:
// the Device Inventory's view of what should be running, not a
// per-connection counter
type StatusEntry struct {
	Port     int    `json:"Port"`
	DeviceID int    `json:"DeviceID"`
	UDID     string `json:"UDID"`
}

// StatusServer serves a one-shot JSON snapshot of the device
// inventory's most recent joined snapshot on every accepted
// connection, then closes it. It is bound to the loopback interface
// only
type StatusServer struct {
	listener  net.Listener
	inventory *DeviceInventory
}

// NewStatusServer creates a new StatusServer, listening on the
// configured status port and reporting inventory's snapshot
func NewStatusServer(port int, inventory *DeviceInventory) (*StatusServer, error) {
	l, err := NewListener(port)
	if err != nil {
		return nil, err
	}

	return &StatusServer{listener: l, inventory: inventory}, nil
}

// Serve runs the accept loop until the listener is closed
func (s *StatusServer) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}

		go s.serveOne(conn)
	}
}

// snapshot converts the inventory's joined TunnelSpecs into the
// documented status wire shape
func (s *StatusServer) snapshot() []StatusEntry {
	specs := s.inventory.Snapshot()

	entries := make([]StatusEntry, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, StatusEntry{
			Port:     spec.LocalPort,
			DeviceID: spec.DeviceID,
			UDID:     spec.UDID,
		})
	}

	return entries
}

// serveOne writes a single JSON snapshot and closes the connection
func (s *StatusServer) serveOne(conn net.Conn) {
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(conn)
	enc.Encode(s.snapshot())
}

// Close shuts the status server down
func (s *StatusServer) Close() error {
	return s.listener.Close()
}

// StatusRetrieve connects to a running gandalf daemon's status
// server and returns its current snapshot
func StatusRetrieve(port int) ([]StatusEntry, error) {
	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+strconv.Itoa(port), 5*time.Second)
	if err != nil {
		if neterr, ok := err.(*net.OpError); ok {
			if syserr, ok := neterr.Err.(*os.SyscallError); ok {
				switch syserr.Err {
				case syscall.ECONNREFUSED:
					err = ErrNoGandalf
				case syscall.EACCES, syscall.EPERM:
					err = ErrAccess
				}
			}
		}
		return nil, err
	}

	defer conn.Close()

	var entries []StatusEntry
	err = json.NewDecoder(conn).Decode(&entries)
	return entries, err
}
