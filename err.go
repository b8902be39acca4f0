/* gandalf - usbmuxd TCP relay daemon
 *
 * Common errors
 */

package main

import (
	"errors"
	"fmt"
)

// Error values for gandalf
var (
	ErrLockIsBusy    = errors.New("Lock is busy")
	ErrShutdown      = errors.New("Shutdown requested")
	ErrNoGandalf     = errors.New("gandalf daemon not running")
	ErrAccess        = errors.New("Access denied")
	ErrStalePidFile  = errors.New("Pidfile refers to a process that no longer exists")
	ErrBadMappingFmt = errors.New("Mapping entry must be UDID:LOCAL_PORT[:DEVICE_PORT]")
)

// ProtocolError reports malformed usbmuxd framing or payloads:
// a short header, an impossible total_length, or a reply with
// a MessageType or Result code the relay does not recognize.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "usbmuxd protocol: " + e.Message
}

// newProtocolError creates a new *ProtocolError
func newProtocolError(format string, args ...interface{}) error {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}
