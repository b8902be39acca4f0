/* gandalf - usbmuxd TCP relay daemon
 *
 * Configuration constants
 */

package main

import (
	"time"
)

const (
	// BootstrapDeadline bounds how long the Supervisor waits, at
	// boot, for usbmuxd's initial burst of Attached events for
	// already-connected devices before accepting whatever
	// inventory has accumulated so far
	BootstrapDeadline = 1 * time.Second

	// DefaultIdleTimeout is the default tunnel idle timeout
	DefaultIdleTimeout = 5 * time.Minute

	// DefaultBufferSize is the default copy-loop buffer size.
	// usbmuxd is chatty and SSH sessions move multi-KiB frames;
	// 4KiB showed measurably worse throughput in testing
	DefaultBufferSize = 32 * 1024

	// DefaultStatusPort is the default status-server loopback port
	DefaultStatusPort = 5000

	// DefaultMetricsPort is the default metrics-server loopback port
	DefaultMetricsPort = 5001

	// DefaultMaxRetries is the default retry-wrapper attempt count
	DefaultMaxRetries = 5

	// DefaultRetryWait is the default retry-wrapper back-off
	DefaultRetryWait = 2 * time.Second

	// ClientVersionString identifies this relay to usbmuxd
	ClientVersionString = "gandalf-1.0"

	// ProgName identifies this relay to usbmuxd
	ProgName = "gandalf"
)
