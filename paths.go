/* gandalf - usbmuxd TCP relay daemon
 *
 * Common filesystem and socket paths
 */

package main

const (
	// PathConfDir is the path to the configuration directory
	PathConfDir = "/etc/gandalf"

	// PathProgState is the path to the program state directory
	PathProgState = "/var/lib/gandalf"

	// PathLockDir is the path to the directory holding the
	// single-instance lock file
	PathLockDir = PathProgState + "/lock"

	// PathLockFile is the path to the single-instance lock file
	PathLockFile = PathLockDir + "/gandalf.lock"

	// PathPidFile is the default path to the pidfile written by
	// a daemonized relay
	PathPidFile = "/var/run/gandalf.pid"

	// PathUsbmuxdSocket is the default path to the usbmuxd
	// UNIX domain socket
	PathUsbmuxdSocket = "/var/run/usbmuxd"

	// PathLogDir is the path to the directory holding the main
	// log file
	PathLogDir = PathProgState + "/log"
)
