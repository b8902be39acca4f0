//go:build linux
// +build linux

/* gandalf - usbmuxd TCP relay daemon
 *
 * Logging, Linux-specific ioctl constant
 */

package main

import "golang.org/x/sys/unix"

const ioctlTermiosGet = unix.TCGETS
