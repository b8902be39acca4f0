//go:build darwin || dragonfly || freebsd || netbsd || openbsd
// +build darwin dragonfly freebsd netbsd openbsd

/* gandalf - usbmuxd TCP relay daemon
 *
 * Logging, BSD-family ioctl constant
 */

package main

import "golang.org/x/sys/unix"

const ioctlTermiosGet = unix.TIOCGETA
