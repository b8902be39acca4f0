/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for conf.go
 */

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfLoadInternal(t *testing.T) {
	saved := Conf
	defer func() { Conf = saved }()

	path := filepath.Join(t.TempDir(), "gandalf.conf")
	contents := `
[usbmux]
socket-path = /tmp/test-usbmuxd
max-retries = 3
retry-wait-seconds = 1

[tunnel]
idle-timeout-seconds = 60
buffer-size = 4096

[status]
enable = false
port = 6000

[logging]
main-log = debug,trace-mux
console-color = false
`
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	err = confLoadInternal(path)
	if err != nil {
		t.Fatalf("confLoadInternal: %s", err)
	}

	if Conf.UsbmuxdSocket != "/tmp/test-usbmuxd" {
		t.Errorf("UsbmuxdSocket = %q", Conf.UsbmuxdSocket)
	}
	if Conf.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", Conf.MaxRetries)
	}
	if Conf.BufferSize != 4096 {
		t.Errorf("BufferSize = %d, want 4096", Conf.BufferSize)
	}
	if Conf.StatusEnable {
		t.Errorf("StatusEnable = true, want false")
	}
	if Conf.StatusPort != 6000 {
		t.Errorf("StatusPort = %d, want 6000", Conf.StatusPort)
	}
	if Conf.LogMain&LogTraceMux == 0 {
		t.Errorf("LogMain missing LogTraceMux: %v", Conf.LogMain)
	}
	if Conf.ColorConsole {
		t.Errorf("ColorConsole = true, want false")
	}
}

func TestConfLoadInternalMissingFileIsNotAnError(t *testing.T) {
	err := confLoadInternal(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err != nil {
		t.Errorf("missing config file should not be an error, got %s", err)
	}
}

func TestConfParseLogLevelInvalid(t *testing.T) {
	_, err := confParseLogLevel("bogus")
	if err == nil {
		t.Errorf("expected error for unknown log level name")
	}
}
