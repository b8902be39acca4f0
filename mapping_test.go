/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for mapping.go
 */

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMappingFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mapping.conf")
	err := os.WriteFile(path, []byte(contents), 0644)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	return path
}

func TestLoadMappingDefaultDevicePort(t *testing.T) {
	path := writeMappingFile(t, "UDID-A:2222\n")

	entries, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %s", err)
	}

	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}

	e := entries[0]
	if e.UDID != "UDID-A" || e.LocalPort != 2222 || e.DevicePort != 22 {
		t.Errorf("got %+v", e)
	}
}

func TestLoadMappingExplicitDevicePort(t *testing.T) {
	path := writeMappingFile(t, "UDID-A:2222:8080\n")

	entries, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %s", err)
	}

	if entries[0].DevicePort != 8080 {
		t.Errorf("got DevicePort %d, want 8080 (must never silently fall back to 22)",
			entries[0].DevicePort)
	}
}

func TestLoadMappingSkipsCommentsAndBlankLines(t *testing.T) {
	path := writeMappingFile(t, "# comment\n\nUDID-A:2222\n   \n# another\nUDID-B:3333:443\n")

	entries, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %s", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestLoadMappingBadFormat(t *testing.T) {
	cases := []string{
		"no-colon-here\n",
		"UDID-A:notaport\n",
		"UDID-A:99999\n",
		":2222\n",
		"UDID-A:2222:3333:4444\n",
	}

	for _, c := range cases {
		path := writeMappingFile(t, c)
		_, err := LoadMapping(path)
		if err == nil {
			t.Errorf("%q: expected parse error", c)
		}
	}
}
