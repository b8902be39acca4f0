/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for inventory.go
 */

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestInventory(t *testing.T, mapping string) *DeviceInventory {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mapping.conf")
	err := os.WriteFile(path, []byte(mapping), 0644)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}

	inv := NewDeviceInventory(path)
	inv.reloadMapping()
	return inv
}

func TestSnapshotJoinsAttachedDevices(t *testing.T) {
	inv := newTestInventory(t, "UDID-A:2222:22\nUDID-B:3333:22\n")

	inv.devices[4] = "UDID-A"

	specs := inv.Snapshot()
	if len(specs) != 1 {
		t.Fatalf("got %d specs, want 1", len(specs))
	}

	if specs[0].UDID != "UDID-A" || specs[0].DeviceID != 4 || specs[0].LocalPort != 2222 {
		t.Errorf("got %+v", specs[0])
	}
}

func TestSnapshotDropsUnattachedMappingEntries(t *testing.T) {
	inv := newTestInventory(t, "UDID-X:2223:22\n")

	specs := inv.Snapshot()
	if len(specs) != 0 {
		t.Errorf("got %d specs, want 0 for an unattached UDID", len(specs))
	}
}

func TestHandleAttachedThenDetached(t *testing.T) {
	inv := newTestInventory(t, "UDID-A:2222:22\n")

	inv.handle(AttachedEvent{Device: Device{DeviceID: 4, UDID: "UDID-A"}})

	if len(inv.Snapshot()) != 1 {
		t.Fatalf("expected one tunnel spec after attach")
	}

	inv.handle(DetachedEvent{DeviceID: 4})

	if len(inv.Snapshot()) != 0 {
		t.Fatalf("expected zero tunnel specs after detach")
	}
}
