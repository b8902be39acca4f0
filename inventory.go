/* gandalf - usbmuxd TCP relay daemon
 *
 * Device inventory: tracks currently-attached devices via a live
 * usbmuxd event subscription, and joins them against the mapping
 * file to produce the set of tunnels that should be running
 */

package main

import (
	"context"
	"sync"
)

// TunnelSpec identifies one tunnel that should be running: a local
// port forwarding to a device port on a currently-attached device
type TunnelSpec struct {
	LocalPort  int
	DeviceID   int
	UDID       string
	DevicePort int
}

// DeviceInventory owns the live device_id -> udid table and the most
// recently loaded mapping. It is fed by exactly one usbmuxd event
// subscription
type DeviceInventory struct {
	mappingPath string

	lock      sync.RWMutex
	devices   map[int]string // device_id -> udid
	mapping   []MappingEntry
	connected bool // whether a usbmuxd connection has ever been established
}

// NewDeviceInventory creates an empty inventory bound to mappingPath
func NewDeviceInventory(mappingPath string) *DeviceInventory {
	return &DeviceInventory{
		mappingPath: mappingPath,
		devices:     make(map[int]string),
	}
}

// Bootstrap runs the event subscription until ctx's deadline expires
// or a genuine socket error occurs, whichever comes first. It is used
// at boot to let usbmuxd emit its initial burst of Attached events for
// already-connected devices; the partially-populated inventory at
// deadline is accepted as the initial state
func (inv *DeviceInventory) Bootstrap(ctx context.Context) error {
	err := inv.Run(ctx)
	if err == context.DeadlineExceeded || err == context.Canceled {
		return nil
	}
	return err
}

// Run dials usbmuxd, subscribes to attach/detach events, and applies
// them to the inventory until ctx is canceled or a socket error occurs
func (inv *DeviceInventory) Run(ctx context.Context) error {
	inv.reloadMapping()

	if inv.connected {
		MetricsUsbmuxdReconnects.Inc()
	}

	session, err := DialMux()
	if err != nil {
		return err
	}
	inv.connected = true
	defer session.Close()

	return session.Listen(ctx, inv.handle)
}

// handle applies one decoded usbmuxd event to the inventory
func (inv *DeviceInventory) handle(ev muxEvent) error {
	switch e := ev.(type) {
	case AttachedEvent:
		inv.lock.Lock()
		inv.devices[e.Device.DeviceID] = e.Device.UDID
		count := len(inv.devices)
		inv.lock.Unlock()

		MetricsDevicesAttached.Set(float64(count))

		Log.Info('+', "inventory: attached device_id=%d udid=%s",
			e.Device.DeviceID, e.Device.UDID)

		inv.reloadMapping()

	case DetachedEvent:
		inv.lock.Lock()
		delete(inv.devices, e.DeviceID)
		count := len(inv.devices)
		inv.lock.Unlock()

		MetricsDevicesAttached.Set(float64(count))

		Log.Info('-', "inventory: detached device_id=%d", e.DeviceID)

		inv.reloadMapping()
	}

	return nil
}

// reloadMapping re-reads the mapping file from disk. A parse failure
// leaves the previous mapping in place and is only logged
func (inv *DeviceInventory) reloadMapping() {
	entries, err := LoadMapping(inv.mappingPath)
	if err != nil {
		Log.Error('!', "inventory: mapping reload failed: %s", err)
		return
	}

	inv.lock.Lock()
	inv.mapping = entries
	inv.lock.Unlock()
}

// Snapshot joins the current device table against the current
// mapping: for each attached (device_id, udid), every mapping entry
// with a matching UDID contributes one TunnelSpec. Mapping entries
// whose UDID is not currently attached are dropped, and logged at info
func (inv *DeviceInventory) Snapshot() []TunnelSpec {
	inv.lock.RLock()
	defer inv.lock.RUnlock()

	byUDID := make(map[string][]int) // udid -> device_ids
	for deviceID, udid := range inv.devices {
		byUDID[udid] = append(byUDID[udid], deviceID)
	}

	var specs []TunnelSpec
	for _, entry := range inv.mapping {
		deviceIDs, attached := byUDID[entry.UDID]
		if !attached {
			Log.Info(' ', "inventory: %s not attached, skipping local port %d",
				entry.UDID, entry.LocalPort)
			continue
		}

		for _, deviceID := range deviceIDs {
			specs = append(specs, TunnelSpec{
				LocalPort:  entry.LocalPort,
				DeviceID:   deviceID,
				UDID:       entry.UDID,
				DevicePort: entry.DevicePort,
			})
		}
	}

	return specs
}
