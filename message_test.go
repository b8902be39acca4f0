/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for message.go
 */

package main

import (
	"testing"
)

func TestSwapPortRoundTrip(t *testing.T) {
	ports := []int{0, 1, 22, 80, 443, 2222, 65535}

	for _, p := range ports {
		got := swapPort(swapPort(p))
		if got != p {
			t.Errorf("swapPort(swapPort(%d)) = %d, want %d", p, got, p)
		}
	}
}

func TestSwapPort22(t *testing.T) {
	// 22 = 0x0016, swapped = 0x1600 = 5632
	got := swapPort(22)
	if got != 0x1600 {
		t.Errorf("swapPort(22) = 0x%x, want 0x1600", got)
	}
}

func TestEncodeConnect(t *testing.T) {
	payload, err := EncodeConnect(4, 22)
	if err != nil {
		t.Fatalf("EncodeConnect: %s", err)
	}

	if len(payload) == 0 {
		t.Fatalf("EncodeConnect produced an empty payload")
	}
}

func TestDecodeEventResult(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>MessageType</key>
	<string>Result</string>
	<key>Number</key>
	<integer>0</integer>
</dict>
</plist>`)

	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %s", err)
	}

	res, ok := ev.(ResultEvent)
	if !ok {
		t.Fatalf("got %T, want ResultEvent", ev)
	}

	if res.Result != ResultSuccess {
		t.Errorf("got Result %d, want %d", res.Result, ResultSuccess)
	}
}

func TestDecodeEventUnknownResult(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>MessageType</key>
	<string>Result</string>
	<key>Number</key>
	<integer>99</integer>
</dict>
</plist>`)

	_, err := DecodeEvent(payload)
	if err == nil {
		t.Errorf("expected error for unknown Result number")
	}
}

func TestDecodeEventAttached(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>MessageType</key>
	<string>Attached</string>
	<key>DeviceID</key>
	<integer>4</integer>
	<key>Properties</key>
	<dict>
		<key>SerialNumber</key>
		<string>abc123</string>
		<key>ConnectionSpeed</key>
		<integer>480000000</integer>
		<key>ConnectionType</key>
		<string>USB</string>
		<key>ProductID</key>
		<integer>4776</integer>
		<key>LocationID</key>
		<integer>338690048</integer>
		<key>DeviceID</key>
		<integer>4</integer>
	</dict>
</dict>
</plist>`)

	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %s", err)
	}

	att, ok := ev.(AttachedEvent)
	if !ok {
		t.Fatalf("got %T, want AttachedEvent", ev)
	}

	if att.Device.UDID != "abc123" || att.Device.DeviceID != 4 {
		t.Errorf("got %+v", att.Device)
	}
}

func TestDecodeEventDetached(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>MessageType</key>
	<string>Detached</string>
	<key>DeviceID</key>
	<integer>4</integer>
</dict>
</plist>`)

	ev, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %s", err)
	}

	det, ok := ev.(DetachedEvent)
	if !ok {
		t.Fatalf("got %T, want DetachedEvent", ev)
	}

	if det.DeviceID != 4 {
		t.Errorf("got DeviceID %d, want 4", det.DeviceID)
	}
}

func TestDecodeEventUnknownMessageType(t *testing.T) {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>MessageType</key>
	<string>Bogus</string>
</dict>
</plist>`)

	_, err := DecodeEvent(payload)
	if err == nil {
		t.Errorf("expected error for unknown MessageType")
	}
}
