/* gandalf - usbmuxd TCP relay daemon
 *
 * usbmuxd message payloads: Listen/Connect requests, Result/Attached/
 * Detached replies, encoded as XML property lists
 */

package main

import (
	"bytes"

	"howett.net/plist"
)

// Result is the numeric outcome carried by a usbmuxd "Result" reply
type Result int

// Result values, per the usbmuxd wire protocol
const (
	ResultSuccess                     Result = 0
	ResultDeviceRequestedNotConnected Result = 2
	ResultPortRequestedNotAvailable   Result = 3
	ResultMalformedRequest            Result = 5
)

// muxEvent is the sum type of decoded usbmuxd replies: a Result, an
// Attached device record, or a Detached notification
type muxEvent interface {
	muxEvent()
}

// ResultEvent wraps a decoded Result reply
type ResultEvent struct {
	Result Result
}

func (ResultEvent) muxEvent() {}

// Device describes an attached device, as reported in an Attached event
type Device struct {
	UDID            string // serial_number
	ConnectionSpeed int    // connection_speed, bps
	ConnectionType  string // connection_type, e.g. "USB"
	ProductID       int    // product_id
	LocationID      int    // location_id
	DeviceID        int    // device_id, assigned by usbmuxd
}

// AttachedEvent wraps a decoded Attached reply
type AttachedEvent struct {
	Device Device
}

func (AttachedEvent) muxEvent() {}

// DetachedEvent wraps a decoded Detached reply
type DetachedEvent struct {
	DeviceID int
}

func (DetachedEvent) muxEvent() {}

// swapPort byte-swaps a 16-bit port number, the quirk required by the
// Connect message's PortNumber field
func swapPort(port int) int {
	p := uint16(port)
	return int((p&0xFF)<<8 | (p>>8)&0xFF)
}

// listenPayload is the wire shape of a Listen request
type listenPayload struct {
	MessageType         string
	ClientVersionString string
	ProgName            string
}

// connectPayload is the wire shape of a Connect request
type connectPayload struct {
	MessageType         string
	ClientVersionString string
	ProgName            string
	DeviceID            int
	PortNumber          int
}

// EncodeListen builds the XML-plist payload for a Listen request
func EncodeListen() ([]byte, error) {
	return plistEncode(listenPayload{
		MessageType:         "Listen",
		ClientVersionString: ClientVersionString,
		ProgName:            ProgName,
	})
}

// EncodeConnect builds the XML-plist payload for a Connect request.
// devicePort is the plain (non-swapped) TCP port on the device
func EncodeConnect(deviceID, devicePort int) ([]byte, error) {
	return plistEncode(connectPayload{
		MessageType:         "Connect",
		ClientVersionString: ClientVersionString,
		ProgName:            ProgName,
		DeviceID:            deviceID,
		PortNumber:          swapPort(devicePort),
	})
}

// plistEncode serializes v as an XML property list
func plistEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := plist.NewEncoder(&buf)
	err := enc.Encode(v)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// replyEnvelope is the generic shape shared by every incoming reply
type replyEnvelope struct {
	MessageType string
	Number      int
	DeviceID    int
	Properties  struct {
		SerialNumber    string
		ConnectionSpeed int
		ConnectionType  string
		ProductID       int
		LocationID      int
		DeviceID        int
	}
}

// DecodeEvent decodes a reply payload into a muxEvent
func DecodeEvent(payload []byte) (muxEvent, error) {
	var env replyEnvelope

	err := plist.Unmarshal(payload, &env)
	if err != nil {
		return nil, newProtocolError("malformed plist reply: %s", err)
	}

	switch env.MessageType {
	case "Result":
		switch Result(env.Number) {
		case ResultSuccess, ResultDeviceRequestedNotConnected,
			ResultPortRequestedNotAvailable, ResultMalformedRequest:
			return ResultEvent{Result: Result(env.Number)}, nil
		default:
			return nil, newProtocolError("unknown Result number %d", env.Number)
		}

	case "Attached":
		p := env.Properties
		if p.SerialNumber == "" || p.ConnectionType == "" || p.DeviceID == 0 {
			return nil, newProtocolError("Attached: missing required property")
		}

		return AttachedEvent{Device: Device{
			UDID:            p.SerialNumber,
			ConnectionSpeed: p.ConnectionSpeed,
			ConnectionType:  p.ConnectionType,
			ProductID:       p.ProductID,
			LocationID:      p.LocationID,
			DeviceID:        p.DeviceID,
		}}, nil

	case "Detached":
		return DetachedEvent{DeviceID: env.DeviceID}, nil

	default:
		return nil, newProtocolError("unknown MessageType %q", env.MessageType)
	}
}
