/* gandalf - usbmuxd TCP relay daemon
 *
 * usbmuxd wire frame: a 16-byte header of four little-endian u32s,
 * followed by total_length-16 bytes of payload
 */

package main

import (
	"encoding/binary"
	"io"
)

const (
	frameHeaderSize = 16

	// MuxVersionPlist selects the plist payload encoding
	MuxVersionPlist = 1

	// MuxRequestPlist is the opcode used for every plist exchange
	MuxRequestPlist = 8

	// MuxTag is the tag this relay always sends and ignores on reply
	MuxTag = 1
)

// ReadHeader reads and decodes the 16-byte usbmuxd frame header
func ReadHeader(r io.Reader) (totalLength, version, request, tag uint32, err error) {
	var buf [frameHeaderSize]byte

	_, err = io.ReadFull(r, buf[:])
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = newProtocolError("short frame header")
		}
		return
	}

	totalLength = binary.LittleEndian.Uint32(buf[0:4])
	version = binary.LittleEndian.Uint32(buf[4:8])
	request = binary.LittleEndian.Uint32(buf[8:12])
	tag = binary.LittleEndian.Uint32(buf[12:16])

	if totalLength < frameHeaderSize {
		err = newProtocolError("total_length %d is less than header size", totalLength)
		return
	}

	return
}

// WriteHeader encodes and writes the 16-byte usbmuxd frame header
func WriteHeader(w io.Writer, totalLength, version, request, tag uint32) error {
	var buf [frameHeaderSize]byte

	binary.LittleEndian.PutUint32(buf[0:4], totalLength)
	binary.LittleEndian.PutUint32(buf[4:8], version)
	binary.LittleEndian.PutUint32(buf[8:12], request)
	binary.LittleEndian.PutUint32(buf[12:16], tag)

	_, err := w.Write(buf[:])
	return err
}

// ReadPayload reads exactly totalLength-16 bytes of payload following
// a header already consumed by ReadHeader
func ReadPayload(r io.Reader, totalLength uint32) ([]byte, error) {
	n := totalLength - frameHeaderSize
	buf := make([]byte, n)

	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, newProtocolError("short frame payload: %s", err)
	}

	return buf, nil
}

// WriteFrame writes a complete frame: header followed by payload,
// using the relay's standard version/request/tag defaults
func WriteFrame(w io.Writer, payload []byte) error {
	totalLength := uint32(frameHeaderSize + len(payload))

	err := WriteHeader(w, totalLength, MuxVersionPlist, MuxRequestPlist, MuxTag)
	if err != nil {
		return err
	}

	_, err = w.Write(payload)
	return err
}
