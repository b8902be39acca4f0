/* gandalf - usbmuxd TCP relay daemon
 *
 * Tests for frame.go
 */

package main

import (
	"bytes"
	"testing"
)

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	buf := &bytes.Buffer{}

	err := WriteHeader(buf, 42, 1, 8, 7)
	if err != nil {
		t.Fatalf("WriteHeader: %s", err)
	}

	totalLength, version, request, tag, err := ReadHeader(buf)
	if err != nil {
		t.Fatalf("ReadHeader: %s", err)
	}

	if totalLength != 42 || version != 1 || request != 8 || tag != 7 {
		t.Errorf("got (%d,%d,%d,%d), want (42,1,8,7)",
			totalLength, version, request, tag)
	}
}

func TestReadHeaderShort(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2, 3})

	_, _, _, _, err := ReadHeader(buf)
	if err == nil {
		t.Errorf("expected error on short header")
	}
}

func TestReadHeaderBadLength(t *testing.T) {
	buf := &bytes.Buffer{}
	WriteHeader(buf, 4, 1, 8, 1)

	_, _, _, _, err := ReadHeader(buf)
	if err == nil {
		t.Errorf("expected error for total_length < 16")
	}
}

func TestWriteFrameReadPayload(t *testing.T) {
	buf := &bytes.Buffer{}
	payload := []byte("hello, usbmuxd")

	err := WriteFrame(buf, payload)
	if err != nil {
		t.Fatalf("WriteFrame: %s", err)
	}

	totalLength, _, _, _, err := ReadHeader(buf)
	if err != nil {
		t.Fatalf("ReadHeader: %s", err)
	}

	got, err := ReadPayload(buf, totalLength)
	if err != nil {
		t.Fatalf("ReadPayload: %s", err)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}
