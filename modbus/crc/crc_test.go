// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"testing"
)

func TestCRC(t *testing.T) {
	var crc CRC
	crc.Reset()
	crc.PushBytes([]byte{0x02, 0x07})

	if crc.Value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.Value())
	}
}

func TestCRC_CheckValue(t *testing.T) {
	var crc CRC
	crc.Reset().PushBytes([]byte("1234")).PushBytes([]byte("56789"))

	if crc.Value() != 0x4B37 {
		t.Fatalf("crc expected %#04x, actual %#04x", 0x4B37, crc.Value())
	}
	if Checksum([]byte("123456789")) != 0x4B37 {
		t.Fatalf("one-shot checksum differs from running checksum")
	}
}

func TestAppend(t *testing.T) {
	// Read holding registers 0x0010, quantity 2, slave 1.
	frame := Append([]byte{0x01, 0x03, 0x00, 0x10, 0x00, 0x02})
	want := []byte{0x01, 0x03, 0x00, 0x10, 0x00, 0x02, 0xC5, 0xCE}

	if len(frame) != len(want) {
		t.Fatalf("length expected %d, actual %d", len(want), len(frame))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Fatalf("frame expected % X, actual % X", want, frame)
		}
	}
}
