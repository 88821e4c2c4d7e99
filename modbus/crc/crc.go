// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import "github.com/sigurn/crc16"

var table = crc16.MakeTable(crc16.CRC16_MODBUS)

// CRC is a running CRC-16/MODBUS checksum.
//
// The zero value is not ready for use; call Reset first.
type CRC struct {
	value uint16
}

// Reset restarts the checksum at the MODBUS initial value.
func (crc *CRC) Reset() *CRC {
	crc.value = crc16.Init(table)
	return crc
}

// PushBytes feeds bs into the checksum.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	crc.value = crc16.Update(crc.value, bs, table)
	return crc
}

// Value returns the checksum. On the wire it is sent low byte first.
func (crc *CRC) Value() uint16 {
	return crc16.Complete(crc.value, table)
}

// Checksum is a one-shot helper.
func Checksum(bs []byte) uint16 {
	return crc16.Checksum(bs, table)
}

// Append appends the checksum of frame to frame, low byte first.
func Append(frame []byte) []byte {
	sum := Checksum(frame)
	return append(frame, byte(sum), byte(sum>>8))
}
