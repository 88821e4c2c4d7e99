// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/drt301m/modbus"
	"github.com/ffutop/drt301m/modbus/crc"
)

// ApplicationDataUnit is one RTU frame without its CRC.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode checks the CRC of raw and splits it into slave id and PDU.
func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	length := len(raw)
	// Minimum size (including address, function and CRC)
	if length < MinSize {
		err = fmt.Errorf("modbus: response length '%v' does not meet minimum '%v'", length, MinSize)
		return
	}

	var sum crc.CRC
	sum.Reset().PushBytes(raw[0 : length-crcSize])
	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if checksum != sum.Value() {
		err = fmt.Errorf("modbus: response crc '%v' does not match expected '%v'", checksum, sum.Value())
		return
	}
	adu = &ApplicationDataUnit{
		SlaveID: raw[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: raw[1],
			Data:         raw[2 : length-crcSize],
		},
	}
	return
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	length := len(adu.Pdu.Data) + MinSize
	if length > MaxSize {
		err = fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
		return
	}
	raw = make([]byte, 2, length)
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	raw = append(raw, adu.Pdu.Data...)
	return crc.Append(raw), nil
}

// Bytes returns slave id, function code and data, without CRC.
func (adu *ApplicationDataUnit) Bytes() []byte {
	raw := make([]byte, 2, 2+len(adu.Pdu.Data))
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	return append(raw, adu.Pdu.Data...)
}

// Verify verifies response slave id and function code against the request.
func (req *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if req.SlaveID != resp.SlaveID {
		return fmt.Errorf("modbus: response slave id '%v' does not match request '%v'", resp.SlaveID, req.SlaveID)
	}
	fc := resp.Pdu.FunctionCode &^ modbus.ExceptionFlag
	if fc != req.Pdu.FunctionCode {
		return fmt.Errorf("modbus: response function code '%v' does not match request '%v'", resp.Pdu.FunctionCode, req.Pdu.FunctionCode)
	}
	return nil
}

// SplitFrame interprets a raw request frame (slave id, function code, data;
// no CRC) as an ADU.
func SplitFrame(frame []byte) (*ApplicationDataUnit, error) {
	if len(frame) < 2 {
		return nil, fmt.Errorf("modbus: raw frame length '%v' does not meet minimum '%v'", len(frame), 2)
	}
	data := make([]byte, len(frame)-2)
	copy(data, frame[2:])
	return &ApplicationDataUnit{
		SlaveID: frame[0],
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: frame[1], Data: data},
	}, nil
}
