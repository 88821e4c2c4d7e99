// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ffutop/drt301m/modbus"
)

var ErrRequestTimedOut = errors.New("modbus: request timed out")

const (
	stateSlaveID = 1 << iota
	stateFunctionCode
	stateReadLength
	stateReadPayload
	stateCRC
)

type InvalidLengthError struct {
	Length byte
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d", e.Length)
}

// CalculateResponseLength returns the expected length of a response ADU
// for the request ADU adu.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	if len(adu) < 6 {
		return length
	}
	switch adu[1] {
	case modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeReadHoldingRegisters:
		count := int(binary.BigEndian.Uint16(adu[4:]))
		length += 1 + count*2
	case modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleRegisters:
		length += 4
	}
	return length
}

// ReadResponse reads an RTU frame incrementally from the reader.
// It uses a state machine to detect the frame based on the expected slave
// id and function code; bytes before a matching slave id are skipped.
// Every read is bounded by the reader's own timeout (the byte timeout),
// the whole frame by deadline (the response timeout).
func ReadResponse(slaveID, functionCode byte, r io.Reader, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	buf := make([]byte, 1)
	data := make([]byte, MaxSize)

	state := stateSlaveID
	var length, toRead byte
	var n, crcCount int

	for {
		if time.Now().After(deadline) {
			return nil, ErrRequestTimedOut
		}

		if _, err := io.ReadAtLeast(r, buf, 1); err != nil {
			return nil, err
		}
		if n >= len(data) {
			return nil, fmt.Errorf("modbus: response exceeds %d bytes", MaxSize)
		}

		switch state {
		case stateSlaveID:
			if buf[0] == slaveID {
				state = stateFunctionCode
				data[n] = buf[0]
				n++
			}
		case stateFunctionCode:
			switch buf[0] {
			case functionCode:
				switch functionCode {
				case modbus.FuncCodeReadHoldingRegisters,
					modbus.FuncCodeReadInputRegisters:
					state = stateReadLength
				case modbus.FuncCodeWriteSingleRegister,
					modbus.FuncCodeWriteMultipleRegisters:
					state = stateReadPayload
					toRead = 4
				default:
					return nil, fmt.Errorf("functioncode not handled: %d", functionCode)
				}
			case functionCode | modbus.ExceptionFlag:
				state = stateReadPayload
				toRead = 1
			default:
				// not our frame; resynchronise on the next slave id
				state = stateSlaveID
				n = 0
				continue
			}
			data[n] = buf[0]
			n++
		case stateReadLength:
			length = buf[0]
			if int(length) > MaxSize-5 || length == 0 {
				return nil, &InvalidLengthError{Length: length}
			}
			toRead = length
			data[n] = length
			n++
			state = stateReadPayload
		case stateReadPayload:
			data[n] = buf[0]
			toRead--
			n++
			if toRead == 0 {
				state = stateCRC
			}
		case stateCRC:
			data[n] = buf[0]
			crcCount++
			n++
			if crcCount == crcSize {
				return data[:n], nil
			}
		}
	}
}

// CalculateRequestLength returns the length of the request ADU starting
// with header. Write-multiple requests need 7 header bytes to reach the
// byte count; ErrShortHeader asks for more.
func CalculateRequestLength(header []byte) (int, error) {
	if len(header) < 2 {
		return 0, ErrShortHeader
	}
	switch header[1] {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// slave, function, address, value/quantity, CRC
		return 8, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		if len(header) < 7 {
			return 0, ErrShortHeader
		}
		return 7 + int(header[6]) + crcSize, nil
	default:
		return 0, fmt.Errorf("modbus: unsupported function code 0x%02X", header[1])
	}
}

// ErrShortHeader is returned by CalculateRequestLength when the header is
// too short to tell the frame length.
var ErrShortHeader = errors.New("modbus: header too short")

// ReadRequest reads one request ADU from r, CRC included. The CRC is not
// checked; Decode does that.
func ReadRequest(r io.Reader) ([]byte, error) {
	buf := make([]byte, MaxSize+crcSize)
	n := 2
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		return nil, err
	}

	length, err := CalculateRequestLength(buf[:n])
	if errors.Is(err, ErrShortHeader) {
		if _, err := io.ReadFull(r, buf[n:7]); err != nil {
			return nil, err
		}
		n = 7
		length, err = CalculateRequestLength(buf[:n])
	}
	if err != nil {
		return nil, err
	}
	if length > len(buf) {
		return nil, fmt.Errorf("modbus: request of %d bytes exceeds %d", length, MaxSize)
	}

	if _, err := io.ReadFull(r, buf[n:length]); err != nil {
		return nil, err
	}
	return buf[:length], nil
}
