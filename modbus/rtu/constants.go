// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	// MinSize is slave id, function code and CRC.
	MinSize = 4
	// MaxSize is the largest RTU ADU on the wire.
	MaxSize = 256

	// ExceptionSize is slave id, function code | 0x80, exception code and CRC.
	ExceptionSize = 5

	// crcSize is the trailing CRC-16 of every frame.
	crcSize = 2
)
