// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	MaxAddress = 65535

	// ImageSize is the size in bytes of the holding register image.
	ImageSize = (MaxAddress + 1) * 2
)

// DataModel holds the holding registers of the simulated meter.
// Register n occupies Image[2n] (high byte) and Image[2n+1] (low byte),
// the same order the words travel on the wire, so the image can be backed
// by a file or a memory map and read back on any host.
type DataModel struct {
	mu sync.RWMutex

	Image []byte
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{Image: make([]byte, ImageSize)}
}

// NewDataModelFrom creates a model backed by image, which must be
// ImageSize bytes long.
func NewDataModelFrom(image []byte) (*DataModel, error) {
	if len(image) != ImageSize {
		return nil, fmt.Errorf("register image is %d bytes, want %d", len(image), ImageSize)
	}
	return &DataModel{Image: image}, nil
}

// ReadHoldingRegisters reads a range of holding registers and returns them as BigEndian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, int(quantity)*2)
	copy(result, m.Image[int(address)*2:])
	return result, nil
}

// WriteMultipleRegisters writes a range of holding registers from BigEndian bytes.
func (m *DataModel) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}

	if len(data) < int(quantity)*2 {
		return fmt.Errorf("insufficient data length")
	}

	copy(m.Image[int(address)*2:], data[:int(quantity)*2])
	return nil
}

// Snapshot returns a copy of the whole image.
func (m *DataModel) Snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	image := make([]byte, len(m.Image))
	copy(image, m.Image)
	return image
}

// Register returns one holding register.
func (m *DataModel) Register(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return binary.BigEndian.Uint16(m.Image[int(address)*2:])
}

// SetRegister sets one holding register.
func (m *DataModel) SetRegister(address, value uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	binary.BigEndian.PutUint16(m.Image[int(address)*2:], value)
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}
