// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"github.com/ffutop/drt301m/internal/local-slave/model"
)

// Storage defines the interface for persisting the simulated meter's
// register image.
type Storage interface {
	// Load loads the data model from storage.
	// A storage without data returns a zeroed model.
	Load() (*model.DataModel, error)

	// Save saves the current data model to storage.
	Save(model *model.DataModel) error

	// OnWrite is called whenever registers are modified.
	OnWrite(address, quantity uint16)

	Close() error
}
