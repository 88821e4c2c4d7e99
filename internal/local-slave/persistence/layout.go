// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"os"

	"github.com/ffutop/drt301m/internal/local-slave/model"
)

// Image file layout: the 65536 holding registers, two bytes each, high byte
// first. Register n lives at offset 2n.
const totalSize = model.ImageSize

// openImage opens the image file at path, creating it and growing or
// shrinking it to totalSize as needed.
func openImage(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize image file: %w", err)
		}
	}
	return f, nil
}
