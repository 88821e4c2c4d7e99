// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ffutop/drt301m/internal/local-slave/model"
)

// FileStorage keeps the register image in memory and writes it back to
// a file after every modification.
type FileStorage struct {
	path  string
	file  *os.File
	model *model.DataModel
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the image file into a new data model.
func (fs *FileStorage) Load() (*model.DataModel, error) {
	f, err := openImage(fs.path)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	m, err := model.NewDataModelFrom(data)
	if err != nil {
		f.Close()
		return nil, err
	}
	fs.file = f
	fs.model = m
	return m, nil
}

// Save flushes the data to disk.
func (fs *FileStorage) Save(m *model.DataModel) error {
	return fs.sync()
}

// OnWrite writes the image back and syncs the file.
func (fs *FileStorage) OnWrite(address, quantity uint16) {
	if err := fs.sync(); err != nil {
		slog.Error("Failed to sync file", "path", fs.path, "err", err)
	}
}

func (fs *FileStorage) sync() error {
	if fs.model == nil || fs.file == nil {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.model.Snapshot(), 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close closes the file.
func (fs *FileStorage) Close() error {
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
