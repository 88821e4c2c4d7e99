// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStorage_Reload(t *testing.T) {
	tests := []struct {
		name string
		open func(path string) Storage
	}{
		{"File", func(path string) Storage { return NewFileStorage(path) }},
		{"Mmap", func(path string) Storage { return NewMmapStorage(path) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "image.bin")

			s := tt.open(path)
			m, err := s.Load()
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if err := m.WriteMultipleRegisters(0xF000, 2, []byte{0x05, 0x22, 0x14, 0x04}); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			s.OnWrite(0xF000, 2)
			if err := s.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if len(raw) != totalSize {
				t.Fatalf("image size = %d, want %d", len(raw), totalSize)
			}
			if raw[0x1E000] != 0x05 || raw[0x1E003] != 0x04 {
				t.Errorf("image not big-endian at 0xF000: % X", raw[0x1E000:0x1E004])
			}

			s = tt.open(path)
			m, err = s.Load()
			if err != nil {
				t.Fatalf("reload failed: %v", err)
			}
			defer s.Close()
			if got := m.Register(0xF001); got != 0x1404 {
				t.Errorf("Register(0xF001) = %04X, want 1404", got)
			}
		})
	}
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	m, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	m.SetRegister(1, 1)
	s.OnWrite(1, 1)
	if err := s.Save(m); err != nil {
		t.Errorf("Save failed: %v", err)
	}
}
