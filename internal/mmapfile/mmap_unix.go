//go:build !windows

// Package mmapfile provides the memory-mapping primitive used by the
// boundary scanner, indexer, merger, and symbol merger to read and
// rewrite files without copying through user-space buffers.
package mmapfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// MapReadOnly memory-maps the whole of f for reading. The caller must pass
// the returned slice to Unmap when done; f may be closed immediately after
// mapping.
func MapReadOnly(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// MapReadWrite memory-maps the whole of f for in-place mutation, used by
// the symbol merger to rewrite staged key columns.
func MapReadWrite(f *os.File, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Unmap releases a mapping obtained from MapReadOnly or MapReadWrite.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
