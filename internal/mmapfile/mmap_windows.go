//go:build windows

package mmapfile

import (
	"io"
	"os"
)

// MapReadOnly falls back to a plain read on Windows, matching the
// teacher's own mmap_windows.go fallback (unsafe pointer arithmetic for a
// proper Windows mapping was left as a TODO there too).
func MapReadOnly(f *os.File, size int64) ([]byte, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// MapReadWrite loads the file fully into memory; callers must write it
// back explicitly since there is no shared mapping to mutate in place.
func MapReadWrite(f *os.File, size int64) ([]byte, error) {
	return MapReadOnly(f, size)
}

// Unmap is a no-op for the ReadAll fallback.
func Unmap(data []byte) error {
	return nil
}
