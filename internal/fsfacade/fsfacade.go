// Package fsfacade is the filesystem facade the core calls through instead
// of touching os/golang.org/x/sys directly (spec §6). Keeping every
// filesystem suspension point behind one interface is what lets the
// Coordinator's phase barriers (§5) reason about "any filesystem
// operation is a suspension point" without caring which syscall backs it.
package fsfacade

import (
	"os"

	"github.com/csvquery/bulkload/internal/mmapfile"
)

// File is the subset of *os.File the core needs from an open handle.
type File interface {
	Read(p []byte) (int, error)
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Write(p []byte) (int, error)
	Sync() error
	Close() error
	Name() string
}

// Filesystem is the POSIX-flavored facade of spec §6: openRO, openRW,
// mmap, munmap, pread, write, length, mkdir, rmdir, rename, findFirst.
type Filesystem interface {
	OpenRO(path string) (File, error)
	OpenRW(path string) (File, error)
	Create(path string) (File, error)
	Mmap(f File, size int64) ([]byte, error)
	MmapReadWrite(f File, size int64) ([]byte, error)
	Munmap(data []byte) error
	Length(path string) (int64, error)
	Mkdir(path string) error
	MkdirAll(path string) error
	Rmdir(path string) error
	Rename(oldPath, newPath string) error
	ReadDir(path string) ([]string, error)
	Remove(path string) error
}

// OS is the default Filesystem backed directly by the operating system.
type OS struct{}

func New() *OS { return &OS{} }

func (OS) OpenRO(path string) (File, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}

func (OS) OpenRW(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR, 0644)
}

func (OS) Create(path string) (File, error) {
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
}

func (OS) Mmap(f File, size int64) ([]byte, error) {
	osFile, ok := f.(*os.File)
	if !ok {
		return nil, os.ErrInvalid
	}
	return mmapfile.MapReadOnly(osFile, size)
}

func (OS) MmapReadWrite(f File, size int64) ([]byte, error) {
	osFile, ok := f.(*os.File)
	if !ok {
		return nil, os.ErrInvalid
	}
	return mmapfile.MapReadWrite(osFile, size)
}

func (OS) Munmap(data []byte) error {
	return mmapfile.Unmap(data)
}

func (OS) Length(path string) (int64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func (OS) Mkdir(path string) error {
	return os.Mkdir(path, 0755)
}

func (OS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func (OS) Rmdir(path string) error {
	return os.RemoveAll(path)
}

func (OS) Rename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func (OS) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (OS) Remove(path string) error {
	return os.Remove(path)
}
