package iomanager

import (
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MemoryMappedManager backs a data file with a read-only memory mapping,
// the Go counterpart of the memmap2-backed IO manager in the project this
// engine descends from. It exists purely to make the one-time startup
// scan over a large data file fast; Write and Sync are unsupported and
// the engine always swaps back to a StandardManager once recovery
// completes.
type MemoryMappedManager struct {
	file *os.File
	mmap mmap.MMap
}

// OpenMemoryMapped maps the file at path read-only. If the file is empty,
// the mapping is left nil and every read simply reports io.EOF, matching
// a freshly created data file with nothing in it yet.
func OpenMemoryMapped(path string) (*MemoryMappedManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	m := &MemoryMappedManager{file: f}
	if info.Size() == 0 {
		return m, nil
	}

	mapping, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	m.mmap = mapping
	return m, nil
}

func (m *MemoryMappedManager) ReadAt(buf []byte, off int64) (int, error) {
	if m.mmap == nil || off >= int64(len(m.mmap)) {
		return 0, io.EOF
	}
	n := copy(buf, m.mmap[off:])
	if n < len(buf) {
		return n, io.EOF
	}
	return n, nil
}

func (m *MemoryMappedManager) Write(buf []byte) (int, error) {
	return 0, ErrUnsupportedForMmap
}

func (m *MemoryMappedManager) Sync() error {
	return ErrUnsupportedForMmap
}

func (m *MemoryMappedManager) Size() (int64, error) {
	info, err := m.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *MemoryMappedManager) Close() error {
	if m.mmap != nil {
		if err := m.mmap.Unmap(); err != nil {
			m.file.Close()
			return err
		}
	}
	return m.file.Close()
}
