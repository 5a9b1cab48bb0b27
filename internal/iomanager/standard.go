package iomanager

import "os"

// StandardManager backs a data file with ordinary positional file I/O. It
// is the only Manager variant capable of writing; every data file is
// eventually served through one of these, even when it started life as a
// MemoryMapped manager during startup scanning.
type StandardManager struct {
	file *os.File
}

// OpenStandard opens (creating if necessary) the file at path for both
// reading and writing; every Write appends to the end of the file.
func OpenStandard(path string) (*StandardManager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &StandardManager{file: f}, nil
}

func (m *StandardManager) ReadAt(buf []byte, off int64) (int, error) {
	return m.file.ReadAt(buf, off)
}

func (m *StandardManager) Write(buf []byte) (int, error) {
	return m.file.Write(buf)
}

func (m *StandardManager) Sync() error {
	return m.file.Sync()
}

func (m *StandardManager) Size() (int64, error) {
	info, err := m.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *StandardManager) Close() error {
	return m.file.Close()
}
