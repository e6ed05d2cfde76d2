package services

import (
	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// OpenFlags controls how a file is opened.
type OpenFlags uint8

const (
	OpenFlagRead OpenFlags = 1 << iota
	OpenFlagWrite
	OpenFlagCreate
)

// OpenForWriting reports whether the handle may issue writes.
func (f OpenFlags) OpenForWriting() bool {
	return f&OpenFlagWrite != 0
}

// CreateIfMissing reports whether opening may create the file.
func (f OpenFlags) CreateIfMissing() bool {
	return f&OpenFlagCreate != 0
}

// FileHandle is a cursor over one logical file. Handles own no LBAs, only
// their cursor; several handles to the same path may coexist.
type FileHandle struct {
	fs     *FileSystem
	path   string
	kind   types.PathKind
	flags  OpenFlags
	cursor uint64
}

// Path returns the logical path the handle was opened on.
func (h *FileHandle) Path() string {
	return h.path
}

// Read fills p from the file at the handle cursor plus location. The cursor
// does not move; Seek positions it.
func (h *FileHandle) Read(p []byte, location uint64) error {
	return h.fs.Read(h, p, location)
}

// Write stores p at the handle cursor plus location.
func (h *FileHandle) Write(p []byte, location uint64) error {
	return h.fs.Write(h, p, location)
}

// ReadNext reads at the cursor and advances it by len(p).
func (h *FileHandle) ReadNext(p []byte) error {
	if err := h.fs.Read(h, p, 0); err != nil {
		return err
	}
	h.cursor += uint64(len(p))
	return nil
}

// WriteNext writes at the cursor and advances it by len(p).
func (h *FileHandle) WriteNext(p []byte) error {
	if err := h.fs.Write(h, p, 0); err != nil {
		return err
	}
	h.cursor += uint64(len(p))
	return nil
}

// Seek positions the cursor at an absolute byte offset. The offset must be
// LBA-aligned and inside the file's seek bound (the region size; for a
// temporary file, its current range).
func (h *FileHandle) Seek(location uint64) error {
	return h.fs.Seek(h, location)
}

// SeekPosition returns the current cursor offset in bytes.
func (h *FileHandle) SeekPosition() uint64 {
	return h.cursor
}

// Size returns the file's logical size in bytes.
func (h *FileHandle) Size() (uint64, error) {
	return h.fs.GetFileSize(h)
}

// Sync re-persists the namespace metadata.
func (h *FileHandle) Sync() error {
	return h.fs.FileSync(h)
}

// Truncate shrinks the file to newSize bytes.
func (h *FileHandle) Truncate(newSize uint64) error {
	return h.fs.Truncate(h.path, newSize)
}

// Trim zeroes length bytes starting at offset through the normal write path.
func (h *FileHandle) Trim(offset, length uint64) error {
	return h.fs.Trim(h, offset, length)
}
