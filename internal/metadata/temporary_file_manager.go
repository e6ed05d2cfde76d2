// Package metadata tracks temporary spill files: which contiguous LBA extent
// each file owns, and how far into it the file has been written.
package metadata

import (
	"sort"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-nvmefs/internal/allocator"
	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// InitialBlocks is the extent granted to a freshly created temporary file.
// Eight LBAs is the smallest spill-buffer granularity the database writes.
const InitialBlocks = 8

// TemporaryFile is the bookkeeping record for one spill file. A file owns
// exactly one contiguous block range at any time.
type TemporaryFile struct {
	Name  string
	Range types.LBARange
	// Next LBA within Range that a sequential write would target.
	Frontier types.LBA
}

// SizeBlocks returns the written length of the file in LBAs.
func (f *TemporaryFile) SizeBlocks() uint64 {
	return uint64(f.Frontier - f.Range.Start)
}

// TemporaryFileManager maps file names to their block ranges and orchestrates
// allocation, growth, truncation, and deletion on the block manager. One
// mutex covers the map and the allocator so growth decisions serialize; it
// is never held across device I/O.
type TemporaryFileManager struct {
	mu      sync.Mutex
	lbaSize uint64
	blocks  *allocator.TemporaryBlockManager
	files   map[string]*TemporaryFile
}

// NewTemporaryFileManager manages the temporary region [start, end).
func NewTemporaryFileManager(start, end types.LBA, lbaSize uint64) *TemporaryFileManager {
	return &TemporaryFileManager{
		lbaSize: lbaSize,
		blocks:  allocator.NewTemporaryBlockManager(start, end),
		files:   make(map[string]*TemporaryFile),
	}
}

// Create allocates an initial extent for name. Creating an existing name is
// a reopen and leaves the file untouched.
func (m *TemporaryFileManager) Create(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[name]; ok {
		return nil
	}

	r, err := m.blocks.Allocate(InitialBlocks)
	if err != nil {
		return err
	}

	m.files[name] = &TemporaryFile{Name: name, Range: r, Frontier: r.Start}
	return nil
}

// GetLBA resolves a byte offset within name to a device LBA, growing the
// file when [target, target+nrLBAs) exits its current range. Growth
// allocates a fresh extent sized to the union of the current range and the
// required extension (at least doubling), then releases the old one. The
// core does not copy blocks between extents: the database rewrites spill
// content from its own buffers after a grow, which is the documented
// contract of this call.
func (m *TemporaryFileManager) GetLBA(name string, byteOffset, nrLBAs uint64) (types.LBA, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return 0, types.NewError(types.ErrNotFound, name)
	}

	blockIndex := byteOffset / m.lbaSize
	required := blockIndex + nrLBAs
	if required > f.Range.Blocks() {
		if err := m.grow(f, required); err != nil {
			return 0, err
		}
	}

	return f.Range.Start + types.LBA(blockIndex), nil
}

// grow swaps f onto a larger extent. Allocate-then-free keeps the failure
// path free of partial state: on ErrNoSpace the file still owns its old
// range.
func (m *TemporaryFileManager) grow(f *TemporaryFile, requiredBlocks uint64) error {
	newSize := f.Range.Blocks() * 2
	if newSize < requiredBlocks {
		newSize = requiredBlocks
	}

	r, err := m.blocks.Allocate(newSize)
	if err != nil {
		return types.NewError(types.ErrNoSpace, f.Name)
	}
	m.blocks.Free(f.Range)

	written := f.Frontier - f.Range.Start
	f.Range = r
	f.Frontier = r.Start + written
	return nil
}

// MoveFrontier advances the file's frontier to newLBA. Moves backwards are
// ignored: the frontier is the maximum end of all issued writes.
func (m *TemporaryFileManager) MoveFrontier(name string, newLBA types.LBA) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return types.NewError(types.ErrNotFound, name)
	}

	if newLBA > f.Frontier && newLBA <= f.Range.End {
		f.Frontier = newLBA
	}
	return nil
}

// Truncate shrinks name to newSizeBytes. Truncating to zero deletes the
// file; otherwise the tail blocks beyond ceil(newSize/lbaSize) return to the
// free list.
func (m *TemporaryFileManager) Truncate(name string, newSizeBytes uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return types.NewError(types.ErrNotFound, name)
	}

	if newSizeBytes == 0 {
		m.blocks.Free(f.Range)
		delete(m.files, name)
		return nil
	}

	keep := (newSizeBytes + m.lbaSize - 1) / m.lbaSize
	if keep >= f.Range.Blocks() {
		return nil
	}

	cut := f.Range.Start + types.LBA(keep)
	m.blocks.Free(types.LBARange{Start: cut, End: f.Range.End})
	f.Range.End = cut
	if f.Frontier > cut {
		f.Frontier = cut
	}
	return nil
}

// Delete releases the file's extent and drops the entry. Deleting an unknown
// name is a no-op.
func (m *TemporaryFileManager) Delete(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return
	}

	m.blocks.Free(f.Range)
	delete(m.files, name)
}

// Exists reports whether name has an entry.
func (m *TemporaryFileManager) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.files[name]
	return ok
}

// SizeBlocks returns the written length of name in LBAs.
func (m *TemporaryFileManager) SizeBlocks(name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return 0, types.NewError(types.ErrNotFound, name)
	}
	return f.SizeBlocks(), nil
}

// RangeBlocks returns the allocated length of name in LBAs; the seek bound
// of a temporary file handle.
func (m *TemporaryFileManager) RangeBlocks(name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[name]
	if !ok {
		return 0, types.NewError(types.ErrNotFound, name)
	}
	return f.Range.Blocks(), nil
}

// List calls fn for each file name, base name first stripped of any
// directory prefix, in sorted order.
func (m *TemporaryFileManager) List(fn func(name string)) {
	m.mu.Lock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	m.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		fn(name)
	}
}

// Clear drops every file and resets the block manager to one free range.
func (m *TemporaryFileManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string]*TemporaryFile)
	m.blocks.Reset()
}

// AvailableBlocks returns the free capacity of the temporary region.
func (m *TemporaryFileManager) AvailableBlocks() uint64 {
	return m.blocks.Available()
}
