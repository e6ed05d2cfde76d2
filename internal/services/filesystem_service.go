package services

import (
	"encoding/binary"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-nvmefs/internal/interfaces"
	"github.com/deploymenttheory/go-nvmefs/internal/metadata"
	"github.com/deploymenttheory/go-nvmefs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// Config carries the region bounds the filesystem partitions a fresh
// namespace with.
type Config struct {
	// Upper bound in bytes on the write-ahead-log region.
	MaxWALSize uint64
	// Upper bound in bytes on the temporary region.
	MaxTempSize uint64
}

// FileSystem maps database, WAL, and temporary-file paths onto the LBA space
// of one NVMe namespace. Metadata is loaded lazily: the first open of a
// database path with create semantics initializes an uninitialized
// namespace; any other first access requires an existing superblock.
type FileSystem struct {
	device interfaces.Device
	config Config
	endian binary.ByteOrder

	mu     sync.Mutex
	loaded bool
	sb     *types.Superblock
	router *regionRouter
	temp   *metadata.TemporaryFileManager
}

// NewFileSystem builds a filesystem over the given device. No I/O happens
// until the first operation.
func NewFileSystem(device interfaces.Device, config Config) *FileSystem {
	return &FileSystem{
		device: device,
		config: config,
		endian: binary.LittleEndian,
	}
}

// Name identifies the filesystem implementation.
func (fs *FileSystem) Name() string {
	return "NvmeFileSystem"
}

// CanHandleFile reports whether path belongs to this filesystem.
func (fs *FileSystem) CanHandleFile(path string) bool {
	return CanHandlePath(path)
}

// TempFilePath returns a fresh opaque temporary-file path.
func TempFilePath() string {
	return TempDirPath + "/" + uuid.NewString() + ".tmp"
}

// OpenFile validates and classifies path and returns a handle with its
// cursor at zero. Opening a database path with create semantics on an
// uninitialized namespace partitions it and writes the first superblock.
// Duplicate creates on the database or WAL are idempotent; duplicate creates
// of a temporary file reopen it.
func (fs *FileSystem) OpenFile(path string, flags OpenFlags) (*FileHandle, error) {
	if len(path) > types.MaxDBPathLen {
		return nil, types.NewError(types.ErrPathTooLong, path)
	}

	kind := ClassifyPath(path)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch kind {
	case types.PathKindInvalid:
		return nil, types.NewError(types.ErrUnknownPathKind, path)

	case types.PathKindDatabase:
		if err := fs.openDatabaseLocked(path, flags); err != nil {
			return nil, err
		}

	case types.PathKindSuperblock:
		// The sentinel is readable before metadata is loaded; loading it is
		// what the facade itself does.

	default:
		if err := fs.ensureLoadedLocked(path); err != nil {
			return nil, err
		}
		if kind == types.PathKindTemporary && flags.CreateIfMissing() {
			if err := fs.temp.Create(path); err != nil {
				return nil, err
			}
		}
	}

	return &FileHandle{fs: fs, path: path, kind: kind, flags: flags}, nil
}

// openDatabaseLocked attaches path as the namespace's database, initializing
// the superblock when the namespace is fresh and create semantics were
// requested.
func (fs *FileSystem) openDatabaseLocked(path string, flags OpenFlags) error {
	if !fs.loaded {
		err := fs.tryLoadLocked()
		switch {
		case err == nil:
		case errors.Is(err, superblock.ErrUninitialized):
			if !flags.CreateIfMissing() {
				return types.NewError(types.ErrNoDatabaseAttached, path)
			}
			return fs.initializeLocked(path)
		default:
			return err
		}
	}

	if fs.sb.DBPath != path {
		return types.NewError(types.ErrMultipleDatabases, path)
	}
	return nil
}

// tryLoadLocked reads and decodes the superblock. superblock.ErrUninitialized
// comes back untouched so callers can distinguish a fresh namespace from a
// device failure.
func (fs *FileSystem) tryLoadLocked() error {
	buf := make([]byte, types.SuperblockSize)
	cmd := types.DeviceCommand{
		StartLBA: types.SuperblockLBA,
		LBACount: 1,
		FilePath: SuperblockPath,
	}
	if err := fs.device.Read(buf, cmd); err != nil {
		return types.WrapDeviceError(SuperblockPath, err)
	}

	sb, err := superblock.Decode(buf, fs.endian)
	if err != nil {
		return err
	}

	fs.installLocked(sb)
	return nil
}

// ensureLoadedLocked loads metadata or fails with NoDatabaseAttached when
// the namespace has none.
func (fs *FileSystem) ensureLoadedLocked(path string) error {
	if fs.loaded {
		return nil
	}
	err := fs.tryLoadLocked()
	if errors.Is(err, superblock.ErrUninitialized) {
		return types.NewError(types.ErrNoDatabaseAttached, path)
	}
	return err
}

// initializeLocked partitions a fresh namespace. The temporary region is
// carved from the top of the LBA space, the WAL directly below it, and the
// database gets everything between LBA 1 and the WAL.
func (fs *FileSystem) initializeLocked(dbPath string) error {
	geo := fs.device.Geometry()

	walBlocks := (fs.config.MaxWALSize + geo.LBASize - 1) / geo.LBASize
	tmpBlocks := (fs.config.MaxTempSize + geo.LBASize - 1) / geo.LBASize
	if walBlocks+tmpBlocks+2 > geo.LBACount {
		return types.NewError(types.ErrOutOfRange, dbPath)
	}

	tmpStart := types.LBA(geo.LBACount - tmpBlocks)
	walStart := tmpStart - types.LBA(walBlocks)

	sb := &types.Superblock{
		DBStart:     1,
		WALStart:    walStart,
		TmpStart:    tmpStart,
		DBFrontier:  1,
		WALFrontier: walStart,
		DBPath:      dbPath,
	}

	fs.installLocked(sb)
	return fs.persistLocked()
}

// installLocked makes sb the live metadata and builds the router and the
// temporary manager over its partition.
func (fs *FileSystem) installLocked(sb *types.Superblock) {
	geo := fs.device.Geometry()
	fs.sb = sb
	fs.router = newRegionRouter(sb, geo)
	fs.temp = metadata.NewTemporaryFileManager(sb.TmpStart, types.LBA(geo.LBACount), geo.LBASize)
	fs.loaded = true
}

// persistLocked rewrites the superblock with the current frontiers. A full
// LBA is written so the device can commit it atomically.
func (fs *FileSystem) persistLocked() error {
	geo := fs.device.Geometry()
	fs.router.snapshot(fs.sb)

	data, err := superblock.Encode(fs.sb, fs.endian, int(geo.LBASize))
	if err != nil {
		return err
	}

	cmd := types.DeviceCommand{
		StartLBA: types.SuperblockLBA,
		LBACount: 1,
		FilePath: SuperblockPath,
	}
	if _, err := fs.device.Write(data, cmd); err != nil {
		return types.WrapDeviceError(SuperblockPath, err)
	}
	return nil
}

// translate turns (handle, nrBytes, location) into a device command. The
// effective byte offset is the handle cursor plus location; the in-block
// remainder positions bytes within the first LBA. Misaligned I/O must stay
// within a single LBA's worth of bytes; that contract is the caller's.
func (fs *FileSystem) translate(h *FileHandle, nrBytes uint64, location uint64) (types.DeviceCommand, error) {
	geo := fs.device.Geometry()
	eff := location + h.cursor
	inBlock := eff % geo.LBASize
	nrLBAs := types.RequiredLBACount(geo.LBASize, inBlock, nrBytes)

	cmd := types.DeviceCommand{
		LBACount: nrLBAs,
		Offset:   inBlock,
		FilePath: h.path,
	}

	if h.kind == types.PathKindTemporary {
		lba, err := fs.temp.GetLBA(h.path, eff, nrLBAs)
		if err != nil {
			return types.DeviceCommand{}, err
		}
		cmd.StartLBA = lba
		return cmd, nil
	}

	region := fs.router.region(h.kind)
	cmd.StartLBA = region.Start + types.LBA(eff/geo.LBASize)
	if err := fs.router.checkBounds(h.kind, h.path, cmd.StartLBA, nrLBAs); err != nil {
		return types.DeviceCommand{}, err
	}
	return cmd, nil
}

// Read fills p from the handle's file at cursor+location.
func (fs *FileSystem) Read(h *FileHandle, p []byte, location uint64) error {
	if len(p) == 0 {
		return nil
	}
	if err := fs.requireLoaded(h); err != nil {
		return err
	}

	cmd, err := fs.translate(h, uint64(len(p)), location)
	if err != nil {
		return err
	}
	if err := fs.device.Read(p, cmd); err != nil {
		return types.WrapDeviceError(h.path, err)
	}
	return nil
}

// Write stores p at cursor+location and advances the region frontier (or,
// for temporary files, the file frontier) past the written run. Frontiers
// move only after the device reports success.
func (fs *FileSystem) Write(h *FileHandle, p []byte, location uint64) error {
	if len(p) == 0 {
		return nil
	}
	if err := fs.requireLoaded(h); err != nil {
		return err
	}

	cmd, err := fs.translate(h, uint64(len(p)), location)
	if err != nil {
		return err
	}

	written, err := fs.device.Write(p, cmd)
	if err != nil {
		return types.WrapDeviceError(h.path, err)
	}

	end := cmd.StartLBA + types.LBA(written)
	switch h.kind {
	case types.PathKindDatabase, types.PathKindWAL:
		fs.router.advanceFrontier(h.kind, end)
	case types.PathKindTemporary:
		if err := fs.temp.MoveFrontier(h.path, end); err != nil {
			return err
		}
	}
	return nil
}

// requireLoaded gates data-path operations on loaded metadata. Superblock
// I/O is exempt; the load path itself issues it.
func (fs *FileSystem) requireLoaded(h *FileHandle) error {
	if h.kind == types.PathKindSuperblock {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.ensureLoadedLocked(h.path)
}

// Seek validates an absolute cursor position: LBA-aligned and inside the
// region (for a temporary file, its currently allocated range).
func (fs *FileSystem) Seek(h *FileHandle, location uint64) error {
	if err := fs.requireLoaded(h); err != nil {
		return err
	}
	geo := fs.device.Geometry()

	if location%geo.LBASize != 0 {
		return types.NewError(types.ErrOutOfRange, h.path)
	}

	var boundBlocks uint64
	if h.kind == types.PathKindTemporary {
		blocks, err := fs.temp.RangeBlocks(h.path)
		if err != nil {
			return err
		}
		boundBlocks = blocks
	} else {
		boundBlocks = fs.router.region(h.kind).Blocks()
	}

	if location > boundBlocks*geo.LBASize {
		return types.NewError(types.ErrOutOfRange, h.path)
	}

	h.cursor = location
	return nil
}

// GetFileSize reports the logical size in bytes: frontier distance for DB
// and WAL, written length for temporary files.
func (fs *FileSystem) GetFileSize(h *FileHandle) (uint64, error) {
	if err := fs.requireLoaded(h); err != nil {
		return 0, err
	}
	geo := fs.device.Geometry()

	switch h.kind {
	case types.PathKindDatabase, types.PathKindWAL:
		region := fs.router.region(h.kind)
		return uint64(fs.router.frontier(h.kind)-region.Start) * geo.LBASize, nil
	case types.PathKindTemporary:
		blocks, err := fs.temp.SizeBlocks(h.path)
		if err != nil {
			return 0, err
		}
		return blocks * geo.LBASize, nil
	default:
		return 0, types.NewError(types.ErrUnsupported, h.path)
	}
}

// FileSync re-persists the superblock so the frontiers survive a crash.
func (fs *FileSystem) FileSync(h *FileHandle) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.loaded {
		return nil
	}
	return fs.persistLocked()
}

// OnDiskFile reports whether the handle addresses persistent storage.
// Everything this filesystem serves does.
func (fs *FileSystem) OnDiskFile(h *FileHandle) bool {
	return true
}

// FileExists reports whether path names existing data. A database exists
// once something has been written past its region start; checking a
// database path other than the attached one is a state error
// (ErrMultipleDatabases).
func (fs *FileSystem) FileExists(path string) (bool, error) {
	fs.mu.Lock()
	if !fs.loaded {
		err := fs.tryLoadLocked()
		if errors.Is(err, superblock.ErrUninitialized) {
			fs.mu.Unlock()
			return false, nil
		}
		if err != nil {
			fs.mu.Unlock()
			return false, err
		}
	}
	sb := fs.sb
	fs.mu.Unlock()

	switch ClassifyPath(path) {
	case types.PathKindDatabase:
		if sb.DBPath != path {
			return false, types.NewError(types.ErrMultipleDatabases, path)
		}
		return fs.router.frontier(types.PathKindDatabase) > sb.DBStart, nil
	case types.PathKindWAL:
		return fs.router.frontier(types.PathKindWAL) > sb.WALStart, nil
	case types.PathKindTemporary:
		return fs.temp.Exists(path), nil
	case types.PathKindSuperblock:
		return true, nil
	default:
		return false, types.NewError(types.ErrUnknownPathKind, path)
	}
}

// RemoveFile deletes a temporary file or rewinds the WAL. Both are
// idempotent. The database cannot be removed.
func (fs *FileSystem) RemoveFile(path string) error {
	fs.mu.Lock()
	err := fs.ensureLoadedLocked(path)
	fs.mu.Unlock()
	if err != nil {
		return err
	}

	switch ClassifyPath(path) {
	case types.PathKindWAL:
		fs.router.resetWALFrontier()
		return nil
	case types.PathKindTemporary:
		fs.temp.Delete(path)
		return nil
	case types.PathKindDatabase, types.PathKindSuperblock:
		return types.NewError(types.ErrUnsupported, path)
	default:
		return types.NewError(types.ErrUnknownPathKind, path)
	}
}

// Truncate shrinks path to newSize bytes. For DB and WAL this lowers the
// region frontier; for temporary files the tail blocks return to the free
// list.
func (fs *FileSystem) Truncate(path string, newSize uint64) error {
	fs.mu.Lock()
	err := fs.ensureLoadedLocked(path)
	fs.mu.Unlock()
	if err != nil {
		return err
	}
	geo := fs.device.Geometry()

	switch kind := ClassifyPath(path); kind {
	case types.PathKindDatabase, types.PathKindWAL:
		region := fs.router.region(kind)
		blocks := (newSize + geo.LBASize - 1) / geo.LBASize
		if blocks > region.Blocks() {
			return types.NewError(types.ErrOutOfRange, path)
		}
		fs.router.truncateFrontier(kind, region.Start+types.LBA(blocks))
		return nil
	case types.PathKindTemporary:
		return fs.temp.Truncate(path, newSize)
	default:
		return types.NewError(types.ErrUnsupported, path)
	}
}

// Trim zeroes [offset, offset+length) through the normal write path; the
// core has no dedicated device trim.
func (fs *FileSystem) Trim(h *FileHandle, offset, length uint64) error {
	if length == 0 {
		return nil
	}
	return fs.Write(h, make([]byte, length), offset)
}

// DirectoryExists recognizes only the temporary directory, and only once
// metadata is loaded.
func (fs *FileSystem) DirectoryExists(directory string) bool {
	fs.mu.Lock()
	loaded := fs.loaded
	fs.mu.Unlock()
	return loaded && strings.HasSuffix(directory, "/tmp")
}

// CreateDirectory accepts the temporary directory as a no-op; the region
// exists by construction.
func (fs *FileSystem) CreateDirectory(directory string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !fs.loaded {
		return types.NewError(types.ErrNoDatabaseAttached, directory)
	}
	return nil
}

// RemoveDirectory clears the temporary region; every spill file is dropped
// and the allocator resets.
func (fs *FileSystem) RemoveDirectory(directory string) error {
	fs.mu.Lock()
	err := fs.ensureLoadedLocked(directory)
	fs.mu.Unlock()
	if err != nil {
		return err
	}

	if !strings.HasSuffix(directory, "/tmp") {
		return types.NewError(types.ErrUnknownPathKind, directory)
	}
	fs.temp.Clear()
	return nil
}

// ListFiles enumerates the fixed namespace: at the root, the database, its
// WAL, and the temporary directory; under /tmp, the live spill files.
func (fs *FileSystem) ListFiles(directory string, fn func(name string, isDir bool)) error {
	fs.mu.Lock()
	err := fs.ensureLoadedLocked(directory)
	sb := fs.sb
	fs.mu.Unlock()
	if err != nil {
		return err
	}

	if strings.HasSuffix(directory, "/tmp") {
		fs.temp.List(func(name string) {
			fn(name, false)
		})
		return nil
	}

	dbName := sb.DBPath
	if i := strings.LastIndexByte(dbName, '/'); i >= 0 {
		dbName = dbName[i+1:]
	}
	fn(dbName, false)
	fn(dbName+".wal", false)
	fn("tmp", true)
	return nil
}

// AvailableSpace reports the unwritten capacity in bytes: for /tmp only the
// free temporary blocks, for the root additionally the unwritten DB and WAL
// tails.
func (fs *FileSystem) AvailableSpace(path string) (uint64, error) {
	fs.mu.Lock()
	err := fs.ensureLoadedLocked(path)
	sb := fs.sb
	fs.mu.Unlock()
	if err != nil {
		return 0, err
	}
	geo := fs.device.Geometry()

	tempBytes := fs.temp.AvailableBlocks() * geo.LBASize
	if strings.HasSuffix(path, "/tmp") {
		return tempBytes, nil
	}

	dbTail := uint64(sb.WALStart - fs.router.frontier(types.PathKindDatabase))
	walTail := uint64(sb.TmpStart - fs.router.frontier(types.PathKindWAL))
	return (dbTail+walTail)*geo.LBASize + tempBytes, nil
}

// Close re-persists metadata and releases the device.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	var err error
	if fs.loaded {
		err = fs.persistLocked()
	}
	fs.mu.Unlock()

	if cerr := fs.device.Close(); err == nil {
		err = cerr
	}
	return err
}
