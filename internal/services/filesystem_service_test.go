package services

import (
	"encoding/binary"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-nvmefs/internal/device"
	"github.com/deploymenttheory/go-nvmefs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// 1 GiB namespace with a 32 MiB WAL region and a 640 KiB temporary region.
const (
	testLBASize  = 4096
	testLBACount = 262144
	testWALSize  = 32 << 20  // 8192 LBAs
	testTempSize = 640 << 10 // 160 LBAs

	testDBPath  = "nvmefs://test.db"
	testWALPath = "nvmefs://test.db.wal"
	testTmpPath = "nvmefs:///tmp/spill.tmp"
)

func newTestFileSystem(t *testing.T) (*FileSystem, *device.MemoryDevice) {
	t.Helper()
	dev := device.NewMemoryDevice(testLBACount, testLBASize)
	fs := NewFileSystem(dev, Config{MaxWALSize: testWALSize, MaxTempSize: testTempSize})
	return fs, dev
}

func openTestDB(t *testing.T, fs *FileSystem) *FileHandle {
	t.Helper()
	h, err := fs.OpenFile(testDBPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)
	return h
}

func TestInitializeFreshNamespace(t *testing.T) {
	fs, dev := newTestFileSystem(t)
	openTestDB(t, fs)

	// The superblock must land at LBA 0 with the partition derived from the
	// configured bounds.
	buf := make([]byte, types.SuperblockSize)
	require.NoError(t, dev.Read(buf, types.DeviceCommand{StartLBA: 0, LBACount: 1}))

	sb, err := superblock.Decode(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, types.LBA(1), sb.DBStart)
	assert.Equal(t, types.LBA(253792), sb.WALStart)
	assert.Equal(t, types.LBA(261984), sb.TmpStart)
	assert.Equal(t, types.LBA(1), sb.DBFrontier)
	assert.Equal(t, types.LBA(253792), sb.WALFrontier)
	assert.Equal(t, testDBPath, sb.DBPath)
}

func TestOpenWithoutCreateOnFreshNamespace(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	_, err := fs.OpenFile(testDBPath, OpenFlagRead)
	assert.ErrorIs(t, err, types.ErrNoDatabaseAttached)

	_, err = fs.OpenFile(testWALPath, OpenFlagRead|OpenFlagWrite)
	assert.ErrorIs(t, err, types.ErrNoDatabaseAttached)
}

func TestOpenInvalidPath(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	_, err := fs.OpenFile("nvmefs://test", OpenFlagRead)
	assert.ErrorIs(t, err, types.ErrUnknownPathKind)
}

func TestOpenPathTooLong(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	long := PathPrefix + strings.Repeat("a", 100) + ".db"
	_, err := fs.OpenFile(long, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	assert.ErrorIs(t, err, types.ErrPathTooLong)
}

func TestOpenSecondDatabaseRejected(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	_, err := fs.OpenFile("nvmefs://other.db", OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	assert.ErrorIs(t, err, types.ErrMultipleDatabases)
}

func TestDuplicateDatabaseOpenIsIdempotent(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)
	openTestDB(t, fs)
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	payload := []byte("Hello, World!")
	require.NoError(t, h.Write(payload, 0))

	buf := make([]byte, len(payload))
	require.NoError(t, h.Read(buf, 0))
	assert.Equal(t, payload, buf)

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(testLBASize), size, "frontier advanced by one block")
}

func TestRegionIsolation(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	db := openTestDB(t, fs)

	wal, err := fs.OpenFile(testWALPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)
	tmp, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	require.NoError(t, db.Write([]byte("hello db"), 0))
	require.NoError(t, wal.Write([]byte("hello wal"), 0))
	require.NoError(t, tmp.Write([]byte("hello tmp"), 0))

	bufDB := make([]byte, 8)
	bufWAL := make([]byte, 9)
	bufTmp := make([]byte, 9)
	require.NoError(t, db.Read(bufDB, 0))
	require.NoError(t, wal.Read(bufWAL, 0))
	require.NoError(t, tmp.Read(bufTmp, 0))

	assert.Equal(t, []byte("hello db"), bufDB)
	assert.Equal(t, []byte("hello wal"), bufWAL)
	assert.Equal(t, []byte("hello tmp"), bufTmp)
}

func TestSeekPlusOffset(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	require.NoError(t, h.Write([]byte("Hello"), 5*testLBASize))

	require.NoError(t, h.Seek(3*testLBASize))
	buf := make([]byte, 5)
	require.NoError(t, h.Read(buf, 2*testLBASize))
	assert.Equal(t, []byte("Hello"), buf)
}

func TestSeekOutOfBounds(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	err := h.Seek((1 << 31) + 1)
	assert.ErrorIs(t, err, types.ErrOutOfRange)
	assert.Zero(t, h.SeekPosition())
}

func TestSeekRequiresAlignment(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	assert.ErrorIs(t, h.Seek(100), types.ErrOutOfRange)
	assert.NoError(t, h.Seek(4*testLBASize))
	assert.Equal(t, uint64(4*testLBASize), h.SeekPosition())
}

func TestWriteBeyondRegionBounds(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	// A run that exits the database region must be rejected before any
	// device call.
	dbBlocks := uint64(253792 - 1)
	err := h.Write(make([]byte, 2*testLBASize), dbBlocks*testLBASize)
	assert.ErrorIs(t, err, types.ErrOutOfRange)

	size, serr := h.Size()
	require.NoError(t, serr)
	assert.Zero(t, size, "frontier untouched by rejected write")
}

func TestFrontierUnderConcurrentWrites(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(block uint64) {
			defer wg.Done()
			h, err := fs.OpenFile(testDBPath, OpenFlagRead|OpenFlagWrite)
			if assert.NoError(t, err) {
				assert.NoError(t, h.Write(make([]byte, testLBASize), block*testLBASize))
			}
		}(uint64(i))
	}
	wg.Wait()

	h := openTestDB(t, fs)
	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(32*testLBASize), size)
}

func TestCursorAdvancingReadWrite(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	require.NoError(t, h.WriteNext(make([]byte, testLBASize)))
	require.NoError(t, h.WriteNext(make([]byte, testLBASize)))
	assert.Equal(t, uint64(2*testLBASize), h.SeekPosition())

	require.NoError(t, h.Seek(0))
	buf := make([]byte, testLBASize)
	require.NoError(t, h.ReadNext(buf))
	assert.Equal(t, uint64(testLBASize), h.SeekPosition())
}

func TestGetFileSizeWAL(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	wal, err := fs.OpenFile(testWALPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	size, err := wal.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, wal.Write(make([]byte, 3*testLBASize), 0))
	size, err = wal.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(3*testLBASize), size)
}

func TestTemporaryFileLifecycle(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	tmp, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	exists, err := fs.FileExists(testTmpPath)
	require.NoError(t, err)
	assert.True(t, exists)

	size, err := tmp.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, tmp.Write([]byte("spill"), 0))
	size, err = tmp.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(testLBASize), size)

	require.NoError(t, fs.RemoveFile(testTmpPath))
	exists, err = fs.FileExists(testTmpPath)
	require.NoError(t, err)
	assert.False(t, exists)

	// Removing again stays silent.
	require.NoError(t, fs.RemoveFile(testTmpPath))
}

func TestTemporaryGrowthAndRecycling(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	tmp, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	// Writing at block 79 forces growth to 80 blocks.
	require.NoError(t, tmp.Write(make([]byte, testLBASize), 79*testLBASize))

	free, err := fs.AvailableSpace(TempDirPath)
	require.NoError(t, err)
	assert.Equal(t, uint64((160-80)*testLBASize), free)

	require.NoError(t, fs.RemoveFile(testTmpPath))
	free, err = fs.AvailableSpace(TempDirPath)
	require.NoError(t, err)
	assert.Equal(t, uint64(160*testLBASize), free)
}

func TestTemporaryNoSpace(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	tmp, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	err = tmp.Write(make([]byte, testLBASize), 200*testLBASize)
	assert.ErrorIs(t, err, types.ErrNoSpace)
}

func TestRemoveWALResetsFrontier(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	wal, err := fs.OpenFile(testWALPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)
	require.NoError(t, wal.Write(make([]byte, 2*testLBASize), 0))

	require.NoError(t, fs.RemoveFile(testWALPath))
	size, err := wal.Size()
	require.NoError(t, err)
	assert.Zero(t, size)

	// Idempotent: a second remove leaves the frontier at the region start.
	require.NoError(t, fs.RemoveFile(testWALPath))
	size, err = wal.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRemoveDatabaseRejected(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	assert.ErrorIs(t, fs.RemoveFile(testDBPath), types.ErrUnsupported)
}

func TestTruncateLowersFrontier(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	require.NoError(t, h.Write(make([]byte, 8*testLBASize), 0))
	require.NoError(t, fs.Truncate(testDBPath, 3*testLBASize))

	size, err := h.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(3*testLBASize), size)
}

func TestFileExists(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	// Nothing attached, nothing exists.
	exists, err := fs.FileExists(testDBPath)
	require.NoError(t, err)
	assert.False(t, exists)

	h := openTestDB(t, fs)

	// The database only exists once data has been written.
	exists, err = fs.FileExists(testDBPath)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, h.Write([]byte("x"), 0))
	exists, err = fs.FileExists(testDBPath)
	require.NoError(t, err)
	assert.True(t, exists)

	// Asking about a different database is a state error.
	_, err = fs.FileExists("nvmefs://xyz.db")
	assert.ErrorIs(t, err, types.ErrMultipleDatabases)
}

func TestDirectoryOperations(t *testing.T) {
	fs, _ := newTestFileSystem(t)

	assert.False(t, fs.DirectoryExists(TempDirPath))
	assert.ErrorIs(t, fs.CreateDirectory(TempDirPath), types.ErrNoDatabaseAttached)

	openTestDB(t, fs)

	assert.True(t, fs.DirectoryExists(TempDirPath))
	assert.NoError(t, fs.CreateDirectory(TempDirPath))

	_, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	require.NoError(t, fs.RemoveDirectory(TempDirPath))
	exists, err := fs.FileExists(testTmpPath)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, fs.RemoveDirectory("nvmefs://test.db/mydirectory"),
		types.ErrUnknownPathKind)
}

func TestListFiles(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	openTestDB(t, fs)

	_, err := fs.OpenFile("nvmefs:///tmp/b.tmp", OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)
	_, err = fs.OpenFile("nvmefs:///tmp/a.tmp", OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)

	var rootNames []string
	var rootDirs []string
	require.NoError(t, fs.ListFiles(PathPrefix, func(name string, isDir bool) {
		if isDir {
			rootDirs = append(rootDirs, name)
		} else {
			rootNames = append(rootNames, name)
		}
	}))
	assert.Equal(t, []string{"test.db", "test.db.wal"}, rootNames)
	assert.Equal(t, []string{"tmp"}, rootDirs)

	var tmpNames []string
	require.NoError(t, fs.ListFiles(TempDirPath, func(name string, isDir bool) {
		assert.False(t, isDir)
		tmpNames = append(tmpNames, name)
	}))
	assert.Equal(t, []string{"a.tmp", "b.tmp"}, tmpNames)
}

func TestAvailableSpace(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	free, err := fs.AvailableSpace(PathPrefix)
	require.NoError(t, err)
	dbBlocks := uint64(253792 - 1)
	walBlocks := uint64(8192)
	assert.Equal(t, (dbBlocks+walBlocks+160)*testLBASize, free)

	require.NoError(t, h.Write(make([]byte, 4*testLBASize), 0))
	free, err = fs.AvailableSpace(PathPrefix)
	require.NoError(t, err)
	assert.Equal(t, (dbBlocks-4+walBlocks+160)*testLBASize, free)
}

func TestTrimWritesZeros(t *testing.T) {
	fs, _ := newTestFileSystem(t)
	h := openTestDB(t, fs)

	payload := make([]byte, testLBASize)
	for i := range payload {
		payload[i] = 0xAB
	}
	require.NoError(t, h.Write(payload, 0))

	require.NoError(t, h.Trim(0, testLBASize))

	buf := make([]byte, testLBASize)
	require.NoError(t, h.Read(buf, 0))
	assert.Equal(t, make([]byte, testLBASize), buf)
}

func TestSyncPersistsFrontiersAcrossInstances(t *testing.T) {
	fs, dev := newTestFileSystem(t)
	h := openTestDB(t, fs)

	require.NoError(t, h.Write(make([]byte, 5*testLBASize), 0))
	require.NoError(t, h.Sync())

	// A second facade over the same namespace observes the frontier.
	fs2 := NewFileSystem(dev, Config{MaxWALSize: testWALSize, MaxTempSize: testTempSize})
	h2, err := fs2.OpenFile(testDBPath, OpenFlagRead)
	require.NoError(t, err)

	size, err := h2.Size()
	require.NoError(t, err)
	assert.Equal(t, uint64(5*testLBASize), size)
}

func TestFDPPlacementRouting(t *testing.T) {
	fs, dev := newTestFileSystem(t)
	h := openTestDB(t, fs)

	require.NoError(t, h.Write([]byte("db"), 0))
	tmp, err := fs.OpenFile(testTmpPath, OpenFlagRead|OpenFlagWrite|OpenFlagCreate)
	require.NoError(t, err)
	require.NoError(t, tmp.Write([]byte("tmp"), 0))

	plid, ok := dev.LastPlacement(testDBPath)
	require.True(t, ok)
	assert.Equal(t, uint8(0), plid)

	plid, ok = dev.LastPlacement(testTmpPath)
	require.True(t, ok)
	assert.Equal(t, uint8(1), plid)
}

func TestTempFilePathShape(t *testing.T) {
	p := TempFilePath()
	assert.True(t, strings.HasPrefix(p, TempDirPath+"/"))
	assert.True(t, strings.HasSuffix(p, ".tmp"))
	assert.Equal(t, types.PathKindTemporary, ClassifyPath(p))
	assert.NotEqual(t, p, TempFilePath())
}
