package types

// On-device superblock layout, little-endian, at LBA 0:
//
//	offset  0: magic  = "NVMEFS" (6 bytes, no NUL)
//	offset  6: db_start        u64
//	offset 14: wal_start       u64
//	offset 22: tmp_start       u64
//	offset 30: db_frontier     u64
//	offset 38: wal_frontier    u64
//	offset 46: db_path_len     u64
//	offset 54: db_path         [101]u8 (NUL-terminated, padded)
//
// The remainder of the LBA is reserved and written as zero. A namespace
// whose first six bytes do not spell the magic is uninitialized.

const (
	// SuperblockMagic identifies an initialized namespace.
	SuperblockMagic = "NVMEFS"

	// SuperblockMagicSize is the length of the magic prefix in bytes.
	SuperblockMagicSize = 6

	// SuperblockLBA is the block that holds the superblock.
	SuperblockLBA LBA = 0

	// MaxDBPathLen is the longest database path the superblock can record.
	MaxDBPathLen = 100

	// DBPathFieldSize is the size of the NUL-padded path field.
	DBPathFieldSize = MaxDBPathLen + 1

	// SuperblockSize is the total encoded record size including the magic.
	SuperblockSize = SuperblockMagicSize + 6*8 + DBPathFieldSize
)

// Superblock is the single persistent metadata record of a namespace. It
// fixes the partitioning into database, write-ahead-log, and temporary
// regions, and records the write frontiers of the first two.
type Superblock struct {
	// Partition boundaries. DBStart is always 1; LBA 0 holds this record.
	DBStart  LBA
	WALStart LBA
	TmpStart LBA

	// Next-free LBA within the database and WAL regions.
	DBFrontier  LBA
	WALFrontier LBA

	// Logical path of the attached database.
	DBPath string
}

// DatabaseRegion returns the LBA extent reserved for database data.
func (sb *Superblock) DatabaseRegion() LBARange {
	return LBARange{Start: sb.DBStart, End: sb.WALStart}
}

// WALRegion returns the LBA extent reserved for the write-ahead log.
func (sb *Superblock) WALRegion() LBARange {
	return LBARange{Start: sb.WALStart, End: sb.TmpStart}
}

// TemporaryRegion returns the LBA extent reserved for spill files.
func (sb *Superblock) TemporaryRegion(geometry DeviceGeometry) LBARange {
	return LBARange{Start: sb.TmpStart, End: LBA(geometry.LBACount)}
}
