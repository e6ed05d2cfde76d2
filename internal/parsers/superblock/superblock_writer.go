package superblock

import (
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// Encode serializes the superblock into a buffer of recordSize bytes. The
// record occupies the first types.SuperblockSize bytes; the remainder is
// zero. recordSize is normally the device LBA size so the write covers the
// whole block.
func Encode(sb *types.Superblock, endian binary.ByteOrder, recordSize int) ([]byte, error) {
	if recordSize < types.SuperblockSize {
		return nil, fmt.Errorf("record size %d smaller than superblock: need %d",
			recordSize, types.SuperblockSize)
	}
	if len(sb.DBPath) > types.MaxDBPathLen {
		return nil, types.NewError(types.ErrPathTooLong, sb.DBPath)
	}

	data := make([]byte, recordSize)
	copy(data[:types.SuperblockMagicSize], types.SuperblockMagic)

	offset := types.SuperblockMagicSize
	endian.PutUint64(data[offset:offset+8], uint64(sb.DBStart))
	offset += 8
	endian.PutUint64(data[offset:offset+8], uint64(sb.WALStart))
	offset += 8
	endian.PutUint64(data[offset:offset+8], uint64(sb.TmpStart))
	offset += 8
	endian.PutUint64(data[offset:offset+8], uint64(sb.DBFrontier))
	offset += 8
	endian.PutUint64(data[offset:offset+8], uint64(sb.WALFrontier))
	offset += 8
	endian.PutUint64(data[offset:offset+8], uint64(len(sb.DBPath)))
	offset += 8

	// Path field is NUL-padded to its full width by the zeroed buffer.
	copy(data[offset:offset+types.MaxDBPathLen], sb.DBPath)

	return data, nil
}
