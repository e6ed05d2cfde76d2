// Package superblock encodes and decodes the fixed-size namespace metadata
// record stored at LBA 0. The codec is pure: it never touches the device.
package superblock

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// ErrUninitialized reports that the namespace carries no superblock: the
// first bytes at LBA 0 do not spell the magic.
var ErrUninitialized = fmt.Errorf("namespace is uninitialized")

// IsInitialized reports whether data begins with the superblock magic.
func IsInitialized(data []byte) bool {
	return len(data) >= types.SuperblockMagicSize &&
		bytes.Equal(data[:types.SuperblockMagicSize], []byte(types.SuperblockMagic))
}

// Decode parses a superblock record from raw bytes read at LBA 0. A missing
// magic prefix yields ErrUninitialized; the caller decides whether that
// means "initialize" or "fail".
func Decode(data []byte, endian binary.ByteOrder) (*types.Superblock, error) {
	if len(data) < types.SuperblockSize {
		return nil, fmt.Errorf("data too small for superblock: %d bytes, need %d",
			len(data), types.SuperblockSize)
	}

	if !IsInitialized(data) {
		return nil, ErrUninitialized
	}

	sb := &types.Superblock{}

	offset := types.SuperblockMagicSize
	sb.DBStart = types.LBA(endian.Uint64(data[offset : offset+8]))
	offset += 8
	sb.WALStart = types.LBA(endian.Uint64(data[offset : offset+8]))
	offset += 8
	sb.TmpStart = types.LBA(endian.Uint64(data[offset : offset+8]))
	offset += 8
	sb.DBFrontier = types.LBA(endian.Uint64(data[offset : offset+8]))
	offset += 8
	sb.WALFrontier = types.LBA(endian.Uint64(data[offset : offset+8]))
	offset += 8

	pathLen := endian.Uint64(data[offset : offset+8])
	offset += 8
	if pathLen > types.MaxDBPathLen {
		return nil, fmt.Errorf("corrupt superblock: path length %d exceeds %d",
			pathLen, types.MaxDBPathLen)
	}
	sb.DBPath = string(data[offset : offset+int(pathLen)])

	return sb, nil
}
