package types

// DeviceGeometry describes the addressable shape of a namespace as reported
// by the device.
type DeviceGeometry struct {
	// Size of a single logical block in bytes.
	LBASize uint64
	// Total number of logical blocks in the namespace.
	LBACount uint64
}

// TotalBytes returns the byte capacity of the namespace.
func (g DeviceGeometry) TotalBytes() uint64 {
	return g.LBASize * g.LBACount
}

// DeviceCommand carries the placement of a single device I/O. The byte count
// is the length of the caller's buffer; Offset positions those bytes within
// the first LBA of the run. FilePath travels with the command so the device
// can derive an FDP placement identifier for the write.
type DeviceCommand struct {
	StartLBA LBA
	LBACount uint64
	// Byte offset into the first LBA of the run.
	Offset uint64
	// Logical path the I/O belongs to; placement-handle selection key.
	FilePath string
}

// RequiredLBACount returns the number of LBAs needed to cover nrBytes bytes
// starting at the given in-block offset.
func RequiredLBACount(lbaSize, offset, nrBytes uint64) uint64 {
	if nrBytes == 0 {
		return 0
	}
	return (offset + nrBytes + lbaSize - 1) / lbaSize
}
