package device

import (
	"fmt"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// DefaultLBASize matches the 4 KiB blocks of every namespace this
// filesystem targets.
const DefaultLBASize = 4096

// MemoryDevice emulates a namespace in a byte slice. It honours the full
// device contract including FDP placement selection, which it records per
// write so tests can observe where data was steered.
type MemoryDevice struct {
	geometry types.DeviceGeometry

	mu         sync.Mutex
	memory     []byte
	placements map[string]uint8
	lastPlid   map[string]uint8
}

// NewMemoryDevice creates an in-memory namespace of lbaCount blocks. The
// temporary directory is pinned to placement handle 1; everything else
// defaults to handle 0, mirroring the placement allocation of the real
// device.
func NewMemoryDevice(lbaCount, lbaSize uint64) *MemoryDevice {
	return &MemoryDevice{
		geometry: types.DeviceGeometry{LBASize: lbaSize, LBACount: lbaCount},
		memory:   make([]byte, lbaCount*lbaSize),
		placements: map[string]uint8{
			"nvmefs:///tmp": 1,
		},
		lastPlid: make(map[string]uint8),
	}
}

// Geometry reports the emulated namespace shape.
func (d *MemoryDevice) Geometry() types.DeviceGeometry {
	return d.geometry
}

// Name identifies the device implementation.
func (d *MemoryDevice) Name() string {
	return "MemoryDevice"
}

// PlacementIdentifier resolves the FDP placement handle for a path by
// longest matching prefix, defaulting to handle 0.
func (d *MemoryDevice) PlacementIdentifier(path string) uint8 {
	var plid uint8
	var longest int
	for prefix, p := range d.placements {
		if strings.HasPrefix(path, prefix) && len(prefix) > longest {
			plid = p
			longest = len(prefix)
		}
	}
	return plid
}

// LastPlacement returns the placement handle of the most recent write for
// path, for test observation.
func (d *MemoryDevice) LastPlacement(path string) (uint8, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	plid, ok := d.lastPlid[path]
	return plid, ok
}

func (d *MemoryDevice) byteRange(cmd types.DeviceCommand, nrBytes uint64) (uint64, error) {
	if uint64(cmd.StartLBA)+cmd.LBACount > d.geometry.LBACount {
		return 0, fmt.Errorf("LBA run [%d, %d) is beyond namespace of %d blocks",
			cmd.StartLBA, uint64(cmd.StartLBA)+cmd.LBACount, d.geometry.LBACount)
	}

	offset := uint64(cmd.StartLBA)*d.geometry.LBASize + cmd.Offset
	if offset+nrBytes > uint64(len(d.memory)) {
		return 0, fmt.Errorf("byte run [%d, %d) is beyond namespace of %d bytes",
			offset, offset+nrBytes, len(d.memory))
	}
	return offset, nil
}

// Read copies len(dst) bytes out of the addressed run.
func (d *MemoryDevice) Read(dst []byte, cmd types.DeviceCommand) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset, err := d.byteRange(cmd, uint64(len(dst)))
	if err != nil {
		return err
	}
	copy(dst, d.memory[offset:])
	return nil
}

// Write copies len(src) bytes into the addressed run and returns the LBA
// count of the command.
func (d *MemoryDevice) Write(src []byte, cmd types.DeviceCommand) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	offset, err := d.byteRange(cmd, uint64(len(src)))
	if err != nil {
		return 0, err
	}
	copy(d.memory[offset:], src)
	d.lastPlid[cmd.FilePath] = d.PlacementIdentifier(cmd.FilePath)
	return cmd.LBACount, nil
}

// Close releases nothing; the memory namespace lives until collected.
func (d *MemoryDevice) Close() error {
	return nil
}
