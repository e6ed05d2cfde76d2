package device

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// FileDevice serves the device contract from a raw image file or device
// node. It stands in for the NVMe submission layer in tooling and
// integration tests; FDP placement is accepted and dropped, as a
// conventional block device would.
type FileDevice struct {
	file     *os.File
	geometry types.DeviceGeometry
}

// OpenFileDevice opens path and derives the namespace geometry from its
// size using the default 4 KiB block.
func OpenFileDevice(path string) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open device image: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat device image: %w", err)
	}

	lbaCount := uint64(info.Size()) / DefaultLBASize
	if lbaCount == 0 {
		file.Close()
		return nil, fmt.Errorf("device image %s smaller than one block", path)
	}

	return &FileDevice{
		file:     file,
		geometry: types.DeviceGeometry{LBASize: DefaultLBASize, LBACount: lbaCount},
	}, nil
}

// Geometry reports the namespace shape derived from the image size.
func (d *FileDevice) Geometry() types.DeviceGeometry {
	return d.geometry
}

// Name identifies the device implementation.
func (d *FileDevice) Name() string {
	return "FileDevice"
}

// Read fills dst from the addressed run.
func (d *FileDevice) Read(dst []byte, cmd types.DeviceCommand) error {
	offset := int64(uint64(cmd.StartLBA)*d.geometry.LBASize + cmd.Offset)
	if _, err := d.file.ReadAt(dst, offset); err != nil {
		return fmt.Errorf("failed to read %d bytes at LBA %d: %w", len(dst), cmd.StartLBA, err)
	}
	return nil
}

// Write stores src at the addressed run.
func (d *FileDevice) Write(src []byte, cmd types.DeviceCommand) (uint64, error) {
	offset := int64(uint64(cmd.StartLBA)*d.geometry.LBASize + cmd.Offset)
	if _, err := d.file.WriteAt(src, offset); err != nil {
		return 0, fmt.Errorf("failed to write %d bytes at LBA %d: %w", len(src), cmd.StartLBA, err)
	}
	return cmd.LBACount, nil
}

// Close releases the underlying file.
func (d *FileDevice) Close() error {
	return d.file.Close()
}
