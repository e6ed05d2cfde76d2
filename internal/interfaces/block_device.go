// Package interfaces defines the narrow capability contracts consumed by the
// filesystem core. The device behind them owns NVMe command submission, DMA
// bounce buffering, and FDP placement-handle selection.
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

// Device is the block-device capability the core is built against. All I/O
// is block-aligned at the device boundary; the command's Offset positions
// bytes within the first LBA of the run and the device performs any bounce
// buffering that requires.
type Device interface {
	// Geometry reports the namespace shape. Pure and idempotent.
	Geometry() types.DeviceGeometry

	// Read fills dst with len(dst) bytes from the addressed LBA run.
	Read(dst []byte, cmd types.DeviceCommand) error

	// Write stores len(src) bytes at the addressed LBA run and returns the
	// number of LBAs written. The device derives the FDP placement
	// identifier from cmd.FilePath.
	Write(src []byte, cmd types.DeviceCommand) (uint64, error)

	// Name identifies the device implementation.
	Name() string

	io.Closer
}
