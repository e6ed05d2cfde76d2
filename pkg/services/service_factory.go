// Package services is the public surface of the NVMe filesystem: factories
// that bind a configuration to a concrete device and return the filesystem
// facade.
package services

import (
	"github.com/deploymenttheory/go-nvmefs/internal/device"
	core "github.com/deploymenttheory/go-nvmefs/internal/services"
)

// Re-exported so callers need only this package.
type (
	FileSystem = core.FileSystem
	FileHandle = core.FileHandle
	OpenFlags  = core.OpenFlags
)

const (
	OpenFlagRead   = core.OpenFlagRead
	OpenFlagWrite  = core.OpenFlagWrite
	OpenFlagCreate = core.OpenFlagCreate
)

// NewFileSystem opens the configured device node or image and builds the
// filesystem over it.
func NewFileSystem(config *device.NvmeConfig) (*FileSystem, error) {
	dev, err := device.OpenFileDevice(config.DevicePath)
	if err != nil {
		return nil, err
	}
	return core.NewFileSystem(dev, coreConfig(config)), nil
}

// NewMemoryFileSystem builds the filesystem over an in-memory namespace,
// for tests and tooling that should not touch real storage.
func NewMemoryFileSystem(config *device.NvmeConfig, lbaCount, lbaSize uint64) *FileSystem {
	return core.NewFileSystem(device.NewMemoryDevice(lbaCount, lbaSize), coreConfig(config))
}

// TempFilePath returns a fresh opaque temporary-file path.
func TempFilePath() string {
	return core.TempFilePath()
}

func coreConfig(config *device.NvmeConfig) core.Config {
	return core.Config{
		MaxWALSize:  config.MaxWALSize,
		MaxTempSize: config.MaxTempSize,
	}
}
