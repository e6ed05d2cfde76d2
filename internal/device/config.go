// Package device provides the configuration loader and the concrete block
// devices the filesystem runs against: a memory-backed namespace for tests
// and tooling, and a file-backed namespace over a raw image or device node.
package device

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Backend tags accepted by the I/O layer. Selection is configuration only;
// it never changes the core contract.
var (
	asyncBackends = map[string]struct{}{
		"io_uring": {}, "io_uring_cmd": {}, "spdk_async": {}, "libaio": {},
		"io_ring": {}, "iocp": {}, "iocp_th": {}, "posix": {}, "emu": {},
		"thrpool": {}, "nil": {},
	}
	syncBackends = map[string]struct{}{
		"spdk_sync": {}, "nvme": {},
	}
)

// NvmeConfig is the device configuration record consumed by the filesystem
// and the submission layer behind it.
type NvmeConfig struct {
	// Target NVMe device node or image path.
	DevicePath string `mapstructure:"device_path"`
	// Storage backend tag; sanitized against the known backend sets.
	Backend string `mapstructure:"backend"`
	// Derived from the backend; not settable directly.
	Async bool
	// Number of FDP placement handles to discover.
	PlacementHandles uint64 `mapstructure:"placement_handles"`
	// Upper bound in bytes on the temporary region.
	MaxTempSize uint64 `mapstructure:"max_temp_size"`
	// Upper bound in bytes on the WAL region.
	MaxWALSize uint64 `mapstructure:"max_wal_size"`
	// Advisory parallelism hint for the device.
	MaxThreads uint64 `mapstructure:"max_threads"`
}

// LoadConfig reads nvmefs-config.yaml from the usual locations, merged with
// NVMEFS_* environment variables and defaults.
func LoadConfig() (*NvmeConfig, error) {
	v := viper.New()
	v.SetConfigName("nvmefs-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.nvmefs")
	v.AddConfigPath("/etc/nvmefs")

	v.SetDefault("backend", "nvme")
	v.SetDefault("placement_handles", 8)
	v.SetDefault("max_temp_size", uint64(200)<<30)
	v.SetDefault("max_wal_size", uint64(1)<<25)
	v.SetDefault("max_threads", 8)

	v.SetEnvPrefix("NVMEFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; defaults and environment apply.
	}

	var config NvmeConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.Async = IsAsyncBackend(config.Backend)
	config.Backend = SanitizeBackend(config.Backend)

	return &config, nil
}

// SanitizeBackend maps a requested backend onto the supported set. Unknown
// or empty tags resolve to the synchronous nvme backend; the spdk variants
// collapse to their common driver name.
func SanitizeBackend(backend string) string {
	_, async := asyncBackends[backend]
	_, sync := syncBackends[backend]
	if backend == "" || (!async && !sync) {
		return "nvme"
	}
	if strings.HasPrefix(backend, "spdk_") {
		return "spdk"
	}
	return backend
}

// IsAsyncBackend reports whether the backend submits asynchronously.
func IsAsyncBackend(backend string) bool {
	_, ok := asyncBackends[backend]
	return ok
}
