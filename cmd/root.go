package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-nvmefs/internal/device"
)

var (
	devicePath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "nvmefs",
	Short: "NVMe FDP filesystem inspection and provisioning tool",
	Long: `nvmefs manages the thin filesystem an embedded analytical database runs
directly on a raw NVMe namespace: one database file, one write-ahead log,
and a region of temporary spill files. Every write carries its file path
so the device can pick an FDP placement handle: temporary spill files get
a handle of their own, while the database and its WAL share the default
handle. The file-backed device these commands use ignores placement.

Commands:
  format      Partition a namespace and write its first superblock
  inspect     Decode and print the superblock of a namespace
  exercise    Run a write/read round-trip through the full filesystem`,
	Version: "0.1.0-dev",
}

// Execute runs the root command and exits with status 1 on error. Child
// commands and flags are registered in init.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&devicePath, "device", "", "path to the NVMe device node or namespace image")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(
		formatCmd,
		inspectCmd,
		exerciseCmd,
	)
}

// loadConfig merges the config file and environment with the --device flag.
func loadConfig() (*device.NvmeConfig, error) {
	config, err := device.LoadConfig()
	if err != nil {
		return nil, err
	}
	if devicePath != "" {
		config.DevicePath = devicePath
	}
	if config.DevicePath == "" {
		return nil, fmt.Errorf("no device given: set --device or device_path in the config")
	}
	return config, nil
}
