package cmd

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-nvmefs/internal/device"
	"github.com/deploymenttheory/go-nvmefs/internal/parsers/superblock"
	"github.com/deploymenttheory/go-nvmefs/internal/types"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode and print the superblock of a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		dev, err := device.OpenFileDevice(config.DevicePath)
		if err != nil {
			return err
		}
		defer dev.Close()

		geo := dev.Geometry()
		buf := make([]byte, types.SuperblockSize)
		readCmd := types.DeviceCommand{StartLBA: types.SuperblockLBA, LBACount: 1}
		if err := dev.Read(buf, readCmd); err != nil {
			return err
		}

		sb, err := superblock.Decode(buf, binary.LittleEndian)
		if errors.Is(err, superblock.ErrUninitialized) {
			fmt.Printf("Namespace %s is uninitialized (no %s magic at LBA 0)\n",
				config.DevicePath, types.SuperblockMagic)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Namespace:     %s (%d LBAs x %d bytes)\n", config.DevicePath, geo.LBACount, geo.LBASize)
		fmt.Printf("Database path: %s\n", sb.DBPath)
		fmt.Printf("Database:      [%d, %d) frontier %d (%d blocks written)\n",
			sb.DBStart, sb.WALStart, sb.DBFrontier, sb.DBFrontier-sb.DBStart)
		fmt.Printf("WAL:           [%d, %d) frontier %d (%d blocks written)\n",
			sb.WALStart, sb.TmpStart, sb.WALFrontier, sb.WALFrontier-sb.WALStart)
		fmt.Printf("Temporary:     [%d, %d)\n", sb.TmpStart, geo.LBACount)
		return nil
	},
}
