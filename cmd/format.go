package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-nvmefs/pkg/services"
)

var formatDBName string

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Partition a namespace and write its first superblock",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		fs, err := services.NewFileSystem(config)
		if err != nil {
			return err
		}
		defer fs.Close()

		path := "nvmefs://" + formatDBName
		if _, err := fs.OpenFile(path, services.OpenFlagRead|services.OpenFlagWrite|services.OpenFlagCreate); err != nil {
			return err
		}

		if verbose {
			free, err := fs.AvailableSpace("nvmefs://")
			if err != nil {
				return err
			}
			fmt.Printf("Formatted %s for %s, %d bytes available\n", config.DevicePath, path, free)
		}
		return nil
	},
}

func init() {
	formatCmd.Flags().StringVar(&formatDBName, "name", "main.db", "database file name to attach")
}
