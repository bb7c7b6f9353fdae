package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/user/iotmpinclient/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print the iotmpinclient version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("iotmpinclient %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
