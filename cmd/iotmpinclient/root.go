package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath         string
	identityPath       string
	identityPassphrase string
)

var rootCmd = &cobra.Command{
	Use:   "iotmpinclient",
	Short: "iotmpinclient authenticates an IoT device and speaks to its PSK-TLS MQTT broker",
	Long:  "A command-line driver for the M-Pin Full / SOK authenticated messaging client.",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the client configuration file")
	rootCmd.PersistentFlags().StringVar(&identityPath, "identity", "", "path to the identity file (overrides the config file's identity_path)")
	rootCmd.PersistentFlags().StringVar(&identityPassphrase, "identity-passphrase", "", "passphrase for an at-rest-encrypted identity file (falls back to $IOTMPIN_IDENTITY_PASSPHRASE)")
}
