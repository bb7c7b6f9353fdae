package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/pkg/secrets"
)

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "inspect or seal the identity file",
}

var identityShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the user ID embedded in the identity file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		id, err := loadIdentity(cfg)
		if err != nil {
			return err
		}
		userID, err := id.UserID()
		if err != nil {
			return err
		}
		fmt.Println(userID)
		return nil
	},
}

var identitySealCmd = &cobra.Command{
	Use:   "seal",
	Short: "encrypt a plaintext identity file at rest under a passphrase",
	Long:  "Reads the plaintext identity file named by --identity, seals it with a passphrase-derived AES-GCM key, and overwrites the file in place alongside a sidecar .salt file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if identityPassphrase == "" {
			identityPassphrase = os.Getenv("IOTMPIN_IDENTITY_PASSPHRASE")
		}
		if identityPassphrase == "" {
			return fmt.Errorf("seal requires --identity-passphrase or $IOTMPIN_IDENTITY_PASSPHRASE")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		id, err := identity.LoadFile(cfg.IdentityPath, nil)
		if err != nil {
			return err
		}

		salt, err := secrets.GenerateSalt()
		if err != nil {
			return err
		}
		keyring, err := secrets.NewKeyring(identityPassphrase, salt)
		if err != nil {
			return err
		}

		encrypt := func(raw []byte) ([]byte, error) {
			sealed, err := keyring.Seal(raw)
			return []byte(sealed), err
		}
		if err := identity.SaveFile(cfg.IdentityPath, id, encrypt); err != nil {
			return err
		}
		if err := os.WriteFile(cfg.IdentityPath+saltSuffix, salt, 0600); err != nil {
			return fmt.Errorf("writing salt file: %w", err)
		}
		fmt.Println("identity sealed:", cfg.IdentityPath)
		return nil
	},
}

func init() {
	identityCmd.AddCommand(identityShowCmd, identitySealCmd)
	rootCmd.AddCommand(identityCmd)
}
