package main

import (
	"fmt"
	"os"

	"github.com/user/iotmpinclient/internal/clog"
	"github.com/user/iotmpinclient/internal/config"
	"github.com/user/iotmpinclient/internal/identity"
	"github.com/user/iotmpinclient/pkg/secrets"

	iotmpinclient "github.com/user/iotmpinclient"
)

// saltSuffix names the sidecar file a sealed identity's scrypt salt is
// stored in, next to the identity file itself.
const saltSuffix = ".salt"

// loadConfig reads the configuration file and applies the flag
// overrides: --identity replaces the config file's identity_path, and
// an empty --identity-passphrase falls back to
// $IOTMPIN_IDENTITY_PASSPHRASE. An explicit flag always wins.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if identityPath != "" {
		cfg.IdentityPath = identityPath
	}
	if v := os.Getenv("IOTMPIN_IDENTITY_PASSPHRASE"); v != "" && identityPassphrase == "" {
		identityPassphrase = v
	}
	return cfg, nil
}

// loadIdentity reads the identity file named by cfg, transparently
// opening an at-rest-encrypted envelope when a passphrase was supplied.
func loadIdentity(cfg *config.Config) (*identity.Identity, error) {
	var decrypt func([]byte) ([]byte, error)
	if identityPassphrase != "" {
		salt, err := os.ReadFile(cfg.IdentityPath + saltSuffix)
		if err != nil {
			return nil, fmt.Errorf("reading identity salt: %w", err)
		}
		keyring, err := secrets.NewKeyring(identityPassphrase, salt)
		if err != nil {
			return nil, err
		}
		decrypt = func(raw []byte) ([]byte, error) { return keyring.Open(string(raw)) }
	}
	return identity.LoadFile(cfg.IdentityPath, decrypt)
}

// newLogger builds the logger used across every subcommand, honoring
// the config file's log.level.
func newLogger(cfg *config.Config) clog.Logger {
	return clog.New(cfg.Log.Level)
}

// newClient loads config and identity, then builds the public
// iotmpinclient.Client facade.
func newClient(sink iotmpinclient.EventSink) (*iotmpinclient.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	id, err := loadIdentity(cfg)
	if err != nil {
		return nil, nil, err
	}
	client, err := iotmpinclient.New(iotmpinclient.Config{
		AuthServerURL:  cfg.AuthServerURL,
		BrokerAddress:  cfg.Broker.Address,
		QoS:            byte(cfg.Broker.QoS),
		Persistent:     cfg.Broker.Persistent,
		CommandTimeout: cfg.Broker.CommandTimeout,
		Identity:       id,
		EventSink:      sink,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}
