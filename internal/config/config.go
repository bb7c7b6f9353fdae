// Package config loads the client's YAML/JSON configuration file,
// adapted from the teacher's own internal/config loader: same
// env-var substitution syntax, same YAML-with-JSON-fallback decode.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document (spec §3's
// "Configuration": auth-server URL, broker host:port, broker command
// timeout, QoS selection, persistent-session flag, identity file
// path, log level).
type Config struct {
	AuthServerURL  string        `json:"auth_server_url" yaml:"auth_server_url"`
	Broker         BrokerConfig  `json:"broker" yaml:"broker"`
	IdentityPath   string        `json:"identity_path" yaml:"identity_path"`
	IdentitySecret string        `json:"identity_secret" yaml:"identity_secret"`
	Log            LogConfig     `json:"log" yaml:"log"`
}

// BrokerConfig configures the broker adapter (C4).
type BrokerConfig struct {
	Address        string        `json:"address" yaml:"address"`
	QoS            int           `json:"qos" yaml:"qos"`
	Persistent     bool          `json:"persistent" yaml:"persistent"`
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout"`
}

// LogConfig configures internal/clog.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with the spec-documented defaults: broker
// port 8443, QoS 1, a 10-second command timeout.
func Default() Config {
	return Config{
		Broker: BrokerConfig{
			Address:        "localhost:8443",
			QoS:            1,
			CommandTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path, substitutes ${VAR} / ${VAR:-default} environment
// references, and decodes the result as YAML (falling back to JSON
// if YAML decoding fails, since valid JSON is not always valid YAML
// under strict decoders).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	content := SubstituteEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		if jsonErr := json.Unmarshal([]byte(content), &cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: decoding %s (tried YAML and JSON): %w", path, err)
		}
	}

	return &cfg, nil
}

var envRegex = regexp.MustCompile(`\${(\w+)(?::-([^}]*))?}`)

// SubstituteEnvVars replaces ${VAR} with the environment value of VAR
// (or the literal text if VAR is unset and no default is given), and
// ${VAR:-default} with that default when VAR is unset.
func SubstituteEnvVars(input string) string {
	return envRegex.ReplaceAllStringFunc(input, func(m string) string {
		matches := envRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		envVar := matches[1]
		if val, ok := os.LookupEnv(envVar); ok {
			return val
		}
		if len(matches) > 2 && strings.Contains(m, ":-") {
			return matches[2]
		}
		return m
	})
}
