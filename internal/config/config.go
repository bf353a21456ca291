// Package config loads and validates the SDK's application configuration.
// Defaults are embedded, a config.yaml may override them, and environment
// variables with the STARKWALLET_ prefix override both. Validation happens
// before any I/O elsewhere in the SDK.
package config

import (
	"bytes"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/starkwallet-io/starkwallet-client/internal/network"
	"github.com/starkwallet-io/starkwallet-client/internal/walleterr"
)

// App is the resolved configuration the SDK runs with.
type App struct {
	AppID                 string   `mapstructure:"app_id"`
	Network               string   `mapstructure:"network"`
	SupportedNetworks     []string `mapstructure:"supported_networks"`
	CustomRPCURL          string   `mapstructure:"custom_rpc_url"`
	MaxTransactionRetries int      `mapstructure:"max_transaction_retries"`
	EnableBiometrics      bool     `mapstructure:"enable_biometrics"`
	BackendURL            string   `mapstructure:"backend_url"`
	LogLevel              string   `mapstructure:"log_level"`
}

// Dir returns the SDK's config/data directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".starkwallet"
	}
	return filepath.Join(home, ".config", "starkwallet")
}

// Load resolves configuration from embedded defaults, an optional config.yaml
// (explicit path, cwd, then the user config dir) and the environment.
func Load(path string) (*App, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultConfig)); err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"embedded defaults are broken")
	}

	v.SetConfigName("config")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(Dir())
	if err := v.MergeInConfig(); err != nil {
		// Running on pure defaults + env is fine; a malformed file is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
				"unreadable config file")
		}
	}

	v.SetEnvPrefix("STARKWALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"decode configuration")
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Validate enforces the invariants every other component assumes.
func (a *App) Validate() error {
	if !validAppID(a.AppID) {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"app id %q must be 3-64 chars of [a-z0-9-]", a.AppID)
	}

	if len(a.SupportedNetworks) == 0 {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"supported_networks must not be empty")
	}
	known := map[string]bool{
		string(network.Mainnet): true,
		string(network.Sepolia): true,
		string(network.Devnet):  true,
	}
	inSupported := false
	for _, n := range a.SupportedNetworks {
		if !known[n] {
			return walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
				"unknown network %q", n)
		}
		if n == a.Network {
			inSupported = true
		}
	}
	if !inSupported {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeUnsupportedNetwork,
			"network %q is not in supported_networks", a.Network)
	}

	if a.CustomRPCURL != "" {
		if err := validURL(a.CustomRPCURL); err != nil {
			return walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeInvalidURL,
				"custom_rpc_url %q", a.CustomRPCURL)
		}
	}
	if a.BackendURL != "" {
		if err := validURL(a.BackendURL); err != nil {
			return walleterr.Wrap(err, walleterr.KindConfiguration, walleterr.CodeInvalidURL,
				"backend_url %q", a.BackendURL)
		}
	}

	if a.MaxTransactionRetries < 0 || a.MaxTransactionRetries > 10 {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidAppID,
			"max_transaction_retries %d out of range [0,10]", a.MaxTransactionRetries)
	}
	return nil
}

// Networks converts the validated string lists to typed networks.
func (a *App) Networks() (supported []network.Network, current network.Network) {
	for _, n := range a.SupportedNetworks {
		supported = append(supported, network.Network(n))
	}
	return supported, network.Network(a.Network)
}

func validAppID(id string) bool {
	if len(id) < 3 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return walleterr.New(walleterr.KindConfiguration, walleterr.CodeInvalidURL,
			"scheme must be http(s) with a host")
	}
	return nil
}
