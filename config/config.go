// Package config handles application configuration.
//
// Configuration is split into two categories:
//   - Registry rules: Defined in genesis, fixed at launch
//   - Node settings: Runtime configuration, can vary per node
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// NetworkType identifies mainnet or testnet.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// =============================================================================
// Node Configuration (runtime, per-node settings)
// =============================================================================

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Genesis file path. Empty uses the built-in genesis for Network.
	Genesis string `conf:"genesis"`

	// RPC server
	RPC RPCConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.aisthisi
//	macOS:   ~/Library/Application Support/Aisthisi
//	Windows: %APPDATA%\Aisthisi
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aisthisi"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Aisthisi")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Aisthisi")
		}
		return filepath.Join(home, "AppData", "Roaming", "Aisthisi")
	default:
		return filepath.Join(home, ".aisthisi")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// RegistryDir returns the registry database directory.
func (c *Config) RegistryDir() string {
	return filepath.Join(c.NetworkDataDir(), "registry")
}

// KeystoreDir returns the keystore directory.
func (c *Config) KeystoreDir() string {
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "aisthisi.conf")
}

// RPCListenAddr returns host:port for the RPC server.
func (c *Config) RPCListenAddr() string {
	return netJoin(c.RPC.Addr, c.RPC.Port)
}
