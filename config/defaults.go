package config

import (
	"net"
	"strconv"
)

// Default RPC ports.
const (
	MainnetRPCPort = 8745
	TestnetRPCPort = 8845
)

// DefaultMainnet returns the default node configuration for mainnet.
func DefaultMainnet() *Config {
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       MainnetRPCPort,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default node configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = TestnetRPCPort
	return cfg
}

// Default returns the default node configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}

// DefaultRPCURL returns the local RPC endpoint for a network, as used by
// the CLI when no --rpc flag is given.
func DefaultRPCURL(network NetworkType) string {
	port := MainnetRPCPort
	if network == Testnet {
		port = TestnetRPCPort
	}
	return "http://" + netJoin("127.0.0.1", port)
}

func netJoin(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
