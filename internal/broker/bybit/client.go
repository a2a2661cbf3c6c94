package bybit

import (
	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// Config selects the Bybit environment and credentials.
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "linear", "inverse", "spot"
	Testnet   bool
	Demo      bool // demo trading environment
}

// newHTTPClient builds the underlying API client for the configured
// environment.
func newHTTPClient(cfg Config) *bybit_api.Client {
	var baseURL string
	switch {
	case cfg.Demo:
		baseURL = "https://api-demo.bybit.com"
	case cfg.Testnet:
		baseURL = bybit_api.TESTNET
	default:
		baseURL = bybit_api.MAINNET
	}

	return bybit_api.NewBybitHttpClient(
		cfg.APIKey,
		cfg.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)
}

// Environment describes the configured venue environment.
func (c Config) Environment() string {
	switch {
	case c.Demo:
		return "demo"
	case c.Testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}
