package wallet

import (
	"context"
	"fmt"
	"time"
)

// Config selects and parameterizes the wallet backend.
type Config struct {
	Provider Provider
	RPCURL   string
	Timeout  time.Duration
}

// New creates a wallet connector for the configured provider. The provider
// must be named explicitly; there is no fallback between modes.
func New(ctx context.Context, cfg *Config) (Connector, error) {
	switch cfg.Provider {
	case ProviderSimulated:
		return NewSimulated(), nil

	case ProviderRPC:
		if cfg.RPCURL == "" {
			return nil, fmt.Errorf("rpc wallet provider requires an endpoint URL")
		}
		return NewRPC(cfg.RPCURL, cfg.Timeout), nil

	default:
		return nil, fmt.Errorf("unsupported wallet provider: %q", cfg.Provider)
	}
}
