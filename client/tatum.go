package client

const (
	tatumMainnetURL = "https://ton-mainnet.gateway.tatum.io/api/v2"
	tatumTestnetURL = "https://ton-testnet.gateway.tatum.io/api/v2"

	tatumAPIKeyHeader = "x-api-key"
)

// NewTatum creates a Client for the Tatum TON gateway, which proxies the
// Toncenter V2 wire format behind an x-api-key header.
func NewTatum(network Network, apiKey string, opts ...Option) *Toncenter {
	base := tatumMainnetURL
	if network == Testnet {
		base = tatumTestnetURL
	}
	if apiKey != "" {
		opts = append(opts, WithHeader(tatumAPIKeyHeader, apiKey))
	}
	return newToncenterCompatible(network, base, opts...)
}
