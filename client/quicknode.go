package client

import "strings"

// QuickNode TON endpoints expose the Toncenter V2 wire format under a
// per-customer base URL, so the client is a thin wrapper.

// NewQuickNode creates a Client for a QuickNode TON endpoint. endpointURL
// is the full HTTP URL from the QuickNode dashboard.
func NewQuickNode(network Network, endpointURL string, opts ...Option) *Toncenter {
	base := strings.TrimSuffix(endpointURL, "/")
	if !strings.HasSuffix(base, "/jsonRPC") && !strings.Contains(base, "/api/") {
		base += "/api/v2"
	}
	return newToncenterCompatible(network, base, opts...)
}
