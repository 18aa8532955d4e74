package fees

import "fmt"

// Networks maps chain ids to human-readable names.
type Networks map[uint64]string

// DefaultNetworks covers the chains the profiler is commonly pointed at.
var DefaultNetworks = Networks{
	1:        "Ethereum Mainnet",
	10:       "Optimism",
	137:      "Polygon",
	8453:     "Base",
	42161:    "Arbitrum One",
	43114:    "Avalanche C-Chain",
	11155111: "Sepolia Testnet",
}

// Name resolves a chain id to a display name.
func (n Networks) Name(chainID uint64) string {
	if name, ok := n[chainID]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (chain ID %d)", chainID)
}
