package config

// ChainConfig describes everything the engine needs to know about a single
// chain: where to reach it, and what fee ceiling to apply.
type ChainConfig struct {
	ChainID int64
	// Endpoints is the ordered list of RPC endpoints to broadcast to. The
	// first entry is also used for reads (latest block, logs, nonce).
	Endpoints []string
	// MaxGasGwei is the default fee ceiling in gwei, used when MAX_GAS is
	// not set in the environment.
	MaxGasGwei float64
	// LegacyGas marks chains that must use a legacy {gasPrice} transaction
	// instead of EIP-1559 {maxFeePerGas, maxPriorityFeePerGas}.
	LegacyGas bool
}

// Registry is the static chain-id -> chain configuration table. It is built
// once at startup and never mutated; each Config holds a reference to it,
// never a package-level global.
type Registry struct {
	chains map[int64]ChainConfig
}

// NewRegistry builds the default registry mirroring the reference
// implementation's CHAIN_ID_TO_RPC_LIST / CHAIN_ID_TO_MAX_GAS tables.
func NewRegistry() *Registry {
	r := &Registry{chains: make(map[int64]ChainConfig)}
	for _, c := range defaultChains {
		r.chains[c.ChainID] = c
	}
	return r
}

// Lookup returns the configuration for chainID, or false if this engine does
// not know about that chain.
func (r *Registry) Lookup(chainID int64) (ChainConfig, bool) {
	c, ok := r.chains[chainID]
	return c, ok
}

// legacyGasChains is the small configured set of chains that must
// use a legacy-gas transaction shape instead of EIP-1559.
var legacyGasChains = map[int64]bool{
	5000: true, // Mantle
}

var defaultChains = []ChainConfig{
	{
		ChainID: 8453, // Base Mainnet
		Endpoints: []string{
			"https://mainnet.base.org",
			"https://base-mainnet.public.blastapi.io",
			"https://base.publicnode.com",
		},
		MaxGasGwei: 2,
	},
	{
		ChainID: 84531, // Base Testnet
		Endpoints: []string{
			"https://goerli.base.org",
			"https://base-goerli.publicnode.com",
			"https://base-goerli.blockpi.network/v1/rpc/public",
		},
		MaxGasGwei: 2,
	},
	{
		ChainID: 43114, // Avalanche Mainnet
		Endpoints: []string{
			"https://api.avax.network/ext/bc/C/rpc",
			"https://rpc.ankr.com/avalanche",
			"https://avalanche.blockpi.network/v1/rpc/public",
			"https://avalanche-c-chain.publicnode.com",
			"https://ava-mainnet.public.blastapi.io/ext/bc/C/rpc",
			"https://1rpc.io/avax/c",
		},
		MaxGasGwei: 100,
	},
	{
		ChainID: 43113, // Avalanche Testnet (Fuji)
		Endpoints: []string{
			"https://api.avax-test.network/ext/bc/C/rpc",
			"https://rpc.ankr.com/avalanche_fuji",
			"https://avalanche-fuji.blockpi.network/v1/rpc/public",
		},
		MaxGasGwei: 40,
	},
	{
		ChainID: 5000, // Mantle
		Endpoints: []string{
			"https://rpc.mantle.xyz",
			"https://rpc.ankr.com/mantle",
			"https://mantle-mainnet.public.blastapi.io",
		},
		MaxGasGwei: 0.06,
		LegacyGas:  true,
	},
	{
		ChainID: 336, // MEVM devnet
		Endpoints: []string{
			"https://mevm.devnet.m1.movementlabs.xyz/v1",
		},
		MaxGasGwei: 1,
	},
}

func init() {
	for i, c := range defaultChains {
		defaultChains[i].LegacyGas = legacyGasChains[c.ChainID]
	}
}

// WithOverride returns a copy of endpoints with override promoted to index 0,
// mirroring make_web3_list_for_chain_id's override-insert-at-0 behavior.
func WithOverride(endpoints []string, override string) []string {
	if override == "" {
		return endpoints
	}
	out := make([]string, 0, len(endpoints)+1)
	out = append(out, override)
	for _, e := range endpoints {
		if e != override {
			out = append(out, e)
		}
	}
	return out
}
