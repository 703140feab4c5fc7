// Package config is a dotfile-plus-environment loader: values come from an
// optional .env file, with any matching environment variable taking
// precedence.
package config

import (
	"crypto/ecdsa"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
)

// Config holds the validated, fully-resolved settings for one engine
// instance. It is immutable once returned from Load.
type Config struct {
	ChainID int64

	VRFAddress common.Address
	PrivateKey *ecdsa.PrivateKey

	// DelayBlocks > 0 designates this instance as a backup/delay fulfiller
	// that only dispatches requests the primary instance has let go stale.
	DelayBlocks uint64

	PollDelaySeconds float64
	MaxGasGwei       float64

	RPCEndpointOverride string
	WSSEndpoint         string

	UseVRFV25 bool

	AlertHookURL       string
	FulfillmentHookURL string

	// SuppressPatterns adds operator-configured RPC error substrings to the
	// built-in suppression list, for chains whose error text differs from
	// the two default patterns.
	SuppressPatterns []string

	registry *Registry
}

// Load reads dotenvPath (or ".env" if empty), overrides it with the process
// environment, and validates the required keys. An empty/missing dotenv file
// is not itself an error — only missing required keys are.
func Load(dotenvPath string, registry *Registry) (*Config, error) {
	if dotenvPath == "" {
		dotenvPath = ".env"
	}

	fileValues := map[string]string{}
	if _, statErr := os.Stat(dotenvPath); statErr == nil {
		var err error
		fileValues, err = godotenv.Read(dotenvPath)
		if err != nil {
			return nil, errf("dotenv", "reading %s: %w", dotenvPath, err)
		}
	}

	get := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	}

	cfg := &Config{registry: registry}

	chainIDStr, ok := get("CHAIN_ID")
	if !ok {
		return nil, errf("CHAIN_ID", "required")
	}
	chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil {
		return nil, errf("CHAIN_ID", "parse %q: %w", chainIDStr, err)
	}
	chainCfg, ok := registry.Lookup(chainID)
	if !ok {
		return nil, errf("CHAIN_ID", "unexpected chain id %d, not in registry", chainID)
	}
	cfg.ChainID = chainID

	vrfAddrStr, ok := get("VRF_ADDRESS")
	if !ok || !common.IsHexAddress(vrfAddrStr) {
		return nil, errf("VRF_ADDRESS", "expected a 20-byte hex address, got %q", vrfAddrStr)
	}
	cfg.VRFAddress = common.HexToAddress(vrfAddrStr)

	obfuscated, ok := get("OBFUSCATED_KEY")
	if !ok || obfuscated == "" {
		return nil, errf("OBFUSCATED_KEY", "required")
	}
	privHex := strings.TrimPrefix(Deobfuscate(obfuscated), "0x")
	priv, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, errf("OBFUSCATED_KEY", "did not resolve to a private key: %w", err)
	}
	cfg.PrivateKey = priv

	cfg.DelayBlocks = parseUintDefault(get, "DELAY_BLOCKS", 0)
	cfg.PollDelaySeconds = parseFloatDefault(get, "POLL_DELAY", 1.5)
	cfg.MaxGasGwei = parseFloatDefault(get, "MAX_GAS", chainCfg.MaxGasGwei)

	if v, ok := get("RPC_ENDPOINT"); ok {
		cfg.RPCEndpointOverride = v
	}
	if v, ok := get("WSS_ENDPOINT"); ok {
		cfg.WSSEndpoint = v
	}
	cfg.UseVRFV25 = parseBoolDefault(get, "USE_VRF_V25", false)

	cfg.AlertHookURL, _ = get("ALERT_HOOK_URL")
	cfg.FulfillmentHookURL, _ = get("FULFILLMENT_HOOK_URL")

	if v, ok := get("SUPPRESS_PATTERNS"); ok && v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.SuppressPatterns = append(cfg.SuppressPatterns, p)
			}
		}
	}

	return cfg, nil
}

// ChainConfig returns the registry entry backing this configuration.
func (c *Config) ChainConfig() ChainConfig {
	cc, _ := c.registry.Lookup(c.ChainID)
	return cc
}

// Endpoints returns the ordered RPC endpoint list for this chain, with
// RPCEndpointOverride (if set) promoted to the front.
func (c *Config) Endpoints() []string {
	return WithOverride(c.ChainConfig().Endpoints, c.RPCEndpointOverride)
}

// Address returns the fulfiller's address, derived from PrivateKey.
func (c *Config) Address() common.Address {
	return crypto.PubkeyToAddress(c.PrivateKey.PublicKey)
}

// PollDelay returns the configured poll interval as a time.Duration.
func (c *Config) PollDelay() time.Duration {
	return time.Duration(c.PollDelaySeconds * float64(time.Second))
}

type getterFunc func(string) (string, bool)

func parseUintDefault(get getterFunc, key string, def uint64) uint64 {
	v, ok := get(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseFloatDefault(get getterFunc, key string, def float64) float64 {
	v, ok := get(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func parseBoolDefault(get getterFunc, key string, def bool) bool {
	v, ok := get(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
