package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func writeDotenv(t *testing.T, dir string, lines map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	var content string
	for k, v := range lines {
		content += k + "=" + v + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func samplePrivateKeyObfuscated(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := crypto.FromECDSA(key)
	return Obfuscate(common0xHex(hexKey))
}

func common0xHex(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hextable[c>>4]
		out[i*2+1] = hextable[c&0x0f]
	}
	return string(out)
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeDotenv(t, dir, map[string]string{
		"CHAIN_ID":       "8453",
		"VRF_ADDRESS":    "0x00000000000000000000000000000000000000Ab",
		"OBFUSCATED_KEY": samplePrivateKeyObfuscated(t),
		"DELAY_BLOCKS":   "20",
	})

	cfg, err := Load(path, NewRegistry())
	require.NoError(t, err)
	require.EqualValues(t, 8453, cfg.ChainID)
	require.EqualValues(t, 20, cfg.DelayBlocks)
	require.Equal(t, 1.5, cfg.PollDelaySeconds)
	require.Equal(t, 2.0, cfg.MaxGasGwei)
	require.Len(t, cfg.Endpoints(), 3)
}

func TestLoadRejectsUnknownChain(t *testing.T) {
	dir := t.TempDir()
	path := writeDotenv(t, dir, map[string]string{
		"CHAIN_ID":       "999999",
		"VRF_ADDRESS":    "0x00000000000000000000000000000000000000Ab",
		"OBFUSCATED_KEY": samplePrivateKeyObfuscated(t),
	})

	_, err := Load(path, NewRegistry())
	require.Error(t, err)
}

func TestLoadRejectsMissingObfuscatedKey(t *testing.T) {
	dir := t.TempDir()
	path := writeDotenv(t, dir, map[string]string{
		"CHAIN_ID":    "8453",
		"VRF_ADDRESS": "0x00000000000000000000000000000000000000Ab",
	})

	_, err := Load(path, NewRegistry())
	require.Error(t, err)
}

func TestEnvOverridesDotfile(t *testing.T) {
	dir := t.TempDir()
	path := writeDotenv(t, dir, map[string]string{
		"CHAIN_ID":       "8453",
		"VRF_ADDRESS":    "0x00000000000000000000000000000000000000Ab",
		"OBFUSCATED_KEY": samplePrivateKeyObfuscated(t),
		"DELAY_BLOCKS":   "5",
	})
	t.Setenv("DELAY_BLOCKS", "30")

	cfg, err := Load(path, NewRegistry())
	require.NoError(t, err)
	require.EqualValues(t, 30, cfg.DelayBlocks)
}

func TestRPCEndpointOverridePromotedToFront(t *testing.T) {
	dir := t.TempDir()
	path := writeDotenv(t, dir, map[string]string{
		"CHAIN_ID":       "8453",
		"VRF_ADDRESS":    "0x00000000000000000000000000000000000000Ab",
		"OBFUSCATED_KEY": samplePrivateKeyObfuscated(t),
		"RPC_ENDPOINT":   "https://custom.example/rpc",
	})

	cfg, err := Load(path, NewRegistry())
	require.NoError(t, err)
	require.Equal(t, "https://custom.example/rpc", cfg.Endpoints()[0])
}
