package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "http://localhost:9000/api/login", cfg.LoginURL)
	assert.Equal(t, "http://localhost:9000", cfg.TokenIssuer)
	assert.Equal(t, "w3a-farcaster-demo", cfg.Verifier)
	assert.Equal(t, "sapphire_mainnet", cfg.KeyNetwork)
	assert.Equal(t, "https://relay.farcaster.xyz", cfg.RelayURL)
	assert.Equal(t, "Hello world!", cfg.DemoMessage)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)

	chainID, err := cfg.Chain.ChainID()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(11155111), chainID)

	amount, err := cfg.Amount()
	require.NoError(t, err)
	assert.Equal(t, "0.005", amount.String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SFA_PUBLIC_URL", "https://demo.example/")
	t.Setenv("SFA_CHAIN_ID", "0x1")
	t.Setenv("SFA_SESSION_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://demo.example/api/login", cfg.LoginURL)
	assert.Equal(t, time.Hour, cfg.SessionTTL)

	chainID, err := cfg.Chain.ChainID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SFA_CHAIN_ID":        "0xzz",
		"SFA_DEMO_RECIPIENT":  "not-an-address",
		"SFA_DEMO_AMOUNT":     "-1",
		"SFA_SIGNING_KEY":     "abcd",
		"SFA_CHAIN_NAMESPACE": "solana",
	}

	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestSigningKey(t *testing.T) {
	cfg := Config{}
	key, generated, err := cfg.SigningKey()
	require.NoError(t, err)
	assert.True(t, generated)
	assert.NotNil(t, key)

	cfg.SigningKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	key, generated, err = cfg.SigningKey()
	require.NoError(t, err)
	assert.False(t, generated)
	assert.True(t, key.PublicKey.Curve.IsOnCurve(key.PublicKey.X, key.PublicKey.Y))
}
