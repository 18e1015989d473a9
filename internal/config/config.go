package config

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ChainConfig describes the single network wallet actions run against
type ChainConfig struct {
	Namespace        string `env:"SFA_CHAIN_NAMESPACE"          envDefault:"eip155"`
	ChainIDHex       string `env:"SFA_CHAIN_ID"                 envDefault:"0xaa36a7"`
	RPCURL           string `env:"SFA_CHAIN_RPC_URL"            envDefault:"https://rpc.ankr.com/eth_sepolia"`
	DisplayName      string `env:"SFA_CHAIN_DISPLAY_NAME"       envDefault:"Ethereum Sepolia Testnet"`
	BlockExplorerURL string `env:"SFA_CHAIN_BLOCK_EXPLORER_URL" envDefault:"https://sepolia.etherscan.io"`
	Ticker           string `env:"SFA_CHAIN_TICKER"             envDefault:"ETH"`
	TickerName       string `env:"SFA_CHAIN_TICKER_NAME"        envDefault:"Ethereum"`
}

// ChainID parses the hex chain id
func (c ChainConfig) ChainID() (*big.Int, error) {
	raw := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.ChainIDHex)), "0x")
	id, ok := new(big.Int).SetString(raw, 16)
	if !ok || id.Sign() <= 0 {
		return nil, fmt.Errorf("invalid chain id %q", c.ChainIDHex)
	}
	return id, nil
}

// Config is the service configuration
type Config struct {
	ListenAddr string `env:"SFA_LISTEN_ADDR"  envDefault:":9000"`
	PublicURL  string `env:"SFA_PUBLIC_URL"   envDefault:"http://localhost:9000"`
	LogLevel   string `env:"SFA_LOG_LEVEL"    envDefault:"info"`
	RedisURL   string `env:"REDIS_URL"`

	// Farcaster auth relay
	RelayURL   string `env:"SFA_FARCASTER_RELAY_URL" envDefault:"https://relay.farcaster.xyz"`
	SIWEDomain string `env:"SFA_SIWE_DOMAIN"         envDefault:"example.com"`
	SIWEURI    string `env:"SFA_SIWE_URI"            envDefault:"http://example.com/login"`

	// Login exchange endpoint. Empty means this service's own /api/login.
	LoginURL      string `env:"SFA_LOGIN_URL"`
	SigningKeyHex string `env:"SFA_SIGNING_KEY"`
	TokenIssuer   string `env:"SFA_TOKEN_ISSUER"`

	// Key network
	KeyNetworkURL string `env:"SFA_KEY_NETWORK_URL"    envDefault:"http://localhost:8545"`
	ClientID      string `env:"SFA_WEB3AUTH_CLIENT_ID" envDefault:"BPi5PB_UiIZ-cPz1GtV5i1I2iOSOHuimiXBI0e-Oe_u6X3oVAbCiAZOTEBtTXw4tsluTITPqA8zMsfxIKMjiqNQ"`
	KeyNetwork    string `env:"SFA_WEB3AUTH_NETWORK"   envDefault:"sapphire_mainnet"`
	Verifier      string `env:"SFA_VERIFIER"           envDefault:"w3a-farcaster-demo"`

	Chain ChainConfig

	// Demo wallet actions
	DemoMessage   string `env:"SFA_DEMO_MESSAGE"   envDefault:"Hello world!"`
	DemoRecipient string `env:"SFA_DEMO_RECIPIENT" envDefault:"0xeaA8Af602b2eDE45922818AE5f9f7FdE50cFa1A8"`
	DemoAmount    string `env:"SFA_DEMO_AMOUNT"    envDefault:"0.005"`

	ChallengeTTL   time.Duration `env:"SFA_CHALLENGE_TTL"   envDefault:"5m"`
	SessionTTL     time.Duration `env:"SFA_SESSION_TTL"     envDefault:"24h"`
	BearerTTL      time.Duration `env:"SFA_BEARER_TTL"      envDefault:"5m"`
	RequestTimeout time.Duration `env:"SFA_REQUEST_TIMEOUT" envDefault:"15s"`
	ConfirmTimeout time.Duration `env:"SFA_CONFIRM_TIMEOUT" envDefault:"2m"`
	SecureCookies  bool          `env:"SFA_SECURE_COOKIES"  envDefault:"false"`
}

// Load reads the configuration from the environment and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	if cfg.LoginURL == "" {
		cfg.LoginURL = cfg.PublicURL + "/api/login"
	}
	if cfg.TokenIssuer == "" {
		cfg.TokenIssuer = cfg.PublicURL
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks values env tags cannot express
func (c Config) Validate() error {
	if _, err := c.Chain.ChainID(); err != nil {
		return err
	}
	if c.Chain.Namespace != "eip155" {
		return fmt.Errorf("unsupported chain namespace %q", c.Chain.Namespace)
	}
	if !common.IsHexAddress(c.DemoRecipient) {
		return fmt.Errorf("SFA_DEMO_RECIPIENT is not an address: %q", c.DemoRecipient)
	}
	if _, err := c.Amount(); err != nil {
		return err
	}
	if c.ClientID == "" {
		return fmt.Errorf("SFA_WEB3AUTH_CLIENT_ID is required")
	}
	if c.Verifier == "" {
		return fmt.Errorf("SFA_VERIFIER is required")
	}
	if c.SigningKeyHex != "" {
		if _, err := parseP256Key(c.SigningKeyHex); err != nil {
			return err
		}
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive")
	}
	return nil
}

// Amount returns the demo transfer amount in ether
func (c Config) Amount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(c.DemoAmount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("SFA_DEMO_AMOUNT is not a decimal: %w", err)
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("SFA_DEMO_AMOUNT must be positive")
	}
	return amount, nil
}

// SigningKey returns the P-256 key tokens are signed with. When none is
// configured an ephemeral key is generated and generated is true.
func (c Config) SigningKey() (key *ecdsa.PrivateKey, generated bool, err error) {
	if c.SigningKeyHex == "" {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		return key, true, err
	}
	key, err = parseP256Key(c.SigningKeyHex)
	return key, false, err
}

func parseP256Key(hexKey string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("SFA_SIGNING_KEY is not hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("SFA_SIGNING_KEY must be 32 bytes")
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("SFA_SIGNING_KEY is out of range")
	}

	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(raw)
	return key, nil
}
