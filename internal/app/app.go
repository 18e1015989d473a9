// Package app wires the service's dependencies. An App is built once in
// main and closed on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	log "github.com/ipfs/go-log/v2"
	"github.com/layer-3/sfa-farcaster/adapters/events"
	"github.com/layer-3/sfa-farcaster/adapters/keynetwork"
	"github.com/layer-3/sfa-farcaster/adapters/relay"
	"github.com/layer-3/sfa-farcaster/adapters/store"
	"github.com/layer-3/sfa-farcaster/adapters/tokenizer"
	"github.com/layer-3/sfa-farcaster/internal/config"
	"github.com/layer-3/sfa-farcaster/ports"
	"github.com/layer-3/sfa-farcaster/service"
	transport "github.com/layer-3/sfa-farcaster/transport/http"
	"github.com/redis/go-redis/v9"
)

var logger = log.Logger("sfa/app")

// App owns every long lived dependency of the service
type App struct {
	Keys *service.KeyProvider

	router  *gin.Engine
	closers []func() error
}

// Deps lets callers replace the external collaborators. Nil fields are
// built from the configuration.
type Deps struct {
	Store      ports.Store
	Publisher  message.Publisher
	Relay      ports.Relay
	KeyNetwork ports.KeyNetwork
	Chain      ports.ChainClient
}

// New builds an App from cfg
func New(ctx context.Context, cfg config.Config) (*App, error) {
	return NewWithDeps(ctx, cfg, Deps{})
}

// NewWithDeps builds an App from cfg, using deps where set
func NewWithDeps(ctx context.Context, cfg config.Config, deps Deps) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	chainID, err := cfg.Chain.ChainID()
	if err != nil {
		return nil, err
	}

	amount, err := cfg.Amount()
	if err != nil {
		return nil, err
	}

	signKey, generated, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warnw("no signing key configured, bearer tokens will not survive a restart")
	}

	tok, err := tokenizer.NewJWTTokenizer(signKey, cfg.TokenIssuer, cfg.Verifier)
	if err != nil {
		return nil, err
	}

	if deps.Store == nil || deps.Publisher == nil {
		if err := a.connectBackends(cfg, &deps); err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}

	if deps.Relay == nil {
		deps.Relay = relay.NewFarcasterRelay(cfg.RelayURL, cfg.SIWEDomain, cfg.SIWEURI, httpClient)
	}

	if deps.KeyNetwork == nil {
		network, client, err := keynetwork.Dial(ctx, cfg.KeyNetworkURL, cfg.ClientID, cfg.KeyNetwork)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		deps.KeyNetwork = network
	}

	if deps.Chain == nil {
		client, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
		}
		a.closers = append(a.closers, func() error {
			client.Close()
			return nil
		})
		deps.Chain = client
	}

	a.Keys = service.NewKeyProvider(deps.KeyNetwork, deps.Chain, tok, chainID, cfg.Verifier)

	eventPub := events.NewWatermillPublisher(deps.Publisher)
	identity := service.NewIdentityService(tok, deps.Relay, cfg.ChallengeTTL)
	bridge := service.NewSessionBridge(deps.Store, tok, eventPub, a.Keys, httpClient, cfg.LoginURL, cfg.SessionTTL)
	wallet := service.NewWalletActions(cfg.ConfirmTimeout)
	flow := service.NewLoginFlow(bridge, a.Keys, wallet, tok)
	issuer := service.NewLoginIssuer(tok, cfg.SIWEDomain, cfg.BearerTTL)

	handlers := transport.NewHandlers(identity, bridge, flow, a.Keys, wallet, issuer, transport.Options{
		SecureCookies: cfg.SecureCookies,
		SessionTTL:    cfg.SessionTTL,
		ChallengeTTL:  cfg.ChallengeTTL,
		ChainName:     cfg.Chain.DisplayName,
		ExplorerURL:   cfg.Chain.BlockExplorerURL,
		DemoMessage:   cfg.DemoMessage,
		DemoRecipient: cfg.DemoRecipient,
		DemoAmount:    amount,
	})
	a.router = transport.SetupRouter(handlers)

	return a, nil
}

// connectBackends fills the store and event publisher. With REDIS_URL set
// both live in Redis, otherwise they stay in process.
func (a *App) connectBackends(cfg config.Config, deps *Deps) error {
	wmLogger := watermill.NewStdLogger(false, false)

	if cfg.RedisURL == "" {
		logger.Infow("REDIS_URL not set, using in-memory session store and events")
		if deps.Store == nil {
			deps.Store = store.NewMemoryStore()
		}
		if deps.Publisher == nil {
			pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
			a.closers = append(a.closers, pubSub.Close)
			deps.Publisher = pubSub
		}
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisClient := redis.NewClient(opts)

	if deps.Store == nil {
		deps.Store = store.NewRedisStore(redisClient)
	}

	if deps.Publisher != nil {
		a.closers = append(a.closers, redisClient.Close)
		return nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		_ = redisClient.Close()
		return fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	// The publisher closes the client it was given
	a.closers = append(a.closers, publisher.Close)
	deps.Publisher = publisher

	return nil
}

// Init bootstraps the key provider. Requests are served meanwhile;
// derivations fail with NotReady until it succeeds.
func (a *App) Init(ctx context.Context) error {
	return a.Keys.Init(ctx)
}

// Router returns the HTTP handler
func (a *App) Router() http.Handler {
	return a.router
}

// Close releases the App's connections in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
