package service

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/sfa-farcaster/internal/eth"
	"github.com/layer-3/sfa-farcaster/ports"
)

// SigningProvider is a key bound to a chain connection. It only lives in
// memory and is dropped on logout.
type SigningProvider struct {
	signer  *eth.Signer
	client  ports.ChainClient
	chainID *big.Int
}

// NewSigningProvider binds a signer to a chain
func NewSigningProvider(signer *eth.Signer, client ports.ChainClient, chainID *big.Int) *SigningProvider {
	return &SigningProvider{
		signer:  signer,
		client:  client,
		chainID: new(big.Int).Set(chainID),
	}
}

// Address returns the provider's account
func (p *SigningProvider) Address() common.Address {
	return p.signer.Address()
}

// ChainID returns the chain the provider signs for
func (p *SigningProvider) ChainID() *big.Int {
	return new(big.Int).Set(p.chainID)
}
