// Package engine moves the stablecoin across chains: Transfer burns locally and
// publishes a deposit message, Redeem verifies both proofs of a transfer and mints it
// to the recipient exactly once.
package engine

import (
	"context"

	"github.com/holiman/uint256"

	"circle-integration/db"
	"circle-integration/metrics"
	"circle-integration/models"
	"circle-integration/repository"
)

// UnitOfWork runs fn atomically. Nested calls join the outer unit of work.
type UnitOfWork interface {
	Update(ctx context.Context, fn func(ctx context.Context) error) error
}

// Token is the local stablecoin contract.
type Token interface {
	TransferFrom(ctx context.Context, spender, from, to models.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, from, to models.Address, amount *uint256.Int) error
}

// CustodialBridge is the custodial attester network's burn and mint entry point.
type CustodialBridge interface {
	// Burn destroys amount held by sender and returns the encoded burn message.
	Burn(ctx context.Context, sender models.Address, amount *uint256.Int, destinationDomain models.Domain,
		mintRecipient, burnToken, destinationCaller models.Address) ([]byte, error)
	// Mint executes an attested burn message. caller must match its destination caller.
	Mint(ctx context.Context, caller models.Address, message, attestation []byte) (bool, error)
}

// MessageNetwork publishes messages to be signed by the guardians. Publish charges
// MessageFee to payer.
type MessageNetwork interface {
	MessageFee() *uint256.Int
	Publish(ctx context.Context, emitter, payer models.Address, nonce uint32, payload []byte,
		consistencyLevel uint8) (uint64, error)
}

// EnvelopeVerifier verifies guardian quorum signatures and returns the signed envelope.
type EnvelopeVerifier interface {
	VerifyEnvelope(ctx context.Context, encoded []byte) (*models.Envelope, error)
}

// AttestationVerifier verifies a custodial attestation and returns the parsed message.
type AttestationVerifier interface {
	VerifyAttestation(ctx context.Context, message, attestation []byte) (*models.CustodialMessage, error)
}

// Config identifies this deployment.
type Config struct {
	ChainID  models.ChainID
	Domain   models.Domain
	Token    models.Address
	Contract models.Address
}

// Dependencies are the external collaborators the engine calls into.
type Dependencies struct {
	Token     Token
	Custodial CustodialBridge
	Network   MessageNetwork
	Guardians EnvelopeVerifier
	Attesters AttestationVerifier
}

// Engine implements outbound transfers and inbound redemptions.
type Engine struct {
	cfg      Config
	uow      UnitOfWork
	registry repository.RegistryInterface
	deps     Dependencies
	metrics  *metrics.Metrics
}

// New creates an Engine that commits through uow and keeps its state in registry.
func New(cfg Config, uow UnitOfWork, registry repository.RegistryInterface, deps Dependencies) *Engine {
	return &Engine{
		cfg:      cfg,
		uow:      uow,
		registry: registry,
		deps:     deps,
		metrics:  metrics.NewMetrics(),
	}
}

func (e *Engine) Config() Config             { return e.cfg }
func (e *Engine) ChainID() models.ChainID    { return e.cfg.ChainID }
func (e *Engine) LocalDomain() models.Domain { return e.cfg.Domain }
func (e *Engine) Token() models.Address      { return e.cfg.Token }
func (e *Engine) Contract() models.Address   { return e.cfg.Contract }

// MessageFee is the native value a transfer must send along.
func (e *Engine) MessageFee() *uint256.Int {
	return e.deps.Network.MessageFee()
}

// Finality is the consistency level deposits are published with.
func (e *Engine) Finality(ctx context.Context) (uint8, error) {
	return e.registry.Finality(ctx)
}

// RegisteredEmitter returns the trusted emitter of chain, or the zero address.
func (e *Engine) RegisteredEmitter(ctx context.Context, chain models.ChainID) (models.Address, error) {
	ep, err := e.lookupEndpoint(ctx, chain)
	if err != nil || ep == nil {
		return models.ZeroAddress, err
	}
	return ep.Emitter, nil
}

// DomainForChain returns the custodial domain registered for chain.
func (e *Engine) DomainForChain(ctx context.Context, chain models.ChainID) (models.Domain, bool, error) {
	ep, err := e.lookupEndpoint(ctx, chain)
	if err != nil || ep == nil {
		return 0, false, err
	}
	return ep.Domain, true, nil
}

// ChainForDomain returns the chain registered with domain.
func (e *Engine) ChainForDomain(ctx context.Context, domain models.Domain) (models.ChainID, bool, error) {
	chain, err := e.registry.ChainForDomain(ctx, domain)
	if db.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return chain, true, nil
}

// Endpoint returns the endpoint registered for chain, nil when there is none.
func (e *Engine) Endpoint(ctx context.Context, chain models.ChainID) (*models.RemoteEndpoint, error) {
	return e.lookupEndpoint(ctx, chain)
}

// Endpoints lists every registered endpoint.
func (e *Engine) Endpoints(ctx context.Context) ([]models.RemoteEndpoint, error) {
	return e.registry.Endpoints(ctx)
}

// IsRedeemed reports whether the burn (domain, nonce) was already redeemed here.
func (e *Engine) IsRedeemed(ctx context.Context, domain models.Domain, nonce uint64) (bool, error) {
	return e.registry.IsConsumed(ctx, models.NewRedeemKey(domain, nonce))
}

// IsInitialized reports whether impl ran its post-upgrade initialization.
func (e *Engine) IsInitialized(ctx context.Context, impl models.Address) (bool, error) {
	return e.registry.IsInitialized(ctx, impl)
}

func (e *Engine) lookupEndpoint(ctx context.Context, chain models.ChainID) (*models.RemoteEndpoint, error) {
	ep, err := e.registry.Endpoint(ctx, chain)
	if db.IsNotFound(err) {
		return nil, nil
	}
	return ep, err
}
