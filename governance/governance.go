// Package governance applies guardian-signed administrative actions: registering
// remote endpoints, upgrading the contract implementation and updating finality.
package governance

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"go.uber.org/zap"

	"circle-integration/logger"
	"circle-integration/metrics"
	"circle-integration/models"
	"circle-integration/repository"
	"circle-integration/wire"
)

// UnitOfWork runs fn atomically. Nested calls join the outer unit of work.
type UnitOfWork interface {
	Update(ctx context.Context, fn func(ctx context.Context) error) error
}

// EnvelopeVerifier verifies guardian quorum signatures and returns the signed envelope.
type EnvelopeVerifier interface {
	VerifyEnvelope(ctx context.Context, encoded []byte) (*models.Envelope, error)
}

// Upgrader swaps the contract implementation. Proxy plumbing lives behind it.
type Upgrader interface {
	Upgrade(ctx context.Context, impl models.Address) error
}

// Config is the identity governance messages are checked against.
type Config struct {
	ChainID            models.ChainID
	Domain             models.Domain
	GovernanceChain    models.ChainID
	GovernanceContract models.Address
}

// Processor verifies and applies governance actions. Each action is one unit of work:
// a rejected action changes nothing, its sequence included.
type Processor struct {
	cfg      Config
	uow      UnitOfWork
	registry repository.RegistryInterface
	verifier EnvelopeVerifier
	upgrader Upgrader
	metrics  *metrics.Metrics
}

// NewProcessor creates a Processor that accepts envelopes from the governance
// contract in cfg, verified by verifier, and records their effects in registry.
func NewProcessor(cfg Config, uow UnitOfWork, registry repository.RegistryInterface,
	verifier EnvelopeVerifier, upgrader Upgrader) *Processor {
	return &Processor{
		cfg:      cfg,
		uow:      uow,
		registry: registry,
		verifier: verifier,
		upgrader: upgrader,
		metrics:  metrics.NewMetrics(),
	}
}

// Config returns the governance identity of this processor.
func (p *Processor) Config() Config {
	return p.cfg
}

// Submit applies whichever action encoded carries.
func (p *Processor) Submit(ctx context.Context, encoded []byte) (models.GovernanceAction, error) {
	envelope, err := wire.DecodeEnvelope(encoded)
	if err != nil {
		return 0, err
	}
	action, err := wire.PeekGovernanceAction(envelope.Payload)
	if err != nil {
		return 0, err
	}

	switch action {
	case models.ActionRegisterEmitterAndDomain:
		_, err = p.RegisterEmitterAndDomain(ctx, encoded)
	case models.ActionUpgradeContract:
		_, err = p.UpgradeContract(ctx, encoded)
	case models.ActionUpdateFinality:
		_, err = p.UpdateFinality(ctx, encoded)
	default:
		err = errorsmod.Wrapf(models.ErrInvalidGovernance, "unknown governance action %d", action)
	}
	return action, err
}

// RegisterEmitterAndDomain trusts a foreign chain's emitter and custodial domain.
func (p *Processor) RegisterEmitterAndDomain(ctx context.Context, encoded []byte) (*models.RegisterEmitterAndDomain, error) {
	var msg *models.RegisterEmitterAndDomain
	decode := func(e *models.Envelope) (*models.GovernanceHeader, error) {
		var err error
		if msg, err = wire.DecodeRegisterEmitterAndDomain(e); err != nil {
			return nil, err
		}
		return &msg.GovernanceHeader, nil
	}
	run := func(ctx context.Context) error {
		if msg.ForeignChain == p.cfg.ChainID {
			return errorsmod.Wrap(models.ErrInvalidEndpoint, "cannot register own chain")
		}
		if msg.ForeignDomain == p.cfg.Domain {
			return errorsmod.Wrap(models.ErrInvalidEndpoint, "cannot register own domain")
		}
		return p.registry.RegisterEndpoint(ctx, models.RemoteEndpoint{
			Chain:   msg.ForeignChain,
			Emitter: msg.ForeignEmitter,
			Domain:  msg.ForeignDomain,
		})
	}
	if err := p.apply(ctx, models.ActionRegisterEmitterAndDomain, encoded, decode, run); err != nil {
		return nil, err
	}

	p.metrics.RegisteredEndpoints.Inc()
	logger.Logger.Info("Registered emitter and domain",
		zap.Uint16("chain", uint16(msg.ForeignChain)),
		zap.Stringer("emitter", msg.ForeignEmitter),
		zap.Uint32("domain", uint32(msg.ForeignDomain)),
		zap.Uint64("sequence", msg.Sequence))
	return msg, nil
}

// UpgradeContract hands the new implementation to the upgrader, then runs its
// initialization. An implementation can only be initialized once.
func (p *Processor) UpgradeContract(ctx context.Context, encoded []byte) (*models.UpgradeContract, error) {
	var msg *models.UpgradeContract
	decode := func(e *models.Envelope) (*models.GovernanceHeader, error) {
		var err error
		if msg, err = wire.DecodeUpgradeContract(e); err != nil {
			return nil, err
		}
		return &msg.GovernanceHeader, nil
	}
	run := func(ctx context.Context) error {
		if msg.NewImplementation.IsZero() {
			return errorsmod.Wrap(models.ErrInvalidGovernance, "new implementation is zero")
		}
		if err := p.upgrader.Upgrade(ctx, msg.NewImplementation); err != nil {
			return err
		}
		return p.InitializeImplementation(ctx, msg.NewImplementation)
	}
	if err := p.apply(ctx, models.ActionUpgradeContract, encoded, decode, run); err != nil {
		return nil, err
	}

	logger.Logger.Info("Contract upgraded",
		zap.Stringer("implementation", msg.NewImplementation),
		zap.Uint64("sequence", msg.Sequence))
	return msg, nil
}

// UpdateFinality sets the consistency level outbound deposits are published with.
func (p *Processor) UpdateFinality(ctx context.Context, encoded []byte) (*models.UpdateFinality, error) {
	var msg *models.UpdateFinality
	decode := func(e *models.Envelope) (*models.GovernanceHeader, error) {
		var err error
		if msg, err = wire.DecodeUpdateFinality(e); err != nil {
			return nil, err
		}
		return &msg.GovernanceHeader, nil
	}
	run := func(ctx context.Context) error {
		if msg.Finality == 0 {
			return errorsmod.Wrap(models.ErrInvalidGovernance, "finality must be > 0")
		}
		return p.registry.SetFinality(ctx, msg.Finality)
	}
	if err := p.apply(ctx, models.ActionUpdateFinality, encoded, decode, run); err != nil {
		return nil, err
	}

	logger.Logger.Info("Finality updated",
		zap.Uint8("finality", msg.Finality),
		zap.Uint64("sequence", msg.Sequence))
	return msg, nil
}

// InitializeImplementation records that impl ran its initializer.
func (p *Processor) InitializeImplementation(ctx context.Context, impl models.Address) error {
	return p.registry.MarkInitialized(ctx, impl)
}

// apply runs one governance action as a unit of work: quorum, governance emitter,
// action decoding, target chain, sequence, then the action itself.
func (p *Processor) apply(ctx context.Context, action models.GovernanceAction, encoded []byte,
	decode func(e *models.Envelope) (*models.GovernanceHeader, error), run func(ctx context.Context) error) error {

	err := p.uow.Update(ctx, func(ctx context.Context) error {
		envelope, err := p.verifier.VerifyEnvelope(ctx, encoded)
		if err != nil {
			return err
		}
		if envelope.EmitterChain != p.cfg.GovernanceChain || envelope.EmitterAddress != p.cfg.GovernanceContract {
			return errorsmod.Wrapf(models.ErrInvalidGovernance,
				"emitter %s on chain %d is not the governance contract", envelope.EmitterAddress, envelope.EmitterChain)
		}

		header, err := decode(envelope)
		if err != nil {
			return err
		}
		if header.TargetChain != p.cfg.ChainID {
			return errorsmod.Wrapf(models.ErrInvalidGovernance,
				"governance message targets chain %d, this is chain %d", header.TargetChain, p.cfg.ChainID)
		}
		if err := p.registry.AdvanceGovernanceSequence(ctx, action, header.Sequence); err != nil {
			return err
		}
		return run(ctx)
	})

	outcome, code := metrics.Outcome(err)
	p.metrics.GovernanceActions.WithLabelValues(action.String(), outcome, code).Inc()
	if err != nil {
		logger.Logger.Warn("Governance action rejected", zap.Stringer("action", action), zap.Error(err))
	}
	return err
}
