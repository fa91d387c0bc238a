// Package devnet provides in-process reference implementations of the collaborators
// the integration talks to: the stablecoin, the guardian message network, the
// custodial transmitter and the upgrade mechanism. They share the chain's LevelDB so
// a failed transfer or redemption also rolls back their side effects.
package devnet

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"circle-integration/attestation"
	"circle-integration/db"
	"circle-integration/engine"
	"circle-integration/governance"
	"circle-integration/models"
	"circle-integration/repository"
)

// ChainConfig describes one chain of the devnet.
type ChainConfig struct {
	ChainID            models.ChainID
	Domain             models.Domain
	Token              models.Address
	Contract           models.Address
	Transmitter        models.Address
	GovernanceChain    models.ChainID
	GovernanceContract models.Address
	MessageFee         *uint256.Int
	Finality           uint8
	Faucet             bool

	GuardianSet        models.GuardianSet
	Attesters          []common.Address
	SignatureThreshold uint32
}

// Chain is a fully wired integration deployment on one chain.
type Chain struct {
	Config      ChainConfig
	DB          *db.LevelDB
	Registry    *repository.Registry
	Ledger      *Ledger
	Native      *Ledger
	Wallet      *Wallet
	Network     *MessageNetwork
	Transmitter *Transmitter
	Upgrader    *Upgrader
	Engine      *engine.Engine
	Governance  *governance.Processor
}

// NewChain wires every component on ldb. The guardian set is installed unless the
// network already knows it, and the finality is initialized once.
func NewChain(ctx context.Context, ldb *db.LevelDB, cfg ChainConfig) (*Chain, error) {
	registry := repository.NewRegistry(ldb)
	ledger := NewLedger(ldb, cfg.Token, cfg.Transmitter)
	native := NewNativeLedger(ldb, FaucetAddress)
	network := NewMessageNetwork(ldb, cfg.ChainID, cfg.MessageFee, native)
	transmitter, err := NewTransmitter(ldb, cfg.Transmitter, cfg.Domain, ledger, cfg.Attesters, cfg.SignatureThreshold)
	if err != nil {
		return nil, err
	}
	upgrader := NewUpgrader(ldb)

	if err := installGuardianSet(ctx, network, cfg.GuardianSet); err != nil {
		return nil, err
	}
	if err := initFinality(ctx, registry, cfg.Finality); err != nil {
		return nil, err
	}

	guardians := attestation.NewGuardianVerifier(network)
	eng := engine.New(engine.Config{
		ChainID:  cfg.ChainID,
		Domain:   cfg.Domain,
		Token:    cfg.Token,
		Contract: cfg.Contract,
	}, ldb, registry, engine.Dependencies{
		Token:     ledger,
		Custodial: transmitter,
		Network:   network,
		Guardians: guardians,
		Attesters: attestation.NewCustodialVerifier(transmitter),
	})
	gov := governance.NewProcessor(governance.Config{
		ChainID:            cfg.ChainID,
		Domain:             cfg.Domain,
		GovernanceChain:    cfg.GovernanceChain,
		GovernanceContract: cfg.GovernanceContract,
	}, ldb, registry, guardians, upgrader)

	return &Chain{
		Config:      cfg,
		DB:          ldb,
		Registry:    registry,
		Ledger:      ledger,
		Native:      native,
		Wallet:      NewWallet(ldb, ledger, native, cfg.Transmitter, cfg.Faucet),
		Network:     network,
		Transmitter: transmitter,
		Upgrader:    upgrader,
		Engine:      eng,
		Governance:  gov,
	}, nil
}

func installGuardianSet(ctx context.Context, network *MessageNetwork, set models.GuardianSet) error {
	current, err := network.CurrentGuardianSetIndex(ctx)
	switch {
	case err == nil && current >= set.Index:
		return nil
	case err != nil && !errorsmod.IsOf(err, models.ErrUnknownGuardianSet):
		return err
	}
	return network.SetGuardianSet(ctx, set)
}

func initFinality(ctx context.Context, registry *repository.Registry, finality uint8) error {
	if finality == 0 {
		return nil
	}
	current, err := registry.Finality(ctx)
	if err != nil || current != 0 {
		return err
	}
	return registry.SetFinality(ctx, finality)
}
