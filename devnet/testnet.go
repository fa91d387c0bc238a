package devnet

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"circle-integration/db"
	"circle-integration/models"
	"circle-integration/wire"
)

// Governance identity used by the testnet.
var (
	TestnetGovernanceChain    = models.ChainID(1)
	TestnetGovernanceContract = models.AddressFromEVM(common.HexToAddress("0x0000000000000000000000000000000000000004"))
)

// Testnet is two in-memory chains sharing one guardian set and one attester set.
type Testnet struct {
	Guardians *Guardians
	Attesters *Attesters
	A         *Chain
	B         *Chain

	governanceSequence uint64
}

// TestnetChain returns the configuration of a testnet chain; n distinguishes the
// contract addresses of each chain.
func TestnetChain(chain models.ChainID, domain models.Domain, n byte, guardians *Guardians, attesters *Attesters) ChainConfig {
	return ChainConfig{
		ChainID:            chain,
		Domain:             domain,
		Token:              models.AddressFromEVM(common.Address{19: 0x10 + n}),
		Contract:           models.AddressFromEVM(common.Address{19: 0x20 + n}),
		Transmitter:        models.AddressFromEVM(common.Address{19: 0x30 + n}),
		GovernanceChain:    TestnetGovernanceChain,
		GovernanceContract: TestnetGovernanceContract,
		MessageFee:         new(uint256.Int),
		Finality:           1,
		Faucet:             true,
		GuardianSet:        guardians.GuardianSet(),
		Attesters:          attesters.Addresses(),
		SignatureThreshold: attesters.Threshold,
	}
}

// NewTestnet builds chain 2 (domain 0) and chain 6 (domain 1) with one guardian and
// two attesters. Endpoints are not registered yet.
func NewTestnet(ctx context.Context) (*Testnet, error) {
	guardians, err := GenerateGuardians(0, 1)
	if err != nil {
		return nil, err
	}
	attesters, err := GenerateAttesters(2, 2)
	if err != nil {
		return nil, err
	}

	net := &Testnet{Guardians: guardians, Attesters: attesters}
	if net.A, err = newMemChain(ctx, TestnetChain(2, 0, 1, guardians, attesters)); err != nil {
		return nil, err
	}
	if net.B, err = newMemChain(ctx, TestnetChain(6, 1, 2, guardians, attesters)); err != nil {
		net.A.DB.Close()
		return nil, err
	}
	return net, nil
}

func newMemChain(ctx context.Context, cfg ChainConfig) (*Chain, error) {
	ldb, err := db.NewMemLevelDB()
	if err != nil {
		return nil, err
	}
	chain, err := NewChain(ctx, ldb, cfg)
	if err != nil {
		ldb.Close()
		return nil, err
	}
	return chain, nil
}

// Close releases both chains.
func (n *Testnet) Close() error {
	return errors.Join(n.A.DB.Close(), n.B.DB.Close())
}

// GovernanceMessage signs payload as the next governance message.
func (n *Testnet) GovernanceMessage(payload []byte) ([]byte, error) {
	n.governanceSequence++
	return n.Guardians.Governance(TestnetGovernanceChain, TestnetGovernanceContract, n.governanceSequence, payload)
}

// Register makes on trust the integration deployed on remote.
func (n *Testnet) Register(ctx context.Context, on, remote *Chain) error {
	encoded, err := n.GovernanceMessage(wire.EncodeRegisterEmitterAndDomain(&models.RegisterEmitterAndDomain{
		GovernanceHeader: models.GovernanceHeader{TargetChain: on.Config.ChainID},
		ForeignChain:     remote.Config.ChainID,
		ForeignEmitter:   remote.Config.Contract,
		ForeignDomain:    remote.Config.Domain,
	}))
	if err != nil {
		return err
	}
	_, err = on.Governance.RegisterEmitterAndDomain(ctx, encoded)
	return err
}

// RegisterEndpoints registers A and B with each other.
func (n *Testnet) RegisterEndpoints(ctx context.Context) error {
	if err := n.Register(ctx, n.A, n.B); err != nil {
		return err
	}
	return n.Register(ctx, n.B, n.A)
}

// Relay collects both proofs of a transfer published on from.
func (n *Testnet) Relay(ctx context.Context, from *Chain, receipt *models.TransferReceipt) (models.RedeemParameters, error) {
	envelope, err := n.Guardians.Observe(ctx, from.Network, from.Config.Contract, receipt.Sequence)
	if err != nil {
		return models.RedeemParameters{}, err
	}
	att, err := n.Attesters.Attest(receipt.CustodialMessage)
	if err != nil {
		return models.RedeemParameters{}, err
	}
	return models.RedeemParameters{
		CustodialMessage:     receipt.CustodialMessage,
		CustodialAttestation: att,
		EncodedEnvelope:      envelope,
	}, nil
}

// Fund mints amount of chain's stablecoin to owner.
func (n *Testnet) Fund(ctx context.Context, chain *Chain, owner models.Address, amount *uint256.Int) error {
	return chain.Wallet.Drip(ctx, owner, amount, nil)
}
