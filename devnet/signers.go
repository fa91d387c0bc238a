package devnet

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"circle-integration/attestation"
	"circle-integration/models"
	"circle-integration/wire"
)

// Guardians signs envelopes as the members of one guardian set.
type Guardians struct {
	SetIndex uint32
	Signers  []*attestation.Signer
}

// NewGuardians loads hex encoded guardian keys.
func NewGuardians(setIndex uint32, keys []string) (*Guardians, error) {
	signers, err := signersFromHex(keys)
	if err != nil {
		return nil, err
	}
	return &Guardians{SetIndex: setIndex, Signers: signers}, nil
}

// GenerateGuardians creates a guardian set of n fresh keys.
func GenerateGuardians(setIndex uint32, n int) (*Guardians, error) {
	signers, err := generateSigners(n)
	if err != nil {
		return nil, err
	}
	return &Guardians{SetIndex: setIndex, Signers: signers}, nil
}

// GuardianSet is the set the message network must know to verify these guardians.
func (g *Guardians) GuardianSet() models.GuardianSet {
	return models.GuardianSet{
		Index:  g.SetIndex,
		Keys:   attestation.Addresses(g.Signers),
		Quorum: models.Quorum(len(g.Signers)),
	}
}

// Sign encodes e signed by the guardians at indices, all of them when none are given.
// e is not modified.
func (g *Guardians) Sign(e *models.Envelope, indices ...int) ([]byte, error) {
	signed := *e
	signed.Version = models.EnvelopeVersion
	signed.GuardianSetIndex = g.SetIndex
	if err := attestation.SignEnvelope(&signed, g.Signers, indices...); err != nil {
		return nil, err
	}
	return wire.EncodeEnvelope(&signed)
}

// Observe signs the message emitter published at sequence on network.
func (g *Guardians) Observe(ctx context.Context, network *MessageNetwork, emitter models.Address, sequence uint64) ([]byte, error) {
	e, err := network.PublishedMessage(ctx, emitter, sequence)
	if err != nil {
		return nil, err
	}
	return g.Sign(e)
}

// Governance signs payload as a message of the governance contract.
func (g *Guardians) Governance(chain models.ChainID, contract models.Address, sequence uint64, payload []byte) ([]byte, error) {
	return g.Sign(&models.Envelope{
		Timestamp:        time.Now().UTC().Truncate(time.Second),
		EmitterChain:     chain,
		EmitterAddress:   contract,
		Sequence:         sequence,
		ConsistencyLevel: 1,
		Payload:          payload,
	})
}

// Attesters signs burn messages as enabled custodial attesters.
type Attesters struct {
	Signers   []*attestation.Signer
	Threshold uint32
}

// NewAttesters loads hex encoded attester keys.
func NewAttesters(keys []string, threshold uint32) (*Attesters, error) {
	signers, err := signersFromHex(keys)
	if err != nil {
		return nil, err
	}
	return &Attesters{Signers: signers, Threshold: threshold}, nil
}

// GenerateAttesters creates n attesters with fresh keys.
func GenerateAttesters(n int, threshold uint32) (*Attesters, error) {
	signers, err := generateSigners(n)
	if err != nil {
		return nil, err
	}
	return &Attesters{Signers: signers, Threshold: threshold}, nil
}

// Addresses of the attesters.
func (a *Attesters) Addresses() []common.Address {
	return attestation.Addresses(a.Signers)
}

// Attest signs message with every attester.
func (a *Attesters) Attest(message []byte) ([]byte, error) {
	return attestation.SignAttestation(message, a.Signers)
}

func signersFromHex(keys []string) ([]*attestation.Signer, error) {
	signers := make([]*attestation.Signer, 0, len(keys))
	for i, k := range keys {
		s, err := attestation.SignerFromHex(k)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		signers = append(signers, s)
	}
	if dup := lo.FindDuplicates(attestation.Addresses(signers)); len(dup) > 0 {
		return nil, fmt.Errorf("duplicate signer %s", dup[0].Hex())
	}
	return signers, nil
}

func generateSigners(n int) ([]*attestation.Signer, error) {
	signers := make([]*attestation.Signer, n)
	for i := range signers {
		s, err := attestation.GenerateSigner()
		if err != nil {
			return nil, err
		}
		signers[i] = s
	}
	return signers, nil
}
