package attestation

import (
	"bytes"
	"context"
	"slices"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"circle-integration/models"
	"circle-integration/wire"
)

// AttesterRegistry is the custodial network's view of who may attest burns.
type AttesterRegistry interface {
	EnabledAttesters(ctx context.Context) ([]common.Address, error)
	SignatureThreshold(ctx context.Context) (uint32, error)
}

// CustodialVerifier checks custodial attestations against the enabled attesters.
type CustodialVerifier struct {
	registry AttesterRegistry
}

// NewCustodialVerifier creates a verifier backed by registry.
func NewCustodialVerifier(registry AttesterRegistry) *CustodialVerifier {
	return &CustodialVerifier{registry: registry}
}

// VerifyAttestation parses message and checks that attestation carries at least the
// threshold of signatures from distinct enabled attesters, ordered by address.
func (v *CustodialVerifier) VerifyAttestation(ctx context.Context, message, attestation []byte) (*models.CustodialMessage, error) {
	parsed, err := wire.DecodeCustodialMessage(message)
	if err != nil {
		return nil, err
	}

	threshold, err := v.registry.SignatureThreshold(ctx)
	if err != nil {
		return nil, err
	}
	if threshold == 0 {
		return nil, errorsmod.Wrap(models.ErrInvalidAttestation, "signature threshold is zero")
	}
	if len(attestation)%models.SignatureLength != 0 {
		return nil, errorsmod.Wrapf(models.ErrInvalidAttestation,
			"attestation length %d is not a multiple of %d", len(attestation), models.SignatureLength)
	}
	count := len(attestation) / models.SignatureLength
	if count < int(threshold) {
		return nil, errorsmod.Wrapf(models.ErrInvalidAttestation,
			"threshold not met: required %d, got %d", threshold, count)
	}

	attesters, err := v.registry.EnabledAttesters(ctx)
	if err != nil {
		return nil, err
	}
	enabled := lo.SliceToMap(attesters, func(a common.Address) (common.Address, bool) {
		return a, true
	})

	var last common.Address
	for i := 0; i < count; i++ {
		signer, err := RecoverKeccak256(message, attestation[i*models.SignatureLength:(i+1)*models.SignatureLength])
		if err != nil {
			return nil, errorsmod.Wrapf(models.ErrInvalidAttestation, "signature %d: %v", i, err)
		}
		if !enabled[signer] {
			return nil, errorsmod.Wrapf(models.ErrInvalidAttestation,
				"signer %s is not an enabled attester", signer.Hex())
		}
		if i > 0 && bytes.Compare(signer[:], last[:]) <= 0 {
			return nil, errorsmod.Wrapf(models.ErrInvalidAttestation,
				"signature %d: signers not in increasing order", i)
		}
		last = signer
	}
	return parsed, nil
}

func sortedByAddress(signers []*Signer) []*Signer {
	ordered := slices.Clone(signers)
	slices.SortFunc(ordered, func(a, b *Signer) int {
		aa, ba := a.Address(), b.Address()
		return bytes.Compare(aa[:], ba[:])
	})
	return ordered
}
