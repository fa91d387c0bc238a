// Package attestation verifies the two proofs a redemption carries: the guardian
// quorum over an envelope and the custodial attester signatures over a burn message.
package attestation

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/crypto"

	"circle-integration/models"
	"circle-integration/wire"
)

// GuardianSetSource is the message network's guardian set storage.
// GuardianSet returns models.ErrUnknownGuardianSet when no set has the index.
type GuardianSetSource interface {
	GuardianSet(ctx context.Context, index uint32) (*models.GuardianSet, error)
	CurrentGuardianSetIndex(ctx context.Context) (uint32, error)
}

// GuardianVerifier checks guardian quorum signatures on envelopes.
type GuardianVerifier struct {
	sets GuardianSetSource
	now  func() time.Time
}

// NewGuardianVerifier creates a verifier reading guardian sets from sets.
func NewGuardianVerifier(sets GuardianSetSource) *GuardianVerifier {
	return &GuardianVerifier{sets: sets, now: time.Now}
}

// VerifyEnvelope parses encoded and checks its signatures. The returned envelope is
// only returned when a quorum of the referenced guardian set signed it.
func (v *GuardianVerifier) VerifyEnvelope(ctx context.Context, encoded []byte) (*models.Envelope, error) {
	e, err := wire.DecodeEnvelope(encoded)
	if err != nil {
		return nil, err
	}
	if err := v.Verify(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Verify checks the signatures of an already parsed envelope.
func (v *GuardianVerifier) Verify(ctx context.Context, e *models.Envelope) error {
	set, err := v.guardianSet(ctx, e.GuardianSetIndex)
	if err != nil {
		return err
	}

	quorum := set.Quorum
	if quorum == 0 {
		quorum = models.Quorum(len(set.Keys))
	}
	if len(e.Signatures) < quorum {
		return errorsmod.Wrapf(models.ErrInsufficientSignatures,
			"quorum not met: required %d, got %d", quorum, len(e.Signatures))
	}

	digest := wire.EnvelopeDigest(e)
	last := -1
	for i, sig := range e.Signatures {
		index := int(sig.Index)
		if index <= last {
			return errorsmod.Wrapf(models.ErrInvalidEnvelope,
				"signature %d: guardian index %d not increasing", i, index)
		}
		last = index
		if index >= len(set.Keys) {
			return errorsmod.Wrapf(models.ErrInvalidEnvelope,
				"signature %d: guardian index %d out of range for set of %d", i, index, len(set.Keys))
		}

		pub, err := crypto.SigToPub(digest[:], sig.Signature[:])
		if err != nil {
			return errorsmod.Wrapf(models.ErrInvalidEnvelope,
				"failed to recover public key from signature %d: %v", i, err)
		}
		if signer := crypto.PubkeyToAddress(*pub); signer != set.Keys[index] {
			return errorsmod.Wrapf(models.ErrInvalidEnvelope,
				"signature %d recovers to %s, not guardian %d", i, signer.Hex(), index)
		}
	}
	return nil
}

func (v *GuardianVerifier) guardianSet(ctx context.Context, index uint32) (*models.GuardianSet, error) {
	set, err := v.sets.GuardianSet(ctx, index)
	if err != nil {
		return nil, err
	}
	if len(set.Keys) == 0 {
		return nil, errorsmod.Wrapf(models.ErrUnknownGuardianSet, "guardian set %d is empty", index)
	}

	current, err := v.sets.CurrentGuardianSetIndex(ctx)
	if err != nil {
		return nil, err
	}
	if index != current && !set.ExpirationTime.IsZero() && !v.now().Before(set.ExpirationTime) {
		return nil, errorsmod.Wrapf(models.ErrUnknownGuardianSet,
			"guardian set %d expired at %s", index, set.ExpirationTime.UTC().Format(time.RFC3339))
	}
	return set, nil
}
