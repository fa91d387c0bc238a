package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/samber/lo"

	"circle-integration/models"
	"circle-integration/wire"
)

// Signer holds one secp256k1 key of a guardian or custodial attester.
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner wraps an existing private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// SignerFromHex parses a hex encoded private key, with or without 0x prefix.
func SignerFromHex(s string) (*Signer, error) {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return &Signer{key: key}, nil
}

// GenerateSigner creates a signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{key: key}, nil
}

// Address is the EVM address derived from the public key.
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignDigest signs a 32-byte digest. The recovery id is returned as 0 or 1.
func (s *Signer) SignDigest(digest common.Hash) ([models.SignatureLength]byte, error) {
	var out [models.SignatureLength]byte
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return out, fmt.Errorf("failed to sign digest: %w", err)
	}
	copy(out[:], sig)
	return out, nil
}

// SignKeccak256 signs keccak256(payload) and returns an EVM style signature with the
// recovery id as 27 or 28.
func (s *Signer) SignKeccak256(payload []byte) ([models.SignatureLength]byte, error) {
	sig, err := s.SignDigest(crypto.Keccak256Hash(payload))
	if err != nil {
		return sig, err
	}
	sig[64] = sig[64]&1 + 27
	return sig, nil
}

// RecoverKeccak256 returns the address that produced sig, an EVM style signature
// over keccak256(payload) with the recovery id as 27 or 28.
func RecoverKeccak256(payload, sig []byte) (common.Address, error) {
	if len(sig) != models.SignatureLength {
		return common.Address{}, fmt.Errorf("signature is %d bytes, want %d", len(sig), models.SignatureLength)
	}
	if sig[64] != 27 && sig[64] != 28 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	normalized := bytes.Clone(sig)
	normalized[64] -= 27

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Addresses returns the addresses of signers in order.
func Addresses(signers []*Signer) []common.Address {
	return lo.Map(signers, func(s *Signer, _ int) common.Address {
		return s.Address()
	})
}

// SignEnvelope replaces the signatures of e with one signature per signer, indexed by
// the signer's position in guardians. indices must be strictly increasing.
func SignEnvelope(e *models.Envelope, guardians []*Signer, indices ...int) error {
	if len(indices) == 0 {
		indices = lo.Range(len(guardians))
	}
	digest := wire.EnvelopeDigest(e)

	e.Signatures = make([]models.GuardianSignature, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(guardians) || i > 255 {
			return fmt.Errorf("guardian index %d out of range", i)
		}
		sig, err := guardians[i].SignDigest(digest)
		if err != nil {
			return err
		}
		e.Signatures = append(e.Signatures, models.GuardianSignature{Index: uint8(i), Signature: sig})
	}
	return nil
}

// SignAttestation produces a custodial attestation over message: the concatenated
// signatures of attesters ordered by increasing address.
func SignAttestation(message []byte, attesters []*Signer) ([]byte, error) {
	ordered := sortedByAddress(attesters)
	out := make([]byte, 0, len(ordered)*models.SignatureLength)
	for _, s := range ordered {
		sig, err := s.SignKeccak256(message)
		if err != nil {
			return nil, err
		}
		out = append(out, sig[:]...)
	}
	return out, nil
}
