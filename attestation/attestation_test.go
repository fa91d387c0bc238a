package attestation_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"circle-integration/attestation"
	"circle-integration/models"
	"circle-integration/wire"
)

type guardianSets struct {
	sets    map[uint32]*models.GuardianSet
	current uint32
}

func (g *guardianSets) GuardianSet(_ context.Context, index uint32) (*models.GuardianSet, error) {
	set, ok := g.sets[index]
	if !ok {
		return nil, errorsmod.Wrapf(models.ErrUnknownGuardianSet, "index %d", index)
	}
	return set, nil
}

func (g *guardianSets) CurrentGuardianSetIndex(context.Context) (uint32, error) {
	return g.current, nil
}

type attesterRegistry struct {
	attesters []common.Address
	threshold uint32
}

func (a *attesterRegistry) EnabledAttesters(context.Context) ([]common.Address, error) {
	return a.attesters, nil
}

func (a *attesterRegistry) SignatureThreshold(context.Context) (uint32, error) {
	return a.threshold, nil
}

func newSigners(t *testing.T, n int) []*attestation.Signer {
	t.Helper()
	signers := make([]*attestation.Signer, n)
	for i := range signers {
		s, err := attestation.GenerateSigner()
		require.NoError(t, err)
		signers[i] = s
	}
	return signers
}

func testEnvelope() *models.Envelope {
	return &models.Envelope{
		Version:          models.EnvelopeVersion,
		GuardianSetIndex: 0,
		Timestamp:        time.Unix(1700000000, 0).UTC(),
		Nonce:            9,
		EmitterChain:     2,
		EmitterAddress:   models.Address{31: 0x42},
		Sequence:         3,
		ConsistencyLevel: 15,
		Payload:          []byte("hello"),
	}
}

func TestVerifyEnvelope(t *testing.T) {
	guardians := newSigners(t, 4)
	keys := attestation.Addresses(guardians)

	testCases := []struct {
		name     string
		malleate func(e *models.Envelope, sets *guardianSets)
		expErr   error
	}{
		{"all guardians sign", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians))
		}, nil},
		{"exact quorum", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians, 0, 2, 3))
		}, nil},
		{"below quorum", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians, 0, 1))
		}, models.ErrInsufficientSignatures},
		{"no signatures", func(e *models.Envelope, _ *guardianSets) {}, models.ErrInsufficientSignatures},
		{"unknown guardian set", func(e *models.Envelope, _ *guardianSets) {
			e.GuardianSetIndex = 7
			require.NoError(t, attestation.SignEnvelope(e, guardians))
		}, models.ErrUnknownGuardianSet},
		{"expired guardian set", func(e *models.Envelope, sets *guardianSets) {
			sets.sets[1] = &models.GuardianSet{Index: 1, Keys: keys}
			sets.sets[0].ExpirationTime = time.Now().Add(-time.Hour)
			sets.current = 1
			require.NoError(t, attestation.SignEnvelope(e, guardians))
		}, models.ErrUnknownGuardianSet},
		{"old set not yet expired", func(e *models.Envelope, sets *guardianSets) {
			sets.sets[1] = &models.GuardianSet{Index: 1, Keys: keys}
			sets.sets[0].ExpirationTime = time.Now().Add(time.Hour)
			sets.current = 1
			require.NoError(t, attestation.SignEnvelope(e, guardians))
		}, nil},
		{"duplicate guardian index", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians, 0, 1, 2))
			e.Signatures[2] = e.Signatures[1]
		}, models.ErrInvalidEnvelope},
		{"signature by wrong guardian", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians, 0, 1, 2))
			e.Signatures[2].Index = 3
		}, models.ErrInvalidEnvelope},
		{"body tampered after signing", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians))
			e.Payload = []byte("hellO")
		}, models.ErrInvalidEnvelope},
		{"index beyond guardian set", func(e *models.Envelope, _ *guardianSets) {
			require.NoError(t, attestation.SignEnvelope(e, guardians))
			e.Signatures[3].Index = 9
		}, models.ErrInvalidEnvelope},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sets := &guardianSets{sets: map[uint32]*models.GuardianSet{
				0: {Index: 0, Keys: keys},
			}}
			e := testEnvelope()
			tc.malleate(e, sets)

			encoded, err := wire.EncodeEnvelope(e)
			require.NoError(t, err)

			verified, err := attestation.NewGuardianVerifier(sets).VerifyEnvelope(context.Background(), encoded)
			if tc.expErr != nil {
				require.ErrorIs(t, err, tc.expErr)
				require.Nil(t, verified)
				return
			}
			require.NoError(t, err)
			require.Equal(t, e.Sequence, verified.Sequence)
			require.True(t, bytes.Equal(e.Payload, verified.Payload))
		})
	}
}

func TestVerifyEnvelopeMalformed(t *testing.T) {
	sets := &guardianSets{sets: map[uint32]*models.GuardianSet{}}
	_, err := attestation.NewGuardianVerifier(sets).VerifyEnvelope(context.Background(), []byte{1, 0})
	require.ErrorIs(t, err, models.ErrMalformedMessage)
}

func testCustodialMessage(t *testing.T) []byte {
	t.Helper()
	message, err := wire.EncodeCustodialMessage(&models.CustodialMessage{
		SourceDomain:      0,
		DestinationDomain: 1,
		Nonce:             12,
		Body: models.BurnMessage{
			MintRecipient: models.Address{31: 0x01},
			Amount:        uint256.NewInt(69),
		},
	})
	require.NoError(t, err)
	return message
}

func TestVerifyAttestation(t *testing.T) {
	attesters := newSigners(t, 3)
	outsider := newSigners(t, 1)[0]
	message := testCustodialMessage(t)

	sign := func(signers ...*attestation.Signer) []byte {
		att, err := attestation.SignAttestation(message, signers)
		require.NoError(t, err)
		return att
	}

	testCases := []struct {
		name        string
		attestation func() []byte
		threshold   uint32
		expErr      error
	}{
		{"all attesters", func() []byte { return sign(attesters...) }, 2, nil},
		{"exact threshold", func() []byte { return sign(attesters[0], attesters[2]) }, 2, nil},
		{"below threshold", func() []byte { return sign(attesters[1]) }, 2, models.ErrInvalidAttestation},
		{"empty", func() []byte { return nil }, 1, models.ErrInvalidAttestation},
		{"not a multiple of 65", func() []byte { return append(sign(attesters...), 0) }, 1, models.ErrInvalidAttestation},
		{"disabled attester", func() []byte { return sign(attesters[0], outsider) }, 2, models.ErrInvalidAttestation},
		{"duplicate signer", func() []byte {
			one := sign(attesters[0])
			return append(bytes.Clone(one), one...)
		}, 2, models.ErrInvalidAttestation},
		{"decreasing order", func() []byte {
			att := sign(attesters[0], attesters[1])
			return append(bytes.Clone(att[65:]), att[:65]...)
		}, 2, models.ErrInvalidAttestation},
		{"bad recovery id", func() []byte {
			att := sign(attesters[0])
			att[64] = 1
			return att
		}, 1, models.ErrInvalidAttestation},
		{"zero threshold", func() []byte { return sign(attesters...) }, 0, models.ErrInvalidAttestation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			registry := &attesterRegistry{attesters: attestation.Addresses(attesters), threshold: tc.threshold}
			parsed, err := attestation.NewCustodialVerifier(registry).
				VerifyAttestation(context.Background(), message, tc.attestation())
			if tc.expErr != nil {
				require.ErrorIs(t, err, tc.expErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, uint64(12), parsed.Nonce)
			require.Equal(t, models.Domain(1), parsed.DestinationDomain)
		})
	}
}

func TestVerifyAttestationTamperedMessage(t *testing.T) {
	attesters := newSigners(t, 2)
	message := testCustodialMessage(t)
	att, err := attestation.SignAttestation(message, attesters)
	require.NoError(t, err)

	tampered := bytes.Clone(message)
	tampered[len(tampered)-33] ^= 0x01 // amount

	registry := &attesterRegistry{attesters: attestation.Addresses(attesters), threshold: 2}
	_, err = attestation.NewCustodialVerifier(registry).VerifyAttestation(context.Background(), tampered, att)
	require.ErrorIs(t, err, models.ErrInvalidAttestation)

	_, err = attestation.NewCustodialVerifier(registry).VerifyAttestation(context.Background(), message[:10], att)
	require.ErrorIs(t, err, models.ErrMalformedMessage)
}

func TestSignerFromHex(t *testing.T) {
	s, err := attestation.SignerFromHex("0xcfb12303a19cde580bb4dd771639b0d26bc68353645571a8cff516ab2ee113a0")
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xbeFA429d57cD18b7F8A4d91A2da9AB4AF05d0FBe"), s.Address())

	_, err = attestation.SignerFromHex("zz")
	require.Error(t, err)
}

func TestRecoverKeccak256(t *testing.T) {
	signer := newSigners(t, 1)[0]
	body := []byte(`{"caller":"0x01"}`)
	sig, err := signer.SignKeccak256(body)
	require.NoError(t, err)

	recovered, err := attestation.RecoverKeccak256(body, sig[:])
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)

	recovered, err = attestation.RecoverKeccak256(append(bytes.Clone(body), '!'), sig[:])
	require.NoError(t, err)
	require.NotEqual(t, signer.Address(), recovered)

	_, err = attestation.RecoverKeccak256(body, sig[:64])
	require.Error(t, err)

	raw := sig
	raw[64] -= 27
	_, err = attestation.RecoverKeccak256(body, raw[:])
	require.ErrorContains(t, err, "invalid recovery id")
}
