package wire_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"circle-integration/models"
	"circle-integration/wire"
)

func drawAddress(t *rapid.T, label string) models.Address {
	var a models.Address
	copy(a[:], rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, label))
	return a
}

func drawAmount(t *rapid.T, label string) *uint256.Int {
	return new(uint256.Int).SetBytes32(rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, label))
}

func drawDeposit(t *rapid.T) *models.Deposit {
	return &models.Deposit{
		Token:         drawAddress(t, "token"),
		TokenChain:    models.ChainID(rapid.Uint16().Draw(t, "tokenChain")),
		Amount:        drawAmount(t, "amount"),
		SourceDomain:  models.Domain(rapid.Uint32().Draw(t, "sourceDomain")),
		TargetDomain:  models.Domain(rapid.Uint32().Draw(t, "targetDomain")),
		Nonce:         rapid.Uint64().Draw(t, "nonce"),
		TargetChain:   models.ChainID(rapid.Uint16().Draw(t, "targetChain")),
		FromAddress:   drawAddress(t, "from"),
		MintRecipient: drawAddress(t, "mintRecipient"),
		Payload:       rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload"),
	}
}

func requireDepositEqual(t require.TestingT, want, got *models.Deposit) {
	require.Equal(t, want.Token, got.Token)
	require.Equal(t, want.TokenChain, got.TokenChain)
	require.True(t, want.Amount.Eq(got.Amount), "amount %s != %s", want.Amount.Dec(), got.Amount.Dec())
	require.Equal(t, want.SourceDomain, got.SourceDomain)
	require.Equal(t, want.TargetDomain, got.TargetDomain)
	require.Equal(t, want.Nonce, got.Nonce)
	require.Equal(t, want.TargetChain, got.TargetChain)
	require.Equal(t, want.FromAddress, got.FromAddress)
	require.Equal(t, want.MintRecipient, got.MintRecipient)
	require.True(t, bytes.Equal(want.Payload, got.Payload))
}

func TestDepositRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := drawDeposit(t)
		encoded, err := wire.EncodeDeposit(d)
		require.NoError(t, err)

		decoded, err := wire.DecodeDeposit(encoded)
		require.NoError(t, err)
		requireDepositEqual(t, d, decoded)

		again, err := wire.EncodeDeposit(decoded)
		require.NoError(t, err)
		require.Equal(t, encoded, again)
	})
}

func TestDecodeDepositMalformed(t *testing.T) {
	valid, err := wire.EncodeDeposit(&models.Deposit{
		Amount:  uint256.NewInt(69),
		Payload: []byte("All your base are belong to us."),
	})
	require.NoError(t, err)

	testCases := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func([]byte) []byte { return nil }},
		{"wrong payload id", func(b []byte) []byte {
			b[0] = 2
			return b
		}},
		{"truncated fixed fields", func(b []byte) []byte { return b[:100] }},
		{"truncated payload", func(b []byte) []byte { return b[:len(b)-1] }},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0xff) }},
		{"length prefix too large", func(b []byte) []byte {
			b[len(b)-32] = 0xff
			return b
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := wire.DecodeDeposit(tc.mutate(bytes.Clone(valid)))
			require.ErrorIs(t, err, models.ErrMalformedMessage)
		})
	}
}

func TestEncodeDepositRejectsOversizedPayload(t *testing.T) {
	_, err := wire.EncodeDeposit(&models.Deposit{
		Amount:  uint256.NewInt(1),
		Payload: make([]byte, models.MaxPayloadSize+1),
	})
	require.ErrorIs(t, err, models.ErrPayloadTooLarge)

	_, err = wire.EncodeDeposit(&models.Deposit{})
	require.ErrorIs(t, err, models.ErrMalformedMessage)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 19).Draw(t, "signatures")
		e := &models.Envelope{
			Version:          models.EnvelopeVersion,
			GuardianSetIndex: rapid.Uint32().Draw(t, "guardianSetIndex"),
			Timestamp:        time.Unix(int64(rapid.Uint32().Draw(t, "timestamp")), 0).UTC(),
			Nonce:            rapid.Uint32().Draw(t, "nonce"),
			EmitterChain:     models.ChainID(rapid.Uint16().Draw(t, "emitterChain")),
			EmitterAddress:   drawAddress(t, "emitter"),
			Sequence:         rapid.Uint64().Draw(t, "sequence"),
			ConsistencyLevel: rapid.Uint8().Draw(t, "consistency"),
			Payload:          rapid.SliceOfN(rapid.Byte(), 0, 256).Draw(t, "payload"),
		}
		for i := 0; i < n; i++ {
			sig := models.GuardianSignature{Index: uint8(i)}
			copy(sig.Signature[:], rapid.SliceOfN(rapid.Byte(), 65, 65).Draw(t, "sig"))
			e.Signatures = append(e.Signatures, sig)
		}

		encoded, err := wire.EncodeEnvelope(e)
		require.NoError(t, err)
		decoded, err := wire.DecodeEnvelope(encoded)
		require.NoError(t, err)

		require.Equal(t, e.GuardianSetIndex, decoded.GuardianSetIndex)
		require.Equal(t, len(e.Signatures), len(decoded.Signatures))
		for i := range e.Signatures {
			require.Equal(t, e.Signatures[i], decoded.Signatures[i])
		}
		require.True(t, e.Timestamp.Equal(decoded.Timestamp))
		require.Equal(t, e.Nonce, decoded.Nonce)
		require.Equal(t, e.EmitterChain, decoded.EmitterChain)
		require.Equal(t, e.EmitterAddress, decoded.EmitterAddress)
		require.Equal(t, e.Sequence, decoded.Sequence)
		require.Equal(t, e.ConsistencyLevel, decoded.ConsistencyLevel)
		require.True(t, bytes.Equal(e.Payload, decoded.Payload))
		require.Equal(t, wire.EnvelopeDigest(e), wire.EnvelopeDigest(decoded))
	})
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	valid, err := wire.EncodeEnvelope(&models.Envelope{
		Signatures: []models.GuardianSignature{{Index: 0}},
		Timestamp:  time.Unix(1, 0),
		Payload:    []byte{1, 2, 3},
	})
	require.NoError(t, err)

	_, err = wire.DecodeEnvelope(valid)
	require.NoError(t, err)

	badVersion := bytes.Clone(valid)
	badVersion[0] = 2
	_, err = wire.DecodeEnvelope(badVersion)
	require.ErrorIs(t, err, models.ErrMalformedMessage)

	_, err = wire.DecodeEnvelope(valid[:40])
	require.ErrorIs(t, err, models.ErrMalformedMessage)
}

func envelopeFor(payload []byte) *models.Envelope {
	return &models.Envelope{
		Timestamp:    time.Unix(1700000000, 0).UTC(),
		EmitterChain: 1,
		Sequence:     7,
		Payload:      payload,
	}
}

func TestRegisterEmitterAndDomainRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &models.RegisterEmitterAndDomain{
			GovernanceHeader: models.GovernanceHeader{
				TargetChain: models.ChainID(rapid.Uint16().Draw(t, "target")),
			},
			ForeignChain:   models.ChainID(rapid.Uint16().Draw(t, "foreignChain")),
			ForeignEmitter: drawAddress(t, "foreignEmitter"),
			ForeignDomain:  models.Domain(rapid.Uint32().Draw(t, "foreignDomain")),
		}
		e := envelopeFor(wire.EncodeRegisterEmitterAndDomain(m))

		decoded, err := wire.DecodeRegisterEmitterAndDomain(e)
		require.NoError(t, err)
		require.Equal(t, models.ActionRegisterEmitterAndDomain, decoded.Action)
		require.Equal(t, m.TargetChain, decoded.TargetChain)
		require.Equal(t, m.ForeignChain, decoded.ForeignChain)
		require.Equal(t, m.ForeignEmitter, decoded.ForeignEmitter)
		require.Equal(t, m.ForeignDomain, decoded.ForeignDomain)
		require.Equal(t, e.Sequence, decoded.Sequence)
		require.Equal(t, e.EmitterChain, decoded.GovernanceChain)

		decoded.Action = 0
		require.Equal(t, e.Payload, wire.EncodeRegisterEmitterAndDomain(decoded))
	})
}

func TestUpgradeContractRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &models.UpgradeContract{
			GovernanceHeader: models.GovernanceHeader{
				TargetChain: models.ChainID(rapid.Uint16().Draw(t, "target")),
			},
			NewImplementation: drawAddress(t, "implementation"),
		}
		e := envelopeFor(wire.EncodeUpgradeContract(m))

		decoded, err := wire.DecodeUpgradeContract(e)
		require.NoError(t, err)
		require.Equal(t, models.ActionUpgradeContract, decoded.Action)
		require.Equal(t, m.TargetChain, decoded.TargetChain)
		require.Equal(t, m.NewImplementation, decoded.NewImplementation)
		require.Equal(t, e.Payload, wire.EncodeUpgradeContract(decoded))
	})
}

func TestUpdateFinalityRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &models.UpdateFinality{
			GovernanceHeader: models.GovernanceHeader{
				TargetChain: models.ChainID(rapid.Uint16().Draw(t, "target")),
			},
			Finality: rapid.Uint8().Draw(t, "finality"),
		}
		e := envelopeFor(wire.EncodeUpdateFinality(m))

		decoded, err := wire.DecodeUpdateFinality(e)
		require.NoError(t, err)
		require.Equal(t, m.Finality, decoded.Finality)
		require.Equal(t, m.TargetChain, decoded.TargetChain)
	})
}

func TestGovernanceDecodeRejections(t *testing.T) {
	register := wire.EncodeRegisterEmitterAndDomain(&models.RegisterEmitterAndDomain{ForeignChain: 2})

	_, err := wire.DecodeUpgradeContract(envelopeFor(register))
	require.ErrorIs(t, err, models.ErrInvalidGovernance)

	badModule := bytes.Clone(register)
	badModule[0] = 'X'
	_, err = wire.DecodeRegisterEmitterAndDomain(envelopeFor(badModule))
	require.ErrorIs(t, err, models.ErrInvalidGovernance)

	_, err = wire.DecodeRegisterEmitterAndDomain(envelopeFor(append(bytes.Clone(register), 0)))
	require.ErrorIs(t, err, models.ErrMalformedMessage)

	_, err = wire.DecodeRegisterEmitterAndDomain(envelopeFor(register[:40]))
	require.ErrorIs(t, err, models.ErrMalformedMessage)

	action, err := wire.PeekGovernanceAction(register)
	require.NoError(t, err)
	require.Equal(t, models.ActionRegisterEmitterAndDomain, action)
}

func TestCustodialMessageRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := &models.CustodialMessage{
			Version:           rapid.Uint32().Draw(t, "version"),
			SourceDomain:      models.Domain(rapid.Uint32().Draw(t, "source")),
			DestinationDomain: models.Domain(rapid.Uint32().Draw(t, "destination")),
			Nonce:             rapid.Uint64().Draw(t, "nonce"),
			Sender:            drawAddress(t, "sender"),
			Recipient:         drawAddress(t, "recipient"),
			DestinationCaller: drawAddress(t, "caller"),
			Body: models.BurnMessage{
				Version:       rapid.Uint32().Draw(t, "bodyVersion"),
				BurnToken:     drawAddress(t, "burnToken"),
				MintRecipient: drawAddress(t, "mintRecipient"),
				Amount:        drawAmount(t, "amount"),
				MessageSender: drawAddress(t, "messageSender"),
			},
		}
		encoded, err := wire.EncodeCustodialMessage(m)
		require.NoError(t, err)

		decoded, err := wire.DecodeCustodialMessage(encoded)
		require.NoError(t, err)
		require.True(t, m.Body.Amount.Eq(decoded.Body.Amount))
		decoded.Body.Amount = m.Body.Amount
		require.Equal(t, m, decoded)
		require.Equal(t, m.RedeemKey(), decoded.RedeemKey())

		_, err = wire.DecodeCustodialMessage(encoded[:len(encoded)-1])
		require.ErrorIs(t, err, models.ErrMalformedMessage)
	})
}
