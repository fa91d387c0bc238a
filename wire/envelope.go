package wire

import (
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"circle-integration/models"
)

const (
	envelopeHeaderSize = 1 + 4 + 1
	signatureEntrySize = 1 + models.SignatureLength
	envelopeBodyFixed  = 4 + 4 + 2 + 32 + 8 + 1
)

// EncodeEnvelopeBody serializes the signed portion of an envelope.
func EncodeEnvelopeBody(e *models.Envelope) []byte {
	w := &writer{buf: make([]byte, 0, envelopeBodyFixed+len(e.Payload))}
	w.uint32(uint32(e.Timestamp.Unix()))
	w.uint32(e.Nonce)
	w.uint16(uint16(e.EmitterChain))
	w.address(e.EmitterAddress)
	w.uint64(e.Sequence)
	w.uint8(e.ConsistencyLevel)
	w.raw(e.Payload)
	return w.buf
}

// EncodeEnvelope serializes the header, signatures and body.
func EncodeEnvelope(e *models.Envelope) ([]byte, error) {
	if len(e.Signatures) > 255 {
		return nil, errorsmod.Wrapf(models.ErrMalformedMessage,
			"envelope carries %d signatures, max 255", len(e.Signatures))
	}
	version := e.Version
	if version == 0 {
		version = models.EnvelopeVersion
	}

	body := EncodeEnvelopeBody(e)
	w := &writer{buf: make([]byte, 0, envelopeHeaderSize+len(e.Signatures)*signatureEntrySize+len(body))}
	w.uint8(version)
	w.uint32(e.GuardianSetIndex)
	w.uint8(uint8(len(e.Signatures)))
	for _, sig := range e.Signatures {
		w.uint8(sig.Index)
		w.raw(sig.Signature[:])
	}
	w.raw(body)
	return w.buf, nil
}

// DecodeEnvelope parses an envelope without checking its signatures.
func DecodeEnvelope(data []byte) (*models.Envelope, error) {
	r := newReader(data, "envelope")

	e := &models.Envelope{
		Version:          r.uint8("version"),
		GuardianSetIndex: r.uint32("guardianSetIndex"),
	}
	if r.err == nil && e.Version != models.EnvelopeVersion {
		return nil, errorsmod.Wrapf(models.ErrMalformedMessage,
			"unsupported envelope version %d", e.Version)
	}

	count := int(r.uint8("signatureCount"))
	e.Signatures = make([]models.GuardianSignature, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		sig := models.GuardianSignature{Index: r.uint8("guardianIndex")}
		copy(sig.Signature[:], r.take(models.SignatureLength, "signature"))
		e.Signatures = append(e.Signatures, sig)
	}

	e.Timestamp = time.Unix(int64(r.uint32("timestamp")), 0).UTC()
	e.Nonce = r.uint32("nonce")
	e.EmitterChain = models.ChainID(r.uint16("emitterChain"))
	e.EmitterAddress = r.address("emitterAddress")
	e.Sequence = r.uint64("sequence")
	e.ConsistencyLevel = r.uint8("consistencyLevel")
	e.Payload = r.rest()

	if err := r.finish(); err != nil {
		return nil, err
	}
	return e, nil
}

// EnvelopeHash is keccak256 of the body. It identifies the message.
func EnvelopeHash(e *models.Envelope) common.Hash {
	return crypto.Keccak256Hash(EncodeEnvelopeBody(e))
}

// EnvelopeDigest is the value guardians sign: keccak256(keccak256(body)).
func EnvelopeDigest(e *models.Envelope) common.Hash {
	hash := EnvelopeHash(e)
	return crypto.Keccak256Hash(hash[:])
}
