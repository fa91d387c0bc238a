package wire

import (
	errorsmod "cosmossdk.io/errors"

	"circle-integration/models"
)

// depositFixedSize is every deposit field except the custom payload bytes.
const depositFixedSize = 1 + 32 + 2 + 32 + 4 + 4 + 8 + 2 + 32 + 32 + 2

// EncodeDeposit serializes a deposit with its custom payload.
func EncodeDeposit(d *models.Deposit) ([]byte, error) {
	if d.Amount == nil {
		return nil, errorsmod.Wrap(models.ErrMalformedMessage, "deposit amount is nil")
	}
	if len(d.Payload) > models.MaxPayloadSize {
		return nil, errorsmod.Wrapf(models.ErrPayloadTooLarge,
			"payload is %d bytes, max %d", len(d.Payload), models.MaxPayloadSize)
	}

	w := &writer{buf: make([]byte, 0, depositFixedSize+len(d.Payload))}
	w.uint8(models.DepositWithPayloadID)
	w.address(d.Token)
	w.uint16(uint16(d.TokenChain))
	w.uint256(d.Amount)
	w.uint32(uint32(d.SourceDomain))
	w.uint32(uint32(d.TargetDomain))
	w.uint64(d.Nonce)
	w.uint16(uint16(d.TargetChain))
	w.address(d.FromAddress)
	w.address(d.MintRecipient)
	w.uint16(uint16(len(d.Payload)))
	w.raw(d.Payload)
	return w.buf, nil
}

// DecodeDeposit parses a deposit. The declared payload length must consume the
// remaining bytes exactly.
func DecodeDeposit(data []byte) (*models.Deposit, error) {
	r := newReader(data, "deposit")

	if id := r.uint8("payloadId"); r.err == nil && id != models.DepositWithPayloadID {
		return nil, errorsmod.Wrapf(models.ErrMalformedMessage,
			"invalid payload id %d, expected %d", id, models.DepositWithPayloadID)
	}

	d := &models.Deposit{
		Token:         r.address("token"),
		TokenChain:    models.ChainID(r.uint16("tokenChain")),
		Amount:        r.uint256("amount"),
		SourceDomain:  models.Domain(r.uint32("sourceDomain")),
		TargetDomain:  models.Domain(r.uint32("targetDomain")),
		Nonce:         r.uint64("nonce"),
		TargetChain:   models.ChainID(r.uint16("targetChain")),
		FromAddress:   r.address("fromAddress"),
		MintRecipient: r.address("mintRecipient"),
	}

	payloadLen := int(r.uint16("payloadLen"))
	if r.err == nil && payloadLen != r.remaining() {
		return nil, errorsmod.Wrapf(models.ErrMalformedMessage,
			"payload length %d does not match remaining %d bytes", payloadLen, r.remaining())
	}
	d.Payload = r.bytes(payloadLen, "payload")

	if err := r.finish(); err != nil {
		return nil, err
	}
	return d, nil
}
