package wire

import (
	errorsmod "cosmossdk.io/errors"

	"circle-integration/models"
)

const (
	custodialHeaderSize = 4 + 4 + 4 + 8 + 32 + 32 + 32
	burnMessageSize     = 4 + 32 + 32 + 32 + 32
)

// EncodeCustodialMessage serializes a burn message and its header.
func EncodeCustodialMessage(m *models.CustodialMessage) ([]byte, error) {
	if m.Body.Amount == nil {
		return nil, errorsmod.Wrap(models.ErrMalformedMessage, "burn amount is nil")
	}
	w := &writer{buf: make([]byte, 0, custodialHeaderSize+burnMessageSize)}
	w.uint32(m.Version)
	w.uint32(uint32(m.SourceDomain))
	w.uint32(uint32(m.DestinationDomain))
	w.uint64(m.Nonce)
	w.address(m.Sender)
	w.address(m.Recipient)
	w.address(m.DestinationCaller)
	w.uint32(m.Body.Version)
	w.address(m.Body.BurnToken)
	w.address(m.Body.MintRecipient)
	w.uint256(m.Body.Amount)
	w.address(m.Body.MessageSender)
	return w.buf, nil
}

// DecodeCustodialMessage parses a burn message. Any length other than the fixed
// header plus burn body is rejected.
func DecodeCustodialMessage(data []byte) (*models.CustodialMessage, error) {
	r := newReader(data, "custodial message")
	m := &models.CustodialMessage{
		Version:           r.uint32("version"),
		SourceDomain:      models.Domain(r.uint32("sourceDomain")),
		DestinationDomain: models.Domain(r.uint32("destinationDomain")),
		Nonce:             r.uint64("nonce"),
		Sender:            r.address("sender"),
		Recipient:         r.address("recipient"),
		DestinationCaller: r.address("destinationCaller"),
		Body: models.BurnMessage{
			Version:       r.uint32("bodyVersion"),
			BurnToken:     r.address("burnToken"),
			MintRecipient: r.address("mintRecipient"),
			Amount:        r.uint256("amount"),
			MessageSender: r.address("messageSender"),
		},
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return m, nil
}
