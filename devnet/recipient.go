package devnet

import (
	"context"
	"encoding/binary"

	errorsmod "cosmossdk.io/errors"

	"circle-integration/db"
	"circle-integration/models"
)

var (
	recipientSequenceKey = []byte("recipient:sequence")
	recipientPayloadKey  = []byte("recipient:payload:")
)

// Redeemer completes inbound transfers.
type Redeemer interface {
	Redeem(ctx context.Context, caller models.Address, params models.RedeemParameters) (*models.Redemption, error)
}

// Recipient is an example integration on the receiving side. It is the mint
// recipient of the transfers sent to it, accepts them only from one trusted sender
// on one trusted chain, forwards the tokens and keeps each payload by sequence.
type Recipient struct {
	db            *db.LevelDB
	address       models.Address
	integration   Redeemer
	token         *Ledger
	trustedChain  models.ChainID
	trustedSender models.Address
}

// NewRecipient deploys a Recipient at address.
func NewRecipient(ldb *db.LevelDB, address models.Address, integration Redeemer, token *Ledger,
	trustedChain models.ChainID, trustedSender models.Address) *Recipient {

	return &Recipient{
		db:            ldb,
		address:       address,
		integration:   integration,
		token:         token,
		trustedChain:  trustedChain,
		trustedSender: trustedSender,
	}
}

// Address of the recipient contract.
func (r *Recipient) Address() models.Address {
	return r.address
}

// Redeem redeems params as the mint recipient, forwards the tokens to
// transferRecipient and stores the payload. It returns the message sequence.
func (r *Recipient) Redeem(ctx context.Context, params models.RedeemParameters, transferRecipient models.Address) (uint64, error) {
	var sequence uint64
	err := r.db.Update(ctx, func(ctx context.Context) error {
		redemption, err := r.integration.Redeem(ctx, r.address, params)
		if err != nil {
			return err
		}
		if redemption.EmitterChain != r.trustedChain {
			return errorsmod.Wrapf(ErrUntrustedSender, "chain %d", redemption.EmitterChain)
		}
		if redemption.FromAddress != r.trustedSender {
			return errorsmod.Wrapf(ErrUntrustedSender, "sender %s", redemption.FromAddress)
		}
		if err := r.token.Transfer(ctx, r.address, transferRecipient, redemption.Amount); err != nil {
			return err
		}

		store := r.db.Store(ctx)
		sequence = redemption.Sequence
		if err := store.Put(payloadKey(sequence), redemption.Payload); err != nil {
			return err
		}
		return store.Put(recipientSequenceKey, binary.BigEndian.AppendUint64(nil, sequence))
	})
	if err != nil {
		return 0, err
	}
	return sequence, nil
}

// RedemptionSequence is the sequence of the last redeemed transfer.
func (r *Recipient) RedemptionSequence(ctx context.Context) (uint64, error) {
	data, err := r.db.Store(ctx).Get(recipientSequenceKey)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// Payload returns the payload redeemed at sequence.
func (r *Recipient) Payload(ctx context.Context, sequence uint64) ([]byte, error) {
	return r.db.Store(ctx).Get(payloadKey(sequence))
}

func payloadKey(sequence uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, recipientPayloadKey...), sequence)
}
