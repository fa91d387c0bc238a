package models

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// CustodialMessage is the burn message produced by the custodial attester network.
// Only the fields needed to pair it with a deposit are interpreted.
type CustodialMessage struct {
	Version           uint32
	SourceDomain      Domain
	DestinationDomain Domain
	Nonce             uint64
	Sender            Address
	Recipient         Address
	DestinationCaller Address
	Body              BurnMessage
}

// BurnMessage is the body of a custodial message describing the burned tokens.
type BurnMessage struct {
	Version       uint32
	BurnToken     Address
	MintRecipient Address
	Amount        *uint256.Int
	MessageSender Address
}

// RedeemKey identifies one custodial burn. Consuming it twice is a double spend.
type RedeemKey [32]byte

// NewRedeemKey derives the key for a (source domain, nonce) pair.
func NewRedeemKey(sourceDomain Domain, nonce uint64) RedeemKey {
	buf := binary.BigEndian.AppendUint32(nil, uint32(sourceDomain))
	buf = binary.BigEndian.AppendUint64(buf, nonce)
	return RedeemKey(crypto.Keccak256Hash(buf))
}

// RedeemKey returns the replay-protection key of the message.
func (m *CustodialMessage) RedeemKey() RedeemKey {
	return NewRedeemKey(m.SourceDomain, m.Nonce)
}
