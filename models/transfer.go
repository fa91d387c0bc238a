package models

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// DepositWithPayloadID tags the deposit message inside a guardian envelope.
const DepositWithPayloadID uint8 = 1

// MaxPayloadSize is the largest custom payload the u16 length prefix can carry.
const MaxPayloadSize = 1<<16 - 1

// TransferParameters are supplied by the sender of an outbound transfer. MessageFee
// is the native value sent along; it must equal the message network's fee, nil
// meaning zero.
type TransferParameters struct {
	Token         Address      `json:"token"`
	Amount        *uint256.Int `json:"amount"`
	TargetChain   ChainID      `json:"targetChain"`
	MintRecipient Address      `json:"mintRecipient"`
	MessageFee    *uint256.Int `json:"messageFee,omitempty"`
}

// Deposit is the transfer message carried inside the guardian envelope. SourceDomain,
// TargetDomain and Nonce link it to exactly one custodial burn message.
type Deposit struct {
	Token         Address
	TokenChain    ChainID
	Amount        *uint256.Int
	SourceDomain  Domain
	TargetDomain  Domain
	Nonce         uint64
	TargetChain   ChainID
	FromAddress   Address
	MintRecipient Address
	Payload       []byte
}

// RedeemParameters are the three proofs a recipient submits on the target chain.
// They are passed through unmodified.
type RedeemParameters struct {
	CustodialMessage     hexutil.Bytes `json:"custodialMessage"`
	CustodialAttestation hexutil.Bytes `json:"custodialAttestation"`
	EncodedEnvelope      hexutil.Bytes `json:"encodedEnvelope"`
}

// TransferReceipt describes what an outbound transfer emitted.
type TransferReceipt struct {
	Sequence         uint64        `json:"sequence"`
	CustodialNonce   uint64        `json:"custodialNonce"`
	CustodialMessage hexutil.Bytes `json:"custodialMessage"`
	Deposit          *Deposit      `json:"-"`
}

// Redemption is returned to the recipient of a completed inbound transfer.
type Redemption struct {
	EmitterChain   ChainID       `json:"emitterChain"`
	EmitterAddress Address       `json:"emitterAddress"`
	Sequence       uint64        `json:"sequence"`
	FromAddress    Address       `json:"fromAddress"`
	Amount         *uint256.Int  `json:"amount"`
	Payload        hexutil.Bytes `json:"payload"`
	Deposit        *Deposit      `json:"-"`
}
