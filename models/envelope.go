package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EnvelopeVersion is the only guardian envelope version accepted.
const EnvelopeVersion uint8 = 1

// SignatureLength is r || s || v.
const SignatureLength = 65

// GuardianSignature is one guardian's signature over the envelope digest.
type GuardianSignature struct {
	Index     uint8
	Signature [SignatureLength]byte
}

// Envelope is a guardian-signed message (VAA).
type Envelope struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []GuardianSignature

	Timestamp        time.Time
	Nonce            uint32
	EmitterChain     ChainID
	EmitterAddress   Address
	Sequence         uint64
	ConsistencyLevel uint8
	Payload          []byte
}

// GuardianSet is a versioned list of guardian signing addresses.
type GuardianSet struct {
	Index          uint32
	Keys           []common.Address
	Quorum         int
	ExpirationTime time.Time
}

// Quorum is the number of signatures a set of n guardians must produce.
func Quorum(n int) int {
	return n*2/3 + 1
}
