package models

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainID identifies a chain on the guardian network.
type ChainID uint16

// Domain identifies a chain on the custodial attester network.
type Domain uint32

// Address is a chain-agnostic 32-byte address. EVM addresses are left-padded.
type Address [32]byte

// ZeroAddress is the all-zero address.
var ZeroAddress Address

// AddressFromBytes left-pads b into an Address. It fails when b exceeds 32 bytes.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) > len(a) {
		return a, fmt.Errorf("address too long: %d bytes", len(b))
	}
	copy(a[:], common.LeftPadBytes(b, len(a)))
	return a, nil
}

// AddressFromHex parses a 0x-prefixed hex string of up to 32 bytes.
func AddressFromHex(s string) (Address, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return AddressFromBytes(b)
}

// AddressFromEVM converts a 20-byte EVM address.
func AddressFromEVM(a common.Address) Address {
	var out Address
	copy(out[12:], a.Bytes())
	return out
}

// IsZero reports whether the address is all zeroes.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// EVM returns the low 20 bytes as an EVM address.
func (a Address) EVM() common.Address {
	return common.BytesToAddress(a[12:])
}

// Bytes returns a copy of the raw 32 bytes.
func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

// Hex returns the 0x-prefixed hex form of all 32 bytes.
func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Bytes returns the big-endian encoding of the chain id.
func (c ChainID) Bytes() []byte {
	return binary.BigEndian.AppendUint16(nil, uint16(c))
}

// Bytes returns the big-endian encoding of the domain.
func (d Domain) Bytes() []byte {
	return binary.BigEndian.AppendUint32(nil, uint32(d))
}
