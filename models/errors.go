package models

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every error this service registers.
const Codespace = "circleintegration"

// Codec errors
var (
	ErrMalformedMessage = errorsmod.Register(Codespace, 2, "malformed message")
	ErrPayloadTooLarge  = errorsmod.Register(Codespace, 3, "payload too large")
)

// Registry consistency errors
var (
	ErrUnregisteredSender        = errorsmod.Register(Codespace, 10, "unregistered sender")
	ErrTargetNotRegistered       = errorsmod.Register(Codespace, 11, "target contract not registered")
	ErrEndpointAlreadyRegistered = errorsmod.Register(Codespace, 12, "endpoint already registered")
	ErrInvalidEndpoint           = errorsmod.Register(Codespace, 13, "invalid endpoint")
)

// Attestation errors
var (
	ErrInsufficientSignatures = errorsmod.Register(Codespace, 20, "insufficient signatures")
	ErrUnknownGuardianSet     = errorsmod.Register(Codespace, 21, "unknown guardian set")
	ErrInvalidAttestation     = errorsmod.Register(Codespace, 22, "invalid attestation")
	ErrInvalidEnvelope        = errorsmod.Register(Codespace, 23, "invalid envelope")
)

// Cross-proof consistency
var (
	ErrInvalidMessagePair = errorsmod.Register(Codespace, 30, "invalid message pair")
	ErrInvalidTargetChain = errorsmod.Register(Codespace, 31, "invalid target chain")
)

// Replay errors
var (
	ErrAlreadyRedeemed        = errorsmod.Register(Codespace, 40, "message already consumed")
	ErrStaleGovernanceMessage = errorsmod.Register(Codespace, 41, "stale governance message")
	ErrAlreadyInitialized     = errorsmod.Register(Codespace, 42, "implementation already initialized")
	ErrInvalidGovernance      = errorsmod.Register(Codespace, 43, "invalid governance message")
)

// Transfer validation errors
var (
	ErrZeroAmount         = errorsmod.Register(Codespace, 50, "amount must be > 0")
	ErrInvalidRecipient   = errorsmod.Register(Codespace, 51, "invalid mint recipient")
	ErrTokenNotAccepted   = errorsmod.Register(Codespace, 52, "token not accepted")
	ErrCallerNotRecipient = errorsmod.Register(Codespace, 53, "caller must be mintRecipient")
	ErrMintFailed         = errorsmod.Register(Codespace, 54, "failed to mint tokens")
	ErrInvalidMessageFee  = errorsmod.Register(Codespace, 55, "insufficient value")
)

// Request authentication
var (
	ErrInvalidCallerSignature = errorsmod.Register(Codespace, 60, "invalid caller signature")
)
