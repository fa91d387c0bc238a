package devnet

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace of the reference collaborators. Their errors surface unchanged through
// the engine, the same way an external contract's revert would.
const Codespace = "devnet"

var (
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 2, "transfer amount exceeds balance")
	ErrInsufficientAllowance = errorsmod.Register(Codespace, 3, "insufficient allowance")
	ErrUnauthorized          = errorsmod.Register(Codespace, 4, "caller is not authorized")
	ErrPaused                = errorsmod.Register(Codespace, 5, "paused")
	ErrNonceUsed             = errorsmod.Register(Codespace, 6, "nonce already used")
	ErrInvalidDestination    = errorsmod.Register(Codespace, 7, "invalid destination")
	ErrMessageNotFound       = errorsmod.Register(Codespace, 8, "message not found")
	ErrOverflow              = errorsmod.Register(Codespace, 9, "arithmetic overflow")
	ErrFaucetDisabled        = errorsmod.Register(Codespace, 10, "faucet disabled")
	ErrUntrustedSender       = errorsmod.Register(Codespace, 11, "untrusted sender")
)
