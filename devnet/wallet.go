package devnet

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"circle-integration/db"
	"circle-integration/models"
)

// FaucetAddress mints native coins when the faucet is enabled.
var FaucetAddress = models.AddressFromEVM(common.HexToAddress("0x000000000000000000000000000000000000fa00"))

// Wallet is the account-holder side of a chain: approvals, balances and, on devnets,
// a faucet minting both the stablecoin and the native coin.
type Wallet struct {
	db          *db.LevelDB
	token       *Ledger
	native      *Ledger
	transmitter models.Address
	faucet      bool
}

// NewWallet creates a Wallet over token and native. The faucet mints the stablecoin
// through transmitter and is refused unless faucet is set.
func NewWallet(ldb *db.LevelDB, token, native *Ledger, transmitter models.Address, faucet bool) *Wallet {
	return &Wallet{db: ldb, token: token, native: native, transmitter: transmitter, faucet: faucet}
}

// Approve lets spender move amount of owner's stablecoin.
func (w *Wallet) Approve(ctx context.Context, owner, spender models.Address, amount *uint256.Int) error {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return w.token.Approve(ctx, owner, spender, amount)
}

// Balances returns owner's stablecoin and native balances.
func (w *Wallet) Balances(ctx context.Context, owner models.Address) (token, native *uint256.Int, err error) {
	if token, err = w.token.BalanceOf(ctx, owner); err != nil {
		return nil, nil, err
	}
	if native, err = w.native.BalanceOf(ctx, owner); err != nil {
		return nil, nil, err
	}
	return token, native, nil
}

// Drip mints token stablecoin and native coins to to. Either amount may be nil.
func (w *Wallet) Drip(ctx context.Context, to models.Address, token, native *uint256.Int) error {
	if !w.faucet {
		return ErrFaucetDisabled
	}
	if to.IsZero() {
		return errorsmod.Wrap(ErrInvalidDestination, "faucet recipient must be nonzero")
	}
	return w.db.Update(ctx, func(ctx context.Context) error {
		if token != nil && !token.IsZero() {
			if err := w.token.Mint(ctx, w.transmitter, to, token); err != nil {
				return err
			}
		}
		if native != nil && !native.IsZero() {
			return w.native.Mint(ctx, FaucetAddress, to, native)
		}
		return nil
	})
}
