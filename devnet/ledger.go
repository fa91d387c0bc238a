package devnet

import (
	"context"

	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"circle-integration/db"
	"circle-integration/models"
)

// Ledger is a token with balances and allowances kept in the chain's LevelDB.
// Only minters may mint or burn.
type Ledger struct {
	db        *db.LevelDB
	namespace string
	address   models.Address
	minters   map[models.Address]bool
}

// NewLedger creates the stablecoin deployed at address.
func NewLedger(ldb *db.LevelDB, address models.Address, minters ...models.Address) *Ledger {
	return newLedger(ldb, "ledger", address, minters)
}

// NewNativeLedger creates the chain's native coin, which pays message fees. It has
// no contract address.
func NewNativeLedger(ldb *db.LevelDB, minters ...models.Address) *Ledger {
	return newLedger(ldb, "native", models.ZeroAddress, minters)
}

func newLedger(ldb *db.LevelDB, namespace string, address models.Address, minters []models.Address) *Ledger {
	l := &Ledger{db: ldb, namespace: namespace, address: address, minters: make(map[models.Address]bool)}
	for _, m := range minters {
		l.minters[m] = true
	}
	return l
}

// Address of the token contract.
func (l *Ledger) Address() models.Address {
	return l.address
}

func (l *Ledger) balanceKey(owner models.Address) []byte {
	return append([]byte(l.namespace+":balance:"), owner[:]...)
}

func (l *Ledger) allowanceKey(owner, spender models.Address) []byte {
	k := append([]byte(l.namespace+":allowance:"), owner[:]...)
	return append(k, spender[:]...)
}

func (l *Ledger) supplyKey() []byte {
	return []byte(l.namespace + ":supply")
}

func (l *Ledger) read(ctx context.Context, key []byte) (*uint256.Int, error) {
	data, err := l.db.Store(ctx).Get(key)
	if db.IsNotFound(err) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(data), nil
}

func (l *Ledger) write(ctx context.Context, key []byte, v *uint256.Int) error {
	word := v.Bytes32()
	return l.db.Store(ctx).Put(key, word[:])
}

// BalanceOf returns the balance of owner.
func (l *Ledger) BalanceOf(ctx context.Context, owner models.Address) (*uint256.Int, error) {
	return l.read(ctx, l.balanceKey(owner))
}

// Allowance returns how much spender may move on behalf of owner.
func (l *Ledger) Allowance(ctx context.Context, owner, spender models.Address) (*uint256.Int, error) {
	return l.read(ctx, l.allowanceKey(owner, spender))
}

// TotalSupply returns minted minus burned tokens.
func (l *Ledger) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	return l.read(ctx, l.supplyKey())
}

// Approve sets the allowance of spender over owner's tokens.
func (l *Ledger) Approve(ctx context.Context, owner, spender models.Address, amount *uint256.Int) error {
	return l.db.Update(ctx, func(ctx context.Context) error {
		return l.write(ctx, l.allowanceKey(owner, spender), amount)
	})
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(ctx context.Context, from, to models.Address, amount *uint256.Int) error {
	return l.db.Update(ctx, func(ctx context.Context) error {
		return l.move(ctx, from, to, amount)
	})
}

// TransferFrom moves amount from from to to, spending spender's allowance.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to models.Address, amount *uint256.Int) error {
	return l.db.Update(ctx, func(ctx context.Context) error {
		key := l.allowanceKey(from, spender)
		allowance, err := l.read(ctx, key)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return errorsmod.Wrapf(ErrInsufficientAllowance,
				"allowance %s, need %s", allowance.Dec(), amount.Dec())
		}
		if err := l.write(ctx, key, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
		return l.move(ctx, from, to, amount)
	})
}

// Mint creates amount for to. minter must be authorized.
func (l *Ledger) Mint(ctx context.Context, minter, to models.Address, amount *uint256.Int) error {
	if !l.minters[minter] {
		return errorsmod.Wrapf(ErrUnauthorized, "%s is not a minter", minter)
	}
	return l.db.Update(ctx, func(ctx context.Context) error {
		if err := l.adjust(ctx, l.supplyKey(), amount, true); err != nil {
			return err
		}
		return l.adjust(ctx, l.balanceKey(to), amount, true)
	})
}

// Burn destroys amount held by from. minter must be authorized.
func (l *Ledger) Burn(ctx context.Context, minter, from models.Address, amount *uint256.Int) error {
	if !l.minters[minter] {
		return errorsmod.Wrapf(ErrUnauthorized, "%s is not a minter", minter)
	}
	return l.db.Update(ctx, func(ctx context.Context) error {
		if err := l.adjust(ctx, l.balanceKey(from), amount, false); err != nil {
			return err
		}
		return l.adjust(ctx, l.supplyKey(), amount, false)
	})
}

func (l *Ledger) move(ctx context.Context, from, to models.Address, amount *uint256.Int) error {
	if err := l.adjust(ctx, l.balanceKey(from), amount, false); err != nil {
		return err
	}
	return l.adjust(ctx, l.balanceKey(to), amount, true)
}

func (l *Ledger) adjust(ctx context.Context, key []byte, amount *uint256.Int, credit bool) error {
	current, err := l.read(ctx, key)
	if err != nil {
		return err
	}
	if credit {
		sum, overflow := new(uint256.Int).AddOverflow(current, amount)
		if overflow {
			return errorsmod.Wrapf(ErrOverflow, "balance %s + %s", current.Dec(), amount.Dec())
		}
		return l.write(ctx, key, sum)
	}
	if current.Lt(amount) {
		return errorsmod.Wrapf(ErrInsufficientBalance, "balance %s, need %s", current.Dec(), amount.Dec())
	}
	return l.write(ctx, key, new(uint256.Int).Sub(current, amount))
}
