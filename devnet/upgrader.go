package devnet

import (
	"context"

	"circle-integration/db"
	"circle-integration/models"
)

var implementationKey = []byte("upgrader:implementation")

// Upgrader records which implementation the contract proxy points at.
type Upgrader struct {
	db *db.LevelDB
}

// NewUpgrader creates an Upgrader with no implementation recorded.
func NewUpgrader(ldb *db.LevelDB) *Upgrader {
	return &Upgrader{db: ldb}
}

// Upgrade points the proxy at impl.
func (u *Upgrader) Upgrade(ctx context.Context, impl models.Address) error {
	return u.db.Update(ctx, func(ctx context.Context) error {
		return u.db.Store(ctx).Put(implementationKey, impl[:])
	})
}

// Implementation returns the current implementation, zero before any upgrade.
func (u *Upgrader) Implementation(ctx context.Context) (models.Address, error) {
	data, err := u.db.Store(ctx).Get(implementationKey)
	if db.IsNotFound(err) {
		return models.ZeroAddress, nil
	}
	if err != nil {
		return models.ZeroAddress, err
	}
	return models.AddressFromBytes(data)
}
