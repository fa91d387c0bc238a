package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"

	errorsmod "cosmossdk.io/errors"

	"circle-integration/db"
	"circle-integration/models"
)

var (
	endpointPrefix = []byte("endpoint:")
	domainPrefix   = []byte("domain:")
	consumedPrefix = []byte("consumed:")
	implPrefix     = []byte("impl:")
	govSeqPrefix   = []byte("govseq:")
	finalityKey    = []byte("finality")
)

var marker = []byte{1}

// It abstracts the storage layer from the transfer and governance logic
type RegistryInterface interface {
	Endpoint(ctx context.Context, chain models.ChainID) (*models.RemoteEndpoint, error)
	Endpoints(ctx context.Context) ([]models.RemoteEndpoint, error)
	RegisterEndpoint(ctx context.Context, ep models.RemoteEndpoint) error
	ChainForDomain(ctx context.Context, domain models.Domain) (models.ChainID, error)

	IsConsumed(ctx context.Context, key models.RedeemKey) (bool, error)
	Consume(ctx context.Context, key models.RedeemKey) error

	IsInitialized(ctx context.Context, impl models.Address) (bool, error)
	MarkInitialized(ctx context.Context, impl models.Address) error

	GovernanceSequence(ctx context.Context, action models.GovernanceAction) (uint64, bool, error)
	AdvanceGovernanceSequence(ctx context.Context, action models.GovernanceAction, sequence uint64) error

	Finality(ctx context.Context) (uint8, error)
	SetFinality(ctx context.Context, finality uint8) error
}

// Registry implements RegistryInterface on LevelDB. Reads and writes go through the
// unit of work carried by ctx; mutating calls made outside one open their own.
type Registry struct {
	db *db.LevelDB
}

// NewRegistry creates and returns a new Registry instance
func NewRegistry(db *db.LevelDB) *Registry {
	return &Registry{db: db}
}

func key(prefix []byte, id []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(id))
	k = append(k, prefix...)
	return append(k, id...)
}

// Endpoint returns the endpoint registered for chain, or db.ErrNotFound.
func (r *Registry) Endpoint(ctx context.Context, chain models.ChainID) (*models.RemoteEndpoint, error) {
	data, err := r.db.Store(ctx).Get(key(endpointPrefix, chain.Bytes()))
	if err != nil {
		return nil, err
	}
	var ep models.RemoteEndpoint
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// Endpoints lists every registered endpoint ordered by chain id.
func (r *Registry) Endpoints(ctx context.Context) ([]models.RemoteEndpoint, error) {
	iter := r.db.Store(ctx).NewIterator(endpointPrefix)
	defer iter.Release()

	var endpoints []models.RemoteEndpoint
	for iter.Next() {
		var ep models.RemoteEndpoint
		if err := json.Unmarshal(iter.Value(), &ep); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	return endpoints, iter.Error()
}

// RegisterEndpoint inserts ep. Chains are registered once; a domain can only belong to
// one chain.
func (r *Registry) RegisterEndpoint(ctx context.Context, ep models.RemoteEndpoint) error {
	if ep.Chain == 0 {
		return errorsmod.Wrap(models.ErrInvalidEndpoint, "chain id is zero")
	}
	if ep.Emitter.IsZero() {
		return errorsmod.Wrap(models.ErrInvalidEndpoint, "emitter address is zero")
	}

	return r.db.Update(ctx, func(ctx context.Context) error {
		store := r.db.Store(ctx)

		chainKey := key(endpointPrefix, ep.Chain.Bytes())
		exists, err := store.Has(chainKey)
		if err != nil {
			return err
		}
		if exists {
			return errorsmod.Wrapf(models.ErrEndpointAlreadyRegistered, "chain %d", ep.Chain)
		}

		domainKey := key(domainPrefix, ep.Domain.Bytes())
		owner, err := store.Get(domainKey)
		switch {
		case err == nil:
			return errorsmod.Wrapf(models.ErrInvalidEndpoint,
				"domain %d already belongs to chain %d", ep.Domain, binary.BigEndian.Uint16(owner))
		case !db.IsNotFound(err):
			return err
		}

		data, err := json.Marshal(ep)
		if err != nil {
			return err
		}
		if err := store.Put(chainKey, data); err != nil {
			return err
		}
		return store.Put(domainKey, ep.Chain.Bytes())
	})
}

// ChainForDomain returns the chain registered with domain, or db.ErrNotFound.
func (r *Registry) ChainForDomain(ctx context.Context, domain models.Domain) (models.ChainID, error) {
	data, err := r.db.Store(ctx).Get(key(domainPrefix, domain.Bytes()))
	if err != nil {
		return 0, err
	}
	return models.ChainID(binary.BigEndian.Uint16(data)), nil
}

// IsConsumed reports whether a redemption already used key.
func (r *Registry) IsConsumed(ctx context.Context, k models.RedeemKey) (bool, error) {
	return r.db.Store(ctx).Has(key(consumedPrefix, k[:]))
}

// Consume marks key as redeemed. It fails with ErrAlreadyRedeemed if it already is.
func (r *Registry) Consume(ctx context.Context, k models.RedeemKey) error {
	return r.db.Update(ctx, func(ctx context.Context) error {
		store := r.db.Store(ctx)
		consumedKey := key(consumedPrefix, k[:])
		exists, err := store.Has(consumedKey)
		if err != nil {
			return err
		}
		if exists {
			return errorsmod.Wrapf(models.ErrAlreadyRedeemed, "redeem key %x", k[:])
		}
		return store.Put(consumedKey, marker)
	})
}

// IsInitialized reports whether impl finished its post-upgrade initialization.
func (r *Registry) IsInitialized(ctx context.Context, impl models.Address) (bool, error) {
	return r.db.Store(ctx).Has(key(implPrefix, impl[:]))
}

// MarkInitialized records impl as initialized, failing with ErrAlreadyInitialized on
// the second attempt.
func (r *Registry) MarkInitialized(ctx context.Context, impl models.Address) error {
	return r.db.Update(ctx, func(ctx context.Context) error {
		store := r.db.Store(ctx)
		implKey := key(implPrefix, impl[:])
		exists, err := store.Has(implKey)
		if err != nil {
			return err
		}
		if exists {
			return errorsmod.Wrapf(models.ErrAlreadyInitialized, "implementation %s", impl)
		}
		return store.Put(implKey, marker)
	})
}

// GovernanceSequence returns the last applied sequence for action. The bool is false
// when no action of that type was ever applied.
func (r *Registry) GovernanceSequence(ctx context.Context, action models.GovernanceAction) (uint64, bool, error) {
	data, err := r.db.Store(ctx).Get(key(govSeqPrefix, []byte{uint8(action)}))
	if db.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// AdvanceGovernanceSequence records sequence as applied for action. The sequence
// must be strictly greater than the last one applied.
func (r *Registry) AdvanceGovernanceSequence(ctx context.Context, action models.GovernanceAction, sequence uint64) error {
	return r.db.Update(ctx, func(ctx context.Context) error {
		last, applied, err := r.GovernanceSequence(ctx, action)
		if err != nil {
			return err
		}
		if applied && sequence <= last {
			return errorsmod.Wrapf(models.ErrStaleGovernanceMessage,
				"%s sequence %d, last applied %d", action, sequence, last)
		}
		return r.db.Store(ctx).Put(key(govSeqPrefix, []byte{uint8(action)}),
			binary.BigEndian.AppendUint64(nil, sequence))
	})
}

// Finality returns the consistency level used for published deposits. Zero when unset.
func (r *Registry) Finality(ctx context.Context) (uint8, error) {
	data, err := r.db.Store(ctx).Get(finalityKey)
	if db.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

// SetFinality stores the consistency level used for published deposits.
func (r *Registry) SetFinality(ctx context.Context, finality uint8) error {
	return r.db.Update(ctx, func(ctx context.Context) error {
		return r.db.Store(ctx).Put(finalityKey, []byte{finality})
	})
}
