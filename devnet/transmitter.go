package devnet

import (
	"context"
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/samber/lo"

	"circle-integration/attestation"
	"circle-integration/db"
	"circle-integration/models"
	"circle-integration/wire"
)

var (
	nextNonceKey     = []byte("transmitter:nonce")
	usedNoncesPrefix = []byte("transmitter:used:")
)

// Transmitter is the custodial bridge of one chain. It burns tokens into attestable
// messages and mints the tokens of messages attested for its domain.
type Transmitter struct {
	db       *db.LevelDB
	address  models.Address
	domain   models.Domain
	ledger   *Ledger
	verifier *attestation.CustodialVerifier

	mu        sync.RWMutex
	attesters []common.Address
	threshold uint32
	paused    bool
}

// NewTransmitter creates the transmitter of domain. threshold must be between one
// and the number of attesters.
func NewTransmitter(ldb *db.LevelDB, address models.Address, domain models.Domain, ledger *Ledger,
	attesters []common.Address, threshold uint32) (*Transmitter, error) {

	if threshold == 0 || int(threshold) > len(attesters) {
		return nil, fmt.Errorf("signature threshold %d invalid for %d attesters", threshold, len(attesters))
	}
	t := &Transmitter{
		db:        ldb,
		address:   address,
		domain:    domain,
		ledger:    ledger,
		attesters: lo.Uniq(attesters),
		threshold: threshold,
	}
	t.verifier = attestation.NewCustodialVerifier(t)
	return t, nil
}

// Address of the transmitter. The ledger must accept it as a minter.
func (t *Transmitter) Address() models.Address {
	return t.address
}

// LocalDomain is the custodial domain of this chain.
func (t *Transmitter) LocalDomain() models.Domain {
	return t.domain
}

// EnabledAttesters implements attestation.AttesterRegistry.
func (t *Transmitter) EnabledAttesters(context.Context) ([]common.Address, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.attesters), nil
}

// SignatureThreshold implements attestation.AttesterRegistry.
func (t *Transmitter) SignatureThreshold(context.Context) (uint32, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.threshold, nil
}

// EnableAttester adds attester to the enabled set.
func (t *Transmitter) EnableAttester(attester common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !lo.Contains(t.attesters, attester) {
		t.attesters = append(t.attesters, attester)
	}
}

// DisableAttester removes attester. The threshold cannot exceed the remaining count.
func (t *Transmitter) DisableAttester(attester common.Address) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	remaining := lo.Without(t.attesters, attester)
	if len(remaining) < int(t.threshold) {
		return errorsmod.Wrapf(ErrUnauthorized,
			"disabling %s leaves %d attesters for threshold %d", attester.Hex(), len(remaining), t.threshold)
	}
	t.attesters = remaining
	return nil
}

// SetSignatureThreshold changes how many attester signatures a message needs.
func (t *Transmitter) SetSignatureThreshold(threshold uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if threshold == 0 || int(threshold) > len(t.attesters) {
		return errorsmod.Wrapf(ErrUnauthorized,
			"signature threshold %d invalid for %d attesters", threshold, len(t.attesters))
	}
	t.threshold = threshold
	return nil
}

// SetPaused stops or resumes minting.
func (t *Transmitter) SetPaused(paused bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paused = paused
}

func (t *Transmitter) isPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

// NextNonce returns the nonce the next burn will be assigned.
func (t *Transmitter) NextNonce(ctx context.Context) (uint64, error) {
	data, err := t.db.Store(ctx).Get(nextNonceKey)
	if db.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

// Burn destroys amount held by sender and returns the burn message for attestation.
func (t *Transmitter) Burn(ctx context.Context, sender models.Address, amount *uint256.Int, destinationDomain models.Domain,
	mintRecipient, burnToken, destinationCaller models.Address) ([]byte, error) {

	if amount == nil || amount.IsZero() {
		return nil, errorsmod.Wrap(ErrInvalidDestination, "burn amount must be nonzero")
	}
	if mintRecipient.IsZero() {
		return nil, errorsmod.Wrap(ErrInvalidDestination, "mint recipient must be nonzero")
	}
	if destinationDomain == t.domain {
		return nil, errorsmod.Wrapf(ErrInvalidDestination, "cannot burn towards local domain %d", t.domain)
	}
	if burnToken != t.ledger.Address() {
		return nil, errorsmod.Wrapf(ErrUnauthorized, "burn token %s is not supported", burnToken)
	}

	var message []byte
	err := t.db.Update(ctx, func(ctx context.Context) error {
		if err := t.ledger.Burn(ctx, t.address, sender, amount); err != nil {
			return err
		}

		nonce, err := t.NextNonce(ctx)
		if err != nil {
			return err
		}
		if err := t.db.Store(ctx).Put(nextNonceKey, binary.BigEndian.AppendUint64(nil, nonce+1)); err != nil {
			return err
		}

		message, err = wire.EncodeCustodialMessage(&models.CustodialMessage{
			SourceDomain:      t.domain,
			DestinationDomain: destinationDomain,
			Nonce:             nonce,
			Sender:            t.address,
			Recipient:         t.address,
			DestinationCaller: destinationCaller,
			Body: models.BurnMessage{
				BurnToken:     burnToken,
				MintRecipient: mintRecipient,
				Amount:        amount.Clone(),
				MessageSender: sender,
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// Mint verifies the attestation of message and mints its amount to the message's
// recipient. Each (source domain, nonce) is minted once.
func (t *Transmitter) Mint(ctx context.Context, caller models.Address, message, att []byte) (bool, error) {
	if t.isPaused() {
		return false, ErrPaused
	}

	burn, err := t.verifier.VerifyAttestation(ctx, message, att)
	if err != nil {
		return false, err
	}
	if burn.DestinationDomain != t.domain {
		return false, errorsmod.Wrapf(ErrInvalidDestination,
			"message for domain %d received on domain %d", burn.DestinationDomain, t.domain)
	}
	if !burn.DestinationCaller.IsZero() && burn.DestinationCaller != caller {
		return false, errorsmod.Wrapf(ErrUnauthorized, "invalid caller %s for message", caller)
	}

	err = t.db.Update(ctx, func(ctx context.Context) error {
		key := burn.RedeemKey()
		usedKey := append(append([]byte{}, usedNoncesPrefix...), key[:]...)
		store := t.db.Store(ctx)

		used, err := store.Has(usedKey)
		if err != nil {
			return err
		}
		if used {
			return errorsmod.Wrapf(ErrNonceUsed, "domain %d nonce %d", burn.SourceDomain, burn.Nonce)
		}
		if err := store.Put(usedKey, []byte{1}); err != nil {
			return err
		}
		return t.ledger.Mint(ctx, t.address, burn.Body.MintRecipient, burn.Body.Amount)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
