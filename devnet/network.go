package devnet

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"strconv"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"circle-integration/db"
	"circle-integration/logger"
	"circle-integration/metrics"
	"circle-integration/models"
	"circle-integration/wire"
)

// GuardianSetExpiry is how long a replaced guardian set keeps verifying envelopes.
const GuardianSetExpiry = 24 * time.Hour

var (
	guardianSetPrefix = []byte("network:guardianset:")
	currentSetKey     = []byte("network:current")
	sequencePrefix    = []byte("network:sequence:")
	messagePrefix     = []byte("network:message:")
)

// FeeCollector receives the message fees paid in the native coin.
var FeeCollector = models.AddressFromEVM(common.HexToAddress("0x00000000000000000000000000000000000fee00"))

// MessageNetwork is the local end of the guardian network: it stores guardian sets,
// assigns per-emitter sequences and keeps every published message so guardians can
// sign it.
type MessageNetwork struct {
	db      *db.LevelDB
	chainID models.ChainID
	fee     *uint256.Int
	native  *Ledger
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewMessageNetwork creates the network end of chainID. Fees are paid in native.
func NewMessageNetwork(ldb *db.LevelDB, chainID models.ChainID, messageFee *uint256.Int, native *Ledger) *MessageNetwork {
	if messageFee == nil {
		messageFee = new(uint256.Int)
	}
	return &MessageNetwork{
		db:      ldb,
		chainID: chainID,
		fee:     messageFee,
		native:  native,
		now:     time.Now,
		metrics: metrics.NewMetrics(),
	}
}

// ChainID of the chain this network end lives on.
func (n *MessageNetwork) ChainID() models.ChainID {
	return n.chainID
}

// MessageFee is charged for every published message.
func (n *MessageNetwork) MessageFee() *uint256.Int {
	return n.fee.Clone()
}

func guardianSetKey(index uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, guardianSetPrefix...), index)
}

// SetGuardianSet installs set as the current guardian set. The set it replaces
// expires after GuardianSetExpiry.
func (n *MessageNetwork) SetGuardianSet(ctx context.Context, set models.GuardianSet) error {
	if len(set.Keys) == 0 {
		return errorsmod.Wrap(models.ErrUnknownGuardianSet, "guardian set has no keys")
	}
	return n.db.Update(ctx, func(ctx context.Context) error {
		store := n.db.Store(ctx)

		current, err := n.CurrentGuardianSetIndex(ctx)
		switch {
		case err == nil:
			if set.Index <= current {
				return errorsmod.Wrapf(models.ErrUnknownGuardianSet,
					"guardian set index %d must be greater than %d", set.Index, current)
			}
			previous, err := n.GuardianSet(ctx, current)
			if err != nil {
				return err
			}
			previous.ExpirationTime = n.now().Add(GuardianSetExpiry)
			if err := n.putGuardianSet(store, previous); err != nil {
				return err
			}
		case !errorsmod.IsOf(err, models.ErrUnknownGuardianSet):
			return err
		}

		set.ExpirationTime = time.Time{}
		if set.Quorum == 0 {
			set.Quorum = models.Quorum(len(set.Keys))
		}
		if err := n.putGuardianSet(store, &set); err != nil {
			return err
		}
		return store.Put(currentSetKey, binary.BigEndian.AppendUint32(nil, set.Index))
	})
}

func (n *MessageNetwork) putGuardianSet(store db.Writer, set *models.GuardianSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	return store.Put(guardianSetKey(set.Index), data)
}

// GuardianSet returns the guardian set with index.
func (n *MessageNetwork) GuardianSet(ctx context.Context, index uint32) (*models.GuardianSet, error) {
	data, err := n.db.Store(ctx).Get(guardianSetKey(index))
	if db.IsNotFound(err) {
		return nil, errorsmod.Wrapf(models.ErrUnknownGuardianSet, "guardian set %d", index)
	}
	if err != nil {
		return nil, err
	}
	var set models.GuardianSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// CurrentGuardianSetIndex returns the index of the newest guardian set.
func (n *MessageNetwork) CurrentGuardianSetIndex(ctx context.Context) (uint32, error) {
	data, err := n.db.Store(ctx).Get(currentSetKey)
	if db.IsNotFound(err) {
		return 0, errorsmod.Wrap(models.ErrUnknownGuardianSet, "no guardian set installed")
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

func sequenceKey(emitter models.Address) []byte {
	return append(append([]byte{}, sequencePrefix...), emitter[:]...)
}

func messageKey(emitter models.Address, sequence uint64) []byte {
	k := append(append([]byte{}, messagePrefix...), emitter[:]...)
	return binary.BigEndian.AppendUint64(k, sequence)
}

// Publish records payload from emitter, charges the message fee to payer and returns
// the message sequence. Sequences start at zero and increase by one per emitter.
func (n *MessageNetwork) Publish(ctx context.Context, emitter, payer models.Address, nonce uint32, payload []byte,
	consistencyLevel uint8) (uint64, error) {

	var sequence uint64
	err := n.db.Update(ctx, func(ctx context.Context) error {
		store := n.db.Store(ctx)

		data, err := store.Get(sequenceKey(emitter))
		switch {
		case err == nil:
			sequence = binary.BigEndian.Uint64(data)
		case !db.IsNotFound(err):
			return err
		}

		envelope := &models.Envelope{
			Version:          models.EnvelopeVersion,
			Timestamp:        n.now().UTC().Truncate(time.Second),
			Nonce:            nonce,
			EmitterChain:     n.chainID,
			EmitterAddress:   emitter,
			Sequence:         sequence,
			ConsistencyLevel: consistencyLevel,
			Payload:          payload,
		}
		if err := store.Put(messageKey(emitter, sequence), wire.EncodeEnvelopeBody(envelope)); err != nil {
			return err
		}
		if err := store.Put(sequenceKey(emitter), binary.BigEndian.AppendUint64(nil, sequence+1)); err != nil {
			return err
		}
		return n.collectFee(ctx, payer)
	})
	if err != nil {
		return 0, err
	}

	n.metrics.PublishedMessages.WithLabelValues(strconv.Itoa(int(n.chainID))).Inc()
	logger.Named("devnet").Debug("Message published",
		zap.Uint16("chain", uint16(n.chainID)),
		zap.Stringer("emitter", emitter),
		zap.Uint64("sequence", sequence))
	return sequence, nil
}

func (n *MessageNetwork) collectFee(ctx context.Context, payer models.Address) error {
	if n.fee.IsZero() {
		return nil
	}
	if err := n.native.Transfer(ctx, payer, FeeCollector, n.fee); err != nil {
		return errorsmod.Wrapf(err, "message fee of %s", payer)
	}
	return nil
}

// FeesCollected is the sum of message fees charged so far.
func (n *MessageNetwork) FeesCollected(ctx context.Context) (*uint256.Int, error) {
	return n.native.BalanceOf(ctx, FeeCollector)
}

// PublishedMessage returns the unsigned envelope published by emitter at sequence.
func (n *MessageNetwork) PublishedMessage(ctx context.Context, emitter models.Address, sequence uint64) (*models.Envelope, error) {
	body, err := n.db.Store(ctx).Get(messageKey(emitter, sequence))
	if db.IsNotFound(err) {
		return nil, errorsmod.Wrapf(ErrMessageNotFound, "emitter %s sequence %d", emitter, sequence)
	}
	if err != nil {
		return nil, err
	}

	// an envelope without signatures is the version/index/count header plus the body
	header := []byte{models.EnvelopeVersion, 0, 0, 0, 0, 0}
	return wire.DecodeEnvelope(append(header, body...))
}
