package wire

import (
	"bytes"

	errorsmod "cosmossdk.io/errors"
	"github.com/ethereum/go-ethereum/common"

	"circle-integration/models"
)

// GovernanceModuleBytes is the 32-byte module identifier governance payloads start with.
var GovernanceModuleBytes = common.LeftPadBytes([]byte(models.GovernanceModule), 32)

func writeGovernanceHeader(w *writer, action models.GovernanceAction, target models.ChainID) {
	w.raw(GovernanceModuleBytes)
	w.uint8(uint8(action))
	w.uint16(uint16(target))
}

// EncodeRegisterEmitterAndDomain serializes the register action payload.
func EncodeRegisterEmitterAndDomain(m *models.RegisterEmitterAndDomain) []byte {
	w := &writer{}
	writeGovernanceHeader(w, models.ActionRegisterEmitterAndDomain, m.TargetChain)
	w.uint16(uint16(m.ForeignChain))
	w.address(m.ForeignEmitter)
	w.uint32(uint32(m.ForeignDomain))
	return w.buf
}

// EncodeUpgradeContract serializes the upgrade action payload.
func EncodeUpgradeContract(m *models.UpgradeContract) []byte {
	w := &writer{}
	writeGovernanceHeader(w, models.ActionUpgradeContract, m.TargetChain)
	w.address(m.NewImplementation)
	return w.buf
}

// EncodeUpdateFinality serializes the finality action payload.
func EncodeUpdateFinality(m *models.UpdateFinality) []byte {
	w := &writer{}
	writeGovernanceHeader(w, models.ActionUpdateFinality, m.TargetChain)
	w.uint8(m.Finality)
	return w.buf
}

// PeekGovernanceAction returns the action of a governance payload after checking the
// module identifier.
func PeekGovernanceAction(payload []byte) (models.GovernanceAction, error) {
	r := newReader(payload, "governance message")
	header, err := readGovernanceHeader(r)
	if err != nil {
		return 0, err
	}
	return header.Action, nil
}

func readGovernanceHeader(r *reader) (models.GovernanceHeader, error) {
	module := r.take(32, "module")
	action := models.GovernanceAction(r.uint8("action"))
	target := models.ChainID(r.uint16("targetChain"))
	if r.err != nil {
		return models.GovernanceHeader{}, r.err
	}
	if !bytes.Equal(module, GovernanceModuleBytes) {
		return models.GovernanceHeader{}, errorsmod.Wrapf(models.ErrInvalidGovernance,
			"governance module %x is not %s", module, models.GovernanceModule)
	}
	return models.GovernanceHeader{Action: action, TargetChain: target}, nil
}

func expectAction(got, want models.GovernanceAction) error {
	if got != want {
		return errorsmod.Wrapf(models.ErrInvalidGovernance,
			"governance action %s, expected %s", got, want)
	}
	return nil
}

// headerFromEnvelope fills the envelope-provided fields of a governance header.
func headerFromEnvelope(h models.GovernanceHeader, e *models.Envelope) models.GovernanceHeader {
	h.Timestamp = e.Timestamp
	h.GovernanceChain = e.EmitterChain
	h.Sequence = e.Sequence
	return h
}

// DecodeRegisterEmitterAndDomain parses the register action carried by e.
func DecodeRegisterEmitterAndDomain(e *models.Envelope) (*models.RegisterEmitterAndDomain, error) {
	r := newReader(e.Payload, "register emitter and domain")
	header, err := readGovernanceHeader(r)
	if err != nil {
		return nil, err
	}
	if err := expectAction(header.Action, models.ActionRegisterEmitterAndDomain); err != nil {
		return nil, err
	}

	m := &models.RegisterEmitterAndDomain{
		GovernanceHeader: headerFromEnvelope(header, e),
		ForeignChain:     models.ChainID(r.uint16("foreignChain")),
		ForeignEmitter:   r.address("foreignEmitter"),
		ForeignDomain:    models.Domain(r.uint32("foreignDomain")),
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeUpgradeContract parses the upgrade action carried by e.
func DecodeUpgradeContract(e *models.Envelope) (*models.UpgradeContract, error) {
	r := newReader(e.Payload, "upgrade contract")
	header, err := readGovernanceHeader(r)
	if err != nil {
		return nil, err
	}
	if err := expectAction(header.Action, models.ActionUpgradeContract); err != nil {
		return nil, err
	}

	m := &models.UpgradeContract{
		GovernanceHeader:  headerFromEnvelope(header, e),
		NewImplementation: r.address("newImplementation"),
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeUpdateFinality parses the finality action carried by e.
func DecodeUpdateFinality(e *models.Envelope) (*models.UpdateFinality, error) {
	r := newReader(e.Payload, "update finality")
	header, err := readGovernanceHeader(r)
	if err != nil {
		return nil, err
	}
	if err := expectAction(header.Action, models.ActionUpdateFinality); err != nil {
		return nil, err
	}

	m := &models.UpdateFinality{
		GovernanceHeader: headerFromEnvelope(header, e),
		Finality:         r.uint8("finality"),
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return m, nil
}
