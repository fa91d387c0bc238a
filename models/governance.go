package models

import "time"

// GovernanceModule is the ASCII module name, left-padded to 32 bytes on the wire.
const GovernanceModule = "CircleIntegration"

// GovernanceAction discriminates governance payloads.
type GovernanceAction uint8

const (
	ActionUpdateFinality           GovernanceAction = 1
	ActionRegisterEmitterAndDomain GovernanceAction = 2
	ActionUpgradeContract          GovernanceAction = 3
)

func (a GovernanceAction) String() string {
	switch a {
	case ActionUpdateFinality:
		return "UpdateFinality"
	case ActionRegisterEmitterAndDomain:
		return "RegisterEmitterAndDomain"
	case ActionUpgradeContract:
		return "UpgradeContract"
	default:
		return "Unknown"
	}
}

// GovernanceHeader is common to every governance action. Timestamp, GovernanceChain
// and Sequence come from the envelope that carried the payload.
type GovernanceHeader struct {
	Timestamp       time.Time
	GovernanceChain ChainID
	Sequence        uint64
	Action          GovernanceAction
	TargetChain     ChainID
}

// RegisterEmitterAndDomain trusts a foreign integration and its custodial domain.
type RegisterEmitterAndDomain struct {
	GovernanceHeader
	ForeignChain   ChainID
	ForeignEmitter Address
	ForeignDomain  Domain
}

// UpgradeContract swaps the running implementation.
type UpgradeContract struct {
	GovernanceHeader
	NewImplementation Address
}

// UpdateFinality changes the consistency level requested when publishing deposits.
type UpdateFinality struct {
	GovernanceHeader
	Finality uint8
}
