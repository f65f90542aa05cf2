package events

import "math/big"

const (
	// TypeCredentialMinted is emitted when a new credential is issued.
	TypeCredentialMinted = "credential.minted"
	// TypeCredentialBurned is emitted when a credential is irreversibly
	// retired.
	TypeCredentialBurned = "credential.burned"
	// TypeCredentialVested is emitted when a vested reward payout is
	// released to a credential holder.
	TypeCredentialVested = "credential.vested"
	// TypeCredentialApproved is emitted when a holder delegates approval
	// for a credential.
	TypeCredentialApproved = "credential.approved"
	// TypeCredentialTransferred is emitted when a credential changes
	// ownership.
	TypeCredentialTransferred = "credential.transferred"
	// TypeVestingScheduled is emitted when the administrator sets or
	// reschedules a credential's vesting deadline.
	TypeVestingScheduled = "credential.vesting.scheduled"
	// TypeTransferabilityUpdated is emitted when the administrator toggles
	// the global transferability flag.
	TypeTransferabilityUpdated = "credential.transferability.updated"
	// TypeAdminRotated is emitted when the administrator identity is
	// handed over.
	TypeAdminRotated = "credential.admin.rotated"
	// TypeModulePauseUpdated is emitted when the administrator flips a
	// module's operator pause switch.
	TypeModulePauseUpdated = "module.pause.updated"
)

// CredentialMinted captures the issuance of a new credential.
type CredentialMinted struct {
	Owner   [20]byte
	TokenID uint64
}

// EventType implements the Event interface.
func (CredentialMinted) EventType() string { return TypeCredentialMinted }

// CredentialBurned captures the retirement of a credential.
type CredentialBurned struct {
	Caller  [20]byte
	TokenID uint64
}

// EventType implements the Event interface.
func (CredentialBurned) EventType() string { return TypeCredentialBurned }

// CredentialVested captures a vested reward payout. Amount reflects the full
// custody pool drained by the release and may be zero when the pool was
// already empty.
type CredentialVested struct {
	Caller  [20]byte
	TokenID uint64
	Amount  *big.Int
}

// EventType implements the Event interface.
func (CredentialVested) EventType() string { return TypeCredentialVested }

// CredentialApproved captures an approval delegation.
type CredentialApproved struct {
	Owner    [20]byte
	Approved [20]byte
	TokenID  uint64
}

// EventType implements the Event interface.
func (CredentialApproved) EventType() string { return TypeCredentialApproved }

// CredentialTransferred captures an ownership change.
type CredentialTransferred struct {
	From    [20]byte
	To      [20]byte
	TokenID uint64
}

// EventType implements the Event interface.
func (CredentialTransferred) EventType() string { return TypeCredentialTransferred }

// VestingScheduled captures the deadline assigned to a credential.
type VestingScheduled struct {
	Caller   [20]byte
	TokenID  uint64
	Deadline uint64
}

// EventType implements the Event interface.
func (VestingScheduled) EventType() string { return TypeVestingScheduled }

// TransferabilityUpdated captures a toggle of the global transferability
// flag.
type TransferabilityUpdated struct {
	Caller  [20]byte
	Enabled bool
}

// EventType implements the Event interface.
func (TransferabilityUpdated) EventType() string { return TypeTransferabilityUpdated }

// ModulePauseUpdated captures a flip of a module's operator pause switch.
type ModulePauseUpdated struct {
	Caller [20]byte
	Module string
	Paused bool
}

// EventType implements the Event interface.
func (ModulePauseUpdated) EventType() string { return TypeModulePauseUpdated }

// AdminRotated captures a handover of the administrator identity.
type AdminRotated struct {
	Previous [20]byte
	Next     [20]byte
}

// EventType implements the Event interface.
func (AdminRotated) EventType() string { return TypeAdminRotated }
