package credential

import (
	"time"

	"credchain/core/events"
	nativecommon "credchain/native/common"
)

// ModuleName identifies the credential module for pause switches and audit
// trails.
const ModuleName = "credential"

// firstTokenID is the lowest ID ever handed out by Mint. ID 0 is permanently
// reserved and reads as burnt.
const firstTokenID uint64 = 1

// Ledger owns the credential lifecycle: issuance, the monotonic burn
// tombstones, the global transferability flag, and the administrator
// identity. Ownership data itself lives in the Registry; the ledger consults
// it for authorization and record maintenance.
//
// Mutating operations are serialised through the registry's module-wide lock
// and validate every precondition before the first state write, so a failed
// call leaves state untouched and emits nothing.
type Ledger struct {
	st       State
	registry *Registry
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	nowFn    func() uint64
}

// NewLedger creates a lifecycle ledger over the provided state and ownership
// registry.
func NewLedger(st State, registry *Registry) *Ledger {
	return &Ledger{
		st:       st,
		registry: registry,
		emitter:  events.NoopEmitter{},
		nowFn:    func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) SetPauses(p nativecommon.PauseView) {
	if l == nil {
		return
	}
	l.pauses = p
}

// SetNowFunc overrides the time source used for mint timestamps. Primarily
// intended for tests to provide deterministic values.
func (l *Ledger) SetNowFunc(now func() uint64) {
	if now == nil {
		l.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	l.nowFn = now
}

// Bootstrap seeds the administrator identity when none is configured yet.
// Rotating an existing administrator must go through SetAdmin so the change
// is audited.
func (l *Ledger) Bootstrap(admin [20]byte) error {
	if admin == ([20]byte{}) {
		return ErrInvalidTarget
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	current, ok, err := l.loadAdmin()
	if err != nil {
		return err
	}
	if ok {
		if current == admin {
			return nil
		}
		return ErrUnauthorized
	}
	return l.st.KVPut(administratorKey, admin)
}

func (l *Ledger) loadAdmin() ([20]byte, bool, error) {
	var admin [20]byte
	ok, err := l.st.KVGet(administratorKey, &admin)
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	return admin, true, nil
}

// Admin returns the configured administrator identity.
func (l *Ledger) Admin() ([20]byte, error) {
	admin, ok, err := l.loadAdmin()
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrAdminNotSet
	}
	return admin, nil
}

func (l *Ledger) requireAdmin(caller [20]byte) error {
	admin, err := l.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	return nil
}

// SetAdmin rotates the administrator identity. Only the current
// administrator may hand over the role, and the zero address is rejected.
func (l *Ledger) SetAdmin(caller, next [20]byte) error {
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if next == ([20]byte{}) {
		return ErrInvalidTarget
	}
	if err := l.st.KVPut(administratorKey, next); err != nil {
		return err
	}
	l.emit(events.AdminRotated{Previous: caller, Next: next})
	return nil
}

// Mint issues a new credential to the target identity. Only the
// administrator may mint; IDs are strictly increasing and never reused.
func (l *Ledger) Mint(caller, target [20]byte) (uint64, error) {
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return 0, err
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return 0, err
	}
	if target == ([20]byte{}) {
		return 0, ErrInvalidTarget
	}
	id, err := l.nextID()
	if err != nil {
		return 0, err
	}
	if err := l.registry.createRecord(id, target, l.nowFn()); err != nil {
		return 0, err
	}
	if err := l.st.KVPut(nextIDKey, id+1); err != nil {
		return 0, err
	}
	l.emit(events.CredentialMinted{Owner: target, TokenID: id})
	return id, nil
}

// Burn irreversibly retires the credential. The caller must be the owner or
// the approved delegate. The ownership record is removed while the burnt
// tombstone and any vesting schedule persist.
func (l *Ledger) Burn(caller [20]byte, tokenID uint64) error {
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if l.IsBurnt(tokenID) {
		return ErrAlreadyBurnt
	}
	if !l.registry.IsApprovedOrOwner(caller, tokenID) {
		return ErrUnauthorized
	}
	if err := l.st.KVPut(burntKey(tokenID), true); err != nil {
		return err
	}
	if err := l.registry.removeRecord(tokenID); err != nil {
		return err
	}
	l.emit(events.CredentialBurned{Caller: caller, TokenID: tokenID})
	return nil
}

// SetTransferability overwrites the global transferability flag. The flag
// applies to all credentials uniformly; there is no per-token override.
func (l *Ledger) SetTransferability(caller [20]byte, enabled bool) error {
	if err := nativecommon.Guard(l.pauses, ModuleName); err != nil {
		return err
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := l.st.KVPut(transferableKey, enabled); err != nil {
		return err
	}
	l.emit(events.TransferabilityUpdated{Caller: caller, Enabled: enabled})
	return nil
}

// SetPaused flips the operator pause switch for a native module. Only the
// administrator may change it. The call is not guarded by the switch itself,
// so a paused module can always be resumed.
func (l *Ledger) SetPaused(caller [20]byte, module string, paused bool) error {
	if module == "" {
		return ErrInvalidTarget
	}
	l.registry.mu.Lock()
	defer l.registry.mu.Unlock()
	if err := l.requireAdmin(caller); err != nil {
		return err
	}
	if err := nativecommon.SetPaused(l.st, module, paused); err != nil {
		return err
	}
	l.emit(events.ModulePauseUpdated{Caller: caller, Module: module, Paused: paused})
	return nil
}

// IsBurnt reports whether the credential has been retired. IDs that were
// never minted deliberately read as not burnt, and the reserved ID 0 always
// reads as burnt. The query never fails; state read errors degrade to the
// permissive default.
func (l *Ledger) IsBurnt(tokenID uint64) bool {
	if tokenID == 0 {
		return true
	}
	var burnt bool
	ok, err := l.st.KVGet(burntKey(tokenID), &burnt)
	if err != nil || !ok {
		return false
	}
	return burnt
}

// Transferability returns the current global flag. Unset state reads as
// disabled.
func (l *Ledger) Transferability() bool {
	enabled, err := transferability(l.st)
	if err != nil {
		return false
	}
	return enabled
}

// NextID returns the ID the next successful Mint will assign.
func (l *Ledger) NextID() uint64 {
	id, err := l.nextID()
	if err != nil {
		return firstTokenID
	}
	return id
}

func (l *Ledger) nextID() (uint64, error) {
	var id uint64
	ok, err := l.st.KVGet(nextIDKey, &id)
	if err != nil {
		return 0, err
	}
	if !ok || id < firstTokenID {
		return firstTokenID, nil
	}
	return id, nil
}

func (l *Ledger) emit(event events.Event) {
	if l.emitter == nil {
		return
	}
	l.emitter.Emit(event)
}
