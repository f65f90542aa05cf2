package credential

import (
	"sort"
	"sync"

	"credchain/core/events"
	nativecommon "credchain/native/common"
)

// Oracle is the authorization surface consumed by components that need to
// know who may act on a credential. It is side-effect free.
type Oracle interface {
	OwnerOf(tokenID uint64) ([20]byte, error)
	IsApprovedOrOwner(caller [20]byte, tokenID uint64) bool
}

// Registry is the authoritative ownership record for credentials: who owns a
// token, which single delegate is approved on it, and the per-holder
// enumeration index. Transfers are gated by the global transferability flag
// owned by the Ledger.
//
// The registry owns the write lock for the whole credential module. Every
// mutating operation here, on the Ledger, and on the vesting engine runs
// under it, so the holder-index read-modify-write sequences never interleave.
type Registry struct {
	st      State
	emitter events.Emitter
	pauses  nativecommon.PauseView

	mu sync.Mutex
}

// NewRegistry creates a registry backed by the provided state manager.
func NewRegistry(st State) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter used to broadcast ownership
// changes. Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

func (r *Registry) SetPauses(p nativecommon.PauseView) {
	if r == nil {
		return
	}
	r.pauses = p
}

// Lock acquires the module-wide write lock. Components whose mutations must
// not interleave with ownership changes (the Ledger, the vesting engine) take
// it around their critical sections.
func (r *Registry) Lock() { r.mu.Lock() }

// Unlock releases the module-wide write lock.
func (r *Registry) Unlock() { r.mu.Unlock() }

func (r *Registry) record(id uint64) (*Token, bool, error) {
	out := new(Token)
	ok, err := r.st.KVGet(tokenKey(id), out)
	if err != nil || !ok {
		return nil, false, err
	}
	return out, true, nil
}

// OwnerOf resolves the current owner of the token. Tokens that were never
// minted or have been removed from the registry fail with ErrNotFound.
func (r *Registry) OwnerOf(tokenID uint64) ([20]byte, error) {
	record, ok, err := r.record(tokenID)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrNotFound
	}
	return record.Owner, nil
}

// IsApprovedOrOwner reports whether the caller is the current owner of the
// token or holds the delegated approval for it. Missing tokens and the zero
// caller read as false.
func (r *Registry) IsApprovedOrOwner(caller [20]byte, tokenID uint64) bool {
	if caller == ([20]byte{}) {
		return false
	}
	record, ok, err := r.record(tokenID)
	if err != nil || !ok {
		return false
	}
	if record.Owner == caller {
		return true
	}
	return record.HasApproval() && record.Approved == caller
}

// Approve delegates (or, with the zero address, clears) approval on the
// token. Only the current owner may change the delegation.
func (r *Registry) Approve(caller, spender [20]byte, tokenID uint64) error {
	if err := nativecommon.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok, err := r.record(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if record.Owner != caller {
		return ErrUnauthorized
	}
	record.Approved = spender
	if err := r.st.KVPut(tokenKey(tokenID), record); err != nil {
		return err
	}
	r.emit(events.CredentialApproved{Owner: record.Owner, Approved: spender, TokenID: tokenID})
	return nil
}

// Transfer moves the token to a new owner. The caller must be the owner or
// the approved delegate, the target must be non-zero, and the global
// transferability flag must be enabled. Approval is cleared on transfer.
func (r *Registry) Transfer(caller, to [20]byte, tokenID uint64) error {
	if err := nativecommon.Guard(r.pauses, ModuleName); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok, err := r.record(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if !r.IsApprovedOrOwner(caller, tokenID) {
		return ErrUnauthorized
	}
	if to == ([20]byte{}) {
		return ErrInvalidTarget
	}
	enabled, err := transferability(r.st)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrNotTransferable
	}

	from := record.Owner
	record.Owner = to
	record.Approved = [20]byte{}
	if err := r.st.KVPut(tokenKey(tokenID), record); err != nil {
		return err
	}
	if err := r.st.KVRemove(holderIdxKey(from), tokenIDBytes(tokenID)); err != nil {
		return err
	}
	if err := r.st.KVAppend(holderIdxKey(to), tokenIDBytes(tokenID)); err != nil {
		return err
	}
	r.emit(events.CredentialTransferred{From: from, To: to, TokenID: tokenID})
	return nil
}

// TokensOf returns all token IDs currently held by the owner in ascending
// order.
func (r *Registry) TokensOf(owner [20]byte) ([]uint64, error) {
	var raw [][]byte
	if err := r.st.KVGetList(holderIdxKey(owner), &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, b := range raw {
		if id, ok := tokenIDFromBytes(b); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// createRecord registers a freshly minted token for the owner.
func (r *Registry) createRecord(tokenID uint64, owner [20]byte, mintedAt uint64) error {
	record := &Token{ID: tokenID, Owner: owner, MintedAt: mintedAt}
	if err := r.st.KVPut(tokenKey(tokenID), record); err != nil {
		return err
	}
	return r.st.KVAppend(holderIdxKey(owner), tokenIDBytes(tokenID))
}

// removeRecord deletes the ownership record and index entry for the token.
// The burnt tombstone is managed separately by the Ledger and survives the
// removal.
func (r *Registry) removeRecord(tokenID uint64) error {
	record, ok, err := r.record(tokenID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := r.st.KVRemove(holderIdxKey(record.Owner), tokenIDBytes(tokenID)); err != nil {
		return err
	}
	return r.st.KVDelete(tokenKey(tokenID))
}

func (r *Registry) emit(event events.Event) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(event)
}

// transferability reads the global flag. Until the administrator enables it
// the registry refuses transfers, matching the issuance-bound nature of the
// credentials.
func transferability(st State) (bool, error) {
	var enabled bool
	ok, err := st.KVGet(transferableKey, &enabled)
	if err != nil || !ok {
		return false, err
	}
	return enabled, nil
}
