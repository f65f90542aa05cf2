package vesting

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"credchain/core/events"
	nativecommon "credchain/native/common"
)

// ModuleName identifies the vesting module for pause switches and audit
// trails.
const ModuleName = "vesting"

// OwnershipOracle is the authorization capability the engine consults before
// releasing funds. The authorization read is side-effect free. The oracle
// also carries the module-wide write lock; the engine holds it across a
// release so the authorization check and the payout cannot interleave with a
// concurrent burn or transfer.
type OwnershipOracle interface {
	sync.Locker
	IsApprovedOrOwner(caller [20]byte, tokenID uint64) bool
}

// AdminView resolves the administrator identity gating schedule changes.
type AdminView interface {
	Admin() ([20]byte, error)
}

// State describes the persistence surface the vesting engine requires.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var deadlinePrefix = []byte("vesting/deadline/")

func deadlineKey(tokenID uint64) []byte {
	key := make([]byte, len(deadlinePrefix)+8)
	copy(key, deadlinePrefix)
	binary.BigEndian.PutUint64(key[len(deadlinePrefix):], tokenID)
	return key
}

// Engine tracks per-credential vesting deadlines and authorizes the one-shot
// release of the pooled reward balance. The payout deliberately drains the
// entire custody pool rather than a per-token share; a later release against
// the drained pool transfers zero instead of failing.
//
// Mutations are serialised through the oracle's module-wide lock and validate
// every precondition before the first state write.
type Engine struct {
	st      State
	oracle  OwnershipOracle
	rewards RewardLedger
	admin   AdminView
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() uint64
}

// NewEngine creates a vesting engine with a no-op emitter. The state, oracle,
// reward ledger and admin view must be configured before use.
func NewEngine(st State, oracle OwnershipOracle, rewards RewardLedger, admin AdminView) *Engine {
	return &Engine{
		st:      st,
		oracle:  oracle,
		rewards: rewards,
		admin:   admin,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().Unix()) }
		return
	}
	e.nowFn = now
}

// SetSchedule assigns the vesting deadline for the credential to the current
// time plus the duration, saturating on overflow. Only the administrator may
// schedule, and repeat calls reschedule freely until the reward is released.
func (e *Engine) SetSchedule(caller [20]byte, tokenID uint64, durationSeconds uint64) error {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	e.oracle.Lock()
	defer e.oracle.Unlock()
	admin, err := e.admin.Admin()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	now := e.nowFn()
	deadline := now + durationSeconds
	if deadline < now {
		deadline = math.MaxUint64
	}
	if err := e.st.KVPut(deadlineKey(tokenID), deadline); err != nil {
		return err
	}
	e.emit(events.VestingScheduled{Caller: caller, TokenID: tokenID, Deadline: deadline})
	return nil
}

// Schedule returns the vesting deadline for the credential. The second
// return value reports whether a schedule is set; unknown IDs read as unset
// without erroring.
func (e *Engine) Schedule(tokenID uint64) (uint64, bool) {
	var deadline uint64
	ok, err := e.st.KVGet(deadlineKey(tokenID), &deadline)
	if err != nil || !ok || deadline == 0 {
		return 0, false
	}
	return deadline, true
}

// ReleaseVested pays the entire current custody pool to the caller once the
// credential's deadline has passed. The caller must be the owner or the
// approved delegate. The transferred amount may be zero when the pool has
// already been drained by an earlier release.
func (e *Engine) ReleaseVested(caller [20]byte, tokenID uint64) (*big.Int, error) {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	e.oracle.Lock()
	defer e.oracle.Unlock()
	if !e.oracle.IsApprovedOrOwner(caller, tokenID) {
		return nil, ErrUnauthorized
	}
	deadline, ok := e.Schedule(tokenID)
	if !ok {
		return nil, ErrScheduleNotSet
	}
	if e.nowFn() < deadline {
		return nil, ErrNotYetVested
	}
	amount, err := e.rewards.PoolBalance()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.rewards.Payout(caller, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	e.emit(events.CredentialVested{Caller: caller, TokenID: tokenID, Amount: new(big.Int).Set(amount)})
	return amount, nil
}

func (e *Engine) emit(event events.Event) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}
