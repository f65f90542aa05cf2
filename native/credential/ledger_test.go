package credential_test

import (
	"errors"
	"testing"

	"credchain/core/events"
	"credchain/core/state"
	nativecommon "credchain/native/common"
	"credchain/native/credential"
	"credchain/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestLedger(t *testing.T) (*credential.Ledger, *credential.Registry, [20]byte) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	registry := credential.NewRegistry(manager)
	ledger := credential.NewLedger(manager, registry)
	admin := addr(0xAD)
	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	return ledger, registry, admin
}

func TestMintAssignsIncreasingIDs(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x01)

	var last uint64
	for i := 0; i < 3; i++ {
		id, err := ledger.Mint(admin, holder)
		if err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		if id == 0 {
			t.Fatalf("mint returned reserved ID 0")
		}
		if id <= last {
			t.Fatalf("expected strictly increasing IDs, got %d after %d", id, last)
		}
		last = id
	}
	owner, err := registry.OwnerOf(1)
	if err != nil {
		t.Fatalf("owner of 1: %v", err)
	}
	if owner != holder {
		t.Fatalf("unexpected owner %x", owner)
	}
}

func TestMintUnauthorizedLeavesStateUntouched(t *testing.T) {
	ledger, registry, _ := newTestLedger(t)
	outsider := addr(0x02)
	before := ledger.NextID()

	emitter := &capturingEmitter{}
	ledger.SetEmitter(emitter)

	if _, err := ledger.Mint(outsider, addr(0x03)); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if got := ledger.NextID(); got != before {
		t.Fatalf("counter moved on failed mint: %d != %d", got, before)
	}
	if _, err := registry.OwnerOf(before); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected no record for failed mint, got %v", err)
	}
	if len(emitter.events) != 0 {
		t.Fatalf("failed mint emitted %d events", len(emitter.events))
	}
}

func TestMintRejectsZeroTarget(t *testing.T) {
	ledger, _, admin := newTestLedger(t)
	if _, err := ledger.Mint(admin, [20]byte{}); !errors.Is(err, credential.ErrInvalidTarget) {
		t.Fatalf("expected invalid target error, got %v", err)
	}
}

func TestBurnLifecycle(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x11)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if ledger.IsBurnt(id) {
		t.Fatalf("fresh token reads as burnt")
	}

	emitter := &capturingEmitter{}
	ledger.SetEmitter(emitter)

	if err := ledger.Burn(holder, id); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !ledger.IsBurnt(id) {
		t.Fatalf("token not burnt after burn")
	}
	if _, err := registry.OwnerOf(id); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected ownership record removed, got %v", err)
	}
	if err := ledger.Burn(holder, id); !errors.Is(err, credential.ErrAlreadyBurnt) {
		t.Fatalf("expected already burnt error, got %v", err)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeCredentialBurned {
		t.Fatalf("expected single burned event, got %#v", emitter.events)
	}
	// Burn status is monotonic regardless of later activity.
	if _, err := ledger.Mint(admin, holder); err != nil {
		t.Fatalf("mint after burn: %v", err)
	}
	if !ledger.IsBurnt(id) {
		t.Fatalf("burnt flag reverted")
	}
}

func TestBurnUnauthorized(t *testing.T) {
	ledger, _, admin := newTestLedger(t)
	holder := addr(0x21)
	outsider := addr(0x22)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Burn(outsider, id); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if ledger.IsBurnt(id) {
		t.Fatalf("failed burn mutated state")
	}
}

func TestReservedTokenZero(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	if !ledger.IsBurnt(0) {
		t.Fatalf("reserved ID 0 must read as burnt")
	}
	// Unminted IDs deliberately read as not burnt.
	if ledger.IsBurnt(999) {
		t.Fatalf("unminted ID reads as burnt")
	}
}

func TestSetTransferability(t *testing.T) {
	ledger, _, admin := newTestLedger(t)
	outsider := addr(0x31)

	if ledger.Transferability() {
		t.Fatalf("transfers enabled by default")
	}
	if err := ledger.SetTransferability(outsider, true); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if ledger.Transferability() {
		t.Fatalf("failed toggle mutated flag")
	}
	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}
	if !ledger.Transferability() {
		t.Fatalf("flag not enabled")
	}
	if err := ledger.SetTransferability(admin, false); err != nil {
		t.Fatalf("disable transfers: %v", err)
	}
	if ledger.Transferability() {
		t.Fatalf("flag not disabled")
	}
}

func TestAdminRotation(t *testing.T) {
	ledger, _, admin := newTestLedger(t)
	successor := addr(0x41)
	outsider := addr(0x42)

	if err := ledger.SetAdmin(outsider, successor); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if err := ledger.SetAdmin(admin, [20]byte{}); !errors.Is(err, credential.ErrInvalidTarget) {
		t.Fatalf("expected invalid target error, got %v", err)
	}
	if err := ledger.SetAdmin(admin, successor); err != nil {
		t.Fatalf("rotate admin: %v", err)
	}
	if _, err := ledger.Mint(admin, addr(0x43)); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("old admin still authorized after rotation")
	}
	if _, err := ledger.Mint(successor, addr(0x43)); err != nil {
		t.Fatalf("new admin cannot mint: %v", err)
	}
}

func TestBootstrapRejectsRotation(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	if err := ledger.Bootstrap(addr(0x51)); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected bootstrap of a second admin to fail, got %v", err)
	}
}

func TestMintEmitsEvent(t *testing.T) {
	ledger, _, admin := newTestLedger(t)
	holder := addr(0x61)

	emitter := &capturingEmitter{}
	ledger.SetEmitter(emitter)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	minted, ok := emitter.events[0].(events.CredentialMinted)
	if !ok {
		t.Fatalf("unexpected event %#v", emitter.events[0])
	}
	if minted.TokenID != id || minted.Owner != holder {
		t.Fatalf("unexpected event payload %#v", minted)
	}
}

func TestPauseSwitchGatesCredentialMutations(t *testing.T) {
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	registry := credential.NewRegistry(manager)
	ledger := credential.NewLedger(manager, registry)
	pauses := nativecommon.NewStatePauses(manager)
	registry.SetPauses(pauses)
	ledger.SetPauses(pauses)
	admin := addr(0xAD)
	if err := ledger.Bootstrap(admin); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	holder := addr(0x01)
	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := ledger.SetPaused(addr(0x31), credential.ModuleName, true); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if err := ledger.SetPaused(admin, credential.ModuleName, true); err != nil {
		t.Fatalf("pause module: %v", err)
	}

	if _, err := ledger.Mint(admin, holder); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error from mint, got %v", err)
	}
	if err := ledger.Burn(holder, id); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error from burn, got %v", err)
	}
	if err := registry.Approve(holder, addr(0x02), id); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused error from approve, got %v", err)
	}
	if ledger.IsBurnt(id) {
		t.Fatalf("query surfaced pause state")
	}

	if err := ledger.SetPaused(admin, credential.ModuleName, false); err != nil {
		t.Fatalf("resume module: %v", err)
	}
	if _, err := ledger.Mint(admin, holder); err != nil {
		t.Fatalf("mint after resume: %v", err)
	}
}
