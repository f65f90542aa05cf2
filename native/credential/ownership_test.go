package credential_test

import (
	"errors"
	"sync"
	"testing"

	"credchain/core/events"
	"credchain/native/credential"
)

func TestOwnerOfUnknownToken(t *testing.T) {
	_, registry, _ := newTestLedger(t)
	if _, err := registry.OwnerOf(7); !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIsApprovedOrOwner(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x01)
	delegate := addr(0x02)
	outsider := addr(0x03)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !registry.IsApprovedOrOwner(holder, id) {
		t.Fatalf("owner not recognised")
	}
	if registry.IsApprovedOrOwner(delegate, id) {
		t.Fatalf("delegate recognised before approval")
	}
	if registry.IsApprovedOrOwner([20]byte{}, id) {
		t.Fatalf("zero caller recognised")
	}

	if err := registry.Approve(outsider, delegate, id); !errors.Is(err, credential.ErrUnauthorized) {
		t.Fatalf("expected unauthorized approve, got %v", err)
	}
	if err := registry.Approve(holder, delegate, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !registry.IsApprovedOrOwner(delegate, id) {
		t.Fatalf("delegate not recognised after approval")
	}

	// Clearing with the zero address revokes the delegation.
	if err := registry.Approve(holder, [20]byte{}, id); err != nil {
		t.Fatalf("clear approval: %v", err)
	}
	if registry.IsApprovedOrOwner(delegate, id) {
		t.Fatalf("delegate recognised after revocation")
	}
}

func TestApprovalAuthorizesBurn(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x11)
	delegate := addr(0x12)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := registry.Approve(holder, delegate, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.Burn(delegate, id); err != nil {
		t.Fatalf("burn by delegate: %v", err)
	}
	if !ledger.IsBurnt(id) {
		t.Fatalf("token not burnt")
	}
}

func TestTransferRequiresGlobalFlag(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x21)
	recipient := addr(0x22)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := registry.Transfer(holder, recipient, id); !errors.Is(err, credential.ErrNotTransferable) {
		t.Fatalf("expected transfers disabled error, got %v", err)
	}
	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}

	emitter := &capturingEmitter{}
	registry.SetEmitter(emitter)

	if err := registry.Transfer(holder, recipient, id); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	owner, err := registry.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != recipient {
		t.Fatalf("unexpected owner %x", owner)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeCredentialTransferred {
		t.Fatalf("expected transfer event, got %#v", emitter.events)
	}
}

func TestTransferClearsApproval(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x31)
	delegate := addr(0x32)
	recipient := addr(0x33)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}
	if err := registry.Approve(holder, delegate, id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := registry.Transfer(delegate, recipient, id); err != nil {
		t.Fatalf("transfer by delegate: %v", err)
	}
	if registry.IsApprovedOrOwner(delegate, id) {
		t.Fatalf("approval survived transfer")
	}
}

func TestTransferRejectsZeroTarget(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x41)

	id, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}
	if err := registry.Transfer(holder, [20]byte{}, id); !errors.Is(err, credential.ErrInvalidTarget) {
		t.Fatalf("expected invalid target error, got %v", err)
	}
}

func TestTokensOfTracksHoldings(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	holder := addr(0x51)
	recipient := addr(0x52)

	first, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := ledger.Mint(admin, holder)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ids, err := registry.TokensOf(holder)
	if err != nil {
		t.Fatalf("tokens of: %v", err)
	}
	if len(ids) != 2 || ids[0] != first || ids[1] != second {
		t.Fatalf("unexpected holdings %v", ids)
	}

	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}
	if err := registry.Transfer(holder, recipient, first); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Burn(holder, second); err != nil {
		t.Fatalf("burn: %v", err)
	}

	ids, err = registry.TokensOf(holder)
	if err != nil {
		t.Fatalf("tokens of: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty holdings, got %v", ids)
	}
	ids, err = registry.TokensOf(recipient)
	if err != nil {
		t.Fatalf("tokens of recipient: %v", err)
	}
	if len(ids) != 1 || ids[0] != first {
		t.Fatalf("unexpected recipient holdings %v", ids)
	}
}

func TestConcurrentTransfersKeepHolderIndex(t *testing.T) {
	ledger, registry, admin := newTestLedger(t)
	from := addr(0x01)
	to := addr(0x02)

	const count = 64
	ids := make([]uint64, 0, count)
	for i := 0; i < count; i++ {
		id, err := ledger.Mint(admin, from)
		if err != nil {
			t.Fatalf("mint %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if err := ledger.SetTransferability(admin, true); err != nil {
		t.Fatalf("enable transfers: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, count)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			if err := registry.Transfer(from, to, id); err != nil {
				errs <- err
			}
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("transfer: %v", err)
	}

	moved, err := registry.TokensOf(to)
	if err != nil {
		t.Fatalf("tokens of recipient: %v", err)
	}
	if len(moved) != count {
		t.Fatalf("recipient index holds %d of %d transferred tokens", len(moved), count)
	}
	remaining, err := registry.TokensOf(from)
	if err != nil {
		t.Fatalf("tokens of sender: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("sender index still holds %d tokens", len(remaining))
	}
}
