package vesting

import (
	"fmt"
	"math/big"
)

// RewardLedger is the fungible balance ledger vested rewards are paid from.
// PoolBalance reads the current custody pool; Payout moves funds out of
// custody to a recipient. Both are synchronous.
type RewardLedger interface {
	PoolBalance() (*big.Int, error)
	Payout(to [20]byte, amount *big.Int) error
}

// balanceState is the slice of the state manager the reward ledger needs.
type balanceState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
}

// StateRewardLedger keeps the reward pool as a token balance held by a
// module custody address inside the state manager.
type StateRewardLedger struct {
	st      balanceState
	custody [20]byte
	token   string
}

// NewStateRewardLedger creates a reward ledger paying out of the custody
// address in the given token.
func NewStateRewardLedger(st balanceState, custody [20]byte, token string) *StateRewardLedger {
	return &StateRewardLedger{st: st, custody: custody, token: token}
}

// CustodyAddress returns the address holding the reward pool.
func (l *StateRewardLedger) CustodyAddress() [20]byte {
	return l.custody
}

// PoolBalance returns the undifferentiated custody balance all releases draw
// from.
func (l *StateRewardLedger) PoolBalance() (*big.Int, error) {
	return l.st.Balance(l.custody[:], l.token)
}

// Payout debits the custody pool and credits the recipient. A zero amount is
// a no-op so that releasing against a drained pool still succeeds.
func (l *StateRewardLedger) Payout(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("payout amount must be non-negative")
	}
	pool, err := l.st.Balance(l.custody[:], l.token)
	if err != nil {
		return err
	}
	if pool.Cmp(amount) < 0 {
		return fmt.Errorf("custody pool holds %s, cannot pay %s", pool, amount)
	}
	recipient, err := l.st.Balance(to[:], l.token)
	if err != nil {
		return err
	}
	if err := l.st.SetBalance(l.custody[:], l.token, new(big.Int).Sub(pool, amount)); err != nil {
		return err
	}
	return l.st.SetBalance(to[:], l.token, new(big.Int).Add(recipient, amount))
}
