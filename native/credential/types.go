package credential

// Token captures the ownership record for a single loyalty credential. Burn
// status is tracked separately as a tombstone so the record can be deleted
// from the ownership registry without losing the retirement marker.
type Token struct {
	ID       uint64
	Owner    [20]byte
	Approved [20]byte
	MintedAt uint64
}

// Clone returns a deep copy of the token record.
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

// HasApproval reports whether an approval delegation is set on the record.
func (t *Token) HasApproval() bool {
	if t == nil {
		return false
	}
	return t.Approved != ([20]byte{})
}
