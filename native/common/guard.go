package common

import "errors"

// ErrModulePaused is returned when a mutating operation targets a module the
// operator has paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports the current pause switches for native modules.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused. A nil view or empty
// module name disables the check.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

const pauseKeyPrefix = "module-pause/"

func pauseKey(module string) []byte {
	return []byte(pauseKeyPrefix + module)
}

// PauseState is the persistence surface the pause switches live behind.
type PauseState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// StatePauses resolves pause switches from module state. Missing switches and
// read failures report the module as running.
type StatePauses struct {
	st PauseState
}

// NewStatePauses creates a pause view over the provided state.
func NewStatePauses(st PauseState) *StatePauses {
	return &StatePauses{st: st}
}

// IsPaused implements PauseView.
func (p *StatePauses) IsPaused(module string) bool {
	if p == nil || p.st == nil {
		return false
	}
	var paused bool
	ok, err := p.st.KVGet(pauseKey(module), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}

// SetPaused persists the pause switch for a module.
func SetPaused(st PauseState, module string, paused bool) error {
	return st.KVPut(pauseKey(module), paused)
}
