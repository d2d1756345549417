package common

import "errors"

// ErrModulePaused is returned by Guard when the named module is paused.
var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module's mutating operations are suspended.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard refuses the operation when the module is paused. A nil view or empty
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
