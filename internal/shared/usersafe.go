package shared

import (
	"errors"
	"sync"
)

var (
	safeMu     sync.RWMutex
	safeErrors []error
)

// MarkSafe registers sentinel errors whose messages may be shown to end users.
// Domain packages call this from init for their user-facing sentinels.
func MarkSafe(errs ...error) {
	safeMu.Lock()
	defer safeMu.Unlock()
	safeErrors = append(safeErrors, errs...)
}

// UserSafeMessage returns a message suitable for display. Errors not registered
// via MarkSafe collapse to a generic message so internals never leak into views.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	safeMu.RLock()
	defer safeMu.RUnlock()
	for _, s := range safeErrors {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	return "an unexpected error occurred, please try again"
}

func init() {
	MarkSafe(ErrNotFound, ErrInvalidCredentials)
}
