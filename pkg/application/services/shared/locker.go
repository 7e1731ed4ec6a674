package shared

import (
	"context"

	"github.com/google/uuid"
)

// Locker grants exclusive, named critical sections. Release must be called
// exactly once for every successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ResourceLockKey names the critical section guarding a resource timeline
func ResourceLockKey(resourceID uuid.UUID) string {
	return "lock:resource:" + resourceID.String()
}

// RunLockKey names the critical section guarding a run's operation transitions
func RunLockKey(runID uuid.UUID) string {
	return "lock:run:" + runID.String()
}
