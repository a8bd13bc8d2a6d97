package workflows

import (
	"fmt"

	kerrors "github.com/PolarWolf314/casevault/internal/errors"
	"github.com/PolarWolf314/casevault/internal/vault"

	"github.com/gofrs/flock"
)

// acquireLock takes the case's migration lock without blocking.
// It returns ErrVaultBusy if another workflow holds it.
func acquireLock(v *vault.Manager) (*flock.Flock, error) {
	lock := flock.New(v.LockPath())

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", v.LockPath(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", kerrors.ErrVaultBusy, v.CaseDir())
	}

	v.Logger().Debugf("Acquired lock %s", v.LockPath())
	return lock, nil
}

func releaseLock(v *vault.Manager, lock *flock.Flock) {
	if err := lock.Unlock(); err != nil {
		v.Logger().Warnf("Failed to release lock %s: %v", v.LockPath(), err)
	}
}
