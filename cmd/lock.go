package cmd

import (
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/clipfetch/clipfetch/internal/config"
)

var instanceLock *flock.Flock

// acquireLock takes the single-instance lock. Two bots polling the same
// token would steal each other's updates, so a second instance refuses
// to start. Returns false when another instance holds the lock.
func acquireLock() (bool, error) {
	instanceLock = flock.New(filepath.Join(config.GetStateDir(), "clipfetch.lock"))
	return instanceLock.TryLock()
}

func releaseLock() {
	if instanceLock != nil {
		_ = instanceLock.Unlock()
	}
}
