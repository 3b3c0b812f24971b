package vector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another process (or another open index) holds the data directory.
var ErrLocked = errors.New("index directory is in use")

const lockFile = ".lock"

// lockDir takes an exclusive, non-blocking lock on dir.
func lockDir(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (stop the running server or use --server)", ErrLocked, dir)
	}
	return lock, nil
}

// lockedIndex releases the directory lock after the index closes.
type lockedIndex struct {
	Index
	lock *flock.Flock
}

func (l *lockedIndex) Close() error {
	err := l.Index.Close()
	if uerr := l.lock.Unlock(); uerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to unlock index directory: %w", uerr))
	}
	return err
}
