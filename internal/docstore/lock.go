package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFile      = ".paperwork.lock"
	lockRetryWait = 200 * time.Millisecond
)

var ErrLocked = errors.New("working directory is used by another paperwork instance")

// Lock takes the owner lock of workdir. It retries until ctx is done, a
// context without deadline fails at once when the lock is held.
func Lock(ctx context.Context, workdir string) (*flock.Flock, error) {
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating workdir: %w", err)
	}
	lock := flock.New(filepath.Join(workdir, lockFile))

	var ok bool
	var err error
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		ok, err = lock.TryLockContext(ctx, lockRetryWait)
	} else {
		ok, err = lock.TryLock()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("%w: %w", ErrLocked, err)
	case err != nil:
		return nil, fmt.Errorf("acquire lock: %w", err)
	case !ok:
		return nil, ErrLocked
	}
	return lock, nil
}
