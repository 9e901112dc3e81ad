package checkpoint

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

const lockFile = ".lock"

// ErrLocked means another run holds the checkpoint directory. Concurrent
// runs against the same checkpoints would silently corrupt them, so the
// second run fails fast instead.
var ErrLocked = errors.New("checkpoint directory is locked by another run")

// Lock is an advisory lock over one checkpoint directory.
type Lock struct {
	path string
}

// Acquire takes the advisory lock, creating the directory if needed. The
// lock file records the holder's pid for the operator's benefit; a stale
// file from a crashed run must be removed by hand, which is the prompt to
// inspect the checkpoints first.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.Wrapf(err, "unable to create checkpoint directory %s", dir)
	}
	path := filepath.Join(dir, lockFile)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.Wrapf(ErrLocked, "lock file %s", path)
		}
		return nil, errors.Wrap(err, "failed to create lock file")
	}
	f.WriteString(strconv.Itoa(os.Getpid()))
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errors.Wrap(err, "failed to write lock file")
	}
	return &Lock{path: path}, nil
}

// Release removes the lock file. Safe to call more than once.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	os.Remove(l.path)
}
