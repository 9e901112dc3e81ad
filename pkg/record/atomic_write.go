package record

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// writeAtomic writes data to a file using the write-then-rename pattern so a
// crash during the write cannot leave a half-written table behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmpPath := path + ".tmp"
	tmpFile, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write temp file")
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to sync temp file")
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temp file")
	}

	// Atomic on POSIX systems.
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename temp file to %s", path)
	}

	return nil
}
