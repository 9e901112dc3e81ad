// Package checkpoint persists workflow progress across process restarts.
// Three tabular files under the checkpoint directory are the durable source
// of truth: a singleton collection record, a data table with one row per
// gift, and a singleton row of batch counters. In-memory state is a cache
// that must be flushed immediately after any side effect it guards.
package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Column titles shared between checkpoint files and the exported result.
const (
	ColCollectionID          = "collectionId"
	ColCollectionMetadata    = "collectionMetadata"
	ColCollectionStartItemID = "collectionStartItemId"
	ColCollectionExisting    = "collectionExisting"
	ColItemID                = "itemId"
	ColSecret                = "gift account secret"
	ColAddress               = "gift account address"
	ColImageCid              = "image cid"
	ColVideoCid              = "video cid"
	ColMetaCid               = "metadata cid"
	ColLastMintBatch         = "last minted batch"
	ColLastSetMetadataBatch  = "last metadata batch"
	ColLastMetaCidBatch      = "last metaCid batch"
	ColLastBalanceTxBatch    = "last balance transfer batch"
)

const (
	collectionFile = ".collection.cp"
	dataFile       = ".data.cp"
	batchFile      = ".batch.cp"
)

// Store aggregates the three checkpoint sub-stores rooted at one directory.
type Store struct {
	dir        string
	Collection *CollectionStore
	Data       *DataStore
	Batch      *BatchStore
}

// NewStore roots a store at dir without touching the filesystem; Exists and
// the sub-store Load methods do the reading.
func NewStore(dir string) *Store {
	return &Store{
		dir:        dir,
		Collection: &CollectionStore{path: filepath.Join(dir, collectionFile)},
		Data:       &DataStore{path: filepath.Join(dir, dataFile)},
		Batch:      &BatchStore{path: filepath.Join(dir, batchFile)},
	}
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether any checkpoint file is present, which means a
// previous run was interrupted before finishing.
func (s *Store) Exists() bool {
	for _, path := range []string{s.Collection.path, s.Data.path, s.Batch.path} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

// EnsureDir creates the checkpoint directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.Wrapf(err, "unable to create checkpoint directory %s", s.dir)
	}
	return nil
}

// Remove deletes all checkpoint files and the directory itself. Called after
// a fully successful run or when the operator discards previous progress.
func (s *Store) Remove() error {
	for _, path := range []string{s.Collection.path, s.Data.path, s.Batch.path} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove checkpoint %s", path)
		}
	}
	if err := os.Remove(filepath.Join(s.dir, lockFile)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove lock file")
	}
	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove checkpoint directory %s", s.dir)
	}
	return nil
}
