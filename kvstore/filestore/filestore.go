package filestore

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/pkg/errors"
)

var _ kvstore.Store = (*FileStore)(nil)

const fileExt = ".json"

// FileStore keeps one file per key inside a data folder. Keys are hex encoded
// so any string is a safe file name.
type FileStore struct {
	folder string
	lock   sync.RWMutex
}

func New(folder string) (*FileStore, error) {
	if folder == "" {
		return nil, errors.New("[filestore.New] folder is required")
	}
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] MkdirAll")
	}
	return &FileStore{folder: folder}, nil
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.folder, hex.EncodeToString([]byte(key))+fileExt)
}

func (fs *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	data, err := os.ReadFile(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Get] ReadFile")
	}
	return data, nil
}

// Set writes to a temp file and renames it over the target so readers never see
// a partial value.
func (fs *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()

	tmp, err := os.CreateTemp(fs.folder, "kv-*.tmp")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Set] CreateTemp")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStore.Set] Write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStore.Set] Close")
	}
	if err := os.Rename(tmp.Name(), fs.path(key)); err != nil {
		return errors.Wrap(err, "[FileStore.Set] Rename")
	}
	return nil
}

func (fs *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if err := os.Remove(fs.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "[FileStore.Remove] Remove")
	}
	return nil
}
