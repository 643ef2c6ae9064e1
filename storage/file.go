package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps all keys in a single JSON document on disk. The file is
// read on every call so several processes can share one session.
type FileStore struct {
	path  string
	codec Codec
	lock  sync.Mutex
}

type FileStoreOption func(*FileStore)

// WithCodec seals the document at rest.
func WithCodec(c Codec) FileStoreOption {
	return func(f *FileStore) {
		f.codec = c
	}
}

// NewFileStore creates the parent directory of path. The file itself is
// written on the first Set.
func NewFileStore(path string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "NewFileStore mkdir")
	}
	f := &FileStore{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(_ context.Context, key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	values, err := f.load()
	if err != nil {
		return "", err
	}
	return values[key], nil
}

func (f *FileStore) Set(_ context.Context, key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	values[key] = value
	return f.save(values)
}

func (f *FileStore) Remove(_ context.Context, keys ...string) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	values, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := values[k]; ok {
			delete(values, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(values)
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "FileStore read")
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}
	if f.codec != nil {
		if data, err = f.codec.Open(data); err != nil {
			return nil, errors.Wrap(err, "FileStore open")
		}
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "FileStore unmarshal")
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "FileStore marshal")
	}
	if f.codec != nil {
		if data, err = f.codec.Seal(data); err != nil {
			return errors.Wrap(err, "FileStore seal")
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".grc-store-*")
	if err != nil {
		return errors.Wrap(err, "FileStore temp file")
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "FileStore chmod")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "FileStore write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "FileStore close")
	}
	return errors.Wrap(os.Rename(tmp.Name(), f.path), "FileStore rename")
}
