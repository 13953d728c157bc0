package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/fileutil"
	"github.com/mrz1836/depositor/internal/gateway"
)

// cacheFilePermissions is the permission mode for cache files.
const cacheFilePermissions = 0o640

// ErrCorruptCache indicates the cache file is malformed JSON.
var ErrCorruptCache = errors.New("cache file is corrupted")

// FileStorage implements cache persistence using the filesystem.
type FileStorage struct {
	path string
}

// NewFileStorage creates a new file-based cache storage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Save writes the cache to the filesystem.
func (s *FileStorage) Save(cache *AddressCache) error {
	cache.mu.RLock()
	data, err := json.MarshalIndent(cache, "", "  ")
	cache.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}

	if err := fileutil.EnsureDir(s.path); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := fileutil.WriteAtomic(s.path, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Load reads the cache from the filesystem.
// Returns an empty cache if the file doesn't exist. A malformed file is
// moved aside and an empty cache is returned with ErrCorruptCache.
func (s *FileStorage) Load() (*AddressCache, error) {
	// #nosec G304 -- cache path comes from configuration
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewAddressCache(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache file: %w", err)
	}

	var cache AddressCache
	if err := json.Unmarshal(data, &cache); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", s.path, time.Now().UTC().UnixNano())
		if renameErr := os.Rename(s.path, corruptPath); renameErr != nil {
			return NewAddressCache(), fmt.Errorf("%w: %w (also failed to move file: %w)", ErrCorruptCache, err, renameErr)
		}
		return NewAddressCache(), fmt.Errorf("%w: %w (moved to %s)", ErrCorruptCache, err, corruptPath)
	}

	if cache.Entries == nil {
		cache.Entries = make(map[string]Entry)
	}
	return &cache, nil
}

// Delete removes the cache file.
func (s *FileStorage) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing cache file: %w", err)
	}
	return nil
}

// Exists checks if the cache file exists.
func (s *FileStorage) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Path returns the cache file path.
func (s *FileStorage) Path() string {
	return s.path
}

// Compile-time interface check
var _ Store = (*Persistent)(nil)

// Persistent is an AddressCache that writes itself to a FileStorage after
// every change. Write failures go to OnError and never fail the caller.
type Persistent struct {
	*AddressCache

	storage *FileStorage
	onError func(error)
}

// OpenPersistent loads the cache at path. A corrupt file is reported through
// onError and replaced by an empty cache.
func OpenPersistent(path string, onError func(error)) (*Persistent, error) {
	if onError == nil {
		onError = func(error) {}
	}
	storage := NewFileStorage(path)
	c, err := storage.Load()
	if err != nil {
		if !errors.Is(err, ErrCorruptCache) {
			return nil, err
		}
		onError(err)
	}
	return &Persistent{AddressCache: c, storage: storage, onError: onError}, nil
}

// Put stores a target and persists the cache.
func (p *Persistent) Put(gatewayID gateway.ID, account, asset string, target deposit.Target) {
	if !target.Valid() {
		return
	}
	p.AddressCache.Put(gatewayID, account, asset, target)
	p.flush()
}

// Delete removes a target and persists the cache.
func (p *Persistent) Delete(gatewayID gateway.ID, account, asset string) {
	p.AddressCache.Delete(gatewayID, account, asset)
	p.flush()
}

// Clear removes all entries and the cache file.
func (p *Persistent) Clear() {
	p.AddressCache.Clear()
	if err := p.storage.Delete(); err != nil {
		p.onError(err)
	}
}

// Path returns the backing file path.
func (p *Persistent) Path() string {
	return p.storage.Path()
}

func (p *Persistent) flush() {
	if err := p.storage.Save(p.AddressCache); err != nil {
		p.onError(err)
	}
}
