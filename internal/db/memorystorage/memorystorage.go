// Package memorystorage is the default storage backend: the jsondb maps
// without a snapshot file. Data lives for the lifetime of the process.
package memorystorage

import (
	"context"

	"github.com/patric-chuzhbe/tinyapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// MemoryStorage reuses the jsondb implementation with no file behind it.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New returns an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{
				Urls:  map[string]*models.URLRecord{},
				Users: map[string]*user.User{},
			},
		},
	}, nil
}

// Close is a no-op: there is nothing to persist.
func (theStorage *MemoryStorage) Close() error {
	return nil
}

// Ping reports storage health. The memory backend is always healthy.
func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
