// Package jsondb implements the storage interface on top of in-memory maps
// with a JSON snapshot file. The snapshot is loaded on start and written on
// Close. A mutex serializes all access: chi serves requests concurrently and
// the maps are process-wide shared state.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// CacheStruct is the serialized shape of the database.
type CacheStruct struct {
	Urls  map[string]*models.URLRecord
	Users map[string]*user.User
}

// JSONDB is a JSON-file backed storage.
type JSONDB struct {
	fileName string
	mutex    sync.RWMutex
	Cache    CacheStruct
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Urls": {},
	"Users": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

// New loads the snapshot file, creating it when absent.
func New(fileName string) (*JSONDB, error) {
	theDB := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(theDB.fileName, &theDB.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(theDB.fileName, &theDB.Cache)
		if err != nil {
			return nil, err
		}
	}

	if theDB.Cache.Urls == nil {
		theDB.Cache.Urls = map[string]*models.URLRecord{}
	}
	if theDB.Cache.Users == nil {
		theDB.Cache.Users = map[string]*user.User{}
	}

	return &theDB, nil
}

// Ping reports storage health. The file backend is always healthy.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close persists the snapshot file.
func (db *JSONDB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	err := writeToJSONFile(db.fileName, db.Cache)
	if err != nil {
		return err
	}

	return nil
}

// FindURLByShort returns a copy of the record stored under the short code.
func (db *JSONDB) FindURLByShort(ctx context.Context, short string) (*models.URLRecord, bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	record, found := db.Cache.Urls[short]
	if !found {
		return nil, false, nil
	}

	recordCopy := *record

	return &recordCopy, true, nil
}

// IsShortExists reports whether the short code is already taken.
func (db *JSONDB) IsShortExists(ctx context.Context, short string) (bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	_, exists := db.Cache.Urls[short]

	return exists, nil
}

// SaveURL inserts the record or overwrites the one stored under the same short code.
func (db *JSONDB) SaveURL(ctx context.Context, record *models.URLRecord) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	recordCopy := *record
	db.Cache.Urls[record.Short] = &recordCopy

	return nil
}

// DeleteURL removes the record stored under the short code.
// Deleting an unknown code returns models.ErrNotFound.
func (db *JSONDB) DeleteURL(ctx context.Context, short string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, found := db.Cache.Urls[short]; !found {
		return models.ErrNotFound
	}

	delete(db.Cache.Urls, short)

	return nil
}

// GetURLsByOwner returns copies of all records owned by the given user,
// keyed by short code. An unknown owner yields an empty map.
func (db *JSONDB) GetURLsByOwner(ctx context.Context, ownerID string) (map[string]*models.URLRecord, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	result := map[string]*models.URLRecord{}
	for short, record := range db.Cache.Urls {
		if record.OwnerID != ownerID {
			continue
		}
		recordCopy := *record
		result[short] = &recordCopy
	}

	return result, nil
}

// GetNumberOfShortenedURLs returns the total number of stored URL records.
func (db *JSONDB) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	return int64(len(db.Cache.Urls)), nil
}

// CreateUser stores a new user. The email uniqueness scan and the insert run
// under one lock so concurrent registrations cannot both pass the check.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	taken := funk.Find(funk.Values(db.Cache.Users), func(existing *user.User) bool {
		return existing.Email == usr.Email
	})
	if taken != nil {
		return models.ErrEmailTaken
	}

	userCopy := *usr
	db.Cache.Users[usr.ID] = &userCopy

	return nil
}

// GetUserByID returns a copy of the user stored under the id.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	usr, found := db.Cache.Users[userID]
	if !found {
		return nil, false, nil
	}

	userCopy := *usr

	return &userCopy, true, nil
}

// FindUserByEmail scans the user mapping for the given email.
func (db *JSONDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	found := funk.Find(funk.Values(db.Cache.Users), func(existing *user.User) bool {
		return existing.Email == email
	})
	if found == nil {
		return nil, false, nil
	}

	userCopy := *found.(*user.User)

	return &userCopy, true, nil
}

// GetNumberOfUsers returns the total number of registered users.
func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	return int64(len(db.Cache.Users)), nil
}
