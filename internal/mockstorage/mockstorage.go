// Package mockstorage provides a testify-based mock implementation
// of the storage interface. It is used for unit testing HTTP handlers
// by simulating storage behavior, including failure paths the real
// backends never produce on demand.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// StorageMock is a testify mock that implements storage.Storage.
type StorageMock struct {
	mock.Mock
}

// FindURLByShort mocks the short code lookup.
func (m *StorageMock) FindURLByShort(ctx context.Context, short string) (*models.URLRecord, bool, error) {
	args := m.Called(ctx, short)
	record, _ := args.Get(0).(*models.URLRecord)
	return record, args.Bool(1), args.Error(2)
}

// IsShortExists mocks the collision check.
func (m *StorageMock) IsShortExists(ctx context.Context, short string) (bool, error) {
	args := m.Called(ctx, short)
	return args.Bool(0), args.Error(1)
}

// SaveURL mocks inserting or overwriting a record.
func (m *StorageMock) SaveURL(ctx context.Context, record *models.URLRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// DeleteURL mocks record removal.
func (m *StorageMock) DeleteURL(ctx context.Context, short string) error {
	args := m.Called(ctx, short)
	return args.Error(0)
}

// GetURLsByOwner mocks the ownership listing.
func (m *StorageMock) GetURLsByOwner(ctx context.Context, ownerID string) (map[string]*models.URLRecord, error) {
	args := m.Called(ctx, ownerID)
	urls, _ := args.Get(0).(map[string]*models.URLRecord)
	return urls, args.Error(1)
}

// GetNumberOfShortenedURLs mocks the URL counter.
func (m *StorageMock) GetNumberOfShortenedURLs(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// CreateUser mocks account creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// GetUserByID mocks the user lookup by id.
func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// FindUserByEmail mocks the user lookup by email.
func (m *StorageMock) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// GetNumberOfUsers mocks the user counter.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks resource cleanup.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
