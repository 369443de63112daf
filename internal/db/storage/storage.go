// Package storage declares the interface every storage backend implements.
package storage

import (
	"context"

	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// Storage is the full set of persistence operations the application needs.
// The memory, JSON file and PostgreSQL backends all satisfy it; consumers
// declare the narrower capability interfaces they actually use.
type Storage interface {
	FindURLByShort(ctx context.Context, short string) (*models.URLRecord, bool, error)

	IsShortExists(ctx context.Context, short string) (bool, error)

	SaveURL(ctx context.Context, record *models.URLRecord) error

	DeleteURL(ctx context.Context, short string) error

	GetURLsByOwner(ctx context.Context, ownerID string) (map[string]*models.URLRecord, error)

	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)

	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error
}
