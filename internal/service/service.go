// Package service implements the application logic: short code allocation,
// ownership checks on URL records, registration and password authentication.
// Handlers stay thin and translate the error taxonomy into HTTP responses.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/patric-chuzhbe/tinyapp/internal/keygen"
	"github.com/patric-chuzhbe/tinyapp/internal/models"
	"github.com/patric-chuzhbe/tinyapp/internal/user"
)

// MinLongURLLength is the minimal accepted length of a URL to shorten.
// Anything shorter is rejected as validation failure.
const MinLongURLLength = 6

// TriesToGenerateUniqueKey bounds the collision-regeneration loop.
const TriesToGenerateUniqueKey = 10

type urlsKeeper interface {
	FindURLByShort(ctx context.Context, short string) (*models.URLRecord, bool, error)

	IsShortExists(ctx context.Context, short string) (bool, error)

	SaveURL(ctx context.Context, record *models.URLRecord) error

	DeleteURL(ctx context.Context, short string) error

	GetURLsByOwner(ctx context.Context, ownerID string) (map[string]*models.URLRecord, error)

	GetNumberOfShortenedURLs(ctx context.Context) (int64, error)
}

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) error

	GetUserByID(ctx context.Context, userID string) (*user.User, bool, error)

	FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	urlsKeeper
	usersKeeper
	pinger
}

// ErrKeySpaceExhausted is returned when the collision-regeneration loop
// fails to find an unused short code.
var ErrKeySpaceExhausted = errors.New("the number of attempts to generate a unique key has been exceeded")

// Service owns the application logic on top of a storage backend.
type Service struct {
	db           storage
	shortURLBase string
}

// New creates a Service backed by the given storage.
func New(db storage, shortURLBase string) *Service {
	return &Service{
		db:           db,
		shortURLBase: shortURLBase,
	}
}

// CreateShortURL allocates a fresh 6-character short code for the URL and
// stores the record under the session user. A missing session is rejected
// with models.ErrUnauthorized, a too-short URL with models.ErrValidation.
func (s *Service) CreateShortURL(ctx context.Context, userID, longURL string) (string, error) {
	if userID == "" {
		return "", models.ErrUnauthorized
	}
	if len(longURL) < MinLongURLLength {
		return "", fmt.Errorf("%w: the URL must be at least %d characters long", models.ErrValidation, MinLongURLLength)
	}

	short, err := s.generateUniqueShortKey(ctx)
	if err != nil {
		return "", err
	}

	err = s.db.SaveURL(ctx, &models.URLRecord{
		Short:   short,
		LongURL: longURL,
		OwnerID: userID,
	})
	if err != nil {
		return "", err
	}

	return short, nil
}

// Resolve returns the destination of a short code. It is public: ownership
// is deliberately not checked, any visitor may follow any short link.
func (s *Service) Resolve(ctx context.Context, short string) (string, error) {
	record, found, err := s.db.FindURLByShort(ctx, short)
	if err != nil {
		return "", err
	}
	if !found {
		return "", models.ErrNotFound
	}

	return record.LongURL, nil
}

// GetURL returns a record after the full access gate. The existence check
// strictly precedes any owner field access, so an unknown code yields
// models.ErrNotFound even for anonymous callers.
func (s *Service) GetURL(ctx context.Context, userID, short string) (*models.URLRecord, error) {
	record, found, err := s.db.FindURLByShort(ctx, short)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}
	if userID == "" {
		return nil, models.ErrUnauthorized
	}
	if record.OwnerID != userID {
		return nil, models.ErrForbidden
	}

	return record, nil
}

// GetUserURLs returns the records owned by the session user, keyed by short
// code. Anonymous callers see an empty mapping.
func (s *Service) GetUserURLs(ctx context.Context, userID string) (map[string]*models.URLRecord, error) {
	if userID == "" {
		return map[string]*models.URLRecord{}, nil
	}

	return s.db.GetURLsByOwner(ctx, userID)
}

// UpdateURL overwrites the destination of an owned record.
func (s *Service) UpdateURL(ctx context.Context, userID, short, newLongURL string) error {
	record, err := s.GetURL(ctx, userID, short)
	if err != nil {
		return err
	}
	if len(newLongURL) < MinLongURLLength {
		return fmt.Errorf("%w: the URL must be at least %d characters long", models.ErrValidation, MinLongURLLength)
	}

	record.LongURL = newLongURL

	return s.db.SaveURL(ctx, record)
}

// DeleteURL removes an owned record.
func (s *Service) DeleteURL(ctx context.Context, userID, short string) error {
	if _, err := s.GetURL(ctx, userID, short); err != nil {
		return err
	}

	return s.db.DeleteURL(ctx, short)
}

// RegisterUser creates an account with a bcrypt password hash and a fresh
// 10-character user id. Blank fields are rejected with models.ErrValidation,
// an already registered email with models.ErrEmailTaken.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (*user.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", models.ErrValidation)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/RegisterUser(): error while `bcrypt.GenerateFromPassword()` calling: %w", err)
	}

	userID, err := s.generateUniqueUserID(ctx)
	if err != nil {
		return nil, err
	}

	usr := &user.User{
		ID:           userID,
		Email:        email,
		PasswordHash: string(passwordHash),
	}

	if err := s.db.CreateUser(ctx, usr); err != nil {
		return nil, err
	}

	return usr, nil
}

// AuthenticateUser verifies the password against the stored bcrypt hash.
// An unknown email yields models.ErrNotFound, a wrong password
// models.ErrInvalidCredentials. Both deny access; the HTTP layer keeps
// the distinction only for its user-facing message.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*user.User, error) {
	usr, found, err := s.db.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.PasswordHash), []byte(password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	return usr, nil
}

// GetUser returns the user stored under the id, for rendering purposes.
func (s *Service) GetUser(ctx context.Context, userID string) (*user.User, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	return s.db.GetUserByID(ctx, userID)
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetInternalStats returns the total number of URL records and users.
func (s *Service) GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error) {
	urls, err := s.db.GetNumberOfShortenedURLs(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.InternalStatsResponse{}, err
	}

	return models.InternalStatsResponse{
		URLs:  urls,
		Users: users,
	}, nil
}

// GetShortURL renders the public address of a short code.
func (s *Service) GetShortURL(shortKey string) string {
	return s.shortURLBase + "/u/" + shortKey
}

func (s *Service) generateUniqueShortKey(ctx context.Context) (string, error) {
	for i := 0; i < TriesToGenerateUniqueKey; i++ {
		shortKey := keygen.Random(keygen.ShortKeyLength)
		exists, err := s.db.IsShortExists(ctx, shortKey)
		if err != nil {
			return "", err
		}
		if !exists {
			return shortKey, nil
		}
	}

	return "", ErrKeySpaceExhausted
}

func (s *Service) generateUniqueUserID(ctx context.Context) (string, error) {
	for i := 0; i < TriesToGenerateUniqueKey; i++ {
		userID := keygen.Random(keygen.UserIDLength)
		_, found, err := s.db.GetUserByID(ctx, userID)
		if err != nil {
			return "", err
		}
		if !found {
			return userID, nil
		}
	}

	return "", ErrKeySpaceExhausted
}
