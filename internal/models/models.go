// Package models defines the data records and error taxonomy shared between
// the service layer, the storage backends and the HTTP handlers.
package models

import "errors"

// URLRecord is a single shortened URL owned by a user.
type URLRecord struct {
	// Short is the 6-character token used as the lookup key.
	Short string `json:"short"`

	// LongURL is the destination the short link redirects to.
	LongURL string `json:"long_url"`

	// OwnerID references the user.User who created the record.
	OwnerID string `json:"owner_id"`
}

// UserURL is one row of the authenticated JSON listing (`GET /urls.json`).
type UserURL struct {
	ShortURL    string `json:"short_url" validate:"required,url"`
	OriginalURL string `json:"original_url" validate:"required,url"`
}

// UserUrls is the response body of `GET /urls.json`.
type UserUrls []UserURL

// InternalStatsResponse is the response body of `GET /api/internal/stats`.
type InternalStatsResponse struct {
	URLs  int64 `json:"urls"`
	Users int64 `json:"users"`
}

// Storage backend kinds, selected from the configuration in internal/app.
const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

// ErrNotFound is returned when a short code or user does not exist.
var ErrNotFound = errors.New("record not found")

// ErrForbidden is returned when the session user is not the record owner.
var ErrForbidden = errors.New("the resource belongs to another user")

// ErrUnauthorized is returned when an operation requires a session and none is present.
var ErrUnauthorized = errors.New("authentication required")

// ErrEmailTaken is returned on registration with an already used email.
var ErrEmailTaken = errors.New("email is already registered")

// ErrValidation is returned on blank or too-short input fields.
var ErrValidation = errors.New("invalid input")

// ErrInvalidCredentials is returned when the password does not match the stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")
