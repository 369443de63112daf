// Package user defines the user model used throughout the application,
// particularly for authentication and ownership checks on URL records.
package user

// User represents a registered account.
type User struct {
	// ID is the unique identifier of the user: a 10-character
	// random alphanumeric token generated by internal/keygen.
	ID string `json:"id"`

	// Email is the login identifier. Unique across all users.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the user's password.
	// The plain password is never stored.
	PasswordHash string `json:"password_hash"`
}
