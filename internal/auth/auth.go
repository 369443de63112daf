// Package auth implements the cookie session mechanism: a signed JWT carried
// in a client-side cookie whose claims hold the user id. There is no
// server-side session store - the session is the cookie payload, so logout
// only clears the client cookie.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Auth issues, clears and reads session cookies.
type Auth struct {
	// cookieName is the name of the cookie used to store the JWT.
	cookieName string

	// signingSecretKey is the key used to sign JWTs.
	signingSecretKey []byte

	// sessionTTL bounds the lifetime of issued sessions.
	sessionTTL time.Duration
}

// Claims represents the JWT claims used by the system.
// It embeds standard JWT claims and adds a user-specific identifier.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// UserIDKey is the context key used to store and retrieve the session user's ID.
const UserIDKey ContextKey = "userID"

// New creates a new Auth with the given cookie name, JWT signing secret
// and session lifetime.
func New(cookieName string, signingSecretKey []byte, sessionTTL time.Duration) *Auth {
	return &Auth{
		cookieName:       cookieName,
		signingSecretKey: signingSecretKey,
		sessionTTL:       sessionTTL,
	}
}

// Identify is an HTTP middleware that reads the session cookie and, when it
// carries a valid signed token, stores the user id in the request context.
// Requests without a valid session pass through as anonymous; handlers that
// require a session decide themselves how to reject.
func (a *Auth) Identify(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		userID := a.getUserIDFromCookie(request)
		if userID == "" {
			h.ServeHTTP(response, request)

			return
		}

		ctx := context.WithValue(request.Context(), UserIDKey, userID)
		requestWithCtx := request.WithContext(ctx)
		h.ServeHTTP(response, requestWithCtx)
	}

	return http.HandlerFunc(middleware)
}

// IssueSession signs a JWT for the given user id and sets it as the session cookie.
func (a *Auth) IssueSession(response http.ResponseWriter, userID string) error {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.sessionTTL)),
		},
		UserID: userID,
	}

	JWTString, err := a.buildJWTString(claims)
	if err != nil {
		return fmt.Errorf("in internal/auth/auth.go/IssueSession(): error while `a.buildJWTString()` calling: %w", err)
	}

	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.cookieName,
			Value:    JWTString,
			Path:     "/",
			HttpOnly: true,
			Expires:  time.Now().Add(a.sessionTTL),
		},
	)

	return nil
}

// ClearSession expires the session cookie on the client.
func (a *Auth) ClearSession(response http.ResponseWriter) {
	http.SetCookie(
		response,
		&http.Cookie{
			Name:     a.cookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			MaxAge:   -1,
		},
	)
}

// UserIDFromContext returns the session user id stored by Identify,
// or an empty string for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}

	return userID
}

func (a *Auth) getUserIDFromCookie(request *http.Request) string {
	cookie, err := request.Cookie(a.cookieName)
	if err != nil {
		return ""
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		return ""
	}

	return claims.UserID
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	tokenString, err := token.SignedString(a.signingSecretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}
