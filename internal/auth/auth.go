package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUnauthorized is the parent of every gate failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrMissingCredentials means no usable Authorization header was presented.
	ErrMissingCredentials = fmt.Errorf("%w: missing credentials", ErrUnauthorized)
	// ErrBadCredentials means the presented credentials did not match.
	ErrBadCredentials = fmt.Errorf("%w: bad credentials", ErrUnauthorized)
	// ErrNotConfigured means credentials are required but none are configured.
	ErrNotConfigured = fmt.Errorf("%w: no credentials configured", ErrUnauthorized)
)

const basicPrefix = "Basic "

// Policy is the effective Basic auth configuration for one path.
type Policy struct {
	// Basic is the explicit on/off switch; nil means "decide from credentials".
	Basic        *bool
	Username     string
	Password     string
	PasswordHash string
}

// Required applies the decision table: an explicit flag wins, otherwise a
// configured username with a password (or hash) turns checking on.
func (p Policy) Required() bool {
	if p.Basic != nil {
		return *p.Basic
	}
	return p.Username != "" && (p.Password != "" || p.PasswordHash != "")
}

// Check validates the presented Authorization header value against p.
// It returns nil when no credentials are required.
func Check(p Policy, header string) error {
	if !p.Required() {
		return nil
	}
	if p.Username == "" || (p.Password == "" && p.PasswordHash == "") {
		return ErrNotConfigured
	}
	if header == "" {
		return ErrMissingCredentials
	}

	if p.PasswordHash != "" {
		user, pass, ok := DecodeBasic(header)
		if !ok {
			return ErrMissingCredentials
		}
		userOK := constantTimeEqual(user, p.Username)
		passOK := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(pass)) == nil
		if !userOK || !passOK {
			return ErrBadCredentials
		}
		return nil
	}

	if !constantTimeEqual(header, EncodeBasic(p.Username, p.Password)) {
		return ErrBadCredentials
	}
	return nil
}

// CheckRequest is Check applied to the Authorization header in h.
func CheckRequest(p Policy, h http.Header) error {
	return Check(p, h.Get("Authorization"))
}

// EncodeBasic returns the full header value for username and password.
func EncodeBasic(username, password string) string {
	return basicPrefix + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// DecodeBasic splits a "Basic ..." header value into username and password.
func DecodeBasic(header string) (string, string, bool) {
	if !strings.HasPrefix(header, basicPrefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(strings.TrimPrefix(header, basicPrefix)))
	if err != nil {
		return "", "", false
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", false
	}
	return user, pass, true
}

// Challenge is the WWW-Authenticate value naming realm.
func Challenge(realm string) string {
	return fmt.Sprintf("Basic realm=%q", realm)
}

// HashPassword returns a bcrypt hash suitable for auth_password_hash.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
