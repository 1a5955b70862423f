package session

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	// TokenPrefix starts every session token.
	TokenPrefix = "medfix_st_"
	// CookieName is the cookie that may carry the session token.
	CookieName = "medfix_session"

	randomBytesSize = 32
	tokenLength     = len(TokenPrefix) + 2*randomBytesSize
	maskPrefixLen   = len(TokenPrefix) + 4
	maskSuffixLen   = 4
)

var (
	// ErrTokenMissing is returned when the request carries no token.
	ErrTokenMissing = errors.New("session token missing")
	// ErrTokenFormat is returned when a token does not have the medfix_st_ shape.
	ErrTokenFormat = errors.New("invalid session token format")
)

// GenerateToken returns a new random token: the prefix followed by 64 hex characters.
func GenerateToken() (string, error) {
	randomBytes := make([]byte, randomBytesSize)

	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return TokenPrefix + hex.EncodeToString(randomBytes), nil
}

// HashToken returns the hex SHA-256 of token. Only this hash is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// ParseToken checks that token has the prefix, the right length and a hex body.
func ParseToken(token string) (string, error) {
	if token == "" {
		return "", ErrTokenMissing
	}

	if !strings.HasPrefix(token, TokenPrefix) || len(token) != tokenLength {
		return "", ErrTokenFormat
	}

	if _, err := hex.DecodeString(token[len(TokenPrefix):]); err != nil {
		return "", ErrTokenFormat
	}

	return token, nil
}

// ExtractToken reads the token from Authorization: Bearer, falling back to the
// session cookie. Values containing line breaks are rejected.
func ExtractToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return clean(token)
		}
	}

	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return clean(cookie.Value)
	}

	return "", ErrTokenMissing
}

func clean(token string) (string, error) {
	if strings.ContainsAny(token, "\r\n") {
		return "", ErrTokenFormat
	}

	return ParseToken(strings.TrimSpace(token))
}

// SecureCompare compares a and b in constant time for equal lengths.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)

		return false
	}

	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskToken keeps the prefix, four body characters and the last four characters
// of a well-formed token. Anything else is masked completely.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	if len(token) != tokenLength {
		return strings.Repeat("*", len(token))
	}

	return token[:maskPrefixLen] + strings.Repeat("*", tokenLength-maskPrefixLen-maskSuffixLen) +
		token[tokenLength-maskSuffixLen:]
}
