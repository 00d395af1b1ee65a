package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "sonos-display"
	tokenAudience = "sonos-display-operator"

	// DefaultTokenTTL is the lifetime of tokens minted by admin-token.
	DefaultTokenTTL = 30 * 24 * time.Hour
)

// Operator is the validated identity carried by an operator token.
type Operator struct {
	Sub       string
	ExpiresAt time.Time
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrNoSecret     = errors.New("token secret is empty")
)

// GenerateToken mints an HS256 operator token for subject.
func GenerateToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		Audience:  []string{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyToken parses and validates an operator token.
func VerifyToken(secret, token string) (Operator, error) {
	if secret == "" {
		return Operator{}, ErrNoSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)

	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Operator{}, ErrTokenExpired
		}
		return Operator{}, ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid || claims.Subject == "" {
		return Operator{}, ErrTokenInvalid
	}

	return Operator{Sub: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}
