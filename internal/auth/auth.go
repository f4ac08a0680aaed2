// Package auth mints and verifies the JWT token pair handed to a client
// after its signup commit, and hashes passwords before they are staged.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// TokenKind distinguishes access from refresh tokens in claims.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

// Claims are the JWT claims carried by both token kinds.
type Claims struct {
	UserID uint   `json:"user_id"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Issuer signs and parses token pairs.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// IssuerOpts holds parameters for creating an Issuer.
type IssuerOpts struct {
	Secret     string
	AccessTTL  time.Duration // defaults to 30m
	RefreshTTL time.Duration // defaults to 30d
}

// NewIssuer creates an Issuer.
func NewIssuer(opts IssuerOpts) (*Issuer, error) {
	if opts.Secret == "" {
		return nil, fmt.Errorf("auth: jwt secret is required")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 30 * time.Minute
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	return &Issuer{
		secret:     []byte(opts.Secret),
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
	}, nil
}

// TokenPair mints an access and refresh token for the user.
func (i *Issuer) TokenPair(userID uint) (access, refresh string, err error) {
	access, err = i.sign(userID, KindAccess, i.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = i.sign(userID, KindRefresh, i.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (i *Issuer) sign(userID uint, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign %s token: %w", kind, err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token")
	}
	return &claims, nil
}

// HashPassword bcrypt-hashes a plaintext password for staging.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", fmt.Errorf("auth: password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
