package session

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

const (
	audienceSession      = "session"
	audienceVerification = "email-verification"
)

// Claims identifies the signed-in user of a session cookie.
type Claims struct {
	UserID int64  `json:"-"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// VerificationClaims carries the address an e-mail verification link was issued for.
type VerificationClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager signs and verifies HS256 tokens for sessions and verification links.
// Each token kind has its own audience so one cannot stand in for the other.
type Manager struct {
	secretKey []byte
	now       func() time.Time
}

func NewManager(secretKey string) *Manager {
	return &Manager{
		secretKey: []byte(secretKey),
		now:       time.Now,
	}
}

// Issue returns a session token for the user that expires after ttl.
func (m *Manager) Issue(userID int64, email string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(ttl)

	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{audienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expires, nil
}

// Parse validates a session token and returns its claims.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := m.parse(tokenString, audienceSession, claims); err != nil {
		return nil, err
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID < 1 {
		return nil, ErrInvalidToken
	}
	claims.UserID = userID

	return claims, nil
}

// IssueVerification returns a token for the e-mail verification link.
func (m *Manager) IssueVerification(email string, ttl time.Duration) (string, error) {
	now := m.now()

	claims := VerificationClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceVerification},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// ParseVerification validates a verification token and returns the address it
// was issued for. An expired token still yields its address together with
// ErrExpiredToken so the caller can discard the unconfirmed account.
func (m *Manager) ParseVerification(tokenString string) (string, error) {
	claims := &VerificationClaims{}
	if err := m.parse(tokenString, audienceVerification, claims); err != nil {
		if errors.Is(err, ErrExpiredToken) && claims.Email != "" {
			return claims.Email, err
		}
		return "", err
	}

	if claims.Email == "" {
		return "", ErrInvalidToken
	}

	return claims.Email, nil
}

func (m *Manager) parse(tokenString, audience string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
