package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// Claims is the session payload carried in the cookie. Sessions are
// stateless: validity is cryptographic signature plus expiry, nothing
// server-side.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

type SessionManager struct {
	secret        []byte
	ttl           time.Duration
	cookieName    string
	secureCookies bool
}

// SessionConfig carries the session policy knobs.
type SessionConfig struct {
	Secret        string
	TTL           time.Duration
	CookieName    string
	SecureCookies bool
	Production    bool
}

// NewSessionManager applies the secret policy: production refuses to start
// without a configured secret; development generates one for the process
// lifetime, which invalidates sessions across restarts.
func NewSessionManager(cfg SessionConfig, logger *zap.Logger) (*SessionManager, error) {
	secret := cfg.Secret
	if secret == "" {
		if cfg.Production {
			return nil, errors.New("auth secret is required in production to sign session tokens")
		}
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate development auth secret: %w", err)
		}
		secret = base64.StdEncoding.EncodeToString(raw)
		logger.Warn("auth secret is not set; using an auto-generated secret, sessions will not survive a restart")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "session"
	}

	return &SessionManager{
		secret:        []byte(secret),
		ttl:           ttl,
		cookieName:    cookieName,
		secureCookies: cfg.SecureCookies,
	}, nil
}

// SignToken issues a session token for the user.
func (m *SessionManager) SignToken(userID int64) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expires, nil
}

// VerifyToken validates the signature and expiry and returns the user id.
func (m *SessionManager) VerifyToken(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrExpiredToken
		}
		return 0, ErrInvalidToken
	}
	if !parsed.Valid || claims.UserID <= 0 {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}

// SetCookie writes the session cookie on the response.
func (m *SessionManager) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest reads the session cookie; empty when absent.
func (m *SessionManager) TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
