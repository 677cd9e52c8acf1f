package session

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultIssuer = "roster"
	defaultTTL    = 14 * 24 * time.Hour
)

var (
	ErrMissingSigningKey = errors.New("session manager: signing key required")
	ErrMissingCookieName = errors.New("session manager: cookie name required")
	ErrMissingToken      = errors.New("session manager: token required")
	ErrInvalidToken      = errors.New("session manager: invalid token")
	ErrExpiredToken      = errors.New("session manager: token expired")
)

type sessionClaims struct {
	UserID uint   `json:"user_id,omitempty"`
	Notice string `json:"notice,omitempty"`
	jwt.RegisteredClaims
}

// ManagerConfig describes how sessions are signed and stored.
type ManagerConfig struct {
	SigningSecret []byte
	CookieName    string
	Issuer        string
	TTL           time.Duration
	Secure        bool
	Clock         func() time.Time
	Logger        *zap.Logger
}

// Manager loads and saves sessions as HS256 JWT cookies.
type Manager struct {
	signingSecret []byte
	cookieName    string
	issuer        string
	ttl           time.Duration
	secure        bool
	clock         func() time.Time
	logger        *zap.Logger
}

// NewManager constructs a manager with the provided configuration.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, ErrMissingSigningKey
	}
	cookieName := strings.TrimSpace(cfg.CookieName)
	if cookieName == "" {
		return nil, ErrMissingCookieName
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		cookieName:    cookieName,
		issuer:        issuer,
		ttl:           ttl,
		secure:        cfg.Secure,
		clock:         clock,
		logger:        logger,
	}, nil
}

// CookieName returns the cookie holding the session.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Secure reports whether cookies are marked Secure.
func (m *Manager) Secure() bool {
	return m.secure
}

// Load reads the session from the request. Missing, tampered or expired cookies yield an empty session.
func (m *Manager) Load(r *http.Request) *Session {
	if r == nil {
		return New()
	}
	cookie, err := r.Cookie(m.cookieName)
	if err != nil || cookie == nil {
		return New()
	}
	loaded, err := m.Decode(cookie.Value)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			m.logger.Info("session token rejected", zap.Error(err))
		} else {
			m.logger.Warn("session token rejected", zap.Error(err))
		}
		// The stale cookie is replaced on the next save.
		stale := New()
		stale.changed = true
		return stale
	}
	return loaded
}

// Save writes the session cookie when the session changed. An empty session clears the cookie.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	if s == nil || !s.changed {
		return nil
	}
	if s.empty() {
		http.SetCookie(w, m.cookie("", -1))
		s.changed = false
		return nil
	}
	token, err := m.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(token, int(m.ttl.Seconds())))
	s.changed = false
	return nil
}

// Encode signs the session into a JWT.
func (m *Manager) Encode(s *Session) (string, error) {
	now := m.clock().UTC()
	claims := sessionClaims{
		UserID: s.userID,
		Notice: s.notice,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if s.userID != 0 {
		claims.Subject = strconv.FormatUint(uint64(s.userID), 10)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingSecret)
	if err != nil {
		return "", fmt.Errorf("session manager: signing token: %w", err)
	}
	return signed, nil
}

// Decode validates a JWT produced by Encode and returns the session it carries.
func (m *Manager) Decode(tokenString string) (*Session, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return nil, ErrMissingToken
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("%w: unexpected signing algorithm %s", ErrInvalidToken, t.Method.Alg())
			}
			return m.signingSecret, nil
		},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.clock),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return &Session{userID: claims.UserID, notice: claims.Notice}, nil
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
