package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSigningSecret = "secret"
	testCookieName    = "roster_session"
)

func newTestManager(t *testing.T, clock func() time.Time, logger *zap.Logger) *Manager {
	t.Helper()
	manager, err := NewManager(ManagerConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
		TTL:           time.Hour,
		Clock:         clock,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("failed to construct manager: %v", err)
	}
	return manager
}

func requestWithCookies(cookies []*http.Cookie) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/users", http.NoBody)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	return request
}

func TestManagerRoundTripsUserAndNotice(t *testing.T) {
	manager := newTestManager(t, nil, nil)
	state := New()
	state.SignIn(7)
	state.Flash("Thanks for logging in!")

	recorder := httptest.NewRecorder()
	if err := manager.Save(recorder, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != testCookieName || !cookies[0].HttpOnly {
		t.Fatalf("unexpected cookies %+v", cookies)
	}

	loaded := manager.Load(requestWithCookies(cookies))
	if loaded.UserID() != 7 {
		t.Fatalf("unexpected user id %d", loaded.UserID())
	}
	if notice := loaded.TakeNotice(); notice != "Thanks for logging in!" {
		t.Fatalf("unexpected notice %q", notice)
	}
	if loaded.TakeNotice() != "" {
		t.Fatalf("notice must be one-shot")
	}
	if !loaded.Changed() {
		t.Fatalf("consuming a notice must mark the session changed")
	}
}

func TestManagerSaveSkipsUnchangedSession(t *testing.T) {
	manager := newTestManager(t, nil, nil)
	recorder := httptest.NewRecorder()
	if err := manager.Save(recorder, New()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if len(recorder.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookie for untouched session")
	}
}

func TestManagerSaveClearsEmptySession(t *testing.T) {
	manager := newTestManager(t, nil, nil)
	state := New()
	state.SignIn(3)
	state.SignOut()

	recorder := httptest.NewRecorder()
	if err := manager.Save(recorder, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	cookies := recorder.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected clearing cookie, got %+v", cookies)
	}
}

func TestManagerLoadIgnoresTamperedToken(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	manager := newTestManager(t, nil, zap.New(core))

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    defaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	loaded := manager.Load(requestWithCookies([]*http.Cookie{{Name: testCookieName, Value: signed}}))
	if loaded.UserID() != 0 {
		t.Fatalf("tampered token must not sign anybody in")
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warn entry, got %+v", entries)
	}
}

func TestManagerLoadTreatsExpiredTokenAsAnonymous(t *testing.T) {
	issuedAt := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	core, logs := observer.New(zapcore.DebugLevel)
	manager := newTestManager(t, func() time.Time { return now }, zap.New(core))

	state := New()
	state.SignIn(9)
	token, err := manager.Encode(state)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	now = issuedAt.Add(2 * time.Hour)
	if _, err := manager.Decode(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
	loaded := manager.Load(requestWithCookies([]*http.Cookie{{Name: testCookieName, Value: token}}))
	if loaded.UserID() != 0 {
		t.Fatalf("expired token must not sign anybody in")
	}
	if !loaded.Changed() {
		t.Fatalf("stale cookie should be rewritten")
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected one info entry, got %+v", entries)
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	if _, err := NewManager(ManagerConfig{CookieName: testCookieName}); !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
	if _, err := NewManager(ManagerConfig{SigningSecret: []byte("x")}); !errors.Is(err, ErrMissingCookieName) {
		t.Fatalf("expected missing cookie name error, got %v", err)
	}
}
