package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSessionSigningSecret = "secret"
	testSessionCookieName    = "keyhub_session"
	testSessionUserID        = "user-123"
	testSessionUserEmail     = "player@example.com"
)

var testClockNow = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T) *SessionValidator {
	t.Helper()
	validator, err := NewSessionValidator(SessionValidatorConfig{
		SigningSecret: []byte(testSessionSigningSecret),
		CookieName:    testSessionCookieName,
		Clock: func() time.Time {
			return testClockNow
		},
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func signTestToken(t *testing.T, issuer string, issuedAt, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		UserID:    testSessionUserID,
		UserEmail: testSessionUserEmail,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   testSessionUserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(testSessionSigningSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestSessionValidatorValidateToken(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, defaultSessionIssuer, testClockNow.Add(-time.Minute), testClockNow.Add(time.Hour))

	claims, err := validator.ValidateToken(signed)
	if err != nil {
		t.Fatalf("unexpected validation failure: %v", err)
	}
	if claims.UserID != testSessionUserID || claims.UserEmail != testSessionUserEmail {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestSessionValidatorValidateTokenExpired(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, defaultSessionIssuer, testClockNow.Add(-2*time.Hour), testClockNow.Add(-time.Hour))

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestSessionValidatorRejectsForeignIssuer(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, "someone-else", testClockNow.Add(-time.Minute), testClockNow.Add(time.Hour))

	if _, err := validator.ValidateToken(signed); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestSessionValidatorValidateRequestUsesCookie(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, defaultSessionIssuer, testClockNow.Add(-time.Minute), testClockNow.Add(time.Hour))

	request := httptest.NewRequest(http.MethodGet, "/api/loadout", http.NoBody)
	request.AddCookie(&http.Cookie{
		Name:  testSessionCookieName,
		Value: signed,
	})

	claims, err := validator.ValidateRequest(request)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.UserID != testSessionUserID {
		t.Fatalf("unexpected user id: %s", claims.UserID)
	}
}

func TestSessionValidatorValidateRequestAcceptsBearerHeader(t *testing.T) {
	validator := newTestValidator(t)
	signed := signTestToken(t, defaultSessionIssuer, testClockNow.Add(-time.Minute), testClockNow.Add(time.Hour))

	request := httptest.NewRequest(http.MethodGet, "/api/loadout", http.NoBody)
	request.Header.Set("Authorization", "Bearer "+signed)

	if _, err := validator.ValidateRequest(request); err != nil {
		t.Fatalf("validation failed: %v", err)
	}
}

func TestSessionValidatorValidateRequestWithoutToken(t *testing.T) {
	validator := newTestValidator(t)
	request := httptest.NewRequest(http.MethodGet, "/api/loadout", http.NoBody)

	if _, err := validator.ValidateRequest(request); !errors.Is(err, ErrMissingSessionToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
