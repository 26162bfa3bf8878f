// Package users resolves session claims into canonical user ids and onboards first-time users.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/keyhub/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultProvider = "default"

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// NewUserHook runs once for every identity the service creates.
type NewUserHook func(ctx context.Context, userID string) error

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database  *gorm.DB
	Clock     func() time.Time
	Logger    *zap.Logger
	OnNewUser NewUserHook
}

// Service manages canonical user identifiers and provider-specific identities.
type Service struct {
	db        *gorm.DB
	now       func() time.Time
	logger    *zap.Logger
	onNewUser NewUserHook
	cache     sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:        cfg.Database,
		now:       clock,
		logger:    logger,
		onNewUser: cfg.OnNewUser,
	}, nil
}

// ResolveCanonicalUserID returns the canonical user id for the session claims. The first
// time a provider and subject pair is seen an identity is created and the new-user hook
// runs; if the hook fails the identity is removed so the next request retries.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cached, ok := s.cache.Load(cacheKey); ok {
		if canonical, ok := cached.(string); ok {
			return canonical, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.Where("provider = ? AND subject = ?", provider, subject).First(&identity).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       trimmed(claims.UserEmail),
			DisplayName: trimmed(claims.UserDisplayName),
			LastSeenAt:  s.now(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return "", err
		}
		if s.onNewUser != nil {
			if hookErr := s.onNewUser(ctx, identity.UserID); hookErr != nil {
				s.logger.Error("new user hook failed",
					zap.String("user_id", identity.UserID),
					zap.String("provider", provider),
					zap.Error(hookErr))
				if err := db.Where("provider = ? AND subject = ?", provider, subject).Delete(&Identity{}).Error; err != nil {
					s.logger.Error("identity rollback failed", zap.String("user_id", identity.UserID), zap.Error(err))
				}
				return "", hookErr
			}
		}
		s.logger.Info("identity created", zap.String("user_id", identity.UserID), zap.String("provider", provider))
	case err != nil:
		return "", err
	default:
		updates := map[string]interface{}{"last_seen_at": s.now()}
		if email := trimmed(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if display := trimmed(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
		}
		if err := db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).Error; err != nil {
			s.logger.Warn("identity refresh failed", zap.String("user_id", identity.UserID), zap.Error(err))
		}
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}

// deriveProviderSubject splits "provider:subject" user ids; plain ids use the default provider.
func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := defaultProvider
	subject := trimmed(claims.Subject)

	raw := trimmed(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if trimmed(segments[0]) != "" && trimmed(segments[1]) != "" {
				provider = trimmed(segments[0])
				subject = trimmed(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = trimmed(claims.UserEmail)
	}
	return provider, subject
}
