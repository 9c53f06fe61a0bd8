package application

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/mailer"
	tpl "github.com/mundotango/mundo-tango-api/pkg/mailer/templates"
)

const (
	VerifyTokenPrefix = "auth:verify:"
	ResetTokenPrefix  = "auth:reset:"

	verifyTokenTTL    = 24 * time.Hour
	resetTokenTTL     = 30 * time.Minute
	minPasswordLength = 8
)

// AccountService runs the email verification and password reset flows.
// One-time tokens live in the cache and are delivered by the email queue.
type AccountService struct {
	users  repo.UserRepository
	tokens *cache.Cache
	pub    helpers.Publisher
	rdb    *redis.Client
	logger *logrus.Logger

	CompanyName string
	VerifyURL   string
	ResetURL    string
}

func NewAccountService(users repo.UserRepository, tokens *cache.Cache, pub helpers.Publisher, rdb *redis.Client, logger *logrus.Logger) *AccountService {
	return &AccountService{users: users, tokens: tokens, pub: pub, rdb: rdb, logger: logger}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func withToken(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// issue stores a token for userID under prefix and queues the email.
func (s *AccountService) issue(ctx context.Context, u *entity.User, prefix, template, link string, ttl time.Duration) error {
	if s.pub == nil {
		return ErrQueueDisabled
	}
	token, err := newToken()
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	if err := s.tokens.Set(ctx, prefix+token, u.ID, ttl); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	data := tpl.ActionLinkData{
		Name:        u.Name,
		CompanyName: s.CompanyName,
		Link:        withToken(link, token),
		ExpiresIn:   ttl.String(),
	}
	job := &mailer.EmailJob{To: u.Email, Template: template, Data: tpl.ToMap(data)}
	if err := s.pub.PublishJSON(ctx, job); err != nil {
		_ = s.tokens.Del(ctx, prefix+token)
		return fmt.Errorf("publish email: %w", err)
	}
	return nil
}

// redeem returns the user id stored for token and removes it.
func (s *AccountService) redeem(ctx context.Context, prefix, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrInvalidToken
	}
	var userID string
	ok, err := s.tokens.Get(ctx, prefix+token, &userID)
	if err != nil || !ok || userID == "" {
		return "", ErrInvalidToken
	}
	if err := s.tokens.Del(ctx, prefix+token); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("prefix", prefix).Warn("token delete failed")
	}
	return userID, nil
}

// RequestVerification emails a confirmation link to the user. It reports
// true without sending anything when the address is already verified.
func (s *AccountService) RequestVerification(ctx context.Context, userID string) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	if u.IsVerified {
		return true, nil
	}
	if err := s.issue(ctx, u, VerifyTokenPrefix, tpl.VerifyEmail, s.VerifyURL, verifyTokenTTL); err != nil {
		return false, err
	}
	if s.logger != nil {
		s.logger.WithField("user_id", u.ID).Info("verification email queued")
	}
	return false, nil
}

// ConfirmVerification marks the token's owner as verified. Tokens work once.
func (s *AccountService) ConfirmVerification(ctx context.Context, token string) (string, error) {
	userID, err := s.redeem(ctx, VerifyTokenPrefix, token)
	if err != nil {
		return "", err
	}
	if err := s.users.SetVerified(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("set verified: %w", err)
	}
	return userID, nil
}

// RequestPasswordReset emails a reset link when email belongs to a user.
// Unknown addresses succeed silently so callers cannot enumerate accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	if s.pub == nil {
		return ErrQueueDisabled
	}
	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if err := s.issue(ctx, u, ResetTokenPrefix, tpl.PasswordReset, s.ResetURL, resetTokenTTL); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.WithField("user_id", u.ID).Info("password reset email queued")
	}
	return nil
}

// ResetPassword sets a new password for the token's owner and drops their
// session, so existing refresh tokens stop working.
func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}
	userID, err := s.redeem(ctx, ResetTokenPrefix, token)
	if err != nil {
		return err
	}
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	u.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if s.rdb != nil {
		if err := s.rdb.Del(ctx, helpers.SessionKey(u.ID)).Err(); err != nil && s.logger != nil {
			s.logger.WithError(err).WithField("user_id", u.ID).Warn("drop session failed")
		}
	}
	if s.logger != nil {
		s.logger.WithField("user_id", u.ID).Info("password reset")
	}
	return nil
}
