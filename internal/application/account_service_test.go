package application

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/cache"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/mailer"
	tpl "github.com/mundotango/mundo-tango-api/pkg/mailer/templates"
)

type accountFixture struct {
	svc   *AccountService
	users *fakeUsers
	pub   *fakePublisher
}

func newAccountFixture(t *testing.T) accountFixture {
	t.Helper()
	hash, err := helpers.HashPassword("password123")
	require.NoError(t, err)
	users := newFakeUsers(&entity.User{ID: "u1", Email: "ana@example.com", Password: hash, Name: "Ana"})
	pub := &fakePublisher{}
	svc := NewAccountService(users, cache.New(nil, nil), pub, nil, nil)
	svc.CompanyName = "Mundo Tango"
	svc.VerifyURL = "https://mundotango.life/verify-email?src=mail"
	svc.ResetURL = "https://mundotango.life/reset-password"
	return accountFixture{svc: svc, users: users, pub: pub}
}

// lastToken returns the sent job and the token carried by its link.
func (f accountFixture) lastToken(t *testing.T) (mailer.EmailJob, string) {
	t.Helper()
	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	require.NotEmpty(t, f.pub.bodies)
	var job mailer.EmailJob
	require.NoError(t, json.Unmarshal(f.pub.bodies[len(f.pub.bodies)-1], &job))
	link, ok := job.Data["Link"].(string)
	require.True(t, ok)
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return job, token
}

func TestAccountService_Verification(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	already, err := f.svc.RequestVerification(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, already)

	job, token := f.lastToken(t)
	assert.Equal(t, "ana@example.com", job.To)
	assert.Equal(t, tpl.VerifyEmail, job.Template)
	assert.Equal(t, "Ana", job.Data["Name"])
	assert.Equal(t, "24h0m0s", job.Data["ExpiresIn"])
	assert.Contains(t, job.Data["Link"], "src=mail", "existing query parameters are kept")

	_, err = f.svc.ConfirmVerification(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	uid, err := f.svc.ConfirmVerification(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
	u, _ := f.users.GetByID(ctx, "u1")
	assert.True(t, u.IsVerified)

	_, err = f.svc.ConfirmVerification(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken, "tokens work once")

	already, err = f.svc.RequestVerification(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, already)
	assert.Len(t, f.pub.bodies, 1, "no email for a verified address")
}

func TestAccountService_VerificationErrors(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestVerification(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	f.pub.err = errors.New("broker down")
	_, err = f.svc.RequestVerification(ctx, "u1")
	require.Error(t, err)
	assert.Equal(t, 0, f.svc.tokens.Memory().Len(), "token is discarded when the email cannot be queued")

	f.svc.pub = nil
	_, err = f.svc.RequestVerification(ctx, "u1")
	assert.ErrorIs(t, err, ErrQueueDisabled)
}

func TestAccountService_PasswordReset(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.svc.rdb = rdb
	mr.HSet(helpers.SessionKey("u1"), "sid", "s1")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	assert.Empty(t, f.pub.bodies, "unknown addresses send nothing")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " ANA@example.com "))
	job, token := f.lastToken(t)
	assert.Equal(t, tpl.PasswordReset, job.Template)
	assert.Equal(t, "30m0s", job.Data["ExpiresIn"])

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "short"), ErrWeakPassword)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "bogus", "new-password-1"), ErrInvalidToken)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-password-1"))
	u, _ := f.users.GetByID(ctx, "u1")
	assert.True(t, helpers.CompareHashAndPassword(u.Password, "new-password-1"))
	assert.False(t, mr.Exists(helpers.SessionKey("u1")), "session is dropped")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "another-pass-2"), ErrInvalidToken)
}

func TestAccountService_ResetTokenExpires(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.svc.tokens = cache.New(rdb, nil)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ana@example.com"))
	_, token := f.lastToken(t)
	assert.Equal(t, 30*time.Minute, mr.TTL(ResetTokenPrefix+token))

	mr.FastForward(31 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "new-password-1"), ErrInvalidToken)
}

func TestWithToken(t *testing.T) {
	assert.Equal(t, "https://x.test/verify?token=abc", withToken("https://x.test/verify", "abc"))
	assert.Equal(t, "https://x.test/verify?a=1&token=abc", withToken("https://x.test/verify?a=1", "abc"))
	assert.Equal(t, "?token=abc", withToken("", "abc"))
}
