package api

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuthenticator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAuthenticator) SignIn(_ context.Context, identity string) (auth.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return auth.Credential{}, f.err
	}
	return auth.Credential{Token: "fresh-token", PlayerID: identity}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestGuard(t *testing.T, authn Authenticator) (*Guard, *auth.Session) {
	t.Helper()
	s, err := auth.NewSession(nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(auth.Credential{Token: "stale-token", PlayerID: "alice"}, auth.StatusSignedIn))
	return NewGuard(s, authn, "alice", quietLogger()), s
}

func TestGuardReauthenticatesOnceAndRetries(t *testing.T) {
	authn := &fakeAuthenticator{}
	g, session := newTestGuard(t, authn)

	calls := 0
	got, err := Call(context.Background(), g, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &ServerError{Status: 401, Message: "token expired"}
		}
		return "ok:" + session.Token(), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok:fresh-token", got)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, authn.calls, "re-authentication must happen exactly once")
	assert.Equal(t, auth.StatusReauthenticated, session.Status())
}

func TestGuardGivesUpAfterOneRetry(t *testing.T) {
	authn := &fakeAuthenticator{}
	g, _ := newTestGuard(t, authn)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &ServerError{Status: 401}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, authn.calls)
}

func TestGuardPropagatesReauthFailure(t *testing.T) {
	boom := errors.New("identity rejected")
	authn := &fakeAuthenticator{err: boom}
	g, session := newTestGuard(t, authn)

	calls := 0
	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &ServerError{Status: 401}
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Equal(t, auth.StatusReauthFailed, session.Status())
	assert.Equal(t, "stale-token", session.Token())
}

func TestGuardPassesThroughOtherErrors(t *testing.T) {
	authn := &fakeAuthenticator{}
	g, _ := newTestGuard(t, authn)

	rejected := &ServerError{Status: 409, Message: "not your turn"}
	err := g.Do(context.Background(), func(ctx context.Context) error { return rejected })

	assert.Same(t, rejected, err)
	assert.Zero(t, authn.calls)
}

func TestGuardSignIn(t *testing.T) {
	authn := &fakeAuthenticator{}
	g, session := newTestGuard(t, authn)

	cred, err := g.SignIn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", cred.Token)
	assert.Equal(t, "fresh-token", session.Token())
	assert.Equal(t, auth.StatusSignedIn, session.Status())
}

// blockingAuthenticator signs in only once released, honoring its context.
type blockingAuthenticator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAuthenticator) SignIn(ctx context.Context, identity string) (auth.Credential, error) {
	b.entered <- struct{}{}
	<-b.release
	if err := ctx.Err(); err != nil {
		return auth.Credential{}, err
	}
	return auth.Credential{Token: "fresh-token", PlayerID: identity}, nil
}

func TestCancelledCallerDoesNotFailSharedReauth(t *testing.T) {
	authn := &blockingAuthenticator{entered: make(chan struct{}, 2), release: make(chan struct{})}
	g, session := newTestGuard(t, authn)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- g.reauthenticate(ctx) }()
	<-authn.entered

	second := make(chan error, 1)
	go func() { second <- g.reauthenticate(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)
	close(authn.release)

	require.NoError(t, <-second)
	assert.Equal(t, "fresh-token", session.Token())
	assert.Equal(t, auth.StatusReauthenticated, session.Status())
}
