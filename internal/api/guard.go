// internal/api/guard.go
package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/holosync/internal/auth"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Authenticator issues a new credential for a local identity (POST /session).
type Authenticator interface {
	SignIn(ctx context.Context, identity string) (auth.Credential, error)
}

// retryState is the guard's bounded retry policy: a call starts fresh, may be retried once
// after re-authentication, and then gives up.
type retryState int

const (
	stateFresh retryState = iota
	stateRetriedOnce
	stateGiveUp
)

// Guard wraps authenticated calls. On ErrUnauthorized it re-authenticates exactly once with
// the configured identity and retries the call once; any further failure is returned as is.
type Guard struct {
	session  *auth.Session
	authn    Authenticator
	identity string
	logger   *logrus.Logger

	// reauth collapses concurrent re-authentications triggered by parallel 401s.
	reauth singleflight.Group
}

// NewGuard builds a guard for session.
func NewGuard(session *auth.Session, authn Authenticator, identity string, logger *logrus.Logger) *Guard {
	return &Guard{
		session:  session,
		authn:    authn,
		identity: identity,
		logger:   logger,
	}
}

// Call runs fn through the guard.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	state := stateFresh
	for {
		v, err := fn(ctx)
		if err == nil || !errors.Is(err, ErrUnauthorized) {
			return v, err
		}

		switch state {
		case stateFresh:
			if rerr := g.reauthenticate(ctx); rerr != nil {
				return v, rerr
			}
			state = stateRetriedOnce
		case stateRetriedOnce:
			state = stateGiveUp
			fallthrough
		default:
			g.logger.WithError(err).Warn("authorization failed after re-authentication")
			return v, err
		}
	}
}

// Do is Call for functions without a result.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, g, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// SignIn performs an explicit sign-in and stores the credential.
func (g *Guard) SignIn(ctx context.Context) (auth.Credential, error) {
	cred, err := g.authn.SignIn(ctx, g.identity)
	if err != nil {
		return auth.Credential{}, fmt.Errorf("sign in: %w", err)
	}
	if err := g.session.Set(cred, auth.StatusSignedIn); err != nil {
		g.logger.WithError(err).Warn("credential not persisted")
	}
	return cred, nil
}

// reauthTimeout bounds a shared re-authentication, which no single caller owns.
const reauthTimeout = 10 * time.Second

// reauthenticate signs in again, sharing one request between concurrent callers. The
// request runs detached from ctx so one caller giving up does not fail the others.
func (g *Guard) reauthenticate(ctx context.Context) error {
	ch := g.reauth.DoChan("reauth", func() (interface{}, error) {
		g.logger.WithField("identity", g.identity).Info("credential rejected, re-authenticating")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reauthTimeout)
		defer cancel()
		cred, err := g.authn.SignIn(sctx, g.identity)
		if err != nil {
			g.session.MarkStatus(auth.StatusReauthFailed)
			return nil, err
		}
		if err := g.session.Set(cred, auth.StatusReauthenticated); err != nil {
			g.logger.WithError(err).Warn("credential not persisted")
		}
		return nil, nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			g.logger.Debug("joined in-progress re-authentication")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
