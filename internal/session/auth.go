// Package session owns the process-wide authentication state.
//
// Every request reads the token through Auth, and a 401 from any endpoint
// invalidates the sign-in it was sent with. Invalidation is keyed by the
// sign-in generation so concurrent 401s tear the session down exactly once.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type Reason string

const (
	ReasonUnauthorized Reason = "unauthorized"
	ReasonSignOut      Reason = "sign_out"
	ReasonExpired      Reason = "expired"
	ReasonReplaced     Reason = "replaced"
)

// Listener is called after the session has been torn down. It must not sign
// in or out.
type Listener func(reason Reason)

type Auth struct {
	// transition serializes sign-in, sign-out and invalidation so storage
	// always holds the credentials of the latest transition.
	transition sync.Mutex

	mu        sync.RWMutex
	storage   Storage
	creds     Credentials
	gen       uint64
	listeners []Listener
	now       func() time.Time
}

func NewAuth(storage Storage) *Auth {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Auth{storage: storage, now: time.Now}
}

// Restore loads persisted credentials. Expired tokens are discarded and
// reported as ErrNoSession.
func (a *Auth) Restore(ctx context.Context) error {
	a.transition.Lock()
	defer a.transition.Unlock()

	creds, err := a.storage.Load(ctx)
	if err != nil {
		return err
	}
	if creds.Expired(a.now()) {
		if err := a.storage.Clear(ctx); err != nil {
			logger.FromContext(ctx).Warn("clear expired session", zap.Error(err))
		}
		return ErrNoSession
	}

	a.mu.Lock()
	a.creds = creds
	a.gen++
	a.mu.Unlock()
	return nil
}

// SignIn stores a fresh token. A zero userID is taken from the token's
// user_id or sub claim when present. Signing in over a live session ends that
// session first, so listeners drop everything loaded under it.
func (a *Auth) SignIn(ctx context.Context, token string, userID int64) error {
	if token == "" {
		return errors.New("session: empty token")
	}

	creds := Credentials{Token: token, UserID: userID}
	if claims, ok := parseClaims(token); ok {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			creds.ExpiresAt = exp.Time
		}
		if creds.UserID == 0 {
			creds.UserID = claimUserID(claims)
		}
	}
	if creds.Expired(a.now()) {
		return errors.New("session: token already expired")
	}

	a.transition.Lock()
	defer a.transition.Unlock()

	a.mu.RLock()
	live, gen := !a.creds.Empty(), a.gen
	a.mu.RUnlock()
	if live {
		a.endLocked(ctx, gen, ReasonReplaced)
	}

	if err := a.storage.Save(ctx, creds); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	a.mu.Lock()
	a.creds = creds
	a.gen++
	a.mu.Unlock()
	return nil
}

func (a *Auth) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds.Token
}

func (a *Auth) UserID() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds.UserID
}

// Current returns the token together with the generation it belongs to.
func (a *Auth) Current() (string, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds.Token, a.gen
}

func (a *Auth) Generation() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gen
}

func (a *Auth) Authenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return !a.creds.Empty() && !a.creds.Expired(a.now())
}

func (a *Auth) OnInvalidate(fn Listener) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// SignOut clears the session and notifies listeners.
func (a *Auth) SignOut(ctx context.Context) {
	a.mu.RLock()
	gen := a.gen
	a.mu.RUnlock()
	a.teardown(ctx, gen, ReasonSignOut)
}

// Invalidate tears down the sign-in identified by gen. It returns false when
// that sign-in is already gone, in which case nothing happens.
func (a *Auth) Invalidate(ctx context.Context, gen uint64, reason Reason) bool {
	return a.teardown(ctx, gen, reason)
}

func (a *Auth) teardown(ctx context.Context, gen uint64, reason Reason) bool {
	a.transition.Lock()
	defer a.transition.Unlock()
	return a.endLocked(ctx, gen, reason)
}

// endLocked ends the sign-in gen. Must be called with a.transition held.
func (a *Auth) endLocked(ctx context.Context, gen uint64, reason Reason) bool {
	a.mu.Lock()
	if gen != a.gen || a.creds.Empty() {
		a.mu.Unlock()
		return false
	}
	a.creds = Credentials{}
	a.gen++
	listeners := make([]Listener, len(a.listeners))
	copy(listeners, a.listeners)
	a.mu.Unlock()

	if err := a.storage.Clear(ctx); err != nil {
		logger.FromContext(ctx).Warn("clear session storage", zap.Error(err))
	}
	logger.FromContext(ctx).Info("session ended", zap.String("reason", string(reason)))

	for _, fn := range listeners {
		fn(reason)
	}
	return true
}

func parseClaims(token string) (jwt.MapClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

func claimUserID(claims jwt.MapClaims) int64 {
	for _, key := range []string{"user_id", "sub"} {
		switch v := claims[key].(type) {
		case float64:
			return int64(v)
		case string:
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				return id
			}
		}
	}
	return 0
}
