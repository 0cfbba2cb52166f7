// Package session owns the authentication token, identity and subscription
// tier of the current user.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"divtrack/internal/api"
	"divtrack/internal/errors"
	"divtrack/internal/events"
	"divtrack/internal/logging"
	"divtrack/internal/models"
	"divtrack/internal/store"
)

// Remote is the subset of the backend the session depends on.
type Remote interface {
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	Register(ctx context.Context, email, password string) (api.AuthResponse, error)
	Me(ctx context.Context, token string) (api.UserResponse, error)
	UpgradeTier(ctx context.Context, token, tier string) error
}

// Auditor records session changes. Implemented by security.AuditLogger.
type Auditor interface {
	LogLogin(ctx context.Context, email string, register bool, tier models.Tier, err error) error
	LogLogout(ctx context.Context, email string) error
	LogSessionExpired(ctx context.Context, reason error) error
	LogTierUpgraded(ctx context.Context, email string, from, to models.Tier, err error) error
}

// Options configures a Manager.
type Options struct {
	Remote  Remote
	Store   store.TokenStore
	Auditor Auditor
	Events  events.Publisher
	Logger  zerolog.Logger

	// ReconcileAfterUpgrade re-reads auth/me after a successful upgrade
	// instead of trusting the optimistic local tier.
	ReconcileAfterUpgrade bool
}

// Manager is the single owner of session state.
//
// Remote-calling operations run one at a time under opMu. State is guarded by
// mu. Logout never waits for opMu: it bumps epoch, and any login, refresh or
// upgrade that started under an older epoch discards its result.
type Manager struct {
	remote    Remote
	store     store.TokenStore
	auditor   Auditor
	events    events.Publisher
	logger    zerolog.Logger
	reconcile bool

	opMu sync.Mutex

	mu       sync.RWMutex
	state    models.Session
	epoch    uint64
	restored string
}

// NewManager creates a Manager holding the empty session.
func NewManager(opts Options) *Manager {
	return &Manager{
		remote:    opts.Remote,
		store:     opts.Store,
		auditor:   opts.Auditor,
		events:    opts.Events,
		logger:    logging.WithComponent(opts.Logger, "session"),
		reconcile: opts.ReconcileAfterUpgrade,
		state:     models.EmptySession(),
	}
}

// Current returns a copy of the session.
func (m *Manager) Current() models.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copySession(m.state)
}

func copySession(s models.Session) models.Session {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) (models.Session, error) {
	return m.authenticate(ctx, "login", email, password, m.remote.Login)
}

// Register creates an account and logs into it. New accounts start on the
// free tier unless the server says otherwise.
func (m *Manager) Register(ctx context.Context, email, password string) (models.Session, error) {
	return m.authenticate(ctx, "register", email, password, m.remote.Register)
}

type authCall func(ctx context.Context, email, password string) (api.AuthResponse, error)

func (m *Manager) authenticate(ctx context.Context, op, email, password string, call authCall) (models.Session, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	logger := logging.WithOperation(m.logger, op)
	epoch := m.currentEpoch()
	register := op == "register"

	resp, err := call(ctx, email, password)
	if err == nil && resp.AccessToken == "" {
		err = errors.NewAuthError(op, "server returned no token", nil)
	}
	if err != nil {
		err = asAuthError(op, err)
		logger.Warn().Err(err).Str("email", email).Msg("authentication failed")
		m.audit(func(a Auditor) error { return a.LogLogin(ctx, email, register, "", err) })
		return m.Current(), err
	}

	tier, ok := models.ParseTier(resp.Subscription)
	if !ok && resp.Subscription != "" {
		logger.Warn().Str("subscription", resp.Subscription).Msg("unknown tier from server, using free")
	}

	next := models.Session{
		Token:    resp.AccessToken,
		Identity: &models.Identity{Email: email},
		Tier:     tier,
	}
	prev, err := m.commit(ctx, epoch, next, true)
	if err != nil {
		if !errors.Is(err, errors.ErrSessionSuperseded) {
			err = errors.NewAuthError(op, "could not save session", err)
		}
		logger.Warn().Err(err).Msg("login result discarded")
		return m.Current(), err
	}

	m.audit(func(a Auditor) error { return a.LogLogin(ctx, email, register, tier, nil) })
	logging.LogSessionEvent(logger, op, email, string(tier))
	m.publish(prev, next)
	return copySession(next), nil
}

// asAuthError maps any failure of a credential call onto AuthError.
func asAuthError(op string, err error) error {
	var authErr *errors.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return errors.NewAuthError(op, errors.UserMessage(err), err)
}

// commit replaces the session if no logout happened since epoch. When
// persist is set the token is written to the store first; a store failure
// leaves state untouched.
func (m *Manager) commit(ctx context.Context, epoch uint64, next models.Session, persist bool) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return m.state, errors.ErrSessionSuperseded
	}
	if persist {
		if err := m.store.Save(ctx, next.Token); err != nil {
			return m.state, fmt.Errorf("%w: %w", errors.ErrTokenStoreFailure, err)
		}
		m.restored = next.Token
	}

	prev := m.state
	m.state = next
	return prev, nil
}

// Refresh re-resolves identity and tier from the stored token. Any failure,
// including a missing token, leaves the session logged out. It never
// returns an error.
func (m *Manager) Refresh(ctx context.Context) models.Session {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) models.Session {
	logger := logging.WithOperation(m.logger, "refresh")
	epoch := m.currentEpoch()

	token, ok, err := m.store.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("reading stored token failed")
	}
	if err != nil || !ok {
		m.expire(ctx, epoch, err)
		return m.Current()
	}

	me, err := m.remote.Me(ctx, token)
	if err != nil {
		logger.Info().Err(err).Msg("stored token rejected")
		m.expire(ctx, epoch, err)
		return m.Current()
	}

	tier, known := models.ParseTier(me.Subscription)
	if !known && me.Subscription != "" {
		logger.Warn().Str("subscription", me.Subscription).Msg("unknown tier from server, using free")
	}
	next := models.Session{
		Token:    token,
		Identity: &models.Identity{Email: me.Email},
		Tier:     tier,
	}
	prev, err := m.commit(ctx, epoch, next, false)
	if err != nil {
		logger.Debug().Msg("refresh result discarded after logout")
		return m.Current()
	}

	m.mu.Lock()
	m.restored = token
	m.mu.Unlock()

	logging.LogSessionEvent(logger, "refresh", me.Email, string(tier))
	m.publish(prev, next)
	return copySession(next)
}

// Restore runs Refresh once for each distinct stored token. Calling it again
// while the same token is stored returns the current session without a
// remote call.
func (m *Manager) Restore(ctx context.Context) models.Session {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	token, ok, err := m.store.Load(ctx)
	if err == nil && ok {
		m.mu.RLock()
		seen := token == m.restored && m.state.Token == token
		m.mu.RUnlock()
		if seen {
			return m.Current()
		}
	}
	return m.refreshLocked(ctx)
}

// Logout clears the token, identity and stored token and resets the tier to
// free. It is synchronous, idempotent and takes precedence over any
// operation still in flight.
func (m *Manager) Logout(ctx context.Context) {
	prev, changed := m.clear(ctx)
	if !changed {
		return
	}
	m.audit(func(a Auditor) error { return a.LogLogout(ctx, prev.Email()) })
	logging.LogSessionEvent(m.logger, "logout", prev.Email(), string(models.TierFree))
	m.publish(prev, models.EmptySession())
}

// expire logs out because the stored token is missing or no longer valid.
// A logout that already happened since epoch makes it a no-op.
func (m *Manager) expire(ctx context.Context, epoch uint64, reason error) {
	if m.currentEpoch() != epoch {
		return
	}
	prev, changed := m.clear(ctx)
	if !changed {
		return
	}
	m.audit(func(a Auditor) error { return a.LogSessionExpired(ctx, reason) })
	logging.LogSessionEvent(m.logger, "expired", prev.Email(), string(models.TierFree))
	m.publish(prev, models.EmptySession())
}

func (m *Manager) clear(ctx context.Context) (models.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("clearing stored token failed")
	}
	m.restored = ""

	prev := m.state
	m.state = models.EmptySession()
	changed := prev.Token != "" || prev.Identity != nil || prev.Tier != models.TierFree
	return prev, changed
}

func (m *Manager) audit(fn func(Auditor) error) {
	if m.auditor == nil {
		return
	}
	if err := fn(m.auditor); err != nil {
		m.logger.Warn().Err(err).Msg("audit write failed")
	}
}

func (m *Manager) publish(prev, next models.Session) {
	if m.events == nil {
		return
	}
	m.events.Publish(events.Event{Kind: events.SessionChanged, Session: copySession(next), Tier: next.Tier})
	if prev.Tier != next.Tier {
		m.events.Publish(events.Event{Kind: events.TierChanged, Session: copySession(next), Tier: next.Tier})
	}
}
