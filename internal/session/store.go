// Package session holds the authenticated session state: credential, principal and
// the flags a UI reads to decide what to render.
//
// Credential, principal and the authenticated flag always change together. Readers
// get copies through Snapshot or Subscribe and never observe a partial update.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/learnhub-client/internal/errs"
	"github.com/and161185/learnhub-client/internal/gateway"
	"github.com/and161185/learnhub-client/internal/model"
	"github.com/and161185/learnhub-client/internal/routes"
	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/and161185/learnhub-client/internal/ui"
)

// API is the remote surface the store drives.
type API interface {
	Login(ctx context.Context, email, password string) (model.AuthResult, error)
	Register(ctx context.Context, p model.RegisterProfile, photo model.Photo) (model.AuthResult, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (model.Principal, error)
}

// Store is the session state container. Construct one per client with New.
type Store struct {
	api     API
	storage storage.Storage
	routes  *routes.Table
	loc     ui.Location
	log     *zap.Logger
	now     func() time.Time

	mu   sync.RWMutex
	snap model.Snapshot
	// pending is a raw credential known to storage but not yet validated into a principal.
	pending string
	// gen changes whenever the identity is replaced; in-flight checks compare it before applying.
	gen uint64

	subMu   sync.Mutex
	subs    map[uint64]func(model.Snapshot)
	nextSub uint64

	checks singleflight.Group
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithLocation sets the source of the current route.
func WithLocation(l ui.Location) Option { return func(s *Store) { s.loc = l } }

// WithClock overrides time.Now for credential expiry checks.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New builds a store and rehydrates it from st. Transient flags start at their defaults.
func New(ctx context.Context, api API, st storage.Storage, rt *routes.Table, opts ...Option) (*Store, error) {
	s := &Store{
		api:     api,
		storage: st,
		routes:  rt,
		loc:     ui.NewRouter("/"),
		log:     zap.NewNop(),
		now:     time.Now,
		subs:    map[uint64]func(model.Snapshot){},
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.snap)
}

// Subscribe registers fn to receive every committed snapshot. The returned func unsubscribes.
// fn runs outside the store lock and may call back into the store.
func (s *Store) Subscribe(fn func(model.Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(snap model.Snapshot) {
	s.subMu.Lock()
	fns := make([]func(model.Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(clone(snap))
	}
}

// commit applies fn under the lock, persists when identity changed and publishes the result.
func (s *Store) commit(ctx context.Context, persist bool, fn func(*model.Snapshot)) error {
	s.mu.Lock()
	fn(&s.snap)
	var err error
	if persist {
		err = s.persistLocked(ctx)
	}
	snap := clone(s.snap)
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("persist session", zap.Error(err))
	}
	s.publish(snap)
	return err
}

// begin marks an interactive auth call as in flight and invalidates running checks.
func (s *Store) begin() {
	_ = s.commit(context.Background(), false, func(sn *model.Snapshot) {
		s.gen++
		sn.IsLoading = true
		sn.Error = ""
	})
}

func (s *Store) establish(ctx context.Context, res model.AuthResult) error {
	cred := model.CredentialFromToken(res.Token)
	user := res.User
	return s.commit(ctx, true, func(sn *model.Snapshot) {
		s.gen++
		s.pending = ""
		*sn = model.Snapshot{Credential: &cred, User: &user, IsAuthenticated: true}
	})
}

// clearLocked resets identity and flags; msg becomes the error field.
func (s *Store) clearLocked(sn *model.Snapshot, msg string) {
	s.gen++
	s.pending = ""
	*sn = model.Snapshot{Error: msg}
}

// Login authenticates with email and password. A server-side validation failure is
// returned as *FormError and leaves the rest of the state untouched. Other failures
// clear the session, set Error and are returned as is.
func (s *Store) Login(ctx context.Context, email, password string) error {
	s.begin()
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		return s.fail(ctx, "login", err, MsgLoginFailed)
	}
	if err := s.establish(ctx, res); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.log.Info("signed in", zap.Int64("user_id", res.User.ID))
	return nil
}

// Register creates an account and signs in with it.
func (s *Store) Register(ctx context.Context, p model.RegisterProfile, photo model.Photo) error {
	s.begin()
	res, err := s.api.Register(ctx, p, photo)
	if err != nil {
		return s.fail(ctx, "register", err, MsgRegisterFailed)
	}
	if err := s.establish(ctx, res); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	s.log.Info("registered", zap.Int64("user_id", res.User.ID))
	return nil
}

func (s *Store) fail(ctx context.Context, op string, err error, generic string) error {
	var ge *gateway.Error
	isGW := errors.As(err, &ge)

	switch {
	case isGW && ge.Kind == gateway.KindValidation && op == "login":
		_ = s.commit(ctx, false, func(sn *model.Snapshot) { sn.IsLoading = false })
		return &FormError{Status: ge.Status, Message: ge.Message, Fields: ge.Fields, Err: err}

	case isGW && ge.Kind == gateway.KindValidation:
		msg := ge.Message
		if msg == "" {
			msg = generic
		}
		_ = s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, msg) })
		return &FormError{Status: ge.Status, Message: ge.Message, Fields: ge.Fields, Err: err}

	case isGW && ge.Kind == gateway.KindAuthentication:
		msg := ge.Message
		if msg == "" {
			msg = MsgInvalidCredentials
		}
		_ = s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, msg) })
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Warn(op+" failed", zap.Error(err))
	_ = s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, generic) })
	return fmt.Errorf("%s: %w", op, err)
}

// Logout invalidates the credential remotely when possible and always clears local state.
// The remote call is best-effort; its failure is logged, not returned.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.RLock()
	hasCred := s.snap.Credential != nil || s.pending != ""
	s.mu.RUnlock()

	if hasCred {
		// a rejected credential here is expected and must not start a session-expired cycle
		if err := s.api.Logout(gateway.WithRetried(ctx)); err != nil {
			s.log.Warn("remote logout failed", zap.Error(err))
		}
	}
	err := s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, "") })
	s.log.Info("signed out")
	return err
}

// Expire clears the session after the server rejected the credential.
// It is registered as the gateway's session-expired hook.
func (s *Store) Expire(ctx context.Context) {
	s.mu.RLock()
	had := s.snap.IsAuthenticated || s.pending != ""
	s.mu.RUnlock()
	if err := s.commit(ctx, true, func(sn *model.Snapshot) {
		msg := sn.Error
		s.clearLocked(sn, msg)
	}); err != nil {
		s.log.Warn("expire session", zap.Error(err))
	}
	if had {
		s.log.Info("session expired")
	}
}

// ClearError resets the error field.
func (s *Store) ClearError() {
	_ = s.commit(context.Background(), false, func(sn *model.Snapshot) { sn.Error = "" })
}

// SetUser replaces the principal. nil signs out locally; a principal without any
// credential is rejected with errs.ErrNoCredential.
func (s *Store) SetUser(ctx context.Context, u *model.Principal) error {
	if u == nil {
		return s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, "") })
	}
	s.mu.RLock()
	ok := s.snap.Credential != nil || s.pending != ""
	s.mu.RUnlock()
	if !ok {
		return errs.ErrNoCredential
	}
	user := *u
	user.Roles = append([]string(nil), u.Roles...)
	return s.commit(ctx, true, func(sn *model.Snapshot) {
		if sn.Credential == nil {
			if s.pending == "" {
				return
			}
			cred := model.CredentialFromToken(s.pending)
			sn.Credential = &cred
			s.pending = ""
		}
		s.gen++
		sn.User = &user
		sn.IsAuthenticated = true
	})
}

// SetToken replaces the credential. "" signs out locally. Without a principal the token is
// only stored and the session stays unauthenticated until CheckAuth validates it.
func (s *Store) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.commit(ctx, true, func(sn *model.Snapshot) { s.clearLocked(sn, "") })
	}
	cred := model.CredentialFromToken(token)
	s.mu.Lock()
	s.gen++
	if s.snap.User != nil {
		s.snap.Credential = &cred
		err := s.persistLocked(ctx)
		snap := clone(s.snap)
		s.mu.Unlock()
		s.publish(snap)
		return err
	}
	s.pending = token
	err := s.storage.Set(ctx, storage.KeyToken, []byte(token))
	snap := clone(s.snap)
	s.mu.Unlock()
	s.publish(snap)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// CheckAuth validates the stored credential and refreshes the principal.
//
// Without a credential it resets to signed-out and makes no call. Unless force is set,
// nothing happens on open (public or auth-only) routes; on protected routes IsLoading is
// raised for the duration. A forced check never raises IsLoading.
//
// A rejected credential clears the session and returns nil. Other failures keep the
// session, set Error and are returned. Results that lost a race with another identity
// change, or whose ctx is done, are discarded.
func (s *Store) CheckAuth(ctx context.Context, force bool) error {
	s.mu.Lock()
	if s.snap.Credential == nil && s.pending == "" {
		changed := s.snap.IsAuthenticated || s.snap.User != nil || s.snap.IsLoading
		s.snap.IsAuthenticated = false
		s.snap.User = nil
		s.snap.IsLoading = false
		snap := clone(s.snap)
		s.mu.Unlock()
		if changed {
			s.publish(snap)
		}
		return nil
	}
	if !force && s.routes.Classify(s.loc.Path()).Open() {
		s.mu.Unlock()
		return nil
	}
	raised := false
	if !force && !s.snap.IsLoading {
		s.snap.IsLoading = true
		raised = true
	}
	gen := s.gen
	key := flightKey(gen, s.snap, s.pending)
	snap := clone(s.snap)
	s.mu.Unlock()
	if raised {
		s.publish(snap)
	}

	v, err, _ := s.checks.Do(key, func() (any, error) {
		return s.api.CurrentUser(context.WithoutCancel(ctx))
	})

	s.mu.Lock()
	if s.gen != gen || ctx.Err() != nil {
		if raised && s.gen == gen {
			s.snap.IsLoading = false
		}
		snap := clone(s.snap)
		s.mu.Unlock()
		s.publish(snap)
		s.log.Debug("discard stale session check")
		return ctx.Err()
	}
	if raised {
		s.snap.IsLoading = false
	}

	switch {
	case err == nil:
		user := v.(model.Principal)
		if s.snap.Credential == nil {
			cred := model.CredentialFromToken(s.pending)
			s.snap.Credential = &cred
			s.pending = ""
		}
		s.snap.User = &user
		s.snap.IsAuthenticated = true
		s.snap.Error = ""
		perr := s.persistLocked(ctx)
		snap := clone(s.snap)
		s.mu.Unlock()
		s.publish(snap)
		if perr != nil {
			s.log.Warn("persist session", zap.Error(perr))
		}
		return perr

	case errors.Is(err, errs.ErrUnauthorized):
		s.clearLocked(&s.snap, "")
		perr := s.persistLocked(ctx)
		snap := clone(s.snap)
		s.mu.Unlock()
		s.publish(snap)
		s.log.Info("stored credential rejected")
		return perr

	default:
		s.snap.Error = MsgCheckFailed
		snap := clone(s.snap)
		s.mu.Unlock()
		s.publish(snap)
		return fmt.Errorf("check auth: %w", err)
	}
}

// flightKey scopes a shared validation to one identity generation and credential,
// so a check started after a sign-in never joins a request sent with the previous token.
func flightKey(gen uint64, sn model.Snapshot, pending string) string {
	tok := pending
	if sn.Credential != nil {
		tok = sn.Credential.Token
	}
	return fmt.Sprintf("%d:%s", gen, tok)
}

func clone(s model.Snapshot) model.Snapshot {
	if s.Credential != nil {
		c := *s.Credential
		s.Credential = &c
	}
	if s.User != nil {
		u := *s.User
		u.Roles = append([]string(nil), s.User.Roles...)
		s.User = &u
	}
	return s
}
