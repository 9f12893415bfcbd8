package session

import (
	"context"
	"errors"
	"sync"

	"digiclassroom/session/internal/model"
	"digiclassroom/session/internal/tokenstore"
)

var (
	// ErrSuperseded marks an attempt whose result was discarded because a
	// newer login, signup or logout claimed the session first.
	ErrSuperseded = errors.New("superseded by a newer session operation")

	// ErrSignedOut is returned by operations that need a signed-in user.
	ErrSignedOut = errors.New("not signed in")
)

// Resolver is the capability set the controller dispatches to, one
// role-scoped exchange per call. *api.Client implements it.
type Resolver interface {
	Login(ctx context.Context, role model.Role, creds model.Credentials) (model.User, tokenstore.Record, error)
	Signup(ctx context.Context, payload model.SignupPayload) (model.User, tokenstore.Record, error)
	Me(ctx context.Context, role model.Role) (model.User, error)
	ChangePassword(ctx context.Context, role model.Role, oldPassword, newPassword string) error
}

type Snapshot struct {
	User    model.User
	Loading bool
}

// Controller owns the in-memory session and all writes to the token
// store. Every screen reads identity through it; nothing else may cache
// role decisions.
//
// Each bootstrap/login/signup claims a generation; logout and newer
// attempts advance it. A call that resolves under a stale generation
// publishes nothing and writes nothing, so a superseded request can never
// overwrite an authoritative result or re-authenticate after logout.
type Controller struct {
	resolver Resolver
	tokens   tokenstore.Store

	mu      sync.Mutex
	user    model.User
	loading int
	gen     uint64
	subs    []chan Snapshot
}

func New(resolver Resolver, tokens tokenstore.Store) *Controller {
	return &Controller{resolver: resolver, tokens: tokens}
}

// Current returns the signed-in user, or false when unauthenticated.
func (c *Controller) Current() (model.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user, !c.user.IsZero()
}

// Loading reports whether a bootstrap, login or signup is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading > 0
}

// Subscribe returns a channel carrying the latest snapshot after every
// state change. Stale snapshots are coalesced; the current one is
// delivered immediately.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	ch <- c.snapshotLocked()
	c.mu.Unlock()
	return ch
}

// Bootstrap resolves a previously stored session. A stored record is
// validated against the "me" endpoint of its recorded role; records from
// before roles were stored fall back to the admin resolver. Any failure
// clears the store and leaves the session unauthenticated with no signal,
// indistinguishable from never having logged in.
func (c *Controller) Bootstrap(ctx context.Context) {
	gen := c.begin()
	defer c.end()

	rec, err := c.tokens.Load(ctx)
	if err != nil {
		bootstrapsTotal.WithLabelValues(outcomeSignedOut).Inc()
		return
	}

	role := rec.Role
	if !role.Valid() {
		role = model.RoleAdmin
	}

	user, err := c.resolver.Me(ctx, role)
	if err != nil {
		c.mu.Lock()
		if gen == c.gen {
			_ = c.tokens.Clear(ctx)
		}
		c.mu.Unlock()
		bootstrapsTotal.WithLabelValues(outcomeFailure).Inc()
		return
	}

	if err := c.commitBootstrap(ctx, gen, user, role); err != nil {
		bootstrapsTotal.WithLabelValues(commitOutcome(err)).Inc()
		return
	}
	bootstrapsTotal.WithLabelValues(outcomeSuccess).Inc()
}

// Login dispatches to the resolver matching role. On failure neither the
// in-memory user nor the token store changes.
func (c *Controller) Login(ctx context.Context, email, password string, role model.Role) error {
	gen := c.begin()
	defer c.end()

	user, rec, err := c.resolver.Login(ctx, role, model.Credentials{Email: email, Password: password})
	if err != nil {
		loginsTotal.WithLabelValues(string(role), outcomeFailure).Inc()
		return err
	}
	if err := c.commit(ctx, gen, user, rec); err != nil {
		loginsTotal.WithLabelValues(string(role), commitOutcome(err)).Inc()
		return err
	}
	loginsTotal.WithLabelValues(string(role), outcomeSuccess).Inc()
	return nil
}

func commitOutcome(err error) string {
	if errors.Is(err, ErrSuperseded) {
		return outcomeSuperseded
	}
	return outcomeFailure
}

func (c *Controller) AdminLogin(ctx context.Context, email, password string) error {
	return c.Login(ctx, email, password, model.RoleAdmin)
}

func (c *Controller) TeacherLogin(ctx context.Context, email, password string) error {
	return c.Login(ctx, email, password, model.RoleTeacher)
}

func (c *Controller) StudentLogin(ctx context.Context, email, password string) error {
	return c.Login(ctx, email, password, model.RoleStudent)
}

// AdminSignup registers a new admin and signs them in, the parallel path
// to Login for freshly created institutions.
func (c *Controller) AdminSignup(ctx context.Context, payload model.SignupPayload) error {
	gen := c.begin()
	defer c.end()

	user, rec, err := c.resolver.Signup(ctx, payload)
	if err != nil {
		loginsTotal.WithLabelValues(string(model.RoleAdmin), outcomeFailure).Inc()
		return err
	}
	if err := c.commit(ctx, gen, user, rec); err != nil {
		loginsTotal.WithLabelValues(string(model.RoleAdmin), commitOutcome(err)).Inc()
		return err
	}
	loginsTotal.WithLabelValues(string(model.RoleAdmin), outcomeSuccess).Inc()
	return nil
}

// Logout clears the in-memory user and the token store unconditionally
// and advances the generation so in-flight attempts cannot land. No
// network call is made. Idempotent.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.user = model.User{}
	_ = c.tokens.Clear(ctx)
	c.notifyLocked()
	c.mu.Unlock()
	logoutsTotal.Inc()
}

// ChangePassword runs against the signed-in role.
func (c *Controller) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	user, ok := c.Current()
	if !ok {
		return ErrSignedOut
	}
	return c.resolver.ChangePassword(ctx, user.Role, oldPassword, newPassword)
}

// Reload re-fetches the signed-in profile, for screens that just edited it.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.user.IsZero() {
		c.mu.Unlock()
		return ErrSignedOut
	}
	role := c.user.Role
	gen := c.gen
	c.mu.Unlock()

	user, err := c.resolver.Me(ctx, role)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrSuperseded
	}
	c.user = user
	c.notifyLocked()
	return nil
}

// begin claims a new generation and raises the loading flag. Claiming
// invalidates every older in-flight attempt.
func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.loading++
	c.notifyLocked()
	return c.gen
}

func (c *Controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	c.notifyLocked()
}

// commit persists the record and publishes the user, provided gen is
// still current. The store write happens under the lock so a newer
// attempt cannot interleave between the check and the write.
func (c *Controller) commit(ctx context.Context, gen uint64, user model.User, rec tokenstore.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrSuperseded
	}
	if err := c.tokens.Save(ctx, rec); err != nil {
		return err
	}
	c.user = user
	c.notifyLocked()
	return nil
}

// commitBootstrap publishes the bootstrapped user, provided gen is still
// current. Unlike commit it does not carry a record of its own: the
// profile fetch may have rotated the pair through the refresh
// interceptor, so the store is re-read under the lock and only the
// resolved role is written back when it differs.
func (c *Controller) commitBootstrap(ctx context.Context, gen uint64, user model.User, role model.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return ErrSuperseded
	}
	rec, err := c.tokens.Load(ctx)
	if err != nil {
		return err
	}
	if rec.Role != role {
		rec.Role = role
		if err := c.tokens.Save(ctx, rec); err != nil {
			return err
		}
	}
	c.user = user
	c.notifyLocked()
	return nil
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{User: c.user, Loading: c.loading > 0}
}

func (c *Controller) notifyLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
