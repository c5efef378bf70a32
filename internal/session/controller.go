// Package session owns the UI-observable session state and turns user
// intents into profile repository calls.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/metrics"
	"github.com/vedran77/dermacheck/internal/notify"
)

// ErrSuperseded completes intents that were still queued when the user
// logged out.
var ErrSuperseded = errors.New("Cancelled by logout")

const (
	msgProfileLoaded = "User data retrieved successfully"
	msgLoggedOut     = "Logged out"
	msgSignupFailed  = "Signup failed"
)

// ProfileService is the repository the controller delegates to.
type ProfileService interface {
	UsernameExists(ctx context.Context, username string) bool
	CreateAccount(ctx context.Context, email, password, username string) error
	Authenticate(ctx context.Context, email, password string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, u domain.ProfileUpdate) error
	FetchProfile(ctx context.Context, id domain.Identity) (*domain.Profile, error)
	UploadAvatar(ctx context.Context, image io.Reader, onProgress func(bool)) (string, error)
}

// IdentitySource is the part of the identity provider the controller needs
// directly.
type IdentitySource interface {
	CurrentIdentity() (domain.Identity, bool)
	SignOut()
}

// Result is the single completion value of an intent.
type Result struct {
	Profile *domain.Profile
	URL     string
	Err     error
}

type Option func(*Controller)

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = r }
}

// WithOpTimeout bounds every repository call made for one intent.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Controller) { c.opTimeout = d }
}

type op struct {
	name     string
	epoch    uint64
	blocking bool
	released bool
	run      func(ctx context.Context, o *op) Result
	result   chan Result
}

// note is a notification to publish as part of a state transition.
type note struct {
	kind    domain.NotificationKind
	message string
}

// Controller is the single source of truth for session state. Intents are
// queued and executed one at a time by a worker goroutine; every state change
// builds a new snapshot and swaps it in atomically.
type Controller struct {
	repo      ProfileService
	idp       IdentitySource
	slot      *notify.Slot
	logger    *zap.Logger
	metrics   metrics.Recorder
	opTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards every field below and serializes snapshot publication.
	mu       sync.Mutex
	state    atomic.Pointer[domain.SessionState]
	busy     int
	epoch    uint64
	closed   bool
	queue    []*op
	watchers map[chan domain.SessionState]struct{}

	wake chan struct{}
	done chan struct{}
}

// New builds a controller and starts its worker. If the identity provider
// already has a signed-in identity, the profile is loaded right away.
func New(repo ProfileService, idp IdentitySource, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		repo:      repo,
		idp:       idp,
		slot:      notify.NewSlot(),
		logger:    zap.NewNop(),
		metrics:   metrics.Nop{},
		opTimeout: 30 * time.Second,
		ctx:       ctx,
		cancel:    cancel,
		watchers:  make(map[chan domain.SessionState]struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	id, signedIn := idp.CurrentIdentity()
	c.state.Store(&domain.SessionState{SignedIn: signedIn})

	if signedIn {
		c.enqueue(&op{name: "restore", blocking: true, run: c.restore(id)})
	}

	go c.work()
	return c
}

// State returns the latest snapshot.
func (c *Controller) State() domain.SessionState {
	return *c.state.Load()
}

// Notifications returns the one-shot notification slot.
func (c *Controller) Notifications() *notify.Slot {
	return c.slot
}

// Watch delivers the current snapshot and then every later one until ctx is
// done. Slow readers only see the latest snapshot.
func (c *Controller) Watch(ctx context.Context) <-chan domain.SessionState {
	ch := make(chan domain.SessionState, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch
	}
	ch <- *c.state.Load()
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.ctx.Done():
		}
		c.mu.Lock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}()
	return ch
}

// Close stops the worker. Queued intents complete with domain.ErrClosed and
// completions that arrive afterwards no longer touch the state.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, o := range pending {
		o.result <- Result{Err: domain.ErrClosed}
	}
	c.cancel()
	<-c.done

	c.mu.Lock()
	for ch := range c.watchers {
		delete(c.watchers, ch)
		close(ch)
	}
	c.mu.Unlock()
}

// Signup validates locally, then checks the username and creates the account.
func (c *Controller) Signup(username, email, password string) <-chan Result {
	if username == "" || email == "" || password == "" {
		err := domain.NewValidationError(domain.MsgFillAllFields)
		c.mu.Lock()
		c.commitLocked(c.epoch, nil, &note{domain.NotificationError, err.Message})
		c.mu.Unlock()
		return completed(Result{Err: err})
	}
	return c.enqueue(&op{name: "signup", blocking: true, run: c.signup(username, email, password)})
}

// Login authenticates. Empty fields are left for the repository to reject.
func (c *Controller) Login(email, password string) <-chan Result {
	return c.enqueue(&op{name: "login", blocking: true, run: c.login(email, password)})
}

// Logout signs out immediately. Intents still queued are dropped and any
// in-flight completion is discarded.
func (c *Controller) Logout() {
	// The epoch moves before the provider signs out, so a sign-in landing in
	// between fails its commit and is undone by discardSignIn.
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	c.idp.SignOut()

	c.mu.Lock()
	c.commitLocked(epoch, func(s *domain.SessionState) {
		s.SignedIn = false
		s.Profile = nil
	}, &note{domain.NotificationInfo, msgLoggedOut})
	c.mu.Unlock()

	c.logger.Info("logged out")
}

// UpdateProfile writes name, username and bio. It neither notifies nor
// refreshes the cached profile.
func (c *Controller) UpdateProfile(name, username, bio string) <-chan Result {
	return c.ApplyProfileUpdate(domain.ProfileUpdate{
		Name:     &name,
		Username: &username,
		Bio:      &bio,
	})
}

// ApplyProfileUpdate is UpdateProfile for a partial set of fields.
func (c *Controller) ApplyProfileUpdate(u domain.ProfileUpdate) <-chan Result {
	return c.enqueue(&op{name: "update_profile", run: func(ctx context.Context, o *op) Result {
		err := c.repo.UpsertProfile(ctx, u)
		if err != nil {
			c.logger.Warn("profile update failed", zap.Error(err))
		}
		return Result{Err: err}
	}})
}

// UploadAvatar stores a new avatar image. Loading follows upload progress.
// A successful upload does not change the cached profile.
func (c *Controller) UploadAvatar(image io.Reader) <-chan Result {
	return c.enqueue(&op{name: "upload_avatar", run: func(ctx context.Context, o *op) Result {
		url, err := c.repo.UploadAvatar(ctx, image, func(inProgress bool) {
			c.adjustBusy(inProgress)
		})
		if err != nil {
			c.commit(o, nil, failure(err, ""))
			return Result{Err: err}
		}
		return Result{URL: url}
	}})
}

func (c *Controller) restore(id domain.Identity) func(ctx context.Context, o *op) Result {
	return func(ctx context.Context, o *op) Result {
		p, err := c.repo.FetchProfile(ctx, id)
		if err == nil && p == nil {
			err = domain.ErrUnknown
		}
		if err != nil {
			c.logger.Warn("could not restore profile", zap.String("user_id", string(id)), zap.Error(err))
			c.commit(o, nil, failure(err, ""))
			return Result{Err: err}
		}
		c.commit(o, func(s *domain.SessionState) {
			s.Profile = p.Clone()
		}, &note{domain.NotificationInfo, msgProfileLoaded})
		return Result{Profile: p}
	}
}

func (c *Controller) signup(username, email, password string) func(ctx context.Context, o *op) Result {
	return func(ctx context.Context, o *op) Result {
		if c.repo.UsernameExists(ctx, username) {
			c.commit(o, nil, failure(domain.ErrUsernameTaken, ""))
			return Result{Err: domain.ErrUsernameTaken}
		}

		if err := c.repo.CreateAccount(ctx, email, password, username); err != nil {
			c.commit(o, nil, failure(err, msgSignupFailed))
			return Result{Err: err}
		}

		if !c.commit(o, func(s *domain.SessionState) { s.SignedIn = true }, nil) {
			c.discardSignIn(o)
		}
		c.logger.Info("account created", zap.String("username", username))
		return Result{}
	}
}

func (c *Controller) login(email, password string) func(ctx context.Context, o *op) Result {
	return func(ctx context.Context, o *op) Result {
		p, err := c.repo.Authenticate(ctx, email, password)
		if err != nil {
			c.commit(o, nil, failure(err, ""))
			return Result{Err: err}
		}

		applied := c.commit(o, func(s *domain.SessionState) {
			s.SignedIn = true
			s.Profile = p.Clone()
		}, nil)
		if !applied {
			c.discardSignIn(o)
		}
		return Result{Profile: p}
	}
}

// discardSignIn undoes a sign-in that completed for a session the user has
// already left.
func (c *Controller) discardSignIn(o *op) {
	c.logger.Warn("discarding sign-in from a stale session", zap.String("intent", o.name))
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if !closed {
		c.idp.SignOut()
	}
}

func failure(err error, fallback string) *note {
	return &note{domain.NotificationError, domain.Message(err, fallback)}
}

func completed(r Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- r
	return ch
}
