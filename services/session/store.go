// Package session holds the process-wide current Principal of an interactive
// client and broadcasts its changes.
package session

import (
	"context"
	"sync"

	"github.com/amoreldmija/hospital/models"
	"go.uber.org/zap"
)

// Listener is notified with the new principal whenever it changes.
type Listener func(p *models.Principal)

// Authenticator is the authentication provider as seen by a client.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (*models.Credentials, error)
	SignUp(ctx context.Context, reg models.Registration) (*models.Credentials, error)
	SignOut(ctx context.Context, token string) error
}

// Resolver maps a session token to a principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.Principal, error)
}

// TokenSource yields the ambient session token, if any.
type TokenSource interface {
	CurrentSessionToken(ctx context.Context) (string, error)
}

type subscription struct {
	listener Listener
}

// Store holds the current principal and its session token.
//
// Every change goes through a generation counter: a resolution started
// before a newer one completed is discarded. Listeners run synchronously in
// registration order on the goroutine that made the change. A change made
// while listeners are running is queued and delivered after the current pass.
type Store struct {
	auth     Authenticator
	resolver Resolver
	logger   *zap.Logger

	mu          sync.Mutex
	current     *models.Principal
	token       string
	subs        []*subscription
	issued      uint64
	applied     uint64
	dispatching bool
	pending     []*models.Principal
}

// NewStore creates a Store holding the anonymous principal.
func NewStore(auth Authenticator, resolver Resolver, logger *zap.Logger) *Store {
	return &Store{
		auth:     auth,
		resolver: resolver,
		logger:   logger,
	}
}

// Current returns the principal held right now.
func (s *Store) Current() *models.Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Token returns the session token backing the current principal.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers l. The returned function removes it and may be called
// more than once.
func (s *Store) Subscribe(l Listener) func() {
	sub := &subscription{listener: l}

	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.subs {
				if existing == sub {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Init resolves the ambient session. A missing or rejected token leaves the
// store anonymous.
func (s *Store) Init(ctx context.Context, source TokenSource) error {
	gen := s.begin()

	token, err := source.CurrentSessionToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		s.apply(gen, models.Anonymous, "")
		return nil
	}

	p, err := s.resolver.Resolve(ctx, token)
	if err != nil {
		return err
	}
	if p.IsAnonymous() {
		token = ""
	}
	s.apply(gen, p, token)
	return nil
}

// Refresh re-resolves the current token, picking up profile and role changes.
func (s *Store) Refresh(ctx context.Context) error {
	gen := s.begin()
	token := s.Token()

	p := models.Anonymous
	if token != "" {
		var err error
		if p, err = s.resolver.Resolve(ctx, token); err != nil {
			return err
		}
	}
	if p.IsAnonymous() {
		token = ""
	}
	s.apply(gen, p, token)
	return nil
}

// SignIn authenticates and resolves the new principal. An authenticated
// account without a usable profile leaves the store anonymous.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Principal, error) {
	gen := s.begin()

	creds, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(ctx, gen, creds)
}

// SignUp registers a new account and signs it in.
func (s *Store) SignUp(ctx context.Context, reg models.Registration) (*models.Principal, error) {
	gen := s.begin()

	creds, err := s.auth.SignUp(ctx, reg)
	if err != nil {
		return nil, err
	}
	return s.adopt(ctx, gen, creds)
}

// SignOut ends the session. The store is reset to anonymous even when the
// provider cannot be reached; the provider error is still returned.
func (s *Store) SignOut(ctx context.Context) error {
	token := s.Token()
	gen := s.begin()
	s.apply(gen, models.Anonymous, "")

	if token == "" {
		return nil
	}
	if err := s.auth.SignOut(ctx, token); err != nil {
		s.logger.Warn("sign-out not confirmed by provider", zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) adopt(ctx context.Context, gen uint64, creds *models.Credentials) (*models.Principal, error) {
	p, err := s.resolver.Resolve(ctx, creds.Token)
	if err != nil {
		return nil, err
	}
	token := creds.Token
	if p.IsAnonymous() {
		s.logger.Warn("signed in account resolved to anonymous", zap.String("uid", creds.UID))
		token = ""
	}
	if !s.apply(gen, p, token) {
		return s.Current(), nil
	}
	return p, nil
}

// begin issues a new generation.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// apply installs p if gen is newer than the last applied generation and
// notifies listeners when the principal changed. It reports whether gen was
// applied.
func (s *Store) apply(gen uint64, p *models.Principal, token string) bool {
	s.mu.Lock()
	if gen <= s.applied {
		s.mu.Unlock()
		s.logger.Debug("discarding stale session resolution",
			zap.Uint64("generation", gen))
		return false
	}
	s.applied = gen
	s.token = token
	if s.current == p {
		s.mu.Unlock()
		return true
	}
	s.current = p
	s.pending = append(s.pending, p)
	if s.dispatching {
		s.mu.Unlock()
		return true
	}
	s.dispatching = true
	s.mu.Unlock()

	s.dispatch()
	return true
}

// dispatch drains pending notifications. Each pass runs against the
// subscriptions registered when the pass began.
func (s *Store) dispatch() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.dispatching = false
			s.mu.Unlock()
			return
		}
		p := s.pending[0]
		s.pending = s.pending[1:]
		subs := make([]*subscription, len(s.subs))
		copy(subs, s.subs)
		s.mu.Unlock()

		s.logger.Debug("session changed", zap.Stringer("principal", p))
		for _, sub := range subs {
			sub.listener(p)
		}
	}
}
