package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
)

// AccountStore keeps authentication accounts and their sessions in memory.
// It implements both AccountRepository and SessionRepository so that deleting
// an account can drop its sessions the way the database cascade does.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	byEmail  map[string]string
	sessions map[string]models.AuthSession
}

// NewAccountStore creates an empty store
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]models.Account),
		byEmail:  make(map[string]string),
		sessions: make(map[string]models.AuthSession),
	}
}

var (
	_ repositories.AccountRepository = (*AccountStore)(nil)
	_ repositories.SessionRepository = sessionView{}
)

// Accounts returns the store as an AccountRepository
func (s *AccountStore) Accounts() repositories.AccountRepository { return s }

// Sessions returns the session side of the store
func (s *AccountStore) Sessions() repositories.SessionRepository { return sessionView{s} }

// Create inserts an account
func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(account.Email)
	if _, taken := s.byEmail[email]; taken {
		return fmt.Errorf("email %s: %w", account.Email, repositories.ErrDuplicate)
	}
	if _, taken := s.accounts[account.UID]; taken {
		return fmt.Errorf("uid %s: %w", account.UID, repositories.ErrDuplicate)
	}

	s.accounts[account.UID] = *account
	s.byEmail[email] = account.UID
	return nil
}

// GetByEmail retrieves an account by email, case-insensitively
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	uid, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", email, repositories.ErrNotFound)
	}
	account := s.accounts[uid]
	return &account, nil
}

// GetByUID retrieves an account by uid
func (s *AccountStore) GetByUID(ctx context.Context, uid string) (*models.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[uid]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", uid, repositories.ErrNotFound)
	}
	return &account, nil
}

// Delete removes an account and its sessions
func (s *AccountStore) Delete(ctx context.Context, uid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[uid]
	if !ok {
		return fmt.Errorf("account %s: %w", uid, repositories.ErrNotFound)
	}
	delete(s.accounts, uid)
	delete(s.byEmail, strings.ToLower(account.Email))
	s.deleteSessionsLocked(uid)
	return nil
}

func (s *AccountStore) deleteSessionsLocked(uid string) {
	for id, sess := range s.sessions {
		if sess.UID == uid {
			delete(s.sessions, id)
		}
	}
}

// sessionView exposes the session methods under the SessionRepository names,
// which clash with the account ones.
type sessionView struct {
	s *AccountStore
}

func (v sessionView) Create(ctx context.Context, session *models.AuthSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, ok := v.s.accounts[session.UID]; !ok {
		return fmt.Errorf("account %s: %w", session.UID, repositories.ErrNotFound)
	}
	v.s.sessions[session.ID] = *session
	return nil
}

func (v sessionView) Get(ctx context.Context, id string) (*models.AuthSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	sess, ok := v.s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, repositories.ErrNotFound)
	}
	return &sess, nil
}

func (v sessionView) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	delete(v.s.sessions, id)
	return nil
}

func (v sessionView) DeleteByUID(ctx context.Context, uid string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.deleteSessionsLocked(uid)
	return nil
}

func (v sessionView) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var n int64
	for id, sess := range v.s.sessions {
		if sess.ExpiresAt.Before(before) {
			delete(v.s.sessions, id)
			n++
		}
	}
	return n, nil
}
