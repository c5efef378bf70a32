// Package identity is the credential provider behind the profile repository.
// Accounts live in an AccountRepository, passwords are argon2id hashed and
// the signed-in session is an HS256 token kept in a TokenStore so it
// survives restarts.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/repository"
)

// DefaultSessionTTL is how long a session survives without a new sign-in.
const DefaultSessionTTL = 30 * 24 * time.Hour

type Provider struct {
	accounts repository.AccountRepository
	tokens   repository.TokenStore
	secret   []byte
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current domain.Identity
}

func NewProvider(
	accounts repository.AccountRepository,
	tokens repository.TokenStore,
	secret string,
	ttl time.Duration,
	logger *zap.Logger,
) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Provider{
		accounts: accounts,
		tokens:   tokens,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// CurrentIdentity returns the signed-in identity, if any.
func (p *Provider) CurrentIdentity() (domain.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current != ""
}

func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	account, err := p.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if account == nil || !verifyPassword(password, account.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	return p.startSession(ctx, account)
}

// SignUp creates an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)

	existing, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrEmailTaken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := p.now()
	account := &domain.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.accounts.Create(ctx, account); err != nil {
		return err
	}

	p.logger.Info("account created", zap.String("account_id", account.ID.String()))
	return p.startSession(ctx, account)
}

// SignOut forgets the current identity and its stored token.
func (p *Provider) SignOut() {
	p.mu.Lock()
	p.current = ""
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.tokens.Clear(ctx); err != nil {
		p.logger.Warn("could not clear session token", zap.Error(err))
	}
}

// Restore picks up a session saved by an earlier process. A missing, expired
// or tampered token leaves the provider signed out.
func (p *Provider) Restore(ctx context.Context) error {
	raw, err := p.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading session token: %w", err)
	}
	if raw == "" {
		return nil
	}

	subject, err := p.parseToken(raw)
	if err != nil {
		p.logger.Info("discarding stored session", zap.Error(err))
		return p.tokens.Clear(ctx)
	}

	account, err := p.accounts.GetByID(ctx, subject)
	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}
	if account == nil {
		p.logger.Info("stored session refers to a missing account", zap.String("account_id", subject))
		return p.tokens.Clear(ctx)
	}

	p.mu.Lock()
	p.current = account.Identity()
	p.mu.Unlock()
	return nil
}

func (p *Provider) startSession(ctx context.Context, account *domain.Account) error {
	token, err := p.generateToken(account.ID.String())
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	if err := p.tokens.Save(ctx, token, p.ttl); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}

	p.mu.Lock()
	p.current = account.Identity()
	p.mu.Unlock()
	return nil
}

var _ repository.IdentityProvider = (*Provider)(nil)
