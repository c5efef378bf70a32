package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/repository"
	"github.com/vedran77/dermacheck/internal/repository/memory"
)

func newTestProvider(t *testing.T) (*Provider, *memory.AccountRepository, *memory.TokenStore) {
	t.Helper()
	accounts := memory.NewAccountRepository()
	tokens := memory.NewTokenStore()
	return NewProvider(accounts, tokens, "test-secret", time.Hour, nil), accounts, tokens
}

func TestProvider_ImplementsInterface(t *testing.T) {
	var _ repository.IdentityProvider = (*Provider)(nil)
}

func TestSignUp_SignsIn(t *testing.T) {
	p, accounts, tokens := newTestProvider(t)
	ctx := context.Background()

	if err := p.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	id, ok := p.CurrentIdentity()
	if !ok {
		t.Fatal("expected signed in")
	}
	account, _ := accounts.GetByEmail(ctx, "a@x.com")
	if account == nil || account.Identity() != id {
		t.Errorf("identity %q does not match account %+v", id, account)
	}
	if account.PasswordHash == "pw1" || !strings.Contains(account.PasswordHash, ":") {
		t.Errorf("password not hashed: %q", account.PasswordHash)
	}
	if tok, _ := tokens.Load(ctx); tok == "" {
		t.Error("expected a stored token")
	}
}

func TestSignUp_EmailTaken(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	if err := p.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}
	err := p.SignUp(ctx, "A@x.com", "pw2")
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestSignIn(t *testing.T) {
	p, _, _ := newTestProvider(t)
	ctx := context.Background()

	if err := p.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}
	want, _ := p.CurrentIdentity()
	p.SignOut()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"correct", "a@x.com", "pw1", nil},
		{"wrong password", "a@x.com", "pw2", domain.ErrInvalidCredentials},
		{"unknown email", "b@x.com", "pw1", domain.ErrInvalidCredentials},
		{"empty password", "a@x.com", "", domain.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.SignOut()
			err := p.SignIn(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			got, ok := p.CurrentIdentity()
			if tt.wantErr == nil && got != want {
				t.Errorf("identity = %q, want %q", got, want)
			}
			if tt.wantErr != nil && ok {
				t.Error("should stay signed out")
			}
		})
	}
}

func TestSignOut_ClearsToken(t *testing.T) {
	p, _, tokens := newTestProvider(t)
	ctx := context.Background()

	if err := p.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}
	p.SignOut()

	if _, ok := p.CurrentIdentity(); ok {
		t.Error("still signed in")
	}
	if tok, _ := tokens.Load(ctx); tok != "" {
		t.Error("token not cleared")
	}
}

func TestRestore(t *testing.T) {
	accounts := memory.NewAccountRepository()
	tokens := memory.NewTokenStore()
	ctx := context.Background()

	first := NewProvider(accounts, tokens, "s3cret", time.Hour, nil)
	if err := first.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}
	want, _ := first.CurrentIdentity()

	second := NewProvider(accounts, tokens, "s3cret", time.Hour, nil)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, ok := second.CurrentIdentity(); !ok || got != want {
		t.Errorf("identity = %q, want %q", got, want)
	}
}

func TestRestore_RejectsForeignToken(t *testing.T) {
	accounts := memory.NewAccountRepository()
	tokens := memory.NewTokenStore()
	ctx := context.Background()

	first := NewProvider(accounts, tokens, "one", time.Hour, nil)
	if err := first.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}

	second := NewProvider(accounts, tokens, "two", time.Hour, nil)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := second.CurrentIdentity(); ok {
		t.Error("token signed with another secret was accepted")
	}
	if tok, _ := tokens.Load(ctx); tok != "" {
		t.Error("invalid token should be cleared")
	}
}

func TestRestore_ExpiredToken(t *testing.T) {
	p, _, tokens := newTestProvider(t)
	ctx := context.Background()

	if err := p.SignUp(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatal(err)
	}

	later := NewProvider(memory.NewAccountRepository(), tokens, "test-secret", time.Hour, nil)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := later.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := later.CurrentIdentity(); ok {
		t.Error("expired token was accepted")
	}
}

func TestRestore_NothingStored(t *testing.T) {
	p, _, _ := newTestProvider(t)
	if err := p.Restore(context.Background()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if _, ok := p.CurrentIdentity(); ok {
		t.Error("should be signed out")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := hashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if !verifyPassword("correct horse", hash) {
		t.Error("password did not verify")
	}
	if verifyPassword("wrong", hash) {
		t.Error("wrong password verified")
	}
	if verifyPassword("correct horse", "garbage") {
		t.Error("malformed hash verified")
	}

	other, _ := hashPassword("correct horse")
	if other == hash {
		t.Error("salt not random")
	}
}
