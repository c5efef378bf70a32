package repository

import (
	"context"
	"io"
	"time"

	"github.com/vedran77/dermacheck/internal/domain"
)

// Document is a schemaless record in a DocumentStore collection.
type Document map[string]any

// IdentityProvider owns credential state.
type IdentityProvider interface {
	CurrentIdentity() (domain.Identity, bool)
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password string) error
	SignOut()
}

// DocumentStore is a keyed document database.
type DocumentStore interface {
	// Get returns nil, nil when the document does not exist.
	Get(ctx context.Context, collection, key string) (Document, error)
	// Set creates or replaces the whole document.
	Set(ctx context.Context, collection, key string, fields Document) error
	// Update merges the given keys into an existing document. It fails when
	// the document does not exist.
	Update(ctx context.Context, collection, key string, changed Document) error
	// Count returns the number of documents whose field equals value.
	Count(ctx context.Context, collection, field, value string) (int, error)
}

// BlobStore keeps binary objects under caller-chosen keys.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) error
	// URL resolves a publicly fetchable address for key.
	URL(ctx context.Context, key string) (string, error)
}

// AccountRepository persists identity provider accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// TokenStore persists the current session token between restarts.
type TokenStore interface {
	Save(ctx context.Context, token string, ttl time.Duration) error
	// Load returns "" when nothing is stored.
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
