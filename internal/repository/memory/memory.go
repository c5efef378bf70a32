// Package memory provides in-process implementations of the repository
// interfaces. Documents go through a JSON round trip so they come back in the
// same shape as jsonb rows from Postgres.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/repository"
)

type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string][]byte)}
}

func docKey(collection, key string) string {
	return collection + "/" + key
}

func (s *DocumentStore) Get(_ context.Context, collection, key string) (repository.Document, error) {
	s.mu.RLock()
	raw, ok := s.docs[docKey(collection, key)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decode(raw)
}

func (s *DocumentStore) Set(_ context.Context, collection, key string, fields repository.Document) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[docKey(collection, key)] = raw
	s.mu.Unlock()
	return nil
}

func (s *DocumentStore) Update(_ context.Context, collection, key string, changed repository.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.docs[docKey(collection, key)]
	if !ok {
		return fmt.Errorf("no document to update: %s/%s", collection, key)
	}
	doc, err := decode(raw)
	if err != nil {
		return err
	}
	for k, v := range changed {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.docs[docKey(collection, key)] = merged
	return nil
}

func (s *DocumentStore) Count(_ context.Context, collection, field, value string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := collection + "/"
	n := 0
	for k, raw := range s.docs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return 0, err
		}
		if v, ok := doc[field].(string); ok && v == value {
			n++
		}
	}
	return n, nil
}

func decode(raw []byte) (repository.Document, error) {
	var doc repository.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// BlobStore keeps blobs in memory and hands out URLs under baseURL.
type BlobStore struct {
	mu      sync.RWMutex
	baseURL string
	blobs   map[string][]byte
}

func NewBlobStore(baseURL string) *BlobStore {
	return &BlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string][]byte),
	}
}

func (s *BlobStore) Put(ctx context.Context, key string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.blobs[key] = buf.Bytes()
	s.mu.Unlock()
	return nil
}

func (s *BlobStore) URL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	_, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("object %q does not exist", key)
	}
	return s.baseURL + "/" + key, nil
}

// Len reports how many blobs are stored.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return domain.ErrEmailTaken
		}
	}
	c := *account
	r.accounts[account.ID.String()] = &c
	return nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if strings.EqualFold(a.Email, email) {
			c := *a
			return &c, nil
		}
	}
	return nil, nil
}

type TokenStore struct {
	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

func (s *TokenStore) Save(_ context.Context, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expires = time.Time{}
	if ttl > 0 {
		s.expires = time.Now().Add(ttl)
	}
	return nil
}

func (s *TokenStore) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.expires.IsZero() && time.Now().After(s.expires) {
		s.token = ""
	}
	return s.token, nil
}

func (s *TokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

var (
	_ repository.DocumentStore     = (*DocumentStore)(nil)
	_ repository.BlobStore         = (*BlobStore)(nil)
	_ repository.AccountRepository = (*AccountRepository)(nil)
	_ repository.TokenStore        = (*TokenStore)(nil)
)
