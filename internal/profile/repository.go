// Package profile reads and writes profile documents and avatar blobs.
package profile

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/repository"
)

var (
	errNoIdentity   = errors.New("UID not found")
	errFetchProfile = errors.New("Failed to fetch user data")
)

// Repository mediates profile operations against the identity provider, the
// document store and the blob store. Failures come back as errors; nothing
// panics across the call boundary.
type Repository struct {
	idp    repository.IdentityProvider
	docs   repository.DocumentStore
	blobs  repository.BlobStore
	logger *zap.Logger
	newKey func() string
}

func NewRepository(
	idp repository.IdentityProvider,
	docs repository.DocumentStore,
	blobs repository.BlobStore,
	logger *zap.Logger,
) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		idp:    idp,
		docs:   docs,
		blobs:  blobs,
		logger: logger,
		newKey: func() string { return "images/" + uuid.NewString() },
	}
}

// UsernameExists reports whether a profile already uses username. A failing
// lookup counts as "does not exist" so signup is not blocked.
func (r *Repository) UsernameExists(ctx context.Context, username string) bool {
	n, err := r.docs.Count(ctx, domain.ProfilesCollection, domain.FieldUsername, username)
	if err != nil {
		r.logger.Warn("username lookup failed, treating as free",
			zap.String("username", username), zap.Error(err))
		return false
	}
	return n > 0
}

// CreateAccount signs up with the identity provider and writes a minimal
// profile. A profile write failure is logged but the account still counts as
// created.
func (r *Repository) CreateAccount(ctx context.Context, email, password, username string) error {
	if err := r.idp.SignUp(ctx, email, password); err != nil {
		return domain.WrapStore("sign up", err)
	}

	err := r.UpsertProfile(ctx, domain.ProfileUpdate{
		Name:     domain.StringPtr(""),
		Username: domain.StringPtr(username),
	})
	if err != nil {
		r.logger.Error("account created without profile",
			zap.String("username", username), zap.Error(err))
	}
	return nil
}

// Authenticate signs in and succeeds only if the profile of the new session
// can be loaded as well. The loaded profile is returned on success.
func (r *Repository) Authenticate(ctx context.Context, email, password string) (*domain.Profile, error) {
	if email == "" || password == "" {
		return nil, domain.NewValidationError(domain.MsgFillAllFields)
	}

	if err := r.idp.SignIn(ctx, email, password); err != nil {
		return nil, domain.WrapStore("sign in", err)
	}

	id, ok := r.idp.CurrentIdentity()
	if !ok {
		return nil, &domain.StoreError{Op: "sign in", Err: errNoIdentity}
	}

	p, err := r.FetchProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.StoreError{Op: "fetch profile", Err: errFetchProfile}
	}
	return p, nil
}

// UpsertProfile merges u into the current identity's profile. Existing
// documents get a partial update of the changed keys, missing ones are created.
func (r *Repository) UpsertProfile(ctx context.Context, u domain.ProfileUpdate) error {
	id, ok := r.idp.CurrentIdentity()
	if !ok {
		return domain.ErrNotAuthenticated
	}

	existing, err := r.FetchProfile(ctx, id)
	if err != nil {
		r.logger.Warn("could not read existing profile, creating a new one",
			zap.String("user_id", string(id)), zap.Error(err))
		existing = nil
	}

	merged := u.Merge(id, existing)

	if existing == nil {
		err := r.docs.Set(ctx, domain.ProfilesCollection, string(id), toDocument(merged))
		return domain.WrapStore("create profile", err)
	}

	changed := changedFields(existing, merged)
	if len(changed) == 0 {
		return nil
	}
	err = r.docs.Update(ctx, domain.ProfilesCollection, string(id), changed)
	return domain.WrapStore("update profile", err)
}

// FetchProfile loads the profile stored for id. A missing document yields
// nil, nil.
func (r *Repository) FetchProfile(ctx context.Context, id domain.Identity) (*domain.Profile, error) {
	doc, err := r.docs.Get(ctx, domain.ProfilesCollection, string(id))
	if err != nil {
		return nil, domain.WrapStore("fetch profile", err)
	}
	if doc == nil {
		return nil, nil
	}
	return fromDocument(id, doc), nil
}

// UploadAvatar stores the image under a fresh key and returns its public URL.
// onProgress is called with true before the upload and with false once it
// has finished either way. Earlier avatars are never overwritten or removed.
func (r *Repository) UploadAvatar(ctx context.Context, image io.Reader, onProgress func(bool)) (string, error) {
	if onProgress == nil {
		onProgress = func(bool) {}
	}
	onProgress(true)

	key := r.newKey()
	url, err := r.putAndResolve(ctx, key, image)
	onProgress(false)

	if err != nil {
		r.logger.Error("avatar upload failed", zap.String("key", key), zap.Error(err))
		return "", domain.WrapStore("upload avatar", err)
	}
	r.logger.Info("avatar uploaded", zap.String("key", key))
	return url, nil
}

func (r *Repository) putAndResolve(ctx context.Context, key string, image io.Reader) (string, error) {
	if err := r.blobs.Put(ctx, key, image); err != nil {
		return "", err
	}
	return r.blobs.URL(ctx, key)
}
