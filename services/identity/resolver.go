// Package identity turns an authentication session into a Principal.
package identity

import (
	"context"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"go.uber.org/zap"
)

// TokenVerifier is the authentication provider's session accessor. Verify
// returns the uid owning token. Rejected tokens are reported as
// authentication errors; provider outages as backend_unavailable.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Resolver resolves session tokens to principals using the profile documents
// in the users collection.
type Resolver struct {
	verifier TokenVerifier
	docs     repositories.DocumentStore
	cache    *ProfileCache
	logger   *zap.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(verifier TokenVerifier, docs repositories.DocumentStore, cache *ProfileCache, logger *zap.Logger) *Resolver {
	return &Resolver{
		verifier: verifier,
		docs:     docs,
		cache:    cache,
		logger:   logger,
	}
}

// Resolve returns the principal for token, or models.Anonymous when there is
// no valid session or the account has no usable profile. Only collaborator
// failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, token string) (*models.Principal, error) {
	if token == "" {
		return models.Anonymous, nil
	}

	uid, err := r.verifier.Verify(ctx, token)
	if err != nil {
		if services.IsAuthenticationError(err) {
			r.logger.Debug("session token rejected", zap.Error(err))
			return models.Anonymous, nil
		}
		return nil, services.FromStoreError(err, "session")
	}

	return r.ResolveUID(ctx, uid)
}

// ResolveUID builds the principal of an already authenticated uid.
func (r *Resolver) ResolveUID(ctx context.Context, uid string) (*models.Principal, error) {
	if uid == "" {
		return models.Anonymous, nil
	}

	profile, err := r.LoadProfile(ctx, uid)
	if err != nil {
		if services.IsNotFoundError(err) {
			r.logger.Warn("authenticated account has no profile", zap.String("uid", uid))
			return models.Anonymous, nil
		}
		return nil, err
	}

	role, ok := models.ParseRole(string(profile.Role))
	if !ok {
		r.logger.Warn("profile carries unknown role",
			zap.String("uid", uid),
			zap.String("role", string(profile.Role)))
		return models.Anonymous, nil
	}
	profile.Role = role

	return profile.Principal(), nil
}

// LoadProfile reads the profile document of uid, consulting the cache first.
func (r *Resolver) LoadProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	if r.cache != nil {
		if p, ok := r.cache.Get(uid); ok {
			return p, nil
		}
	}

	doc, err := r.docs.GetDocument(ctx, models.CollectionUsers, uid)
	if err != nil {
		return nil, services.FromStoreError(err, "user")
	}

	var profile models.UserProfile
	if err := doc.Decode(&profile); err != nil {
		return nil, services.WrapInternal("failed to decode profile", err)
	}
	if profile.UID == "" {
		profile.UID = doc.ID
	}

	if r.cache != nil {
		r.cache.Set(&profile)
	}
	return &profile, nil
}

// Invalidate drops any cached profile of uid.
func (r *Resolver) Invalidate(uid string) {
	if r.cache != nil {
		r.cache.Invalidate(uid)
	}
}
