// Package users administers profiles and drives account sign-in and sign-up.
package users

import (
	"context"
	"strings"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/repositories"
	"github.com/amoreldmija/hospital/services"
	"github.com/amoreldmija/hospital/services/records"
	"go.uber.org/zap"
)

// AccountProvider is the authentication provider's account side.
type AccountProvider interface {
	Register(ctx context.Context, email, password string) (*models.Account, error)
	SignIn(ctx context.Context, email, password string) (*models.Credentials, error)
	IssueSession(ctx context.Context, uid string) (*models.Credentials, error)
	SignOut(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, uid string) error
}

// ProfileInvalidator drops cached profiles after a change.
type ProfileInvalidator interface {
	Invalidate(uid string)
}

// CreateRequest provisions an account and its profile.
type CreateRequest struct {
	models.Registration
	Role models.Role `json:"role" validate:"required,oneof=admin doctor patient"`
}

// UpdateRequest edits a profile. Email is owned by the account and cannot
// change here.
type UpdateRequest struct {
	FirstName     string      `json:"firstName" validate:"required,max=100"`
	LastName      string      `json:"lastName" validate:"required,max=100"`
	ContactNumber string      `json:"contactNumber" validate:"omitempty,max=32"`
	Role          models.Role `json:"role" validate:"required,oneof=admin doctor patient"`
}

// Service manages user profiles. It also implements the session
// Authenticator: sign-up creates the account and a patient profile in one
// step.
type Service struct {
	profiles    records.Collection[models.UserProfile]
	provider    AccountProvider
	invalidator ProfileInvalidator
	logger      *zap.Logger
}

// NewService creates a users service. provider may be nil when accounts are
// managed by an external identity pool; account operations then fail with
// ErrUnsupported.
func NewService(docs repositories.DocumentStore, provider AccountProvider, invalidator ProfileInvalidator, logger *zap.Logger) *Service {
	return &Service{
		profiles:    records.NewCollection[models.UserProfile](docs, models.CollectionUsers, services.ErrUserNotFound),
		provider:    provider,
		invalidator: invalidator,
		logger:      logger,
	}
}

// List returns every profile ordered by email
func (s *Service) List(ctx context.Context) ([]*models.UserProfile, error) {
	profiles, err := s.profiles.Find(ctx, repositories.Query{OrderBy: "email"})
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		normalize(p)
	}
	return profiles, nil
}

// Get loads one profile
func (s *Service) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	p, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	normalize(p)
	if p.UID == "" {
		p.UID = uid
	}
	return p, nil
}

// Create provisions an account with the requested role
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.UserProfile, error) {
	if err := services.ValidateInput(req); err != nil {
		return nil, err
	}
	return s.provision(ctx, &req.Registration, req.Role)
}

// Update edits a profile's names, contact number and role
func (s *Service) Update(ctx context.Context, uid string, req *UpdateRequest) (*models.UserProfile, error) {
	if err := services.ValidateInput(req); err != nil {
		return nil, err
	}

	profile, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	previous := profile.Role
	profile.FirstName = strings.TrimSpace(req.FirstName)
	profile.LastName = strings.TrimSpace(req.LastName)
	profile.ContactNumber = req.ContactNumber
	profile.Role = req.Role

	if err := s.profiles.Put(ctx, uid, profile); err != nil {
		return nil, err
	}
	s.invalidate(uid)

	if previous != profile.Role {
		s.logger.Info("user role changed",
			zap.String("uid", uid),
			zap.String("from", string(previous)),
			zap.String("to", string(profile.Role)))
	}
	return profile, nil
}

// Delete deprovisions a user: the authentication account, its sessions and
// the profile document. A profile without a local account is still removed.
func (s *Service) Delete(ctx context.Context, uid string) error {
	if _, err := s.profiles.Get(ctx, uid); err != nil {
		return err
	}

	if s.provider != nil {
		if err := s.provider.DeleteAccount(ctx, uid); err != nil && !services.IsNotFoundError(err) {
			return err
		}
	}

	if err := s.profiles.Delete(ctx, uid); err != nil {
		return err
	}
	s.invalidate(uid)

	s.logger.Info("user deprovisioned", zap.String("uid", uid))
	return nil
}

// SignIn authenticates with email and password
func (s *Service) SignIn(ctx context.Context, email, password string) (*models.Credentials, error) {
	if s.provider == nil {
		return nil, services.ErrUnsupported
	}
	return s.provider.SignIn(ctx, email, password)
}

// SignUp registers a patient account and signs it in
func (s *Service) SignUp(ctx context.Context, reg models.Registration) (*models.Credentials, error) {
	if err := services.ValidateInput(&reg); err != nil {
		return nil, err
	}

	profile, err := s.provision(ctx, &reg, models.RolePatient)
	if err != nil {
		return nil, err
	}
	return s.provider.IssueSession(ctx, profile.UID)
}

// SignOut closes the session behind token
func (s *Service) SignOut(ctx context.Context, token string) error {
	if s.provider == nil {
		return services.ErrUnsupported
	}
	return s.provider.SignOut(ctx, token)
}

func (s *Service) provision(ctx context.Context, reg *models.Registration, role models.Role) (*models.UserProfile, error) {
	if s.provider == nil {
		return nil, services.ErrUnsupported
	}

	account, err := s.provider.Register(ctx, reg.Email, reg.Password)
	if err != nil {
		return nil, err
	}

	profile := &models.UserProfile{
		UID:           account.UID,
		Email:         account.Email,
		FirstName:     strings.TrimSpace(reg.FirstName),
		LastName:      strings.TrimSpace(reg.LastName),
		ContactNumber: reg.ContactNumber,
		Role:          role,
	}
	if err := s.profiles.Put(ctx, account.UID, profile); err != nil {
		// An account without a profile resolves to anonymous forever; undo it.
		if delErr := s.provider.DeleteAccount(ctx, account.UID); delErr != nil {
			s.logger.Error("failed to remove account after profile write failure",
				zap.String("uid", account.UID),
				zap.Error(delErr))
		}
		return nil, err
	}

	s.logger.Info("user provisioned", zap.String("uid", account.UID), zap.String("role", string(role)))
	return profile, nil
}

func (s *Service) invalidate(uid string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(uid)
	}
}

func normalize(p *models.UserProfile) {
	if role, ok := models.ParseRole(string(p.Role)); ok {
		p.Role = role
	}
}
