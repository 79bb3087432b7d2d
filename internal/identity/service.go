package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-market-core/internal/authz"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/entity"
	"github.com/ovaphlow/pitchfork/service-market-core/internal/identity/repo"
	"github.com/ovaphlow/pitchfork/service-market-core/pkg/utilities"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (hash string, algo string, err error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", "", err
	}
	return string(h), fmt.Sprintf("bcrypt:%d", cost), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is the persistence the identity service needs.
type Repository interface {
	Create(ctx context.Context, u *entity.Identity) (int64, error)
	GetByID(ctx context.Context, id int64) (*entity.Identity, error)
	Exists(ctx context.Context, username, email string) (bool, error)
	SetStatus(ctx context.Context, id int64, status entity.Status) (bool, error)
	ApprovePendingSeller(ctx context.Context, id int64) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

var (
	ErrAlreadyExists    = errors.New("username or email already exists")
	ErrIdentityNotFound = errors.New("identity not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrBadPassword      = errors.New("current password is incorrect")
)

// RegisterInput is the self-service registration payload. Only customers and
// sellers can sign themselves up; admins are created by CreateAdmin.
type RegisterInput struct {
	Username    string      `validate:"required,min=3,max=50"`
	Email       string      `validate:"required,email"`
	Password    string      `validate:"required,min=8"`
	FullName    string      `validate:"required"`
	PhoneNumber string      `validate:"omitempty,max=20"`
	Role        entity.Role `validate:"required,oneof=seller customer"`
}

// Service handles registration and admin-driven account lifecycle.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewService(r Repository, hasher PasswordHasher, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &Service{repo: r, hasher: hasher, validate: validator.New(), logger: utilities.OrNop(logger)}
}

// Register creates an identity. Sellers wait for approval; everyone else is
// active immediately.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	normalize(&in)
	if err := s.validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	status := entity.StatusActive
	if in.Role == entity.RoleSeller {
		status = entity.StatusPending
	}
	return s.create(ctx, in, in.Role, status)
}

// CreateAdmin creates an active admin account on behalf of an existing admin.
func (s *Service) CreateAdmin(ctx context.Context, actor entity.Principal, in RegisterInput) (int64, error) {
	if err := authz.Require(actor, authz.ActionManageUsers, nil); err != nil {
		return 0, err
	}
	normalize(&in)
	if err := s.validate.StructExcept(in, "Role"); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.create(ctx, in, entity.RoleAdmin, entity.StatusActive)
}

func normalize(in *RegisterInput) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

func (s *Service) create(ctx context.Context, in RegisterInput, role entity.Role, status entity.Status) (int64, error) {
	taken, err := s.repo.Exists(ctx, in.Username, in.Email)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrAlreadyExists
	}
	hash, _, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u := &entity.Identity{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         role,
		Status:       status,
	}
	if in.PhoneNumber != "" {
		u.PhoneNumber = &in.PhoneNumber
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return 0, err
	}
	s.logger.Infow("identity registered", "id", id, "role", u.Role, "status", u.Status)
	return id, nil
}

// ApproveSeller activates a pending seller account.
func (s *Service) ApproveSeller(ctx context.Context, actor entity.Principal, sellerID int64) error {
	if err := authz.Require(actor, authz.ActionApproveSellers, nil); err != nil {
		return err
	}
	ok, err := s.repo.ApprovePendingSeller(ctx, sellerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no pending seller %d", ErrIdentityNotFound, sellerID)
	}
	s.logger.Infow("seller approved", "id", sellerID, "by", actor.ID)
	return nil
}

// SetStatus moves an account to status. Deleted is a soft delete.
func (s *Service) SetStatus(ctx context.Context, actor entity.Principal, targetID int64, status entity.Status) error {
	if err := authz.Require(actor, authz.ActionManageUsers, nil); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, status)
	}
	ok, err := s.repo.SetStatus(ctx, targetID, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIdentityNotFound
	}
	s.logger.Infow("identity status changed", "id", targetID, "status", status, "by", actor.ID)
	return nil
}

func (s *Service) Suspend(ctx context.Context, actor entity.Principal, id int64) error {
	return s.SetStatus(ctx, actor, id, entity.StatusSuspended)
}

func (s *Service) Activate(ctx context.Context, actor entity.Principal, id int64) error {
	return s.SetStatus(ctx, actor, id, entity.StatusActive)
}

func (s *Service) SoftDelete(ctx context.Context, actor entity.Principal, id int64) error {
	return s.SetStatus(ctx, actor, id, entity.StatusDeleted)
}

// ChangePassword replaces the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: password too short", ErrInvalidInput)
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return err
	}
	if !s.hasher.Verify(u.PasswordHash, oldPassword) {
		return ErrBadPassword
	}
	hash, _, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}
