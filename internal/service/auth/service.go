package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/report-assistant/internal/email"
	"github.com/jwalitptl/report-assistant/internal/model"
	"github.com/jwalitptl/report-assistant/internal/repository"
	"github.com/jwalitptl/report-assistant/pkg/auth"
	"github.com/jwalitptl/report-assistant/pkg/errors"
	"github.com/jwalitptl/report-assistant/pkg/logger"
	"github.com/jwalitptl/report-assistant/pkg/security"
)

var (
	ErrInvalidCredentials = stderrors.New("invalid credentials")
	ErrTokenRevoked       = stderrors.New("token revoked")
)

const (
	tokenType    = "Bearer"
	emailTimeout = 30 * time.Second
)

type Service struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	jwtSvc    auth.JWTService
	hasher    security.PasswordHasher
	emailSvc  email.Service
	logger    *logger.Logger
}

func NewService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, jwtSvc auth.JWTService,
	hasher security.PasswordHasher, emailSvc email.Service, log *logger.Logger) *Service {
	return &Service{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		jwtSvc:    jwtSvc,
		hasher:    hasher,
		emailSvc:  emailSvc,
		logger:    log,
	}
}

// SignUp registers a user and signs them in.
func (s *Service) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.AuthSession, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if stderrors.Is(err, security.ErrPasswordShort) {
			return nil, errors.Validation(fmt.Sprintf("password must be at least %d characters", security.MinPasswordLen), err)
		}
		return nil, errors.Internal(err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, repository.ErrDuplicate) {
			return nil, errors.Conflict("an account with this email already exists", err)
		}
		return nil, errors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	s.logger.Info("User signed up", "user_id", user.ID.String())
	s.sendWelcome(user)

	return s.issue(user)
}

// SignIn verifies credentials and issues an access token.
func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (*model.AuthSession, error) {
	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Auth("invalid email or password", ErrInvalidCredentials)
		}
		return nil, errors.Internal(fmt.Errorf("failed to load user: %w", err))
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, errors.Auth("invalid email or password", ErrInvalidCredentials)
	}

	return s.issue(user)
}

// SignOut revokes the caller's token until it would have expired.
func (s *Service) SignOut(ctx context.Context, principal *model.Principal) error {
	if principal == nil || principal.TokenID == "" {
		return errors.Auth("not signed in", nil)
	}
	if err := s.tokenRepo.Revoke(ctx, principal.TokenID, principal.ExpiresAt); err != nil {
		return errors.Auth("failed to sign out", err)
	}
	s.logger.Info("User signed out", "user_id", principal.UserID.String())
	return nil
}

// Authenticate validates a bearer token and returns its principal.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, errors.Unauthorized(err)
	}

	revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if revoked {
		return nil, errors.Unauthorized(ErrTokenRevoked)
	}

	principal := &model.Principal{
		UserID:  claims.UserID,
		Email:   claims.Email,
		Name:    claims.Name,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

// Me returns the current user.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("user", err)
		}
		return nil, errors.Internal(err)
	}
	return user, nil
}

func (s *Service) issue(user *model.User) (*model.AuthSession, error) {
	token, claims, err := s.jwtSvc.GenerateAccessToken(user.ID, user.Email, user.Name)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return &model.AuthSession{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        user,
	}, nil
}

func (s *Service) sendWelcome(user *model.User) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailTimeout)
		defer cancel()
		if err := s.emailSvc.SendWelcome(ctx, user.Email, user.Name); err != nil {
			s.logger.Warn("Failed to send welcome email", "user_id", user.ID.String(), "error", err.Error())
		}
	}()
}
