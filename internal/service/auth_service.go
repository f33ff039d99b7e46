package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streampass/internal/model"
	"streampass/internal/repository"
	"streampass/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidToken               = errors.New("invalid token")
	ErrUserNotFound               = errors.New("user not found")
	ErrUserInactive               = errors.New("user is inactive")
	ErrInvalidCredentialsEmail    = errors.New("Credentials are not valid (email)")
	ErrInvalidCredentialsPassword = errors.New("Credentials are not valid (password)")
)

// AuthResult is a user together with a freshly signed bearer token.
type AuthResult struct {
	User  *model.User
	Token string
}

type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	CheckAuthStatus(ctx context.Context, user *model.User) (*AuthResult, error)
	// Authenticate resolves a bearer token to an active user.
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type authService struct {
	userRepo  repository.UserRepository
	jwtSecret string
	jwtTTL    time.Duration
	logger    zerolog.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtTTL time.Duration, logger zerolog.Logger) AuthService {
	return &authService{
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		logger:    logger.With().Str("service", "AuthService").Logger(),
	}
}

// Register expects input that already passed request validation.
func (s *authService) Register(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Email:              email,
		Password:           hash,
		FullName:           fullName,
		IsActive:           true,
		Roles:              []string{model.RoleUser},
		SubscriptionStatus: model.SubscriptionStatusInactive,
	}
	if err := s.userRepo.CreateUser(ctx, u); err != nil {
		if !errors.Is(err, repository.ErrUniqueViolation) {
			s.logger.Error().Err(err).Msg("Failed to create user")
		}
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID).Msg("User registered")
	return s.withToken(u)
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.userRepo.GetUserByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentialsEmail
	}
	if !util.CheckPassword(u.Password, password) {
		return nil, ErrInvalidCredentialsPassword
	}
	return s.withToken(u)
}

func (s *authService) CheckAuthStatus(_ context.Context, user *model.User) (*AuthResult, error) {
	return s.withToken(user)
}

func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := util.ValidateJWT(token, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("%w: malformed user id", ErrInvalidToken)
	}
	u, err := s.userRepo.GetUserByID(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", claims.ID, err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	if !u.IsActive {
		return nil, ErrUserInactive
	}
	return u, nil
}

func (s *authService) withToken(u *model.User) (*AuthResult, error) {
	token, err := util.SignJWT(u.ID, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: u, Token: token}, nil
}
