package member

import (
	"context"
	"errors"
	"strings"

	"judoclub/internal/auth"
)

var (
	ErrMemberNotFound     = errors.New("member not found")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("unknown role")
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Member, string, string, error)
	Login(ctx context.Context, req LoginRequest) (*Member, string, string, error)
	GetByID(ctx context.Context, memberID int64) (*Member, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, *Member, error)
	SetRole(ctx context.Context, memberID int64, role string) (*Member, error)
	NamesByID(ctx context.Context, ids []int64) (map[int64]string, error)
}

type service struct {
	repo       Repository
	jwtSecret  string
	adminEmail string
}

// NewService registers adminEmail, when set, with the admin role so a fresh
// deployment has someone who can appoint coaches.
func NewService(repo Repository, jwtSecret, adminEmail string) Service {
	return &service{
		repo:       repo,
		jwtSecret:  jwtSecret,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*Member, string, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return nil, "", "", err
	}
	if exists {
		return nil, "", "", ErrEmailExists
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", "", err
	}

	role := auth.RoleMember
	if s.adminEmail != "" && email == s.adminEmail {
		role = auth.RoleAdmin
	}

	m, err := s.repo.Create(ctx, strings.TrimSpace(req.Name), email, passwordHash, role)
	if err != nil {
		return nil, "", "", err
	}

	accessToken, refreshToken, err := auth.GenerateTokens(m.ID, m.Email, m.Role, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, "", "", err
	}

	return m, accessToken, refreshToken, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Member, string, string, error) {
	m, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	if !auth.CheckPassword(m.PasswordHash, req.Password) {
		return nil, "", "", ErrInvalidCredentials
	}

	accessToken, refreshToken, err := auth.GenerateTokens(m.ID, m.Email, m.Role, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return nil, "", "", err
	}

	return m, accessToken, refreshToken, nil
}

func (s *service) GetByID(ctx context.Context, memberID int64) (*Member, error) {
	return s.repo.FindByID(ctx, memberID)
}

// RefreshToken issues a new access token carrying the member's current
// role rather than the one in the refresh token.
func (s *service) RefreshToken(ctx context.Context, refreshToken string) (string, *Member, error) {
	_, claims, err := auth.RefreshAccessToken(refreshToken, s.jwtSecret, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	m, err := s.repo.FindByID(ctx, claims.MemberID)
	if err != nil {
		return "", nil, ErrMemberNotFound
	}

	accessToken, err := auth.GenerateAccessToken(m.ID, m.Email, m.Role, s.jwtSecret)
	if err != nil {
		return "", nil, err
	}

	return accessToken, m, nil
}

func (s *service) SetRole(ctx context.Context, memberID int64, role string) (*Member, error) {
	if !auth.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	return s.repo.UpdateRole(ctx, memberID, role)
}

func (s *service) NamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	members, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}
	return names, nil
}
