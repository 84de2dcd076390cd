package service

import (
	"context"
	"errors"
	"time"

	"alumniportal/internal/middleware"
	"alumniportal/internal/model"
	"alumniportal/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string   `json:"username" binding:"required"`
	Email        string   `json:"email" binding:"required,email"`
	Password     string   `json:"password" binding:"required,min=6"`
	Role         string   `json:"role" binding:"required,oneof=admin manager staff"`
	BranchID     string   `json:"branch_id"`
	Capabilities []string `json:"capabilities"`
}

type UpdateUserRequest struct {
	Username     string   `json:"username"`
	Email        string   `json:"email" binding:"omitempty,email"`
	Role         string   `json:"role" binding:"omitempty,oneof=admin manager staff"`
	BranchID     string   `json:"branch_id"`
	Capabilities []string `json:"capabilities"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	BranchID     *uuid.UUID `json:"branch_id"`
	Capabilities []string   `json:"capabilities"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// UserService manages staff accounts and token issuance. Staff tokens carry
// the branch id and capability codes the scope guard relies on; the token is
// the only place this state lives.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	// IssueAlumniToken mints an alumni-typed token. It stands in for the
	// external identity provider; the engine itself never manages alumni
	// credentials.
	IssueAlumniToken(ctx context.Context, alumniID string) (*TokenResponse, error)
}

type userService struct {
	repo    repository.UserRepository
	alumni  repository.AlumniRepository
	refresh repository.RefreshTokenRepository
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, alumni repository.AlumniRepository, refresh repository.RefreshTokenRepository) UserService {
	return &userService{repo: repo, alumni: alumni, refresh: refresh}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		BranchID:     user.BranchID,
		Capabilities: user.Capabilities,
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, errors.New("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.New("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		Password:     string(hashedPassword),
		Role:         req.Role,
		Capabilities: req.Capabilities,
	}
	if req.BranchID != "" {
		branchID, parseErr := uuid.Parse(req.BranchID)
		if parseErr != nil {
			return nil, errors.New("invalid branch_id")
		}
		user.BranchID = &branchID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	stored, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil || stored.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("invalid or expired refresh token")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID.String())
	if err != nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the old refresh token is single-use.
	if err := s.refresh.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"typ":  "staff",
		"caps": user.Capabilities,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}
	if user.BranchID != nil {
		claims["branch_id"] = user.BranchID.String()
	}

	access, err := signToken(claims)
	if err != nil {
		return nil, err
	}

	refreshValue := uuid.NewString()
	if err := s.refresh.Create(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}); err != nil {
		return nil, err
	}

	return &TokenResponse{AccessToken: access, RefreshToken: refreshValue}, nil
}

func (s *userService) IssueAlumniToken(ctx context.Context, alumniID string) (*TokenResponse, error) {
	id, err := uuid.Parse(alumniID)
	if err != nil {
		return nil, errors.New("invalid alumni id")
	}

	alumni, err := s.alumni.FindByID(ctx, id)
	if err != nil {
		return nil, errors.New("alumni not found")
	}

	access, err := signToken(jwt.MapClaims{
		"sub":       alumni.ID.String(),
		"typ":       "alumni",
		"branch_id": alumni.BranchID.String(),
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &TokenResponse{AccessToken: access}, nil
}

func signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return "", errors.New("failed to generate token")
	}
	return signed, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.New("user not found")
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	var responses []UserResponse
	for _, u := range users {
		responses = append(responses, *mapToResponse(&u))
	}

	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.New("user not found")
	}

	if req.Role != "" {
		user.Role = req.Role
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, errors.New("username already exists")
		}
		user.Username = req.Username
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
			return nil, errors.New("email already exists")
		}
		user.Email = req.Email
	}

	if req.BranchID != "" {
		branchID, parseErr := uuid.Parse(req.BranchID)
		if parseErr != nil {
			return nil, errors.New("invalid branch_id")
		}
		user.BranchID = &branchID
	}

	if req.Capabilities != nil {
		user.Capabilities = req.Capabilities
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	_, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.New("user not found")
	}
	return s.repo.Delete(ctx, id)
}
