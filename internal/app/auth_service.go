package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"knowledgehub/internal/cache"
	"knowledgehub/internal/model"
	"knowledgehub/internal/pkg/jwtutil"
	"knowledgehub/internal/repository"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUsernameExists      = errors.New("username already exists")
	ErrInvalidCredential   = errors.New("invalid username or password")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

// AuthService covers registration, login, and the per-user
// organization-tag bootstrap that goes with them: every new user gets
// a PRIVATE_<username> tag created and set as both an assigned tag
// and their primary tag. Grounded on the teacher's AuthService plus
// manshu's UserService.createPrivateOrgTag.
type AuthService struct {
	userRepo          *repository.UserRepository
	tagRepo           *repository.OrgTagRepository
	sessionStore      *cache.SessionStore
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	tokenSeq          uint64
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token        string
	RefreshToken string
	User         *model.User
}

func NewAuthService(
	userRepo *repository.UserRepository,
	tagRepo *repository.OrgTagRepository,
	sessionStore *cache.SessionStore,
	jwtSecret string,
	jwtExpiration time.Duration,
	refreshExpiration time.Duration,
) *AuthService {
	if refreshExpiration <= 0 {
		refreshExpiration = 7 * 24 * time.Hour
	}
	return &AuthService{
		userRepo:          userRepo,
		tagRepo:           tagRepo,
		sessionStore:      sessionStore,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExpiration,
		refreshExpiration: refreshExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	email := strings.TrimSpace(strings.ToLower(input.Email))

	if username == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	privateTagID := model.PrivateTagPrefix + username
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		PrimaryTag:   privateTagID,
	}
	user.SetAssignedTagList([]string{privateTagID})
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if err := s.ensurePrivateTag(privateTagID, user.ID); err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

// ensurePrivateTag creates the user's single-member private tag if it
// doesn't already exist. Idempotent so a retried registration doesn't
// error on the tag half of the bootstrap.
func (s *AuthService) ensurePrivateTag(tagID string, userID uint) error {
	existing, err := s.tagRepo.GetByID(tagID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return s.tagRepo.Create(&model.OrganizationTag{
		ID:        tagID,
		Name:      tagID,
		CreatedBy: userID,
	})
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *model.User) (*AuthResult, error) {
	s.tokenSeq++
	tokenID := jwtutil.NewTokenID(s.tokenSeq)
	token, err := jwtutil.GenerateToken(
		s.jwtSecret, s.jwtExpiration, tokenID,
		user.ID, user.Username, user.Role,
		user.AssignedTagList(), user.PrimaryTag,
	)
	if err != nil {
		return nil, err
	}

	s.tokenSeq++
	refreshHandle := jwtutil.NewTokenID(s.tokenSeq)

	if s.sessionStore != nil {
		if err := s.sessionStore.CacheToken(context.Background(), tokenID, user.ID, s.jwtExpiration); err != nil {
			return nil, fmt.Errorf("cache session token failed: %w", err)
		}
		if err := s.sessionStore.CacheRefreshToken(context.Background(), refreshHandle, user.ID, s.refreshExpiration); err != nil {
			return nil, fmt.Errorf("cache refresh token failed: %w", err)
		}
	}
	return &AuthResult{Token: token, RefreshToken: refreshHandle, User: user}, nil
}

// Refresh exchanges a still-valid refresh handle for a brand new
// access token and refresh handle, revoking the old refresh handle so
// it cannot be replayed. Grounded on manshu's TokenCacheService
// refresh-token family: a separate, longer-lived key with its own
// rotation, independent of the access token's own handle.
func (s *AuthService) Refresh(refreshHandle string) (*AuthResult, error) {
	if s.sessionStore == nil || refreshHandle == "" {
		return nil, ErrInvalidRefreshToken
	}
	userID, ok, err := s.sessionStore.RefreshTokenOwner(context.Background(), refreshHandle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	result, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	if err := s.sessionStore.RevokeRefreshToken(context.Background(), refreshHandle); err != nil {
		return nil, fmt.Errorf("revoke old refresh token failed: %w", err)
	}
	return result, nil
}

// LogoutAll blacklists every access token and revokes every refresh
// handle outstanding for userID, for a "log out everywhere" action.
func (s *AuthService) LogoutAll(userID uint) error {
	if s.sessionStore == nil {
		return nil
	}
	return s.sessionStore.LogoutAll(context.Background(), userID, s.jwtExpiration)
}

func (s *AuthService) GetUserByID(id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.userRepo.GetByID(id)
}

// Logout blacklists the presented token handle immediately.
func (s *AuthService) Logout(tokenID string) error {
	if s.sessionStore == nil || tokenID == "" {
		return nil
	}
	return s.sessionStore.Blacklist(context.Background(), tokenID, s.jwtExpiration)
}

// BootstrapAdmin ensures the DEFAULT tag and a system_admin user
// exist. Only called when Config.Auth.BootstrapAdmin is set (see
// DESIGN.md, Open Question 2) — this is a deployment decision, not
// something every environment should get for free.
func (s *AuthService) BootstrapAdmin(username, password string) error {
	existingTag, err := s.tagRepo.GetByID(model.DefaultTagID)
	if err != nil {
		return err
	}
	if existingTag == nil {
		if err := s.tagRepo.Create(&model.OrganizationTag{ID: model.DefaultTagID, Name: "Default"}); err != nil {
			return err
		}
	}

	existing, err := s.userRepo.GetByUsername(username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password failed: %w", err)
	}
	admin := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		PrimaryTag:   model.DefaultTagID,
	}
	admin.SetAssignedTagList([]string{model.DefaultTagID})
	return s.userRepo.Create(admin)
}
