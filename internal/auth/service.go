package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/models"
)

var (
	ErrAlreadyExists      = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInactiveAccount    = errors.New("account is inactive")
)

// ValidationError carries a per-field map for 400 responses.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service struct {
	db     *gorm.DB
	audit  *audit.Logger
	secret string

	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(db *gorm.DB, auditLog *audit.Logger, secret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		db:         db,
		audit:      auditLog,
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     string
}

func (in *RegisterInput) validate() *ValidationError {
	fields := map[string]string{}
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "invalid email address"
	}
	if err := ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if len(in.FullName) < 2 || len(in.FullName) > 255 {
		fields["full_name"] = "full name must be between 2 and 255 characters"
	}
	if in.Role == "" {
		in.Role = models.RoleTrainee
	}
	if !models.ValidRole(in.Role) {
		fields["role"] = "role must be one of admin, trainer, trainee"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Register creates a user and returns it with a fresh token pair.
func (s *Service) Register(ctx context.Context, in RegisterInput, ip, userAgent string) (*models.User, *TokenPair, error) {
	if verr := in.validate(); verr != nil {
		return nil, nil, verr
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, nil, err
	}
	if count > 0 {
		return nil, nil, ErrAlreadyExists
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}

	user := models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     &user.ID,
		EventType:  audit.EventUserRegistration,
		Resource:   "user",
		Action:     "create",
		IPAddress:  ip,
		UserAgent:  userAgent,
		StatusCode: 201,
		Metadata:   map[string]any{"email": user.Email, "role": user.Role},
	})

	return &user, pair, nil
}

// Login authenticates by email and password. Every attempt, success or
// failure, lands in the audit log.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*models.User, *TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logFailure(ctx, nil, "user not found", email, ip, userAgent)
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !user.IsActive {
		s.logFailure(ctx, &user.ID, "account inactive", email, ip, userAgent)
		return nil, nil, ErrInactiveAccount
	}

	if !CheckPassword(password, user.PasswordHash) {
		s.logFailure(ctx, &user.ID, "invalid password", email, ip, userAgent)
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, nil, err
	}

	pair, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		UserID:     &user.ID,
		EventType:  audit.EventLoginSuccess,
		Resource:   "auth",
		Action:     "login",
		IPAddress:  ip,
		UserAgent:  userAgent,
		StatusCode: 200,
		Metadata:   map[string]any{"email": email},
	})

	return &user, pair, nil
}

// ResolveToken loads the active user behind an access token.
func (s *Service) ResolveToken(ctx context.Context, tokenStr string) (*models.User, error) {
	claims, err := ParseToken(tokenStr, s.secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var user models.User
	if err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", claims.Subject, true).
		First(&user).Error; err != nil {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// ResolveAPIKey matches a presented key against stored per-user key hashes.
// Expired and inactive keys never match; a hit updates last_used.
func (s *Service) ResolveAPIKey(ctx context.Context, key string) (*models.User, error) {
	var keys []models.APIKey
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&keys).Error; err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range keys {
		k := &keys[i]
		if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
			continue
		}
		if !VerifyAPIKey(key, k.KeyHash) {
			continue
		}
		_ = s.db.WithContext(ctx).Model(k).Update("last_used", now).Error

		var user models.User
		if err := s.db.WithContext(ctx).
			Where("id = ? AND is_active = ?", k.UserID, true).
			First(&user).Error; err != nil {
			return nil, ErrInvalidToken
		}
		return &user, nil
	}
	return nil, ErrInvalidToken
}

func (s *Service) issueTokens(userID, role string) (*TokenPair, error) {
	access, err := SignAccessToken(userID, role, s.secret, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := SignRefreshToken(userID, s.secret, s.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) logFailure(ctx context.Context, userID *string, reason, email, ip, userAgent string) {
	s.audit.Log(ctx, audit.Entry{
		UserID:       userID,
		EventType:    audit.EventLoginFailed,
		Resource:     "auth",
		Action:       "login",
		IPAddress:    ip,
		UserAgent:    userAgent,
		StatusCode:   401,
		ErrorMessage: reason,
		Metadata:     map[string]any{"email": email},
	})
}
