package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"golang.org/x/crypto/bcrypt"

	"setflow/internal/core/apperror"
	appctx "setflow/internal/core/context"
	"setflow/internal/core/id"
	"setflow/internal/core/tenant"
	"setflow/internal/domain"
	"setflow/internal/domain/audit"
	"setflow/pkg/logger"
)

type ServiceConfig struct {
	MaxLoginAttempts   int
	LockDuration       time.Duration
	PasswordMinLength  int
	RefreshTokenExpiry time.Duration
	DefaultRole        string
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:   5,
		LockDuration:       15 * time.Minute,
		PasswordMinLength:  8,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		DefaultRole:        "viewer",
	}
}

// Service provides sign-in, token refresh and user administration.
type Service struct {
	userRepo   UserRepository
	roleRepo   RoleRepository
	permRepo   PermissionRepository
	tokenRepo  TokenRepository
	jwtService *JWTService
	config     ServiceConfig
	trail      domain.Trail
	now        func() time.Time
}

func NewService(
	userRepo UserRepository,
	roleRepo RoleRepository,
	permRepo PermissionRepository,
	tokenRepo TokenRepository,
	jwtService *JWTService,
	config ServiceConfig,
	rec audit.Recorder,
) *Service {
	return &Service{
		userRepo:   userRepo,
		roleRepo:   roleRepo,
		permRepo:   permRepo,
		tokenRepo:  tokenRepo,
		jwtService: jwtService,
		config:     config,
		trail:      domain.Trail{Audit: rec, Entity: "user"},
		now:        time.Now,
	}
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return domain.InTx(ctx, nil, fn)
}

func requireTenantID(ctx context.Context) (string, error) {
	tenantID := tenant.GetTenantID(ctx)
	if tenantID == "" {
		return "", apperror.NewValidation("tenant is required").WithDetail("header", "X-Tenant-ID")
	}
	return tenantID, nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < s.config.PasswordMinLength {
		return "", apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength),
		).WithDetail("field", "password")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// --- Sessions ---

// Login checks the password and issues a token pair. Repeated failures
// lock the account for LockDuration.
func (s *Service) Login(ctx context.Context, creds Credentials) (*TokenPair, *User, error) {
	if _, err := requireTenantID(ctx); err != nil {
		return nil, nil, err
	}
	now := s.now()

	user, err := s.userRepo.GetByEmail(ctx, NormalizeEmail(creds.Email))
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, fmt.Errorf("find user: %w", err)
	}
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "record failed login", "user_id", user.ID, "error", err)
		}
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	if err := s.loadRelations(ctx, user); err != nil {
		return nil, nil, err
	}
	tokens, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	user.RecordSuccessfulLogin(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "record login", "user_id", user.ID, "error", err)
	}
	logger.Info(ctx, "user logged in", "user_id", user.ID, "email", user.Email)
	return tokens, user, nil
}

// RefreshToken rotates a refresh token: the old one is revoked and a new
// pair carries the user's current roles and departments.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokenRepo.GetRefreshToken(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, apperror.NewUnauthorized("invalid refresh token")
	}
	if !token.IsValid(s.now()) {
		return nil, apperror.NewUnauthorized("refresh token expired or revoked")
	}

	user, err := s.userRepo.GetByID(ctx, token.UserID)
	if err != nil {
		return nil, apperror.NewUnauthorized("user not found")
	}
	if err := user.CanLogin(s.now()); err != nil {
		return nil, err
	}
	if err := s.loadRelations(ctx, user); err != nil {
		return nil, err
	}
	if err := s.tokenRepo.RevokeRefreshToken(ctx, token.ID, "refreshed"); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	return s.generateTokenPair(ctx, user)
}

// Logout revokes every refresh token of the user.
func (s *Service) Logout(ctx context.Context, userID id.ID) error {
	return s.tokenRepo.RevokeAllUserTokens(ctx, userID, "logout")
}

func (s *Service) loadRelations(ctx context.Context, user *User) error {
	var err error
	if user.Roles, err = s.userRepo.LoadRoles(ctx, user.ID); err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	if user.Permissions, err = s.userRepo.LoadPermissions(ctx, user.ID); err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if user.DepartmentIDs, err = s.userRepo.LoadDepartments(ctx, user.ID); err != nil {
		return fmt.Errorf("load departments: %w", err)
	}
	if user.DepartmentIDs == nil {
		user.DepartmentIDs = []string{}
	}
	return nil
}

func (s *Service) generateTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	tenantID, err := requireTenantID(ctx)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(&appctx.UserContext{
		UserID:        user.ID.String(),
		TenantID:      tenantID,
		Email:         user.Email,
		Roles:         user.RoleCodes(),
		Permissions:   user.Permissions,
		DepartmentIDs: user.DepartmentIDs,
		IsAdmin:       user.IsAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	raw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	now := s.now().UTC()
	if err := s.tokenRepo.SaveRefreshToken(ctx, &RefreshToken{
		ID:        id.New(),
		UserID:    user.ID,
		TokenHash: hashToken(raw),
		ExpiresAt: now.Add(s.config.RefreshTokenExpiry),
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

// --- Users ---

// CreateUser adds a user with the given roles (DefaultRole when none) and
// department membership.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user := NewUser(req.Email, hash)
	user.FirstName, user.LastName = req.FirstName, req.LastName
	user.IsAdmin = req.IsAdmin
	user.DepartmentIDs = req.DepartmentIDs
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	roles := req.Roles
	if len(roles) == 0 && s.config.DefaultRole != "" {
		roles = []string{s.config.DefaultRole}
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		exists, err := s.userRepo.Exists(ctx, user.Email)
		if err != nil {
			return fmt.Errorf("check email exists: %w", err)
		}
		if exists {
			return apperror.NewDuplicate("user", "email", user.Email)
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return err
		}
		if err := s.userRepo.SetDepartments(ctx, user.ID, user.DepartmentIDs); err != nil {
			return err
		}
		for _, code := range roles {
			if err := s.assignRole(ctx, user.ID, code); err != nil {
				return err
			}
		}
		return s.trail.Write(ctx, user.ID, audit.ActionCreate, nil, user, "")
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created", "user_id", user.ID, "email", user.Email)
	return s.GetUserByID(ctx, user.ID)
}

// UpdateUser applies req. A password change revokes the user's sessions.
func (s *Service) UpdateUser(ctx context.Context, userID id.ID, req UpdateUserRequest) (*User, error) {
	err := s.inTx(ctx, func(ctx context.Context) error {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if req.Version != 0 && req.Version != user.Version {
			return apperror.NewConcurrentModification("user", userID.String())
		}
		before := *user

		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if req.IsAdmin != nil {
			user.IsAdmin = *req.IsAdmin
		}
		if req.Password != nil {
			if user.PasswordHash, err = s.hash(*req.Password); err != nil {
				return err
			}
		}
		if req.DepartmentIDs != nil {
			user.DepartmentIDs = *req.DepartmentIDs
		}
		if err := user.Validate(ctx); err != nil {
			return err
		}
		if err := s.userRepo.Update(ctx, user); err != nil {
			return err
		}
		if req.DepartmentIDs != nil {
			if err := s.userRepo.SetDepartments(ctx, userID, user.DepartmentIDs); err != nil {
				return err
			}
		}
		if req.Password != nil || (req.IsActive != nil && !*req.IsActive) {
			if err := s.tokenRepo.RevokeAllUserTokens(ctx, userID, "credentials changed"); err != nil {
				return err
			}
		}
		return s.trail.Write(ctx, userID, audit.ActionUpdate, &before, user, "")
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, userID)
}

// DeleteUser soft-deletes the user and revokes its sessions. Users cannot
// delete themselves.
func (s *Service) DeleteUser(ctx context.Context, userID id.ID) error {
	if appctx.GetUserID(ctx) == userID.String() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "you cannot delete your own account")
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		if err := s.userRepo.Delete(ctx, userID); err != nil {
			return err
		}
		if err := s.tokenRepo.RevokeAllUserTokens(ctx, userID, "deleted"); err != nil {
			return err
		}
		return s.trail.Write(ctx, userID, audit.ActionDelete, map[string]any{"id": userID}, nil, "")
	})
}

// GetUserByID returns the user with roles, permissions and departments.
func (s *Service) GetUserByID(ctx context.Context, userID id.ID) (*User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("user", userID.String())
		}
		return nil, err
	}
	if err := s.loadRelations(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, filter UserFilter) ([]User, int, error) {
	if filter.Limit <= 0 || filter.Limit > domain.MaxLimit {
		filter.Limit = domain.DefaultLimit
	}
	return s.userRepo.List(ctx, filter)
}

// --- Roles ---

// SetRoles makes codes the user's exact role set.
func (s *Service) SetRoles(ctx context.Context, userID id.ID, codes []string) (*User, error) {
	err := s.inTx(ctx, func(ctx context.Context) error {
		if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
			return err
		}
		current, err := s.userRepo.LoadRoles(ctx, userID)
		if err != nil {
			return fmt.Errorf("load roles: %w", err)
		}
		var before []string
		for _, r := range current {
			before = append(before, r.Code)
			if !slices.Contains(codes, r.Code) {
				if err := s.userRepo.RevokeRole(ctx, userID, r.ID); err != nil {
					return fmt.Errorf("revoke role: %w", err)
				}
			}
		}
		for _, code := range codes {
			if !slices.Contains(before, code) {
				if err := s.assignRole(ctx, userID, code); err != nil {
					return err
				}
			}
		}
		return s.trail.Write(ctx, userID, audit.ActionUpdate,
			map[string]any{"roles": before}, map[string]any{"roles": codes}, "")
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Service) assignRole(ctx context.Context, userID id.ID, code string) error {
	role, err := s.roleRepo.GetByCode(ctx, code)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewValidation("unknown role").WithDetail("role", code)
		}
		return err
	}
	var grantedBy *id.ID
	if current, err := id.Parse(appctx.GetUserID(ctx)); err == nil {
		grantedBy = &current
	}
	if err := s.userRepo.AssignRole(ctx, userID, role.ID, grantedBy); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.roleRepo.List(ctx)
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.permRepo.List(ctx)
}

// EnsureDefaultRoles creates the shipped permissions and roles when they
// are missing. Existing roles keep their permissions.
func (s *Service) EnsureDefaultRoles(ctx context.Context) error {
	return s.inTx(ctx, func(ctx context.Context) error {
		perms := make(map[string]id.ID)
		for _, code := range AllPermissions() {
			p := NewPermission(code)
			if err := s.permRepo.Upsert(ctx, &p); err != nil {
				return fmt.Errorf("upsert permission %s: %w", code, err)
			}
			perms[code] = p.ID
		}

		codes := make([]string, 0, len(DefaultRoles()))
		for code := range DefaultRoles() {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			if _, err := s.roleRepo.GetByCode(ctx, code); err == nil {
				continue
			} else if !apperror.IsNotFound(err) {
				return err
			}
			role := NewRole(code, code)
			role.IsSystem = true
			if err := s.roleRepo.Create(ctx, role); err != nil {
				return fmt.Errorf("create role %s: %w", code, err)
			}
			for _, p := range DefaultRoles()[code] {
				if err := s.roleRepo.AssignPermission(ctx, role.ID, perms[p]); err != nil {
					return fmt.Errorf("grant %s to %s: %w", p, code, err)
				}
			}
		}
		return nil
	})
}

// CleanupExpiredTokens deletes expired refresh tokens.
func (s *Service) CleanupExpiredTokens(ctx context.Context) (int, error) {
	return s.tokenRepo.CleanupExpiredTokens(ctx)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateRandomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
