package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
)

// User collection errors. RateLimitError is a type rather than a sentinel
// because it carries the remaining lockout time.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrSuperAdminRequired = errors.New("super-admin access required")
	ErrLastSuperAdmin     = errors.New("cannot remove the last active super-admin")
	ErrNoSuperAdmin       = errors.New("at least one active super-admin is required")
	ErrSelfReset          = errors.New("use your own profile settings to change your password")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

// RateLimitError rejects a login while the identity is locked out.
type RateLimitError struct {
	MinutesLeft int
	Attempts    int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many failed login attempts, try again in %d minutes", e.MinutesLeft)
}

// UserService owns the admin user collection ("all-admin-users" blob) and
// every operation against it: login, bulk save, delete, password reset, and
// bearer-token verification against the live collection.
type UserService struct {
	blobs   blob.Store
	limiter *LoginLimiter
	tokens  *TokenCodec
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService wires the user collection service.
func NewUserService(blobs blob.Store, limiter *LoginLimiter, tokens *TokenCodec, logger *slog.Logger) *UserService {
	return &UserService{
		blobs:   blobs,
		limiter: limiter,
		tokens:  tokens,
		logger:  logger,
		now:     time.Now,
	}
}

// All returns the full user collection, credentials included. Callers that
// serialize users into responses must sanitize them first.
func (s *UserService) All(ctx context.Context) ([]model.AdminUser, error) {
	users, _, err := s.load(ctx)
	return users, err
}

// GetByID returns one user by id, or ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.AdminUser, error) {
	users, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, ErrUserNotFound
}

// HasAnyUser reports whether at least one admin account exists. Used for
// first-run detection at startup.
func (s *UserService) HasAnyUser(ctx context.Context) (bool, error) {
	users, _, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	return len(users) > 0, nil
}

// Login authenticates an email/password pair and returns the sanitized
// user plus a session token.
//
// The ordering is load-bearing: the rate limit is checked before the
// password is ever touched; failures are recorded after verification; a
// success clears the limiter, upgrades a legacy hash, and stamps lastLogin
// before the token is issued.
func (s *UserService) Login(ctx context.Context, email, password string) (*model.AdminUser, string, error) {
	status, err := s.limiter.Status(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("check rate limit: %w", err)
	}
	if status.Limited {
		return nil, "", &RateLimitError{MinutesLeft: status.MinutesLeft, Attempts: status.Attempts}
	}

	users, _, err := s.load(ctx)
	if err != nil {
		return nil, "", err
	}
	user := findByEmail(users, email)
	if user == nil {
		// Unknown email counts as a failed attempt for this identity so a
		// guessing client gets locked out the same as a wrong password.
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Error("record login failure", "error", err)
		}
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, "", ErrAccountDisabled
	}
	if !VerifyPassword(password, user.Password) {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Error("record login failure", "error", err)
		}
		return nil, "", ErrInvalidCredentials
	}

	if err := s.limiter.Clear(ctx, email); err != nil {
		s.logger.Error("clear rate limit", "error", err)
	}

	// Lazy migration: a credential verified under the legacy scheme must be
	// re-hashed and persisted now, alongside the lastLogin stamp.
	upgrade := NeedsUpgrade(user.Password)
	loginAt := s.now()
	var updated *model.AdminUser
	err = s.modify(ctx, func(users []model.AdminUser) ([]model.AdminUser, error) {
		for i := range users {
			if users[i].ID != user.ID {
				continue
			}
			if upgrade {
				rehashed, err := HashPassword(password)
				if err != nil {
					return nil, fmt.Errorf("upgrade password hash: %w", err)
				}
				users[i].Password = rehashed
			}
			users[i].LastLogin = &loginAt
			updated = &users[i]
			return users, nil
		}
		return nil, ErrUserNotFound
	})
	if err != nil {
		return nil, "", err
	}
	if upgrade {
		s.logger.Info("upgraded legacy password hash", "user_id", user.ID)
	}

	token, err := s.tokens.Create(updated.ID, updated.Email, updated.Role)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	// Opportunistic prune of idle rate-limit records; never blocks the
	// response path.
	go func() {
		if err := s.limiter.MaybeCleanup(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("rate-limit cleanup", "error", err)
		}
	}()

	return updated.Sanitized(), token, nil
}

// VerifyRequest authenticates an Authorization header value against the
// live user collection. A valid signature alone is not enough: the
// referenced user must still exist and be active, and (when
// requireSuperAdmin is set) hold the super-admin role right now.
func (s *UserService) VerifyRequest(ctx context.Context, authorization string, requireSuperAdmin bool) (*model.AdminUser, error) {
	token := BearerToken(authorization)
	if token == "" {
		return nil, ErrTokenInvalid
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrTokenInvalid
	}
	if requireSuperAdmin && !user.IsSuperAdmin() {
		return nil, ErrSuperAdminRequired
	}
	return user.Sanitized(), nil
}

// SaveAll replaces the whole user collection. Only a super-admin may call
// it. Records without a password keep the stored hash for their id; records
// with a plaintext password are hashed before persisting. The result must
// keep at least one active super-admin.
func (s *UserService) SaveAll(ctx context.Context, incoming []model.AdminUser, acting *model.AdminUser) (int, error) {
	if acting == nil || !acting.IsSuperAdmin() {
		return 0, ErrSuperAdminRequired
	}

	count := 0
	err := s.modify(ctx, func(existing []model.AdminUser) ([]model.AdminUser, error) {
		stored := make(map[string]string, len(existing))
		for i := range existing {
			stored[existing[i].ID] = existing[i].Password
		}

		out := make([]model.AdminUser, 0, len(incoming))
		for _, u := range incoming {
			if u.Email == "" {
				return nil, fmt.Errorf("%w: missing required field %q", model.ErrValidation, "email")
			}
			if u.ID == "" {
				u.ID = model.NewID(s.now())
			}
			if u.Username == "" {
				u.Username = model.DefaultUsername(u.Email)
			}
			if u.Status == "" {
				u.Status = model.StatusActive
			}
			switch {
			case u.Password == "":
				u.Password = stored[u.ID]
			case !IsHashed(u.Password):
				hashed, err := HashPassword(u.Password)
				if err != nil {
					return nil, err
				}
				u.Password = hashed
			}
			out = append(out, u)
		}

		if model.CountActiveSuperAdmins(out) == 0 {
			return nil, ErrNoSuperAdmin
		}
		count = len(out)
		return out, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// DeleteByID removes a user. Only a super-admin may call it, and removing
// the last active super-admin is rejected outright.
func (s *UserService) DeleteByID(ctx context.Context, id string, acting *model.AdminUser) error {
	if acting == nil || !acting.IsSuperAdmin() {
		return ErrSuperAdminRequired
	}
	return s.modify(ctx, func(users []model.AdminUser) ([]model.AdminUser, error) {
		idx := -1
		for i := range users {
			if users[i].ID == id {
				idx = i
				break
			}
		}
		if idx == -1 {
			return nil, ErrUserNotFound
		}
		target := users[idx]
		if target.IsSuperAdmin() && target.IsActive() && model.CountActiveSuperAdmins(users) <= 1 {
			return nil, ErrLastSuperAdmin
		}
		return append(users[:idx], users[idx+1:]...), nil
	})
}

// ResetPassword sets a new password for another user. Super-admin only;
// self-service resets go through profile settings, not this path.
func (s *UserService) ResetPassword(ctx context.Context, userID, newPassword string, acting *model.AdminUser) error {
	if acting == nil || !acting.IsSuperAdmin() {
		return ErrSuperAdminRequired
	}
	if userID == acting.ID {
		return ErrSelfReset
	}
	if len(newPassword) < 8 {
		return ErrPasswordTooShort
	}

	hashed, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	resetAt := s.now()
	return s.modify(ctx, func(users []model.AdminUser) ([]model.AdminUser, error) {
		for i := range users {
			if users[i].ID == userID {
				users[i].Password = hashed
				users[i].PasswordResetAt = &resetAt
				users[i].PasswordResetBy = acting.Email
				return users, nil
			}
		}
		return nil, ErrUserNotFound
	})
}

// CreateBootstrapUser writes the first super-admin account. Used by the
// CLI and the seed loader; fails if any user already exists.
func (s *UserService) CreateBootstrapUser(ctx context.Context, email, username, password string) (*model.AdminUser, error) {
	if len(password) < 8 {
		return nil, ErrPasswordTooShort
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	if username == "" {
		username = model.DefaultUsername(email)
	}
	user := model.AdminUser{
		ID:       model.NewID(s.now()),
		Email:    model.NormalizeEmail(email),
		Username: username,
		Password: hashed,
		Role:     model.RoleSuperAdmin,
		Status:   model.StatusActive,
	}
	err = s.modify(ctx, func(users []model.AdminUser) ([]model.AdminUser, error) {
		if len(users) > 0 {
			return nil, fmt.Errorf("admin users already exist; use the dashboard to add accounts")
		}
		return []model.AdminUser{user}, nil
	})
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func findByEmail(users []model.AdminUser, email string) *model.AdminUser {
	want := model.NormalizeEmail(email)
	for i := range users {
		if model.NormalizeEmail(users[i].Email) == want {
			return &users[i]
		}
	}
	return nil
}

func (s *UserService) load(ctx context.Context) ([]model.AdminUser, int64, error) {
	data, version, err := s.blobs.Get(ctx, model.KeyAdminUsers)
	if errors.Is(err, blob.ErrNotFound) {
		return []model.AdminUser{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var users []model.AdminUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, 0, fmt.Errorf("decode user blob: %w", err)
	}
	return users, version, nil
}

// modify applies fn under a read-modify-write cycle with bounded retries
// on version conflicts. fn may run more than once and must be pure over
// its input.
func (s *UserService) modify(ctx context.Context, fn func([]model.AdminUser) ([]model.AdminUser, error)) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		users, version, err := s.load(ctx)
		if err != nil {
			return err
		}
		next, err := fn(users)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode user blob: %w", err)
		}
		if _, err := s.blobs.Put(ctx, model.KeyAdminUsers, data, version); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("update user blob: %w", lastErr)
}
