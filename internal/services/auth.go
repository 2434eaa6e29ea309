package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/mailer"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

const (
	resetTokenTTL     = 30 * time.Minute
	minPasswordLength = 6
)

// AuthService handles registration, sessions, password recovery and the
// caller's own profile.
type AuthService struct {
	accounts    store.AccountStore
	intakes     store.IntakeStore
	resets      store.ResetTokenStore
	stages      store.StageMappingStore
	tokens      *TokenService
	revoked     RevocationList
	mail        mailer.Mailer
	files       storage.Store
	metrics     *metrics.Metrics
	frontendURL string
	logger      *zap.SugaredLogger
	now         func() time.Time
}

// AuthDeps groups the collaborators of AuthService
type AuthDeps struct {
	Tokens      *TokenService
	Revoked     RevocationList
	Mail        mailer.Mailer
	Files       storage.Store
	Metrics     *metrics.Metrics
	FrontendURL string
}

func NewAuthService(repos *store.Repos, deps AuthDeps, logger *zap.SugaredLogger) *AuthService {
	return &AuthService{
		accounts:    repos.Accounts,
		intakes:     repos.Intakes,
		resets:      repos.ResetTokens,
		stages:      repos.StageMappings,
		tokens:      deps.Tokens,
		revoked:     deps.Revoked,
		mail:        deps.Mail,
		files:       deps.Files,
		metrics:     deps.Metrics,
		frontendURL: strings.TrimRight(deps.FrontendURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

// Session is an issued token with its claims
type Session struct {
	Token  string
	Claims *Claims
}

// RegisterAdmin creates an administrator. Any role except "client" is
// accepted; roles mapped to a pipeline stage make the account an operator.
func (s *AuthService) RegisterAdmin(ctx context.Context, req *models.AdminRegisterRequest) (*models.Account, *Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, nil, apperr.Validation("Username and password are required.")
	}
	role := strings.TrimSpace(req.Role)
	if role == models.RoleClient {
		return nil, nil, apperr.Validation("Admin cannot have 'client' role.")
	}
	if role == "" {
		role = models.RoleAdmin
	}
	stage, err := s.StageForRole(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	hash, err := hashSecret(req.Password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	acct := &models.Account{
		ID:            uuid.New(),
		Kind:          models.KindAdministrator,
		Username:      username,
		Role:          role,
		AssignedStage: stage,
		Status:        models.StatusActive,
		PasswordHash:  hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil, apperr.Conflict("An admin with this username already exists.")
		}
		return nil, nil, apperr.Internal("insert admin", err)
	}

	sess, err := s.issue(acct)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Infow("Admin registered", "account", acct.ID, "role", role, "stage", stage)
	return acct, sess, nil
}

// RegisterClient creates a client account and flags the client's earlier
// walk-in intake requests as registered.
func (s *AuthService) RegisterClient(ctx context.Context, req *models.ClientRegisterRequest) (*models.Account, *Session, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, nil, apperr.Validation("Please fill in all required fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apperr.Validation("Please enter a valid email")
	}
	if len(req.Password) < minPasswordLength {
		return nil, nil, apperr.Validation("Password must be at least 6 characters")
	}
	hash, err := hashSecret(req.Password)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	acct := &models.Account{
		ID:           uuid.New(),
		Kind:         models.KindClient,
		Name:         name,
		Email:        email,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      req.Address,
		Photo:        models.DefaultPhoto,
		Role:         models.RoleClient,
		Services:     []uuid.UUID{},
		Status:       models.StatusActive,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, nil, apperr.Conflict("Email has already been registered")
		}
		return nil, nil, apperr.Internal("insert client", err)
	}

	if n, err := s.intakes.MarkRegistered(ctx, email); err != nil {
		s.logger.Warnw("Failed to flag intake requests as registered", "email", email, "error", err)
	} else if n > 0 {
		s.logger.Infow("Intake requests linked to new client", "account", acct.ID, "count", n)
	}

	sess, err := s.issue(acct)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Infow("Client registered", "account", acct.ID)
	return acct, sess, nil
}

// Login resolves an admin username, client name or client email and checks
// the password.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.Account, *Session, error) {
	ident := strings.TrimSpace(req.LoginIdentifier())
	if ident == "" || req.Password == "" {
		return nil, nil, apperr.Validation("Username and password are required.")
	}

	acct, err := s.accounts.FindByLoginIdentifier(ctx, ident)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.metrics.IncLogin("unknown")
			return nil, nil, apperr.NotFound(fmt.Sprintf("User with username %s not found.", ident))
		}
		return nil, nil, apperr.Internal("find account", err)
	}
	if !secretMatches(acct.PasswordHash, req.Password) {
		s.metrics.IncLogin("bad_password")
		return nil, nil, apperr.Auth("Invalid credentials.")
	}
	if acct.Status == models.StatusSuspended {
		s.metrics.IncLogin("suspended")
		return nil, nil, apperr.Forbidden("Your account has been suspended")
	}

	sess, err := s.issue(acct)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.IncLogin("success")
	return acct, sess, nil
}

// Authenticate validates a session token and re-reads the account so role
// and status changes apply to the very next request.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Account, *Claims, error) {
	if token == "" {
		return nil, nil, apperr.Auth("Not authorized, please login")
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, errTokenExpired) {
			return nil, nil, apperr.Auth("Session expired, please login again")
		}
		return nil, nil, apperr.Auth("Not authorized, token failed")
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, apperr.Dependency("Session store unavailable", err)
	}
	if revoked {
		return nil, nil, apperr.Auth("Session has been logged out, please login again")
	}

	id, err := uuid.Parse(claims.AccountID)
	if err != nil {
		return nil, nil, apperr.Auth("Not authorized, token failed")
	}
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperr.Auth("User not found, please login")
		}
		return nil, nil, apperr.Internal("load principal", err)
	}
	if acct.Status == models.StatusSuspended {
		return nil, nil, apperr.Forbidden("Your account has been suspended")
	}
	return acct, claims, nil
}

// Authorize is a plain set-membership check on the account's role
func Authorize(acct *models.Account, roles ...string) error {
	if acct == nil {
		return apperr.Auth("Not authorized, please login")
	}
	for _, r := range roles {
		if acct.Role == r {
			return nil
		}
	}
	return apperr.Forbidden("Access denied. Insufficient permissions.")
}

// Logout revokes the session token for the rest of its lifetime
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	ttl := remainingTTL(claims, s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperr.Dependency("Failed to end session", err)
	}
	return nil
}

// ForgotPassword emails a client a single-use reset link. Only the token
// hash is stored.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.accounts.FindClientByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User does not exist")
		}
		return apperr.Internal("find client", err)
	}

	raw, err := randomToken()
	if err != nil {
		return apperr.Internal("generate reset token", err)
	}
	now := s.now()
	if err := s.resets.Put(ctx, &models.ResetToken{
		AccountID: acct.ID,
		TokenHash: hashToken(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(resetTokenTTL),
	}); err != nil {
		return apperr.Internal("store reset token", err)
	}

	link := s.frontendURL + "/resetpassword/" + raw
	msg := mailer.PasswordReset(acct.Email, acct.DisplayName(), link)
	if err := sendMail(ctx, s.mail, s.metrics, msg); err != nil {
		return apperr.Dependency("Email not sent, please try again", err)
	}
	s.logger.Infow("Password reset requested", "account", acct.ID)
	return nil
}

// ResetPassword redeems a reset token. The token is consumed on success and
// any later attempt fails.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, password string) error {
	if len(password) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}
	tok, err := s.resets.Consume(ctx, hashToken(rawToken), s.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.InvalidToken("Invalid or Expired Token")
		}
		return apperr.Internal("consume reset token", err)
	}

	acct, err := s.accounts.Get(ctx, tok.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.InvalidToken("Invalid or Expired Token")
		}
		return apperr.Internal("load account", err)
	}
	if err := s.setPassword(ctx, acct, password); err != nil {
		return err
	}
	s.logger.Infow("Password reset", "account", acct.ID)
	return nil
}

// ChangePassword replaces the caller's password after checking the old one
func (s *AuthService) ChangePassword(ctx context.Context, caller *models.Account, req *models.PasswordChange) error {
	if req.OldPassword == "" || req.Password == "" {
		return apperr.Validation("Please add old and new password")
	}
	if len(req.Password) < minPasswordLength {
		return apperr.Validation("Password must be at least 6 characters")
	}
	acct, err := s.Profile(ctx, caller)
	if err != nil {
		return err
	}
	if !secretMatches(acct.PasswordHash, req.OldPassword) {
		return apperr.Validation("Old password is incorrect")
	}
	return s.setPassword(ctx, acct, req.Password)
}

// Profile re-reads the caller's account
func (s *AuthService) Profile(ctx context.Context, caller *models.Account) (*models.Account, error) {
	acct, err := s.accounts.Get(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("load account", err)
	}
	return acct, nil
}

// LoginStatus reports whether token is a live session
func (s *AuthService) LoginStatus(ctx context.Context, token string) bool {
	_, _, err := s.Authenticate(ctx, token)
	return err == nil
}

// UpdateProfile overwrites the non-empty profile fields
func (s *AuthService) UpdateProfile(ctx context.Context, caller *models.Account, upd *models.ProfileUpdate) (*models.Account, error) {
	acct, err := s.Profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(upd.Name); name != "" {
		acct.Name = name
	}
	if phone := strings.TrimSpace(upd.Phone); phone != "" {
		acct.Phone = phone
	}
	if upd.Address != nil {
		acct.Address = upd.Address
	}
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, apperr.Internal("update profile", err)
	}
	return acct, nil
}

// UpdatePhoto stores a new profile photo and removes the previous upload
func (s *AuthService) UpdatePhoto(ctx context.Context, caller *models.Account, up *Upload) (*models.Account, error) {
	acct, err := s.Profile(ctx, caller)
	if err != nil {
		return nil, err
	}
	info, err := saveUpload(ctx, s.files, "photos", up)
	if err != nil {
		return nil, err
	}
	previous := acct.Photo
	acct.Photo = info.URL
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, apperr.Internal("update photo", err)
	}
	if previous != "" {
		if err := removeStored(ctx, s.files, previous); err != nil {
			s.logger.Warnw("Failed to remove previous photo", "account", acct.ID, "error", err)
		}
	}
	return acct, nil
}

// StageForRole returns the pipeline stage a role operates, or "" for roles
// outside the pipeline.
func (s *AuthService) StageForRole(ctx context.Context, role string) (models.Stage, error) {
	return stageForRole(ctx, s.stages, role)
}

func stageForRole(ctx context.Context, stages store.StageMappingStore, role string) (models.Stage, error) {
	stage, err := stages.StageFor(ctx, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", apperr.Internal("resolve stage mapping", err)
	}
	return stage, nil
}

func (s *AuthService) issue(acct *models.Account) (*Session, error) {
	token, claims, err := s.tokens.Issue(acct.ID, acct.Role)
	if err != nil {
		return nil, apperr.Internal("issue token", err)
	}
	return &Session{Token: token, Claims: claims}, nil
}

func (s *AuthService) setPassword(ctx context.Context, acct *models.Account, password string) error {
	hash, err := hashSecret(password)
	if err != nil {
		return err
	}
	acct.PasswordHash = hash
	acct.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return apperr.Internal("update password", err)
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sendMail delivers msg synchronously and counts the result
func sendMail(ctx context.Context, m mailer.Mailer, mt *metrics.Metrics, msg mailer.Message) error {
	if err := m.Send(ctx, msg); err != nil {
		mt.IncEmail("failed")
		return err
	}
	mt.IncEmail("sent")
	return nil
}
