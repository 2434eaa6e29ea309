package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/newoon/backoffice-server/internal/apperr"
	"github.com/newoon/backoffice-server/internal/middleware"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/services"
)

// AuthHandler serves registration, login and the caller's own account
type AuthHandler struct {
	auth         *services.AuthService
	secureCookie bool
	logger       *zap.SugaredLogger
}

func NewAuthHandler(auth *services.AuthService, secureCookie bool, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{auth: auth, secureCookie: secureCookie, logger: logger}
}

// RegisterAdmin handles POST /api/auth/admin/register
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req models.AdminRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	acct, sess, err := h.auth.RegisterAdmin(r.Context(), &req)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.AuthResponse{
		Message: "Admin registered successfully", Token: sess.Token, Role: acct.Role, Account: acct,
	})
}

// RegisterClient handles POST /api/auth/client/register and POST /api/users/register.
// The users variant also sets the session cookie.
func (h *AuthHandler) RegisterClient(withCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ClientRegisterRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, h.logger, err)
			return
		}
		acct, sess, err := h.auth.RegisterClient(r.Context(), &req)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		if withCookie {
			h.setSessionCookie(w, sess)
		}
		respondJSON(w, http.StatusCreated, models.AuthResponse{
			Message: "Client registered successfully", Token: sess.Token, Role: acct.Role, Account: acct,
		})
	}
}

// Login handles POST /api/auth/login and POST /api/users/login
func (h *AuthHandler) Login(withCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, h.logger, err)
			return
		}
		acct, sess, err := h.auth.Login(r.Context(), &req)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		if withCookie {
			h.setSessionCookie(w, sess)
		}
		respondJSON(w, http.StatusOK, models.AuthResponse{
			Message: "Login successful", Token: sess.Token, Role: acct.Role, Account: acct,
		})
	}
}

// Logout handles GET /api/users/logout and POST /api/auth/logout. A live
// token is revoked; the cookie is always cleared.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, claims, err := h.auth.Authenticate(r.Context(), middleware.TokenFrom(r)); err == nil {
		if err := h.auth.Logout(r.Context(), claims); err != nil {
			respondError(w, h.logger, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	respondMessage(w, http.StatusOK, "Successfully logged out")
}

// Me handles GET /api/users/getUser
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct, err := h.auth.Profile(r.Context(), principal(r))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// LoginStatus handles GET /api/users/getLoginStatus
func (h *AuthHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.auth.LoginStatus(r.Context(), middleware.TokenFrom(r)))
}

// UpdateProfile handles PATCH /api/users/updateUser
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var upd models.ProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, h.logger, err)
		return
	}
	acct, err := h.auth.UpdateProfile(r.Context(), principal(r), &upd)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// UpdatePhoto handles PATCH /api/users/updatePhoto (multipart field "photo")
func (h *AuthHandler) UpdatePhoto(w http.ResponseWriter, r *http.Request) {
	if err := parseMultipart(w, r); err != nil {
		respondError(w, h.logger, err)
		return
	}
	up, done, err := formFile(r, "photo")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	defer done()
	if up == nil {
		respondError(w, h.logger, apperr.Validation("Please upload a photo"))
		return
	}
	acct, err := h.auth.UpdatePhoto(r.Context(), principal(r), up)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, acct)
}

// ChangePassword handles PATCH /api/users/changepassword
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req models.PasswordChange
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), principal(r), &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Password change successful, please re-login")
}

// ForgotPassword handles POST /api/users/forgotpassword
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Reset Email Sent")
}

// ResetPassword handles PUT /api/users/resetpassword/{resetToken}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "resetToken"), req.Password); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondMessage(w, http.StatusOK, "Password Reset Successful, Please Login")
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.Claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
