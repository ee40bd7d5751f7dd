package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"auth-core/internal/auth"
	"auth-core/internal/events"
	"auth-core/internal/mfa"
	"auth-core/internal/password"
	"auth-core/internal/reset"
	"auth-core/internal/sanitize"
	"auth-core/internal/session"
	"auth-core/internal/store"
)

type contextKey string

const identityContextKey contextKey = "identity"

// AuthHandler exposes the authentication core over HTTP. It is a thin
// caller: all policy lives in the services it delegates to.
type AuthHandler struct {
	auth        *auth.Manager
	sessions    *session.Manager
	mfa         *mfa.Manager
	resets      *reset.Manager
	credentials store.CredentialStore
	publisher   events.Publisher
	logger      *zap.Logger
}

func NewAuthHandler(
	authMgr *auth.Manager,
	sessions *session.Manager,
	mfaMgr *mfa.Manager,
	resets *reset.Manager,
	credentials store.CredentialStore,
	publisher events.Publisher,
	logger *zap.Logger,
) *AuthHandler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &AuthHandler{
		auth:        authMgr,
		sessions:    sessions,
		mfa:         mfaMgr,
		resets:      resets,
		credentials: credentials,
		publisher:   publisher,
		logger:      logger,
	}
}

func (h *AuthHandler) publish(r *http.Request, eventType, identity string) {
	event := events.Event{
		Type:      eventType,
		Identity:  identity,
		IPAddress: r.RemoteAddr,
	}
	if err := h.publisher.Publish(r.Context(), event); err != nil {
		h.logger.Warn("failed to publish security event",
			zap.String("event_type", eventType), zap.Error(err))
	}
}

// RegisterRoutes mounts all auth endpoints on the given router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/reset/request", h.RequestPasswordReset)
	r.Post("/auth/reset/confirm", h.ConfirmPasswordReset)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/session", h.SessionInfo)
		r.Post("/auth/mfa/enroll", h.EnrollMFA)
		r.Post("/auth/mfa/disable", h.DisableMFA)
	})
}

// RequireSession validates the session cookie, refreshes activity and puts
// the identity into the request context.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(session.CookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		identity, err := h.sessions.Validate(r.Context(), cookie.Value)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrExpired):
				writeError(w, http.StatusUnauthorized, "session expired")
			case errors.Is(err, session.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "authentication required")
			default:
				h.logger.Error("session validation failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		if _, err := h.sessions.UpdateActivity(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to refresh session activity", zap.Error(err))
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) string {
	identity, _ := ctx.Value(identityContextKey).(string)
	return identity
}

type registerRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

// Register creates a credential for a new identity.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	existing, err := h.credentials.GetCredential(r.Context(), req.Identity)
	if err != nil {
		h.logger.Error("credential lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != "" {
		writeError(w, http.StatusConflict, "identity already registered")
		return
	}

	hash, err := h.auth.HashNewPassword(req.Password)
	if err != nil {
		var policyErr *password.PolicyError
		if errors.As(err, &policyErr) {
			writeError(w, http.StatusBadRequest, policyErr.Message)
			return
		}
		h.logger.Error("password hashing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.credentials.PutCredential(r.Context(), req.Identity, hash); err != nil {
		h.logger.Error("credential store failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("identity registered",
		zap.String("identity", sanitize.SanitizeForLogging(req.Identity)))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

type loginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

// Login authenticates and, on success, issues a session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	storedHash, err := h.credentials.GetCredential(r.Context(), req.Identity)
	if err != nil {
		h.logger.Error("credential lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := h.auth.Authenticate(r.Context(), auth.Request{
		Identity:   req.Identity,
		Password:   req.Password,
		StoredHash: storedHash,
		MFACode:    req.MFACode,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		h.logger.Error("authentication fault", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !result.Success {
		h.writeAuthFailure(w, result)
		return
	}

	rawToken, err := h.sessions.Create(r.Context(), req.Identity, r.RemoteAddr)
	if err != nil {
		h.logger.Error("session creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	http.SetCookie(w, h.sessions.CookieConfig().NewCookie(rawToken))
	writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
}

func (h *AuthHandler) writeAuthFailure(w http.ResponseWriter, result *auth.Result) {
	var lockedErr *auth.LockedError
	switch {
	case errors.As(result.Err, &lockedErr):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":        "account locked",
			"locked_until": lockedErr.Until,
		})
	case errors.Is(result.Err, auth.ErrMFARequired):
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":        "mfa required",
			"requires_mfa": true,
		})
	default:
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"error":              "invalid credentials",
			"remaining_attempts": result.RemainingAttempts,
		})
	}
}

// Logout ends the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil {
		if _, err := h.sessions.End(r.Context(), cookie.Value); err != nil {
			h.logger.Error("failed to end session", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	expired := h.sessions.CookieConfig().NewCookie("")
	expired.MaxAge = -1
	http.SetCookie(w, expired)

	h.publish(r, events.TypeSessionEnded, identityFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// SessionInfo returns the identity bound to the current session.
func (h *AuthHandler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"identity": identityFrom(r.Context()),
	})
}

// EnrollMFA enables TOTP for the authenticated identity and returns the
// secret, provisioning URI and backup codes exactly once.
func (h *AuthHandler) EnrollMFA(w http.ResponseWriter, r *http.Request) {
	if h.mfa == nil {
		writeError(w, http.StatusNotImplemented, "mfa not available")
		return
	}

	enrollment, err := h.mfa.Enable(r.Context(), identityFrom(r.Context()))
	if err != nil {
		h.logger.Error("mfa enrollment failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.publish(r, events.TypeMFAEnabled, identityFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"secret":           enrollment.Secret,
		"provisioning_uri": enrollment.ProvisioningURI,
		"backup_codes":     enrollment.BackupCodes,
	})
}

// DisableMFA clears the enrollment for the authenticated identity.
func (h *AuthHandler) DisableMFA(w http.ResponseWriter, r *http.Request) {
	if h.mfa == nil {
		writeError(w, http.StatusNotImplemented, "mfa not available")
		return
	}

	if _, err := h.mfa.Disable(r.Context(), identityFrom(r.Context())); err != nil {
		h.logger.Error("mfa disable failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.publish(r, events.TypeMFADisabled, identityFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "mfa_disabled"})
}

type resetRequestBody struct {
	Identity string `json:"identity"`
}

// RequestPasswordReset issues a reset token. Delivery to the user is the
// caller's concern; the token is returned in the response body here.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rawToken, err := h.resets.Generate(r.Context(), req.Identity)
	if err != nil {
		h.logger.Error("reset token issuance failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.publish(r, events.TypePasswordResetRequested, req.Identity)
	writeJSON(w, http.StatusOK, map[string]string{"reset_token": rawToken})
}

type resetConfirmBody struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ConfirmPasswordReset consumes a reset token and replaces the credential.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := h.resets.Verify(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, reset.ErrInvalidToken) {
			writeError(w, http.StatusBadRequest, "invalid or expired reset token")
			return
		}
		h.logger.Error("reset token verification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	hash, err := h.auth.HashNewPassword(req.NewPassword)
	if err != nil {
		var policyErr *password.PolicyError
		if errors.As(err, &policyErr) {
			writeError(w, http.StatusBadRequest, policyErr.Message)
			return
		}
		h.logger.Error("password hashing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.credentials.PutCredential(r.Context(), identity, hash); err != nil {
		h.logger.Error("credential update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.resets.Invalidate(r.Context(), req.Token); err != nil {
		h.logger.Error("reset token invalidation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.publish(r, events.TypePasswordResetCompleted, identity)
	writeJSON(w, http.StatusOK, map[string]string{"status": "password_updated"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
