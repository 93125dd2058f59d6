package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	advancedauth "github.com/DevDad-Main/advanced-auth"
	"github.com/DevDad-Main/advanced-auth/logging"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// Config holds the transport-level settings of the handler.
type Config struct {
	CookieSecure bool
	CookieDomain string

	// TrustProxy enables X-Forwarded-For as the throttle subject. Leave
	// it off unless a trusted reverse proxy sets the header.
	TrustProxy bool

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler serves the five authentication endpoints.
type Handler struct {
	engine *advancedauth.Engine
	logger logging.Logger
	config Config
}

// New creates a Handler around the engine.
func New(engine *advancedauth.Engine, logger logging.Logger, cfg Config) *Handler {
	return &Handler{
		engine: engine,
		logger: logger,
		config: cfg,
	}
}

// Routes returns the route tree with the global throttle in front of every
// endpoint.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/verify", h.verify)
	mux.HandleFunc("POST /auth/resend-otp", h.resendOTP)
	mux.HandleFunc("POST /auth/login", h.login)
	mux.HandleFunc("POST /auth/refresh", h.refresh)
	mux.HandleFunc("POST /auth/logout", h.logout)

	return h.throttle(mux)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	token, err := h.engine.Register(r.Context(), advancedauth.RegistrationInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{
		"registrationToken": token,
	})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	user, err := h.engine.VerifyRegistration(r.Context(), req.RegistrationToken, req.OTP)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"email":    user.Email,
		"fullName": user.FullName,
	})
}

func (h *Handler) resendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegistrationToken string `json:"registrationToken"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if req.RegistrationToken == "" {
		h.writeValidationError(w, errors.New("registration token is required"))
		return
	}

	if err := h.engine.ResendOTP(r.Context(), req.RegistrationToken); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		h.writeValidationError(w, err)
		return
	}

	pair, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setAuthCookies(w, pair)
	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	presented := refreshTokenFromRequest(r)
	if presented == "" {
		h.writeError(w, r, advancedauth.ErrRefreshInvalid)
		return
	}

	pair, err := h.engine.Refresh(r.Context(), presented)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setAuthCookies(w, pair)
	h.writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if presented := refreshTokenFromRequest(r); presented != "" {
		if err := h.engine.Logout(r.Context(), presented); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	h.clearAuthCookies(w)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.writeValidationError(w, errors.New("malformed request body"))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(context.Background(), "response encoding failed", "error", err)
	}
}

func (h *Handler) writeValidationError(w http.ResponseWriter, err error) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeError maps the engine taxonomy onto HTTP statuses. Internal causes
// never leak; ErrStoreUnavailable and friends come out as generic 5xx.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var msg string

	switch {
	case errors.Is(err, advancedauth.ErrRateLimited),
		errors.Is(err, advancedauth.ErrTooManyRequests):
		status, msg = http.StatusTooManyRequests, "too many requests"
	case errors.Is(err, advancedauth.ErrGuardUnavailable):
		status, msg = http.StatusServiceUnavailable, "service unavailable"
	case errors.Is(err, advancedauth.ErrEmailTaken):
		status, msg = http.StatusConflict, "email already registered"
	case errors.Is(err, advancedauth.ErrRegistrationNotFound):
		status, msg = http.StatusNotFound, "registration session not found or expired"
	case errors.Is(err, advancedauth.ErrOTPNotFound):
		status, msg = http.StatusNotFound, "verification code not found or expired"
	case errors.Is(err, advancedauth.ErrOTPInvalid):
		status, msg = http.StatusBadRequest, "incorrect verification code"
	case errors.Is(err, advancedauth.ErrAttemptsExhausted):
		status, msg = http.StatusBadRequest, "verification attempts exhausted"
	case errors.Is(err, advancedauth.ErrPasswordPolicy):
		status, msg = http.StatusBadRequest, "password does not meet the length policy"
	case errors.Is(err, advancedauth.ErrInvalidCredentials),
		errors.Is(err, advancedauth.ErrRefreshInvalid),
		errors.Is(err, advancedauth.ErrRefreshExpired):
		status, msg = http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, advancedauth.ErrAccountUnverified):
		status, msg = http.StatusForbidden, "email verification required"
	case errors.Is(err, advancedauth.ErrDeliveryFailed):
		status, msg = http.StatusBadGateway, "could not send verification email"
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		status, msg = http.StatusInternalServerError, "internal error"
	}

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, pair advancedauth.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.AccessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/auth",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{accessCookieName, "/"},
		{refreshCookieName, "/auth"},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   h.config.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}
