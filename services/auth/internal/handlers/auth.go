package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aminammar1/storefront/libs/httpmiddleware"
	"github.com/aminammar1/storefront/libs/kafka"
	"github.com/aminammar1/storefront/libs/notify"
	"github.com/aminammar1/storefront/services/auth/internal/otp"
	"github.com/aminammar1/storefront/services/auth/internal/rate"
	"github.com/aminammar1/storefront/services/auth/internal/security"
	"github.com/aminammar1/storefront/services/auth/internal/social"
	"github.com/aminammar1/storefront/services/auth/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

const (
	accessCookie      = "access_token"
	refreshCookie     = "refresh_token"
	refreshCookiePath = "/auth/refresh"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Store interface {
	CreateUser(ctx context.Context, name, email string, passwordHash, provider, photoURL *string) (*storage.User, error)
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*storage.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	CreateRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time, ip, userAgent string) (uuid.UUID, error)
	GetRefreshTokenByHash(ctx context.Context, hash string) (*storage.RefreshToken, error)
	RotateToken(ctx context.Context, oldTokenID, userID uuid.UUID, newHash string, expiresAt time.Time, ip, userAgent string) (uuid.UUID, error)
	RevokeTokenByHash(ctx context.Context, hash string) error
	RevokeAllTokens(ctx context.Context, userID uuid.UUID) error
}

type CookieSettings struct {
	Domain string
	Secure bool
}

// Config carries the immutable knobs the handler needs; everything is loaded
// once at startup and never mutated afterwards.
type Config struct {
	JWTSecret  []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	OTPTTL     time.Duration
	Argon2     security.Argon2Params
	Cookie     CookieSettings
}

type AuthHandler struct {
	Store        Store
	OTP          *otp.Manager
	Mailer       notify.Sender
	Social       social.Verifier
	Events       kafka.Publisher
	Logger       *slog.Logger
	LoginLimiter rate.Limiter
	OTPLimiter   rate.Limiter
	Metrics      *Metrics
	TokenGen     security.TokenGenerator
	Clock        Clock
	Cfg          Config
}

func New(store Store, otpMgr *otp.Manager, mailer notify.Sender, verifier social.Verifier, logger *slog.Logger, cfg Config) *AuthHandler {
	return &AuthHandler{
		Store:    store,
		OTP:      otpMgr,
		Mailer:   mailer,
		Social:   verifier,
		Logger:   logger,
		TokenGen: security.DefaultTokenGenerator{},
		Clock:    systemClock{},
		Cfg:      cfg,
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/verify-otp", h.VerifyOTP)
	r.PUT("/auth/reset-password/:userId", h.ResetPassword)
	r.POST("/auth/resend-otp", h.ResendOTP)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/google", h.GoogleLogin)
	r.POST("/auth/facebook", h.FacebookLogin)
}

type signupRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	Terms           bool   `json:"terms"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required"`
}

type resetPasswordRequest struct {
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

type socialLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
	Photo string `json:"photo"`
	Token string `json:"token" binding:"required"`
}

// userProjection is the only user shape that ever leaves this service.
// The password hash stays inside.
type userProjection struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	CreatedAt string    `json:"created_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func projectUser(u *storage.User) userProjection {
	p := userProjection{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.PhotoURL != nil {
		p.Photo = *u.PhotoURL
	}
	if u.Provider != nil {
		p.Provider = *u.Provider
	}
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	if !req.Terms {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "terms must be accepted"})
		return
	}
	if req.Password != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "passwords do not match"})
		return
	}
	if err := security.CheckPasswordPolicy(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	hash, err := security.HashPassword(req.Password, h.Cfg.Argon2)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	user, err := h.Store.CreateUser(c.Request.Context(), strings.TrimSpace(req.Name), normalizeEmail(req.Email), &hash, nil, nil)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			c.JSON(http.StatusConflict, errorResponse{Code: "CONFLICT", Message: "email already registered"})
			return
		}
		h.Logger.Error("signup insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.Metrics.signup()
	h.publishSignedUp(c, user, "")

	c.JSON(http.StatusOK, gin.H{"user": projectUser(user)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if !h.allow(c, h.LoginLimiter, c.ClientIP()) {
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.Metrics.login("failure")
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// Social-only accounts have no hash; same uniform answer.
	if user.PasswordHash == nil {
		h.Metrics.login("failure")
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, *user.PasswordHash)
	if err != nil || !ok {
		h.Metrics.login("failure")
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
		return
	}

	if !h.issueSession(c, user) {
		return
	}

	h.Metrics.login("success")
	c.JSON(http.StatusOK, gin.H{"user": projectUser(user), "success": true})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	presented, err := c.Cookie(refreshCookie)
	if err != nil || presented == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "no refresh token"})
		return
	}

	token, err := h.Store.GetRefreshTokenByHash(c.Request.Context(), security.HashToken(presented))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
			return
		}
		h.Logger.Error("refresh lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if token.RevokedAt != nil {
		h.reuseDetected(c, token)
		return
	}

	now := h.Clock.Now()
	if token.ExpiresAt.Before(now) {
		_ = h.Store.RevokeTokenByHash(c.Request.Context(), token.TokenHash)
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token expired"})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), token.UserID)
	if err != nil {
		h.Logger.Error("refresh user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	newToken, newHash, err := h.TokenGen.New()
	if err != nil {
		h.Logger.Error("refresh token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	_, err = h.Store.RotateToken(c.Request.Context(), token.ID, token.UserID, newHash, now.Add(h.Cfg.RefreshTTL), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, storage.ErrTokenRotated) {
			// Lost the race with a concurrent refresh; same treatment as replay.
			h.reuseDetected(c, token)
			return
		}
		h.Logger.Error("token rotation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	access, err := security.NewAccessToken(user.ID.String(), user.Name, user.Email, h.Cfg.JWTSecret, h.Cfg.AccessTTL, now, h.Cfg.Issuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	h.setAuthCookies(c, access, newToken)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	h.issueResetCode(c, normalizeEmail(req.Email))
}

func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	h.issueResetCode(c, normalizeEmail(req.Email))
}

// issueResetCode serves forgot-password and resend-otp alike. Unknown emails
// get the same acknowledgement as known ones so the endpoint cannot be used
// to enumerate accounts.
func (h *AuthHandler) issueResetCode(c *gin.Context, email string) {
	if !h.allow(c, h.OTPLimiter, email) {
		return
	}

	ack := gin.H{"success": true, "message": "if the email is registered, a reset code has been sent"}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusOK, ack)
			return
		}
		h.Logger.Error("reset lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	code, err := h.OTP.Issue(c.Request.Context(), user.Email, h.Clock.Now())
	if err != nil {
		h.Logger.Error("otp issue failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	h.Metrics.otpIssued()

	// The code is durably stored; delivery is best-effort from here.
	if h.Mailer != nil {
		msg := notify.OTPMessage(user.Email, code, int(h.Cfg.OTPTTL.Minutes()))
		if err := h.Mailer.Send(c.Request.Context(), msg); err != nil {
			h.Logger.Error("otp mail failed", "email", user.Email, "error", err)
		}
	}

	c.JSON(http.StatusOK, ack)
}

func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	email := normalizeEmail(req.Email)
	if err := h.OTP.Verify(c.Request.Context(), email, req.OTP, h.Clock.Now()); err != nil {
		if errors.Is(err, otp.ErrInvalidCode) {
			c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_OTP", Message: "invalid or expired code"})
			return
		}
		h.Logger.Error("otp verify failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	user, err := h.Store.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		h.Logger.Error("otp user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "userId": user.ID})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid user id"})
		return
	}

	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "passwords do not match"})
		return
	}
	if err := security.CheckPasswordPolicy(req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	user, err := h.Store.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusPreconditionFailed, errorResponse{Code: "PRECONDITION_FAILED", Message: "no verified reset request"})
			return
		}
		h.Logger.Error("reset user lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	if err := h.OTP.Consume(c.Request.Context(), user.Email, h.Clock.Now()); err != nil {
		if errors.Is(err, otp.ErrNoPendingReset) {
			c.JSON(http.StatusPreconditionFailed, errorResponse{Code: "PRECONDITION_FAILED", Message: "no verified reset request"})
			return
		}
		h.Logger.Error("otp consume failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	hash, err := security.HashPassword(req.NewPassword, h.Cfg.Argon2)
	if err != nil {
		h.Logger.Error("password hash failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if err := h.Store.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		h.Logger.Error("password update failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// Force re-login everywhere.
	if err := h.Store.RevokeAllTokens(c.Request.Context(), user.ID); err != nil {
		h.Logger.Error("revoke all tokens failed", "error", err)
	}

	h.Metrics.passwordReset()
	h.publishPasswordReset(c, user)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password reset successfully"})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if presented, err := c.Cookie(refreshCookie); err == nil && presented != "" {
		if err := h.Store.RevokeTokenByHash(c.Request.Context(), security.HashToken(presented)); err != nil {
			h.Logger.Error("logout revoke failed", "error", err)
		}
	}
	h.clearAuthCookies(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "logged out successfully"})
}

func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	h.socialLogin(c, social.ProviderGoogle)
}

func (h *AuthHandler) FacebookLogin(c *gin.Context) {
	h.socialLogin(c, social.ProviderFacebook)
}

func (h *AuthHandler) socialLogin(c *gin.Context, provider string) {
	var req socialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	if !h.allow(c, h.LoginLimiter, c.ClientIP()) {
		return
	}

	profile, err := h.Social.Verify(c.Request.Context(), provider, req.Token)
	if err != nil {
		if errors.Is(err, social.ErrProviderToken) {
			c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "provider token rejected"})
			return
		}
		h.Logger.Error("provider verification failed", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}

	// The client-claimed email must match what the provider attests.
	email := normalizeEmail(profile.Email)
	if email != normalizeEmail(req.Email) {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "provider token rejected"})
		return
	}

	user, created, err := h.findOrCreateSocialUser(c.Request.Context(), provider, email, profile, &req)
	if err != nil {
		h.Logger.Error("social user lookup failed", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return
	}
	if created {
		h.Metrics.signup()
		h.publishSignedUp(c, user, provider)
	}

	if !h.issueSession(c, user) {
		return
	}

	h.Metrics.login("success")
	c.JSON(http.StatusOK, gin.H{"user": projectUser(user), "success": true})
}

func (h *AuthHandler) findOrCreateSocialUser(ctx context.Context, provider, email string, profile *social.Profile, req *socialLoginRequest) (*storage.User, bool, error) {
	user, err := h.Store.GetUserByEmail(ctx, email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	name := profile.Name
	if name == "" {
		name = req.Name
	}
	var photo *string
	if p := firstNonEmpty(profile.Photo, req.Photo); p != "" {
		photo = &p
	}

	user, err = h.Store.CreateUser(ctx, name, email, nil, &provider, photo)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			// Concurrent first login with the same account.
			existing, lookupErr := h.Store.GetUserByEmail(ctx, email)
			return existing, false, lookupErr
		}
		return nil, false, err
	}
	return user, true, nil
}

// issueSession mints the token pair and sets both cookies. Returns false
// after writing an error response.
func (h *AuthHandler) issueSession(c *gin.Context, user *storage.User) bool {
	now := h.Clock.Now()

	access, err := security.NewAccessToken(user.ID.String(), user.Name, user.Email, h.Cfg.JWTSecret, h.Cfg.AccessTTL, now, h.Cfg.Issuer)
	if err != nil {
		h.Logger.Error("jwt sign failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return false
	}

	refreshToken, refreshHash, err := h.TokenGen.New()
	if err != nil {
		h.Logger.Error("refresh token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return false
	}

	_, err = h.Store.CreateRefreshToken(c.Request.Context(), user.ID, refreshHash, now.Add(h.Cfg.RefreshTTL), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.Logger.Error("refresh token insert failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "INTERNAL_ERROR", Message: "internal error"})
		return false
	}

	h.setAuthCookies(c, access, refreshToken)
	return true
}

func (h *AuthHandler) setAuthCookies(c *gin.Context, access, refresh string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, access, int(h.Cfg.AccessTTL.Seconds()), "/", h.Cfg.Cookie.Domain, h.Cfg.Cookie.Secure, true)
	c.SetCookie(refreshCookie, refresh, int(h.Cfg.RefreshTTL.Seconds()), refreshCookiePath, h.Cfg.Cookie.Domain, h.Cfg.Cookie.Secure, true)
}

func (h *AuthHandler) clearAuthCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", h.Cfg.Cookie.Domain, h.Cfg.Cookie.Secure, true)
	c.SetCookie(refreshCookie, "", -1, refreshCookiePath, h.Cfg.Cookie.Domain, h.Cfg.Cookie.Secure, true)
}

// reuseDetected handles a replayed or concurrently-rotated refresh token:
// the whole family is revoked and the client must log in again.
func (h *AuthHandler) reuseDetected(c *gin.Context, token *storage.RefreshToken) {
	if err := h.Store.RevokeAllTokens(c.Request.Context(), token.UserID); err != nil {
		h.Logger.Error("revoke all tokens failed", "error", err)
	}
	h.Metrics.tokenReuse()
	h.publishTokenReuse(c, token.UserID)
	h.clearAuthCookies(c)
	c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "token reuse detected"})
}

func (h *AuthHandler) allow(c *gin.Context, limiter rate.Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	allowed, retryAfter, err := limiter.Allow(c.Request.Context(), key, h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
		// Fail open: throttling is protection, not a dependency.
		return true
	}
	if !allowed {
		if retryAfter > 0 {
			c.Header("Retry-After", retryAfter.Round(time.Second).String())
		}
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return false
	}
	return true
}

func (h *AuthHandler) publishSignedUp(c *gin.Context, user *storage.User, provider string) {
	if h.Events == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventUserSignedUp, httpmiddleware.RequestIDFrom(c))
	if err != nil {
		return
	}
	event := kafka.UserSignedUpEvent{Envelope: env, UserID: user.ID.String(), Email: user.Email, Name: user.Name, Provider: provider}
	if _, _, err := h.Events.PublishJSON(c.Request.Context(), kafka.TopicAuthEvents, user.ID.String(), event); err != nil {
		h.Logger.Error("signup event publish failed", "error", err)
	}
}

func (h *AuthHandler) publishPasswordReset(c *gin.Context, user *storage.User) {
	if h.Events == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventUserPasswordReset, httpmiddleware.RequestIDFrom(c))
	if err != nil {
		return
	}
	event := kafka.UserPasswordResetEvent{Envelope: env, UserID: user.ID.String(), Email: user.Email}
	if _, _, err := h.Events.PublishJSON(c.Request.Context(), kafka.TopicAuthEvents, user.ID.String(), event); err != nil {
		h.Logger.Error("password reset event publish failed", "error", err)
	}
}

func (h *AuthHandler) publishTokenReuse(c *gin.Context, userID uuid.UUID) {
	if h.Events == nil {
		return
	}
	env, err := kafka.NewEnvelope(kafka.EventAuthTokenReuse, httpmiddleware.RequestIDFrom(c))
	if err != nil {
		return
	}
	event := kafka.TokenReuseEvent{Envelope: env, UserID: userID.String()}
	if _, _, err := h.Events.PublishJSON(c.Request.Context(), kafka.TopicAuthEvents, userID.String(), event); err != nil {
		h.Logger.Error("token reuse event publish failed", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
