package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/layer-3/scryptex/core"
	"github.com/layer-3/scryptex/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		logger:      logger,
	}
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID            string  `json:"id"`
	WalletAddress string  `json:"walletAddress"`
	Email         *string `json:"email,omitempty"`
	Username      *string `json:"username,omitempty"`
	Role          string  `json:"role"`
}

// SessionResponse is the public view of a session
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress string    `json:"ipAddress,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Current   bool      `json:"current"`
}

func newUserResponse(u *core.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		WalletAddress: u.WalletAddress,
		Email:         u.Email,
		Username:      u.Username,
		Role:          string(u.Role),
	}
}

// Challenge issues a nonce for a wallet
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindingError(err))
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":     challenge.Nonce,
		"message":   challenge.Message,
		"expiresAt": challenge.ExpiresAt,
	})
}

// Verify checks the signed challenge and opens a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
		Nonce         string `json:"nonce" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindingError(err))
		return
	}

	meta := core.ClientMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	res, err := h.authService.VerifyAndAuthenticate(c.Request.Context(), req.WalletAddress, req.Signature, req.Nonce, meta)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
		"tokenType":    "Bearer",
		"expiresAt":    res.ExpiresAt,
		"expiresIn":    int(time.Until(res.ExpiresAt).Seconds()),
		"isNewUser":    res.Outcome == core.NewUser,
		"user":         newUserResponse(res.User),
	})
}

// Refresh mints a new access token from a refresh token
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindingError(err))
		return
	}

	accessToken, expiresAt, err := h.authService.Sessions().Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"tokenType":   "Bearer",
		"expiresAt":   expiresAt,
		"expiresIn":   int(time.Until(expiresAt).Seconds()),
	})
}

// Logout revokes the session of the presented bearer token
func (h *AuthHandlers) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	if err := h.authService.Sessions().Logout(c.Request.Context(), token); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(user)})
}

// UpdateProfile changes the email and/or username of the authenticated user
func (h *AuthHandlers) UpdateProfile(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}

	var req struct {
		Email    *string `json:"email"`
		Username *string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, h.logger, bindingError(err))
		return
	}

	updated, err := h.authService.UpdateProfile(c.Request.Context(), user.ID, req.Email, req.Username)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": newUserResponse(updated)})
}

// Sessions lists the live sessions of the authenticated user
func (h *AuthHandlers) Sessions(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		abortWithError(c, h.logger, core.ErrUnauthorized)
		return
	}
	current, _ := CurrentSession(c)

	sessions, err := h.authService.Sessions().ListSessions(c.Request.Context(), user.ID)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponse{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			IPAddress: s.IPAddress,
			UserAgent: s.UserAgent,
			Current:   current != nil && current.ID == s.ID,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// Status reports whether the caller is authenticated. Served behind OptionalAuth.
func (h *AuthHandlers) Status(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          newUserResponse(user),
	})
}

// RevokeUserSessions logs a user out of every device. Admin only.
func (h *AuthHandlers) RevokeUserSessions(c *gin.Context) {
	userID := c.Param("id")
	if _, err := uuid.Parse(userID); err != nil {
		abortWithError(c, h.logger, &core.ValidationError{Field: "id", Message: "must be a UUID"})
		return
	}
	if _, err := h.authService.User(c.Request.Context(), userID); err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	n, err := h.authService.Sessions().RevokeAll(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": n})
}
