// Package httpapi serves the token lifecycle and a few role-protected
// resources over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/gin-gonic/gin"
)

type TokenService interface {
	Login(ctx context.Context, login, password, sourceIP string) (*models.TokenPair, error)
	Rotate(ctx context.Context, presentedSecret, sourceIP string) (*models.TokenPair, error)
	Revoke(ctx context.Context, presentedSecret, sourceIP string) error
	RevokeAll(ctx context.Context, subjectID, sourceIP string) (int64, error)
	Sessions(ctx context.Context, subjectID string) ([]*models.RefreshToken, error)
}

type UserRegistrar interface {
	Register(ctx context.Context, login, displayName, password string) (*models.Identity, error)
}

type AccessTokenParser interface {
	Parse(token string, now time.Time) (*auth.Claims, error)
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type SessionResponse struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedByIP string    `json:"created_by_ip"`
}

type AuthHandler struct {
	tokens       TokenService
	users        UserRegistrar
	parser       AccessTokenParser
	clock        timex.Clock
	logger       logging.Logger
	cookieSecure bool
}

func NewAuthHandler(ts TokenService, ur UserRegistrar, p AccessTokenParser, c timex.Clock, l logging.Logger, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		tokens:       ts,
		users:        ur,
		parser:       p,
		clock:        c,
		logger:       l.With("module", "http_api"),
		cookieSecure: cookieSecure,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	identity, err := h.users.Register(c.Request.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user registered successfully", "subject_id": identity.SubjectID})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := h.tokens.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeTokens(c, pair)
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	pair, err := h.tokens.Rotate(c.Request.Context(), req.RefreshToken, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeTokens(c, pair)
}

// Revoke always succeeds for well-formed requests, whatever the token state.
func (h *AuthHandler) Revoke(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.tokens.Revoke(c.Request.Context(), req.RefreshToken, c.ClientIP()); err != nil {
		h.writeError(c, err)
		return
	}

	h.setAccessCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

// Sessions lists the caller's active refresh tokens without their secrets.
func (h *AuthHandler) Sessions(c *gin.Context) {
	claims := MustClaims(c)

	list, err := h.tokens.Sessions(c.Request.Context(), claims.Subject)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]SessionResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, SessionResponse{ID: t.ID, CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt, CreatedByIP: t.CreatedByIP})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

// RevokeAll logs the caller out everywhere. Access tokens already handed out
// stay valid until they expire.
func (h *AuthHandler) RevokeAll(c *gin.Context) {
	claims := MustClaims(c)

	n, err := h.tokens.RevokeAll(c.Request.Context(), claims.Subject, c.ClientIP())
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setAccessCookie(c, "", -1)
	c.JSON(http.StatusOK, gin.H{"message": "sessions revoked", "revoked": n})
}

func (h *AuthHandler) Secure(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "You are authorized!"})
}

func (h *AuthHandler) Profile(c *gin.Context) {
	claims := MustClaims(c)
	c.JSON(http.StatusOK, gin.H{
		"subject_id": claims.Subject,
		"name":       claims.Name,
		"roles":      claims.Roles,
	})
}

func (h *AuthHandler) AdminDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Admin dashboard data"})
}

func (h *AuthHandler) writeTokens(c *gin.Context, pair *models.TokenPair) {
	expiresIn := int64(pair.ExpiresIn / time.Second)
	h.setAccessCookie(c, pair.AccessToken, int(expiresIn))
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    expiresIn,
	})
}

func (h *AuthHandler) setAccessCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.AccessTokenCookieName, value, maxAge, "/", "", h.cookieSecure, true)
}

// writeError answers every authentication failure with the same body.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, common.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
	case common.IsUnauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, common.ErrorValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrorAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
	case errors.Is(err, common.ErrStoreUnavailable):
		h.logger.Warn(ctx, "store unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		h.logger.Error(ctx, "request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
