package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/siteworks-dev/siteworks/config"
	"github.com/siteworks-dev/siteworks/middleware"
)

type AuthHandler struct {
	config *config.Config
}

func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Username  string `json:"username"`
	Company   string `json:"company"`
}

// authenticate looks up the user and checks the password. Users come
// from the config file; passwords are plain for now.
// TODO: bcrypt the configured passwords before a real deployment.
func (h *AuthHandler) authenticate(username, password string) *config.User {
	user := h.config.FindUser(username)
	if user == nil || user.Password != password {
		return nil
	}
	return user
}

// Login exchanges credentials for a signed access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user := h.authenticate(req.Username, req.Password)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(user.Username, user.Company, &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		Username:  user.Username,
		Company:   user.Company,
	})
}

// GetCurrentUser returns the identity of the authenticated caller.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": middleware.GetUsername(c),
		"company":  middleware.GetCompany(c),
	})
}
