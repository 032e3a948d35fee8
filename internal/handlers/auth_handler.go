package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"lostandfound/internal/middleware"
	"lostandfound/internal/models"
	"lostandfound/internal/services"
	"lostandfound/internal/utils"
)

type AuthHandler struct {
	userService services.UserService
	authService services.AuthService
	audit       services.AuditService
	accessTTL   time.Duration
}

func NewAuthHandler(userService services.UserService, authService services.AuthService, audit services.AuditService, accessTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		audit:       audit,
		accessTTL:   accessTTL,
	}
}

// @Summary      Log in
// @Description  Authenticates a user and returns an access token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        login  body      models.LoginRequest  true  "Credentials"
// @Success      200    {object}  map[string]interface{}
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := utils.NormalizeEmail(req.Email)

	user, err := h.userService.GetUserByEmail(email)
	if err != nil {
		log.Printf("[auth][login] lookup failed: err=%v", err)
		h.audit.Record(models.EventLogin, email, false, "lookup failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if user == nil {
		h.audit.Record(models.EventLogin, email, false, "unknown identifier")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := h.authService.CheckPassword(user.PasswordHash, req.Password); err != nil {
		h.audit.Record(models.EventLogin, email, false, "wrong password")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	claims := &middleware.Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.accessTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(middleware.SigningKey())
	if err != nil {
		log.Printf("[auth][login] sign access token failed: user_id=%d err=%v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate access token"})
		return
	}

	h.audit.Record(models.EventLogin, email, true, "login ok")
	log.Printf("[auth][login] success user_id=%d must_change=%v", user.ID, user.MustChangePassword)

	c.JSON(http.StatusOK, gin.H{
		"message":              "Login successful",
		"access_token":         tokenString,
		"must_change_password": user.MustChangePassword,
	})
}
