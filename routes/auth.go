package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prepai-backend/internal/config"
	"prepai-backend/internal/logger"
	"prepai-backend/internal/store"
	"prepai-backend/models"
	"prepai-backend/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, stores *store.Stores) {
	auth := router.Group("/api/v1/auth")

	auth.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		hash, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Registration failed", nil)
			return
		}

		user := &models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
		}
		if _, err := stores.Users.Insert(c.Request.Context(), user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				utils.RespondWithBadRequest(c, "Username or email already registered", nil)
				return
			}
			logger.Error("User insert failed", "error", err)
			utils.RespondWithInternalError(c, "Registration failed", nil)
			return
		}

		logger.Info("User registered", "username", req.Username)
		c.JSON(http.StatusCreated, gin.H{
			"message":  "User registered successfully",
			"username": req.Username,
		})
	})

	auth.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		user, err := stores.Users.FindByEmail(c.Request.Context(), req.Email)
		if err != nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithUnauthorized(c, "Incorrect email or password")
			return
		}

		expiresIn, err := time.ParseDuration(cfg.JWTExpiresIn)
		if err != nil {
			expiresIn = 24 * time.Hour
		}
		token, err := utils.GenerateJWT(user.ID.Hex(), user.Username, cfg.JWTSecret, expiresIn)
		if err != nil {
			logger.Error("Token generation failed", "error", err)
			utils.RespondWithInternalError(c, "Login failed", nil)
			return
		}

		c.JSON(http.StatusOK, models.LoginResponse{
			AccessToken: token,
			TokenType:   "bearer",
			Username:    user.Username,
		})
	})
}
