package handlers

import (
	"net/http"
	"time"

	"checkers-platform/backend/internal/auth"
	"checkers-platform/backend/internal/db"
	"checkers-platform/backend/internal/models"
	"checkers-platform/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const accessCookieName = "access_token"

// setAccessCookie stores the access token as an HTTP-only cookie so the
// websocket layer can authenticate the upgrade request.
func setAccessCookie(c *gin.Context, token string) {
	c.SetCookie(accessCookieName, token, int(auth.AccessTokenTTL.Seconds()), "/", "", false, true)
}

func clearAccessCookie(c *gin.Context) {
	c.SetCookie(accessCookieName, "", -1, "/", "", false, true)
}

func validateRegister(req *models.RegisterRequest) (birthdate time.Time, err error) {
	req.Email = validation.SanitizeString(req.Email)
	req.Username = validation.SanitizeString(req.Username)
	req.Name = validation.SanitizeString(req.Name)
	req.Surname = validation.SanitizeString(req.Surname)
	req.Country = validation.SanitizeString(req.Country)

	if err = validation.ValidateEmail(req.Email); err != nil {
		return
	}
	if err = validation.ValidateUsername(req.Username); err != nil {
		return
	}
	if err = validation.ValidatePassword(req.Password); err != nil {
		return
	}
	if err = validation.ValidateName(req.Name, "name"); err != nil {
		return
	}
	if err = validation.ValidateName(req.Surname, "surname"); err != nil {
		return
	}
	birthdate, err = time.Parse("2006-01-02", req.Birthdate)
	if err != nil {
		return time.Time{}, validation.ErrInvalidBirthdate
	}
	if err = validation.ValidateBirthdate(birthdate); err != nil {
		return
	}
	if err = validation.ValidateCountry(req.Country); err != nil {
		return
	}
	return birthdate, nil
}

// HandleRegister handles user registration
func HandleRegister(c *gin.Context, database *db.DB, authService *auth.Service) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	birthdate, err := validateRegister(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := database.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		return
	}

	hash, err := authService.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		Name:         req.Name,
		Surname:      req.Surname,
		PasswordHash: hash,
		Birthdate:    &birthdate,
		Country:      req.Country,
	}

	if err := database.Create(&user).Error; err != nil {
		// Unique index race between the existence check and the insert.
		c.JSON(http.StatusConflict, gin.H{"error": "Username or email already exists"})
		return
	}

	c.JSON(http.StatusCreated, user)
}

// HandleLogin verifies credentials and issues an access/refresh token pair.
// The refresh token is persisted so it can be rotated and revoked.
func HandleLogin(c *gin.Context, database *db.DB, authService *auth.Service) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var user models.User
	if err := database.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !authService.CheckPassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	access, err := authService.GenerateAccessToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	refresh, err := authService.GenerateRefreshToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	row := models.AuthToken{
		UserID:       user.UserID,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(auth.RefreshTokenTTL),
	}
	if err := database.Create(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	setAccessCookie(c, access)
	c.JSON(http.StatusOK, models.AuthResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

// HandleRefresh rotates the presented refresh token: the stored row is
// replaced by a fresh one in the same transaction, and a new access token
// is issued alongside it.
func HandleRefresh(c *gin.Context, database *db.DB, authService *auth.Service) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var row models.AuthToken
	if err := database.Where("refresh_token = ?", req.RefreshToken).First(&row).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		database.Delete(&models.AuthToken{}, "id = ?", row.ID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token expired"})
		return
	}

	var user models.User
	if err := database.Where("userid = ?", row.UserID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	refresh, err := authService.GenerateRefreshToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	err = database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.AuthToken{}, "id = ?", row.ID).Error; err != nil {
			return err
		}
		next := models.AuthToken{
			UserID:       user.UserID,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().UTC().Add(auth.RefreshTokenTTL),
		}
		return tx.Create(&next).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	access, err := authService.GenerateAccessToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	setAccessCookie(c, access)
	c.JSON(http.StatusOK, models.AuthResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

// HandleLogout revokes the presented refresh token and clears the access
// cookie. Always succeeds so repeated logouts are harmless.
func HandleLogout(c *gin.Context, database *db.DB) {
	var req models.RefreshRequest
	_ = c.ShouldBindJSON(&req)

	if req.RefreshToken != "" {
		database.Delete(&models.AuthToken{}, "refresh_token = ?", req.RefreshToken)
	}

	clearAccessCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

// HandleGetCurrentUser returns the current authenticated user
func HandleGetCurrentUser(c *gin.Context, database *db.DB) {
	userID := c.GetInt64("userid")

	var user models.User
	if err := database.Where("userid = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// AuthMiddleware validates the access token and stores the caller's
// userid/username in the request context. The token is read from the
// access_token cookie first, then from the Authorization header.
func AuthMiddleware(database *db.DB, authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(accessCookieName)
		if err != nil || token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" || len(authHeader) < 8 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				c.Abort()
				return
			}
			token = authHeader[7:]
		}

		username, err := authService.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := database.Where("username = ?", username).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("userid", user.UserID)
		c.Set("username", user.Username)
		c.Next()
	}
}
