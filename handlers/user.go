// user.go - Handles registration, login and user management

package handlers // Declares the package name

import ( // Import required packages
	"errors"
	"net/http" // HTTP status codes
	"strings"

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-home-dashboard/auth"       // Password hashing and tokens
	"go-home-dashboard/database"   // Role lookup
	"go-home-dashboard/logging"    // Activity log
	"go-home-dashboard/middleware" // Current user
	"go-home-dashboard/models"     // User model
)

type RegisterInput struct { // Struct for registration input
	Username string `json:"username" binding:"required,min=3,max=64"` // Login name (required)
	Email    string `json:"email" binding:"required,email"`           // Email (required)
	Name     string `json:"name" binding:"max=128"`                   // Display name
	Password string `json:"password" binding:"required,min=6"`        // Password (required)
}

type LoginInput struct { // Struct for login input
	Username string `json:"username" binding:"required"` // Username or email (required)
	Password string `json:"password" binding:"required"` // Password (required)
}

// CreateUserInput is what an admin sends to add an account.
type CreateUserInput struct {
	RegisterInput
	Role string `json:"role" binding:"omitempty,rolename"` // Admin | User, defaults to User
}

// UpdateUserInput is a partial update; nil fields are left alone.
type UpdateUserInput struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=64"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Name     *string `json:"name" binding:"omitempty,max=128"`
	Password *string `json:"password" binding:"omitempty,min=6"`
	Role     *string `json:"role"` // Checked by hand so an unknown name gets a clear message
}

// Register creates a User-role account.
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if !bindJSON(c, &input) {
		return
	}
	user, err := h.createUser(input, models.RoleUser)
	if err != nil {
		dbError(c, err)
		return
	}
	logging.Audit(user.ID).Infof("user %s registered", user.Username)
	c.JSON(http.StatusCreated, user)
}

// Login checks credentials and issues a token.
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}
	var user models.User
	err := h.DB.Preload("Role").
		Where("username = ? OR email = ?", input.Username, strings.ToLower(input.Username)).
		First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			dbError(c, err)
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, user.Salt, input.Password); err != nil {
		logrus.WithField("username", input.Username).Warn("failed login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, claims, err := auth.GenerateToken(user.ID, h.Config.Auth.JWTSecret, h.Config.Auth.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	logging.Audit(user.ID).Infof("user %s logged in", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": claims.ExpiresAt.Time,
		"user":       user,
	})
}

// Me returns the caller.
func (h *Handler) Me(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, user)
}

// Logout revokes the presented token until it would have expired.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	if err := h.Denylist.Revoke(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		logrus.WithError(err).Error("revoke token")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not revoke token"})
		return
	}
	logging.Audit(claims.UserID).Info("user logged out")
	c.Status(http.StatusNoContent)
}

// ListUsers returns every user with its role.
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User
	if err := h.DB.Preload("Role").Order("id").Find(&users).Error; err != nil {
		dbError(c, err)
		return
	}
	listResponse(c, users)
}

// CreateUser lets an admin add an account with any role.
func (h *Handler) CreateUser(c *gin.Context) {
	var input CreateUserInput
	if !bindJSON(c, &input) {
		return
	}
	role := models.RoleUser
	if input.Role != "" {
		role = models.RoleName(input.Role)
	}
	user, err := h.createUser(input.RegisterInput, role)
	if err != nil {
		dbError(c, err)
		return
	}
	caller, _ := middleware.CurrentUser(c)
	logging.Audit(caller.ID).Infof("created user %s with role %s", user.Username, role)
	c.JSON(http.StatusCreated, user)
}

// GetUser returns one user; non-admins may only read themselves.
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !selfOrAdmin(c, id) {
		return
	}
	var user models.User
	if err := h.DB.Preload("Role").First(&user, id).Error; err != nil {
		fail(c, "user", id, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser applies a partial update. Only admins may change roles.
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if !selfOrAdmin(c, id) {
		return
	}
	var input UpdateUserInput
	if !bindJSON(c, &input) {
		return
	}
	caller, _ := middleware.CurrentUser(c)

	var user models.User
	if err := h.DB.Preload("Role").First(&user, id).Error; err != nil {
		fail(c, "user", id, err)
		return
	}

	updates := map[string]interface{}{}
	if input.Username != nil {
		updates["username"] = *input.Username
	}
	if input.Email != nil {
		updates["email"] = strings.ToLower(*input.Email)
	}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Password != nil {
		hash, salt, err := auth.HashPassword(*input.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not hash password"})
			return
		}
		updates["password_hash"] = hash
		updates["salt"] = salt
	}
	if input.Role != nil {
		if !caller.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "only admins can change roles"})
			return
		}
		name, err := models.ParseRoleName(*input.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if caller.ID == user.ID && name != models.RoleAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot remove your own admin role"})
			return
		}
		role, err := database.RoleByName(h.DB, name)
		if err != nil {
			dbError(c, err)
			return
		}
		updates["role_id"] = role.ID
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		dbError(c, err)
		return
	}
	if err := h.DB.Preload("Role").First(&user, id).Error; err != nil {
		dbError(c, err)
		return
	}
	logging.Audit(caller.ID).Infof("updated user %s", user.Username)
	c.JSON(http.StatusOK, user)
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	caller, _ := middleware.CurrentUser(c)
	if caller.ID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "you cannot delete your own account"})
		return
	}
	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		fail(c, "user", id, err)
		return
	}
	if err := h.DB.Delete(&user).Error; err != nil {
		dbError(c, err)
		return
	}
	logging.Audit(caller.ID).Infof("deleted user %s", user.Username)
	c.Status(http.StatusNoContent)
}

func (h *Handler) createUser(input RegisterInput, roleName models.RoleName) (*models.User, error) {
	role, err := database.RoleByName(h.DB, roleName)
	if err != nil {
		return nil, err
	}
	hash, salt, err := auth.HashPassword(input.Password) // Hash password
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     input.Username,
		Email:        strings.ToLower(input.Email),
		Name:         input.Name,
		PasswordHash: hash,
		Salt:         salt,
		RoleID:       role.ID,
		Role:         *role,
	}
	if err := h.DB.Omit("Role").Create(&user).Error; err != nil { // Save user to DB
		return nil, err
	}
	return &user, nil
}

// selfOrAdmin answers 403 unless the caller is an admin or the user id itself.
func selfOrAdmin(c *gin.Context, id uint) bool {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return false
	}
	if caller.IsAdmin() || caller.ID == id {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	return false
}
