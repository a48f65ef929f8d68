// auth.go - JWT authentication middleware
// This file implements authentication and authorization for the API
//
// Authentication Flow:
// 1. Extract JWT token from Authorization header (or ?token= for websockets)
// 2. Validate token signature, algorithm and expiration
// 3. Reject tokens revoked by logout
// 4. Load the user with its role and store it in context for handlers
//
// Authorization Flow (Admin):
// 1. Run after AuthMiddleware
// 2. Check the role loaded from the database, never a claim

package middleware // Declares the package name

import ( // Import required packages
	"errors"
	"net/http" // HTTP status codes (401, 403, etc.)
	"strings"  // String operations (for header parsing)

	"github.com/gin-gonic/gin" // Gin web framework (for middleware)
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"go-home-dashboard/auth"   // Token parsing and denylist
	"go-home-dashboard/models" // User model (for role checking)
)

// Context keys set by AuthMiddleware.
const (
	ctxUser   = "user"
	ctxClaims = "claims"
)

// AuthMiddleware returns a Gin middleware that authenticates the caller.
func AuthMiddleware(secret string, denylist auth.Denylist, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) { // Middleware handler (runs before each request)
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"}) // Return 401 Unauthorized
			return
		}

		claims, err := auth.ParseToken(tokenStr, secret)
		if err != nil { // If token is invalid or expired
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if denylist != nil {
			revoked, err := denylist.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				logrus.WithError(err).Error("denylist lookup failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token check unavailable"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		// The role is read from the database on every request so a demoted
		// admin loses access immediately.
		var user models.User
		if err := db.Preload("Role").First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.Set(ctxUser, &user)
		c.Set(ctxClaims, claims)
		c.Next() // Continue to next handler (authentication successful)
	}
}

// AdminMiddleware allows only users holding the Admin role.
// It must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next() // Continue to next handler (admin access granted)
	}
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

// CurrentClaims returns the token claims stored by AuthMiddleware.
func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxClaims)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*auth.Claims)
	return cl, ok
}

// bearerToken reads "Authorization: Bearer <token>". Browsers cannot set
// headers on a websocket handshake, so upgrade requests may use ?token=.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if header == "" && strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
		return c.Query("token")
	}
	return ""
}
