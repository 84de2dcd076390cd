package middleware

import (
	"net/http"
	"os"
	"strings"

	"alumniportal/internal/scope"
	"alumniportal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// parseActor validates the JWT (cookie first, then bearer header) and builds
// the Actor value object from its claims. The lifecycle engine only ever sees
// this value, never the HTTP context.
func parseActor(c *gin.Context) (scope.Actor, bool) {
	tokenString, cookieErr := c.Cookie("access_token")
	if cookieErr != nil || tokenString == "" {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return scope.Actor{}, false
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
			return scope.Actor{}, false
		}
		tokenString = parts[1]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return GetJWTSecret(), nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return scope.Actor{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
		return scope.Actor{}, false
	}

	sub, _ := claims["sub"].(string)
	actorID, err := uuid.Parse(sub)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid subject claim"))
		return scope.Actor{}, false
	}

	actor := scope.Actor{ID: actorID}
	actor.Role, _ = claims["role"].(string)

	if typ, _ := claims["typ"].(string); typ == "alumni" {
		actor.IsAlumni = true
	}

	if branchStr, _ := claims["branch_id"].(string); branchStr != "" {
		if branchID, parseErr := uuid.Parse(branchStr); parseErr == nil {
			actor.BranchID = &branchID
		}
	}

	if rawCaps, ok := claims["caps"].([]interface{}); ok {
		for _, raw := range rawCaps {
			if code, ok := raw.(string); ok {
				actor.Capabilities = append(actor.Capabilities, code)
			}
		}
	}

	return actor, true
}

// RequireAuth validates the token and stores the Actor for handlers.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c)
		if !ok {
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireCapability validates the token and checks the actor holds every
// listed capability. Alumni tokens carry no staff capabilities, so they are
// rejected here unless the route also accepts owners (see RequireAlumni).
func RequireCapability(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c)
		if !ok {
			return
		}

		for _, code := range required {
			if !actor.Has(code) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing capability '"+code+"'"))
				return
			}
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAlumni accepts only alumni tokens (owner-facing routes).
func RequireAlumni() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c)
		if !ok {
			return
		}
		if !actor.IsAlumni {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: alumni account required"))
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRole validates the JWT and checks the user's role against the list.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := parseActor(c)
		if !ok {
			return
		}

		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Set(actorKey, actor)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// ActorFromContext returns the Actor stored by the auth middleware.
func ActorFromContext(c *gin.Context) (scope.Actor, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return scope.Actor{}, false
	}
	actor, ok := value.(scope.Actor)
	return actor, ok
}
