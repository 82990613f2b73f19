package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const driverKey = "driver"

// DriverClaims identify the driver behind a request.
type DriverClaims struct {
	DriverID  string `json:"driver_id"`
	Name      string `json:"name"`
	Confirmed bool   `json:"confirmed"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for the driver.
func SignToken(secret []byte, claims DriverClaims, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	claims.Subject = claims.DriverID
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a token and returns its claims.
func ParseToken(secret []byte, tokenString string) (DriverClaims, error) {
	var claims DriverClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return DriverClaims{}, err
	}
	if !token.Valid || claims.DriverID == "" {
		return DriverClaims{}, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Auth requires a valid driver token, read from the Authorization header or,
// for websocket upgrades, the token query parameter.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if h := c.GetHeader("Authorization"); h != "" {
			parts := strings.SplitN(h, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenString = strings.TrimSpace(parts[1])
			}
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token", "code": "unauthorized", "request_id": GetRequestID(c)})
			return
		}
		claims, err := ParseToken(secret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token", "code": "unauthorized", "request_id": GetRequestID(c)})
			return
		}
		c.Set(driverKey, claims)
		c.Next()
	}
}

// GetDriver returns the claims set by Auth.
func GetDriver(c *gin.Context) (DriverClaims, bool) {
	if c == nil {
		return DriverClaims{}, false
	}
	v, ok := c.Get(driverKey)
	if !ok {
		return DriverClaims{}, false
	}
	claims, ok := v.(DriverClaims)
	return claims, ok
}

// AdminKey guards operator routes with a static token sent in X-Admin-Token.
// With no token configured the routes are closed.
func AdminKey(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden", "request_id": GetRequestID(c)})
			return
		}
		c.Next()
	}
}
