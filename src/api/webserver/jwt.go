package webserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func issueJWT(accountID uint64, role string, isAdmin bool, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   accountID,
		"role":  role,
		"admin": isAdmin,
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	return token.SignedString(secret)
}

func parseJWT(tokenStr string, secret []byte) (accountID uint64, role string, isAdmin bool, err error) {
	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) { return secret, nil })
	if err != nil || !tok.Valid {
		return 0, "", false, jwt.ErrTokenUnverifiable
	}
	claims := tok.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(float64)
	role, _ = claims["role"].(string)
	isAdmin, _ = claims["admin"].(bool)
	return uint64(sub), role, isAdmin, nil
}

func JWTMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		accountID, role, isAdmin, err := parseJWT(h[7:], secret)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set("accountID", accountID)
		c.Set("role", role)
		c.Set("isAdmin", isAdmin)
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("isAdmin") {
			c.JSON(http.StatusForbidden, gin.H{"err": "admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func accountID(c *gin.Context) uint64 {
	v, _ := c.Get("accountID")
	id, _ := v.(uint64)
	return id
}
