package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ledgerguard/ledgerguard/internal/auth"
)

// operatorKey is the Gin context key the verified operator identity is
// stored under; handlers use it for the ExportedBy field of exports.
const operatorKey = "operator"

// RequireOperator returns a middleware that validates the Authorization
// bearer token. A nil issuer disables the check (development mode) and
// requests run as "anonymous".
func RequireOperator(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if issuer == nil {
			c.Set(operatorKey, "anonymous")
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := issuer.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}

		c.Set(operatorKey, claims.Subject)
		c.Next()
	}
}

func operatorFrom(c *gin.Context) string {
	if op := c.GetString(operatorKey); op != "" {
		return op
	}
	return "anonymous"
}
