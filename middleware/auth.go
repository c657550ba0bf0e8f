package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"skolu-backend/utils"
)

// AuthRequired validates the Bearer token and puts the user ID on the context.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			utils.Unauthorized(c, "Authorization header must be a Bearer token")
			c.Abort()
			return
		}

		userID, err := utils.ValidateToken(tokenString)
		if err != nil {
			utils.Unauthorized(c, "Token is invalid or expired")
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}
