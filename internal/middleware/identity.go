package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	UserIDKey   = "userID"
	UsernameKey = "username"
)

// IdentityMiddleware извлекает заявленную клиентом личность из query
// параметров. Сервер её не проверяет: любое соединение может назвать
// любой userId, это осознанная граница доверия.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			userID = uuid.New().String()
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, c.Query("username"))
		c.Next()
	}
}
