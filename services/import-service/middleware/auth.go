package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"

	"github.com/yashrajoria/construction-backend/services/common/auth"
	apperrors "github.com/yashrajoria/construction-backend/services/common/errors"
	commonmw "github.com/yashrajoria/construction-backend/services/common/middleware"
)

// TokenKey holds the caller's raw bearer token so imports can act on their behalf.
const TokenKey = "auth_token"

// JWTAuth requires a valid access token and stores the user ID and raw token
// on the gin context.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			apperrors.Respond(c, apperrors.Wrap(apperrors.ErrUnauthorized, errors.New("token is required")))
			return
		}
		claims, err := auth.ParseAndValidateToken(token, "")
		if err != nil {
			apperrors.Respond(c, apperrors.ErrInvalidToken)
			return
		}
		if typ, ok := claims["typ"].(string); ok && typ != "" && typ != "access" {
			apperrors.Respond(c, apperrors.Wrap(apperrors.ErrInvalidToken, errors.New("not an access token")))
			return
		}

		userID := cast.ToString(claims["user_id"])
		if userID == "" {
			userID = cast.ToString(claims["sub"])
		}
		c.Set(commonmw.UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// Token returns the bearer token JWTAuth stored, if any.
func Token(c *gin.Context) string {
	return c.GetString(TokenKey)
}

// UserID returns the authenticated user's ID, if any.
func UserID(c *gin.Context) string {
	return c.GetString(commonmw.UserIDKey)
}
