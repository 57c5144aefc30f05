package middlewares

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contractflow/proposals_backend/config"
	"github.com/contractflow/proposals_backend/models"
	"github.com/contractflow/proposals_backend/utils"
)

// Session is the payload stored in redis under "Session:<token>".
type Session struct {
	UserId         string `json:"user_id"`
	OrganizationId string `json:"organization_id"`
	UserName       string `json:"user_name"`
	Role           string `json:"role"`
}

// SessionMiddleware resolves the token header against redis and loads the
// session user into the request context. Requests without a token pass
// through untouched so public routes keep working.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		var session Session
		exists, err := config.GetRedisObject("Session:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetOrganizationIdInContext(ctx, session.OrganizationId)
		ctx = utils.SetUserNameInContext(ctx, session.UserName)
		ctx = utils.SetUserRoleInContext(ctx, session.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("SESSION_LIFESPAN_HOURS"))
	if err != nil || hours <= 0 {
		hours = 24 * 30
	}
	return time.Duration(hours) * time.Hour
}

// IssueSession mints a token and stores the session in redis.
func IssueSession(user *models.User) (string, error) {
	token, err := utils.GenerateToken(32)
	if err != nil {
		return "", err
	}
	session := Session{
		UserId:         user.ID,
		OrganizationId: user.OrganizationId,
		UserName:       user.Name,
		Role:           string(user.Role),
	}
	if err := config.SetRedisObject("Session:"+token, session, sessionLifespan()); err != nil {
		return "", err
	}
	return token, nil
}

func RevokeSession(token string) error {
	return config.RemoveRedisKey("Session:" + token)
}

// RequireSession rejects requests that did not authenticate.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
