package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/contractflow/proposals_backend/utils"
)

const correlationHeader = "X-Correlation-Id"

// CorrelationMiddleware threads a correlation id through every request.
// The caller's header wins so ids survive across service hops.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := c.Request.Header.Get(correlationHeader)
		if correlationId == "" {
			correlationId = uuid.NewString()
		}

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Writer.Header().Set(correlationHeader, correlationId)
		c.Next()
	}
}
