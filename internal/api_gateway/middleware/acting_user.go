package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ActingUserHeader names the operator performing the request
	ActingUserHeader = "X-User-ID"

	// ActingUserKey is the key used to store the acting user in the gin context
	ActingUserKey = "acting_user_id"
)

// ActingUser reads the optional operator id. A malformed id is rejected with 400.
func ActingUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(ActingUserHeader)
		if raw == "" {
			c.Next()
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			response := gin.H{
				"error": gin.H{
					"code":    "BAD_REQUEST",
					"message": "Invalid " + ActingUserHeader + " header",
				},
			}
			if correlationID := GetCorrelationID(c); correlationID != "" {
				response["correlation_id"] = correlationID
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, response)
			return
		}

		c.Set(ActingUserKey, id)
		c.Next()
	}
}

// GetActingUserID returns the operator id for audit attribution, or nil when the caller is anonymous
func GetActingUserID(c *gin.Context) *uuid.UUID {
	v, exists := c.Get(ActingUserKey)
	if !exists {
		return nil
	}
	id, ok := v.(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}
