package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"invoicelens/internal/domain"
	"invoicelens/internal/service"
)

const (
	// HeaderAPIKey carries the client's API key.
	HeaderAPIKey = "X-API-KEY"

	ContextKeyAPIKey = "api_key"
)

// APIKeyAuth returns Gin middleware that authenticates the X-API-KEY header and
// stores the resolved key in the context.
func APIKeyAuth(keys service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(HeaderAPIKey))
		if token == "" {
			abortUnauthorized(c, "UNAUTHORIZED", "missing "+HeaderAPIKey+" header")
			return
		}

		key, err := keys.Authenticate(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrAPIKeyRevoked):
			abortUnauthorized(c, "API_KEY_REVOKED", "api key has been revoked")
			return
		case errors.Is(err, domain.ErrUnauthorized):
			abortUnauthorized(c, "UNAUTHORIZED", "invalid api key")
			return
		default:
			requestID, _ := c.Get("request_id")
			log.Printf("[%s] middleware.APIKeyAuth: %v", requestID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   gin.H{"code": "INTERNAL_ERROR", "message": "an internal error occurred"},
			})
			return
		}

		c.Set(ContextKeyAPIKey, key)
		c.Next()
	}
}

// GetAPIKey returns the authenticated key, or nil outside APIKeyAuth.
func GetAPIKey(c *gin.Context) *domain.APIKey {
	v, ok := c.Get(ContextKeyAPIKey)
	if !ok {
		return nil
	}
	key, _ := v.(*domain.APIKey)
	return key
}

func abortUnauthorized(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": msg},
	})
}
