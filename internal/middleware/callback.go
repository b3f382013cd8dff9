package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CallbackSecretHeader carries the shared secret on requests from the
// automation workflow.
const CallbackSecretHeader = "X-Callback-Secret"

// SharedSecret guards machine-to-machine callbacks that can't hold a user
// token. Requests without the exact secret end with 401.
func SharedSecret(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(CallbackSecretHeader))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid callback secret"})
			return
		}
		c.Next()
	}
}
