package webhook

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"outreach_backend/internal/voice"
	"outreach_backend/platform/logger"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// SignatureMiddleware verifies the vendor's HMAC signature over the raw
// request body before any handler parses it. The body is restored for
// downstream binding. Requests with a missing or bad signature are rejected
// and logged without touching any state.
func SignatureMiddleware(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			log.WebhookRejected(c.FullPath(), "unreadable body", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		signature := c.GetHeader("X-Signature")
		if !voice.VerifySignature(secret, body, signature) {
			log.WebhookRejected(c.FullPath(), "invalid signature", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		c.Next()
	}
}
