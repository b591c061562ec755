package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"voicedesk/internal/apperr"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 2 << 20

// VapiWebhook classifies one provider delivery. The provider retries on any
// non-2xx response, so only processed or deliberately ignored events answer 200.
func (h Handlers) VapiWebhook(c *gin.Context) {
	if h.Webhooks == nil {
		notConfigured(c, "webhooks")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		writeWebhookError(c, fmt.Errorf("%w: unreadable body", apperr.ErrInvalidArgument))
		return
	}
	res, err := h.Webhooks.Handle(c.Request.Context(), body)
	if err != nil {
		writeWebhookError(c, err)
		return
	}
	if res.Duplicate() {
		c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func writeWebhookError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		writeError(c, err)
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": apperr.Message(err)})
}
