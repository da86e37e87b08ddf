package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	streamEventNotification = "notification"
	streamEventHeartbeat    = "heartbeat"
	heartbeatPeriod         = 25 * time.Second
)

// handleNotificationStream opens the per-user live channel over SSE. The
// handshake is authenticated with the same bearer token as the REST surface;
// the subscribed user id comes from the validated claims, never from the
// client.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	token := c.Query("access_token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("stream token validation failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming_unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := c.Request.Context()
	stream, replaced, cleanup := h.hub.Join(ctx, claims.UserID)
	defer cleanup()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-replaced:
			// A newer connection for this user took over the channel.
			return
		case notification := <-stream:
			payload, err := json.Marshal(notification)
			if err != nil {
				h.logger.Error("notification payload encoding failed", zap.Error(err))
				continue
			}
			if !writeEvent(c, flusher, streamEventNotification, payload) {
				return
			}
		case <-heartbeat.C:
			if !writeEvent(c, flusher, streamEventHeartbeat, []byte(`{}`)) {
				return
			}
		}
	}
}

func writeEvent(c *gin.Context, flusher http.Flusher, event string, data []byte) bool {
	if _, err := c.Writer.WriteString("event: " + event + "\n"); err != nil {
		return false
	}
	if _, err := c.Writer.WriteString("data: " + string(data) + "\n\n"); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
