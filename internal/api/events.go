package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// streamEvents relays hub messages as Server-Sent Events until the client leaves.
// The event name is the topic and the data is the record location.
func (h *handlers) streamEvents(c *gin.Context) {
	topics, ok := eventTopics(c.QueryArray("topic"))
	if !ok {
		JSONError(c, http.StatusBadRequest, errors.New("unknown topic"))
		return
	}

	ctx := c.Request.Context()
	logger := zerolog.Ctx(ctx)

	messages, stop := h.hub.Subscribe(topics...)
	defer stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	logger.Debug().Strs("topics", topics).Msg("Event stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Event stream closed by client")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			c.Render(-1, sse.Event{
				Event: msg.Topic,
				Data:  msg.Payload,
			})
			c.Writer.Flush()
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
