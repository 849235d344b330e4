package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
)

// CounselorEvents godoc
// @ID          counselorEvents
// @Summary     Stream counselor notifications
// @Description Server-Sent Events stream of new requests, cancellations and ended consultations
// @Description for the acting counselor. A comment line is sent periodically as a keep-alive.
// @Tags        Counselors
// @Produce     text/event-stream
// @Param       X-Counselor-ID  header  int  true  "Acting counselor"  example(2)
// @Success     200  {string}  string  "event stream"
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Router      /counselors/me/events [get]
func (h *Handlers) CounselorEvents(c *gin.Context) {
	if !available(c, h.events) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}

	sub := h.events.Subscribe(id)
	defer h.events.Unsubscribe(sub)

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	// The server write timeout would otherwise cut the stream.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	c.Writer.Flush()

	lg := middleware.LoggerFrom(c)
	lg.Debug().Uint("counselor_id", id).Msg("event stream opened")

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			lg.Debug().Uint("counselor_id", id).Msg("event stream closed")
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
		case <-hb.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
