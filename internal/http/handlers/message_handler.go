// Message HTTP handlers.
//
// This file exposes REST endpoints for consultation messages:
//   - POST /consultations/{code}/messages   (append a message)
//   - GET  /consultations/{code}/messages   (paginated history, ETag support)
//
// The sender is the assigned counselor when the request carries counselor
// identity, and the consultation's user otherwise.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	// Content is the message text. It must be non-empty after trimming.
	Content string `json:"content" binding:"required,min=1" example:"I have been feeling tired after work lately."`
}

// PostMessageResponse wraps the stored message.
type PostMessageResponse struct {
	Message *domain.ConsultationMessage `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.ConsultationMessage `json:"messages"`
	Pagination Pagination                   `json:"pagination"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses blank-line runs and
// trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message
// @Description Appends a text message to an open consultation. With X-Counselor-ID the
// @Description assigned counselor is the sender; otherwise the user is.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-Counselor-ID  header  int     false  "Counselor sending the message"  example(2)
// @Param       code            path    string  true   "Consultation code"              example(K7Q2M9X4A)
// @Param       body            body    handlers.PostMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.PostMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Counselor not assigned"
// @Failure     404  {object}  handlers.ErrorResponse  "Consultation not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Consultation closed"
// @Router      /consultations/{code}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	if !available(c, h.msgSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	in := services.SendInput{SenderType: domain.SenderUser, Content: content}
	if id, found := middleware.CounselorIDFrom(c); found {
		in.SenderType = domain.SenderCounselor
		in.SenderID = &id
	}

	m, err := h.msgSvc.Send(c.Request.Context(), code, in)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, PostMessageResponse{Message: m})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a consultation
// @Description Returns a page of messages, oldest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Messages
// @Produce     json
// @Param       code           path    string  true   "Consultation code"            example(K7Q2M9X4A)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Header      200  {string}  ETag  "Weak ETag for the current history"
// @Success     304  {string}  string  "Not Modified"
// @Failure     404  {object}  handlers.ErrorResponse  "Consultation not found"
// @Router      /consultations/{code}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	if !available(c, h.msgSvc) {
		return
	}
	ctx := c.Request.Context()
	code, valid := codeParam(c)
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). Page bounds are part of the tag.
	if count, latest, err := h.msgSvc.Stats(ctx, code); err == nil {
		var ts int64
		if latest != nil {
			ts = latest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"messages:%s:%d:%d:%d:%d"`, code, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, code, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
