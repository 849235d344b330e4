// Consultation card and music recommendation handlers.
//
//   - POST /consultations/{code}/card                   (issue once, after completion)
//   - GET  /consultations/{code}/card                   (fetch)
//   - PUT  /consultations/{code}/card/notes             (assigned counselor only)
//   - GET  /consultations/{code}/music-recommendations  (tracks for the conversation)
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// maxNotesLen bounds counselor notes on a card.
const maxNotesLen = 2000

// CardNotesRequest carries counselor notes for a card.
type CardNotesRequest struct {
	Notes string `json:"notes" example:"Follow up on sleep habits next session."`
}

// CardResponse wraps a consultation card.
type CardResponse struct {
	Card *domain.ConsultationCard `json:"card"`
}

// bindNotes reads an optional notes body. An empty body means no notes.
func bindNotes(c *gin.Context) (string, bool) {
	var req CardNotesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return "", false
		}
	}
	notes := sanitizeContent(req.Notes)
	if len([]rune(notes)) > maxNotesLen {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "notes must be at most "+strconv.Itoa(maxNotesLen)+" characters")
		return "", false
	}
	return notes, true
}

// IssueCard godoc
// @ID          issueCard
// @Summary     Issue a consultation card
// @Description Creates the card for a completed consultation. A consultation has at most one card.
// @Tags        Cards
// @Accept      json
// @Produce     json
// @Param       code  path      string  true   "Consultation code"  example(K7Q2M9X4A)
// @Param       body  body      handlers.CardNotesRequest  false  "Optional counselor notes"
// @Success     201   {object}  handlers.CardResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Not completed or card already issued"
// @Router      /consultations/{code}/card [post]
func (h *Handlers) IssueCard(c *gin.Context) {
	if !available(c, h.cardSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	notes, valid := bindNotes(c)
	if !valid {
		return
	}
	card, err := h.cardSvc.Issue(c.Request.Context(), code, notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, CardResponse{Card: card})
}

// GetCard godoc
// @ID          getCard
// @Summary     Get a consultation card
// @Tags        Cards
// @Produce     json
// @Param       code  path      string  true  "Consultation code"  example(K7Q2M9X4A)
// @Success     200   {object}  handlers.CardResponse
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation or card not found"
// @Router      /consultations/{code}/card [get]
func (h *Handlers) GetCard(c *gin.Context) {
	if !available(c, h.cardSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	card, err := h.cardSvc.Get(c.Request.Context(), code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CardResponse{Card: card})
}

// UpdateCardNotes godoc
// @ID          updateCardNotes
// @Summary     Update card notes
// @Description Replaces the notes on a card. Only the consultation's counselor may edit them.
// @Tags        Cards
// @Accept      json
// @Produce     json
// @Param       X-Counselor-ID  header  int     true  "Acting counselor"   example(2)
// @Param       code            path    string  true  "Consultation code"  example(K7Q2M9X4A)
// @Param       body            body    handlers.CardNotesRequest  true  "Notes"
// @Success     200  {object}  handlers.CardResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     403  {object}  handlers.ErrorResponse  "Counselor not assigned"
// @Failure     404  {object}  handlers.ErrorResponse  "Card not found"
// @Router      /consultations/{code}/card/notes [put]
func (h *Handlers) UpdateCardNotes(c *gin.Context) {
	if !available(c, h.cardSvc) {
		return
	}
	counselorID, valid := requireCounselor(c)
	if !valid {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	notes, valid := bindNotes(c)
	if !valid {
		return
	}
	card, err := h.cardSvc.UpdateNotes(c.Request.Context(), counselorID, code, notes)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CardResponse{Card: card})
}

// MusicRecommendations godoc
// @ID          musicRecommendations
// @Summary     Recommend music for a consultation
// @Description Analyzes up to the last 1000 characters of the conversation and returns matching tracks.
// @Tags        Music
// @Produce     json
// @Param       code  path      string  true   "Consultation code"  example(K7Q2M9X4A)
// @Param       take  query     int     false  "Number of tracks"   minimum(1) maximum(10) default(3)
// @Success     200   {object}  services.MusicRecommendations
// @Failure     400   {object}  handlers.ErrorResponse  "Bad take or not enough conversation"
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Consultation closed"
// @Failure     502   {object}  handlers.ErrorResponse  "Music service unavailable"
// @Router      /consultations/{code}/music-recommendations [get]
func (h *Handlers) MusicRecommendations(c *gin.Context) {
	if !available(c, h.musicSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	take := 0
	if raw := c.Query("take"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "take must be between 1 and 10")
			return
		}
		take = n
	}
	res, err := h.musicSvc.Recommend(c.Request.Context(), code, take)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}
