// Consultation HTTP handlers.
//
// This file exposes the consultation lifecycle:
//   - POST /consultations                     (start; Idempotency-Key aware)
//   - GET  /consultations/{code}              (fetch)
//   - POST /consultations/{code}/reconnect    (resume, optional rename)
//   - POST /consultations/{code}/end          (complete)
//
// Idempotency:
// When a start request carries an Idempotency-Key that already created a
// consultation for the same client, the stored consultation is returned with
// `Idempotency-Replayed: true` instead of opening a second session.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

//
// DTOs
//

// StartConsultationRequest is the JSON payload for starting a consultation.
type StartConsultationRequest struct {
	// Nickname shown to the counselor (1-100 characters).
	Nickname string `json:"nickname" binding:"required" example:"Sunny"`
	// CharacterTypePreference is used only when quick_match is false.
	CharacterTypePreference *uint `json:"character_type_preference,omitempty" example:"3"`
	// QuickMatch assigns a random character type; defaults to true.
	QuickMatch *bool `json:"quick_match,omitempty" example:"true"`
}

// ReconnectRequest is the optional JSON payload for reconnecting.
type ReconnectRequest struct {
	// Nickname, when set, renames the user.
	Nickname *string `json:"nickname,omitempty" example:"Sunny again"`
}

//
// Handlers
//

// StartConsultation godoc
// @ID          startConsultation
// @Summary     Start a consultation
// @Description Creates a waiting consultation with a unique 9-character code and asks the least
// @Description loaded available counselor to take it. Safe to retry with the same Idempotency-Key.
// @Tags        Consultations
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.StartConsultationRequest  true  "Consultation payload"
// @Success     201  {object}  services.ConsultationView
// @Success     200  {object}  services.ConsultationView  "Replayed by Idempotency-Key"
// @Header      200  {string}  Idempotency-Replayed  "true when replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Character type not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /consultations [post]
func (h *Handlers) StartConsultation(c *gin.Context) {
	if !available(c, h.consultSvc) {
		return
	}
	ctx := c.Request.Context()

	var req StartConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "nickname required")
		return
	}

	clientID, scope := middleware.ClientKey(c), middleware.IdempotencyScope(c)
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if code, found, err := h.idem.Lookup(ctx, clientID, scope, idemKey); err == nil && found {
			if prev, err := h.consultSvc.Get(ctx, code); err == nil {
				c.Header(middleware.HeaderIdempotencyReplayed, "true")
				ok(c, http.StatusOK, prev)
				return
			}
		}
	}

	v, err := h.consultSvc.Start(ctx, services.StartInput{
		Nickname:                req.Nickname,
		CharacterTypePreference: req.CharacterTypePreference,
		QuickMatch:              req.QuickMatch,
	})
	if err != nil {
		failErr(c, err)
		return
	}

	// Best effort: a failed save only loses replay protection.
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Save(ctx, clientID, scope, idemKey, v.Code, http.StatusCreated); err != nil {
			lg := middleware.LoggerFrom(c)
			lg.Warn().Err(err).Str("consultation_code", v.Code).Msg("idempotency record not saved")
		}
	}

	ok(c, http.StatusCreated, v)
}

// GetConsultation godoc
// @ID          getConsultation
// @Summary     Get a consultation
// @Tags        Consultations
// @Produce     json
// @Param       code  path      string  true  "Consultation code"  example(K7Q2M9X4A)
// @Success     200   {object}  services.ConsultationView
// @Failure     400   {object}  handlers.ErrorResponse  "Malformed code"
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation not found"
// @Router      /consultations/{code} [get]
func (h *Handlers) GetConsultation(c *gin.Context) {
	if !available(c, h.consultSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	v, err := h.consultSvc.Get(c.Request.Context(), code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// ReconnectConsultation godoc
// @ID          reconnectConsultation
// @Summary     Reconnect to a consultation
// @Description Resumes an open consultation; a waiting consultation becomes active.
// @Tags        Consultations
// @Accept      json
// @Produce     json
// @Param       code  path      string  true   "Consultation code"  example(K7Q2M9X4A)
// @Param       body  body      handlers.ReconnectRequest  false  "Optional new nickname"
// @Success     200   {object}  services.ConsultationView
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Consultation closed"
// @Router      /consultations/{code}/reconnect [post]
func (h *Handlers) ReconnectConsultation(c *gin.Context) {
	if !available(c, h.consultSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	var req ReconnectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	v, err := h.consultSvc.Reconnect(c.Request.Context(), code, req.Nickname)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// EndConsultation godoc
// @ID          endConsultation
// @Summary     End a consultation
// @Description Marks an active or waiting consultation completed and notifies the assigned counselor.
// @Tags        Consultations
// @Produce     json
// @Param       code  path      string  true  "Consultation code"  example(K7Q2M9X4A)
// @Success     200   {object}  services.ConsultationView
// @Failure     404   {object}  handlers.ErrorResponse  "Consultation not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Consultation already closed"
// @Router      /consultations/{code}/end [post]
func (h *Handlers) EndConsultation(c *gin.Context) {
	if !available(c, h.consultSvc) {
		return
	}
	code, valid := codeParam(c)
	if !valid {
		return
	}
	v, err := h.consultSvc.End(c.Request.Context(), code)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}
