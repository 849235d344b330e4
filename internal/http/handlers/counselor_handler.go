// Counselor HTTP handlers.
//
// Endpoints under /counselors/me act on the counselor named by the
// X-Counselor-ID header (or an upstream identity); they answer 401 without it.
//
//   - GET  /counselors                          (directory with filters)
//   - GET  /counselors/me                       (profile)
//   - PUT  /counselors/me/status                (status change; may trigger matching)
//   - GET  /counselors/me/stats                 (dashboard summary)
//   - GET  /counselors/me/consultations         (assigned consultations)
//   - GET  /counselors/me/requests              (pending requests)
//   - POST /requests/{id}/accept, /requests/{id}/reject
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

//
// DTOs
//

// UpdateStatusRequest is the payload for PUT /counselors/me/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" enums:"online,offline,busy,away,waiting_for_call" example:"waiting_for_call"`
}

// RespondRequest is the optional payload for accepting or rejecting a request.
type RespondRequest struct {
	Message string `json:"message" example:"Happy to help, joining now."`
}

// CounselorsResponse wraps a counselor list.
type CounselorsResponse struct {
	Counselors []domain.Counselor `json:"counselors"`
}

// CounselorConsultationsResponse wraps a counselor's consultations.
type CounselorConsultationsResponse struct {
	Consultations []services.ConsultationView `json:"consultations"`
}

// PendingRequestsResponse wraps pending requests.
type PendingRequestsResponse struct {
	Requests []services.RequestView `json:"requests"`
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a boolean")
		return false, false
	}
	return v, true
}

//
// Directory
//

// ListCounselors godoc
// @ID          listCounselors
// @Summary     List counselors
// @Description Lists counselors, optionally filtered by status, active flag or current availability.
// @Tags        Counselors
// @Produce     json
// @Param       status          query     string  false  "Status filter"  Enums(online,offline,busy,away,waiting_for_call)
// @Param       active          query     bool    false  "Only active counselors"
// @Param       available_only  query     bool    false  "Only on-call counselors under capacity"
// @Success     200  {object}  handlers.CounselorsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad filter"
// @Router      /counselors [get]
func (h *Handlers) ListCounselors(c *gin.Context) {
	if !available(c, h.coSvc) {
		return
	}
	active, valid := queryBool(c, "active")
	if !valid {
		return
	}
	avail, valid := queryBool(c, "available_only")
	if !valid {
		return
	}
	list, err := h.coSvc.List(c.Request.Context(), repo.CounselorFilter{
		Status:        strings.TrimSpace(c.Query("status")),
		ActiveOnly:    active,
		AvailableOnly: avail,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []domain.Counselor{}
	}
	ok(c, http.StatusOK, CounselorsResponse{Counselors: list})
}

//
// Self-service
//

// GetMe godoc
// @ID          getCounselorMe
// @Summary     Get the acting counselor
// @Tags        Counselors
// @Produce     json
// @Param       X-Counselor-ID  header    int  true  "Acting counselor"  example(2)
// @Success     200  {object}  domain.Counselor
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     404  {object}  handlers.ErrorResponse  "Counselor not found"
// @Router      /counselors/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	if !available(c, h.coSvc) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}
	co, err := h.coSvc.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, co)
}

// UpdateMyStatus godoc
// @ID          updateCounselorStatus
// @Summary     Update the acting counselor's status
// @Description Setting waiting_for_call runs a matching pass over waiting consultations.
// @Tags        Counselors
// @Accept      json
// @Produce     json
// @Param       X-Counselor-ID  header  int  true  "Acting counselor"  example(2)
// @Param       body            body    handlers.UpdateStatusRequest  true  "New status"
// @Success     200  {object}  domain.Counselor
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid status"
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     404  {object}  handlers.ErrorResponse  "Counselor not found"
// @Router      /counselors/me/status [put]
func (h *Handlers) UpdateMyStatus(c *gin.Context) {
	if !available(c, h.coSvc) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status required")
		return
	}
	co, err := h.coSvc.UpdateStatus(c.Request.Context(), id, strings.ToLower(strings.TrimSpace(req.Status)))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, co)
}

// GetMyStats godoc
// @ID          getCounselorStats
// @Summary     Get the acting counselor's statistics
// @Tags        Counselors
// @Produce     json
// @Param       X-Counselor-ID  header  int  true  "Acting counselor"  example(2)
// @Success     200  {object}  services.CounselorStats
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     404  {object}  handlers.ErrorResponse  "Counselor not found"
// @Router      /counselors/me/stats [get]
func (h *Handlers) GetMyStats(c *gin.Context) {
	if !available(c, h.coSvc) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}
	st, err := h.coSvc.Stats(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// ListMyConsultations godoc
// @ID          listCounselorConsultations
// @Summary     List the acting counselor's consultations
// @Tags        Counselors
// @Produce     json
// @Param       X-Counselor-ID  header  int     true   "Acting counselor"  example(2)
// @Param       status          query   string  false  "Comma-separated statuses"  example(active,waiting)
// @Success     200  {object}  handlers.CounselorConsultationsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Router      /counselors/me/consultations [get]
func (h *Handlers) ListMyConsultations(c *gin.Context) {
	if !available(c, h.coSvc) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}
	var statuses []string
	for _, s := range strings.Split(c.Query("status"), ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		switch s {
		case domain.ConsultationWaiting, domain.ConsultationActive,
			domain.ConsultationCompleted, domain.ConsultationTerminated:
			statuses = append(statuses, s)
		default:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown consultation status: "+s)
			return
		}
	}
	list, err := h.coSvc.Consultations(c.Request.Context(), id, statuses...)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []services.ConsultationView{}
	}
	ok(c, http.StatusOK, CounselorConsultationsResponse{Consultations: list})
}

//
// Requests
//

// ListMyRequests godoc
// @ID          listPendingRequests
// @Summary     List pending consultation requests
// @Description Returns the acting counselor's pending requests, newest first, with consultation details.
// @Tags        Requests
// @Produce     json
// @Param       X-Counselor-ID  header  int  true  "Acting counselor"  example(2)
// @Success     200  {object}  handlers.PendingRequestsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Router      /counselors/me/requests [get]
func (h *Handlers) ListMyRequests(c *gin.Context) {
	if !available(c, h.reqSvc) {
		return
	}
	id, valid := requireCounselor(c)
	if !valid {
		return
	}
	list, err := h.reqSvc.ListPending(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if list == nil {
		list = []services.RequestView{}
	}
	ok(c, http.StatusOK, PendingRequestsResponse{Requests: list})
}

// AcceptRequest godoc
// @ID          acceptRequest
// @Summary     Accept a consultation request
// @Description Assigns the consultation to the acting counselor, activates it and closes sibling requests.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Param       X-Counselor-ID  header  int  true   "Acting counselor"  example(2)
// @Param       id              path    int  true   "Request ID"        minimum(1)
// @Param       body            body    handlers.RespondRequest  false  "Optional message"
// @Success     200  {object}  services.RequestView
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     403  {object}  handlers.ErrorResponse  "Request belongs to another counselor"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already processed, busy or at capacity"
// @Router      /requests/{id}/accept [post]
func (h *Handlers) AcceptRequest(c *gin.Context) {
	h.respond(c, true)
}

// RejectRequest godoc
// @ID          rejectRequest
// @Summary     Reject a consultation request
// @Description Declines the request; the consultation is offered to another counselor when one is available.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Param       X-Counselor-ID  header  int  true   "Acting counselor"  example(2)
// @Param       id              path    int  true   "Request ID"        minimum(1)
// @Param       body            body    handlers.RespondRequest  false  "Optional reason"
// @Success     200  {object}  services.RequestView
// @Failure     401  {object}  handlers.ErrorResponse  "Counselor identity required"
// @Failure     403  {object}  handlers.ErrorResponse  "Request belongs to another counselor"
// @Failure     404  {object}  handlers.ErrorResponse  "Request not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already processed"
// @Router      /requests/{id}/reject [post]
func (h *Handlers) RejectRequest(c *gin.Context) {
	h.respond(c, false)
}

func (h *Handlers) respond(c *gin.Context, accept bool) {
	if !available(c, h.reqSvc) {
		return
	}
	counselorID, valid := requireCounselor(c)
	if !valid {
		return
	}
	requestID, valid := idParam(c, "id")
	if !valid {
		return
	}
	var req RespondRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	msg := sanitizeContent(req.Message)

	var (
		v   *services.RequestView
		err error
	)
	if accept {
		v, err = h.reqSvc.Accept(c.Request.Context(), counselorID, requestID, msg)
	} else {
		v, err = h.reqSvc.Reject(c.Request.Context(), counselorID, requestID, msg)
	}
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}
