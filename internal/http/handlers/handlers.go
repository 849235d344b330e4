// Package handlers exposes the public HTTP API.
//
// Handlers are transport-thin: they validate and normalize input, call the
// application services through the narrow interfaces below, and translate
// results and service errors into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/scoring"
	"github.com/tbourn/go-counsel-backend/internal/services"
	"github.com/tbourn/go-counsel-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// PersonalityService scores keyword selections.
type PersonalityService interface {
	Calculate(ctx context.Context, sel scoring.Selections, debug bool) (*services.Calculation, error)
}

// CatalogService serves reference data.
type CatalogService interface {
	Categories(ctx context.Context) ([]services.CategoryView, error)
	Category(ctx context.Context, id uint) (*services.CategoryView, error)
	SearchKeywords(ctx context.Context, q string, limit int) ([]services.KeywordHit, error)
	IntermediateTypes(ctx context.Context) ([]domain.IntermediateType, error)
	Characters(ctx context.Context) ([]domain.FinalType, error)
	Character(ctx context.Context, id uint) (*domain.FinalType, error)
}

// ConsultationService manages consultation sessions.
type ConsultationService interface {
	Start(ctx context.Context, in services.StartInput) (*services.ConsultationView, error)
	Get(ctx context.Context, code string) (*services.ConsultationView, error)
	Reconnect(ctx context.Context, code string, nickname *string) (*services.ConsultationView, error)
	End(ctx context.Context, code string) (*services.ConsultationView, error)
}

// MessageService stores and lists consultation messages.
type MessageService interface {
	Send(ctx context.Context, code string, in services.SendInput) (*domain.ConsultationMessage, error)
	ListPage(ctx context.Context, code string, page, pageSize int) ([]domain.ConsultationMessage, int64, error)
	Stats(ctx context.Context, code string) (int64, *time.Time, error)
}

// CardService issues and edits consultation cards.
type CardService interface {
	Issue(ctx context.Context, code, notes string) (*domain.ConsultationCard, error)
	Get(ctx context.Context, code string) (*domain.ConsultationCard, error)
	UpdateNotes(ctx context.Context, counselorID uint, code, notes string) (*domain.ConsultationCard, error)
}

// MusicService recommends music for a consultation's conversation.
type MusicService interface {
	Recommend(ctx context.Context, code string, take int) (*services.MusicRecommendations, error)
}

// CounselorService serves counselor self-service and listings.
type CounselorService interface {
	Get(ctx context.Context, id uint) (*domain.Counselor, error)
	UpdateStatus(ctx context.Context, id uint, status string) (*domain.Counselor, error)
	List(ctx context.Context, f repo.CounselorFilter) ([]domain.Counselor, error)
	Consultations(ctx context.Context, id uint, statuses ...string) ([]services.ConsultationView, error)
	Stats(ctx context.Context, id uint) (*services.CounselorStats, error)
}

// RequestService answers consultation requests.
type RequestService interface {
	ListPending(ctx context.Context, counselorID uint) ([]services.RequestView, error)
	Accept(ctx context.Context, counselorID, requestID uint, message string) (*services.RequestView, error)
	Reject(ctx context.Context, counselorID, requestID uint, message string) (*services.RequestView, error)
}

// EventSource hands out live counselor event subscriptions.
type EventSource interface {
	Subscribe(counselorID uint) *notify.Subscription
	Unsubscribe(s *notify.Subscription)
}

// IdempotencyStore remembers which resource a (client, scope, key) triple
// created so retries can be replayed.
type IdempotencyStore interface {
	Lookup(ctx context.Context, clientID, scope, key string) (resourceID string, found bool, err error)
	Save(ctx context.Context, clientID, scope, key, resourceID string, status int) error
}

//
// Handler wiring
//

// Deps lists the services the API is built from. Any nil service leaves its
// routes answering 503.
type Deps struct {
	Personality   PersonalityService
	Catalog       CatalogService
	Consultations ConsultationService
	Messages      MessageService
	Cards         CardService
	Music         MusicService
	Counselors    CounselorService
	Requests      RequestService
	Events        EventSource
	Idempotency   IdempotencyStore

	// HeartbeatInterval paces keep-alive comments on event streams; 0 means 25s.
	HeartbeatInterval time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	typeSvc    PersonalityService
	catalogSvc CatalogService
	consultSvc ConsultationService
	msgSvc     MessageService
	cardSvc    CardService
	musicSvc   MusicService
	coSvc      CounselorService
	reqSvc     RequestService
	events     EventSource
	idem       IdempotencyStore
	heartbeat  time.Duration
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	hb := d.HeartbeatInterval
	if hb <= 0 {
		hb = 25 * time.Second
	}
	return &Handlers{
		typeSvc:    d.Personality,
		catalogSvc: d.Catalog,
		consultSvc: d.Consultations,
		msgSvc:     d.Messages,
		cardSvc:    d.Cards,
		musicSvc:   d.Music,
		coSvc:      d.Counselors,
		reqSvc:     d.Requests,
		events:     d.Events,
		idem:       d.Idempotency,
		heartbeat:  hb,
	}
}

//
// Helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.PageParams(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

// codeParam returns the normalized :code path parameter, failing the request
// with 400 when it is not a well-formed consultation code.
func codeParam(c *gin.Context) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if !services.ValidCode(code) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "consultation code must be 9 characters A-Z or 0-9")
		return "", false
	}
	return code, true
}

// idParam parses a positive numeric path parameter.
func idParam(c *gin.Context, name string) (uint, bool) {
	id := utils.AtoiDefault(c.Param(name), 0)
	if id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// requireCounselor returns the acting counselor or fails with 401.
func requireCounselor(c *gin.Context) (uint, bool) {
	id, found := middleware.CounselorIDFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "counselor identity required ("+middleware.HeaderCounselorID+")")
		return 0, false
	}
	return id, true
}

// available fails with 503 when a service was not wired.
func available(c *gin.Context, svc any) bool {
	if svc == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "service not configured")
		return false
	}
	return true
}
