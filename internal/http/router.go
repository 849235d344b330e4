// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, counselor identity, logging/redaction, panic
// recovery, metrics, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → identity → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/config"
	"github.com/tbourn/go-counsel-backend/internal/http/handlers"
	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/search"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

// eventsPath is the relative route of the counselor event stream. Long-lived
// streams are exempt from rate limiting and gzip.
const eventsPath = "/counselors/me/events"

// Backends are the non-database collaborators the services need.
type Backends struct {
	// Index serves keyword search; nil disables /keywords/search.
	Index search.Index
	// Notifier receives counselor events (Hub, Redis, or Discard).
	Notifier notify.Notifier
	// Events hands out live subscriptions for the SSE endpoint; nil disables it.
	Events *notify.Hub
	// Music is the outbound recommendation API.
	Music services.Recommender
}

// Services bundles the application services built over one database.
type Services struct {
	Types         *services.TypeService
	Catalog       *services.CatalogService
	Matching      *services.MatchingService
	Consultations *services.ConsultationService
	Messages      *services.MessageService
	Cards         *services.CardService
	Music         *services.MusicService
	Counselors    *services.CounselorService
	Requests      *services.RequestService
}

// NewServices wires the services over db according to cfg.
func NewServices(db *gorm.DB, b Backends, cfg config.Config) *Services {
	lg := log.Logger
	n := b.Notifier
	if n == nil {
		n = notify.Discard{}
	}

	matching := &services.MatchingService{
		DB:          db,
		Notifier:    n,
		Log:         lg.With().Str("component", "matching").Logger(),
		MaxAttempts: cfg.Matching.MaxMatchAttempts,
	}
	s := &Services{
		Types:    services.NewTypeService(db, cfg.Scoring.MaxSelectionsPerCategory, lg),
		Matching: matching,
		Consultations: &services.ConsultationService{
			DB:       db,
			Matcher:  matching,
			Notifier: n,
			Log:      lg.With().Str("component", "consultations").Logger(),
		},
		Messages: &services.MessageService{DB: db, MaxContentRunes: 2000},
		Cards:    &services.CardService{DB: db},
		Counselors: &services.CounselorService{
			DB:      db,
			Matcher: matching,
			Log:     lg.With().Str("component", "counselors").Logger(),
		},
		Requests: &services.RequestService{
			DB:       db,
			Matcher:  matching,
			Notifier: n,
			Log:      lg.With().Str("component", "requests").Logger(),
			Expiry:   cfg.Matching.RequestExpiry,
		},
	}
	if b.Index != nil {
		s.Catalog = &services.CatalogService{DB: db, Index: b.Index}
	}
	if b.Music != nil {
		s.Music = &services.MusicService{
			DB:     db,
			Client: b.Music,
			Log:    lg.With().Str("component", "music").Logger(),
		}
	}
	return s
}

// deps converts s into handler dependencies. Services that were not built
// stay nil interfaces so their routes answer 503 instead of panicking.
func (s *Services) deps() handlers.Deps {
	d := handlers.Deps{
		Personality:   s.Types,
		Consultations: s.Consultations,
		Messages:      s.Messages,
		Cards:         s.Cards,
		Counselors:    s.Counselors,
		Requests:      s.Requests,
	}
	if s.Catalog != nil {
		d.Catalog = s.Catalog
	}
	if s.Music != nil {
		d.Music = s.Music
	}
	return d
}

// idempotencyShim adapts the repository free functions to the handlers'
// IdempotencyStore. Records live for ttl.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup proxies repo.GetIdempotency; a missing or expired record is not an error.
func (s idempotencyShim) Lookup(ctx context.Context, clientID, scope, key string) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, clientID, scope, key, time.Now().UTC())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.ResourceID, true, nil
}

// Save proxies repo.CreateIdempotency. A concurrent duplicate is success:
// the first writer's resource is the one replayed.
func (s idempotencyShim) Save(ctx context.Context, clientID, scope, key, resourceID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.db, clientID, scope, key, resourceID, status, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity,
// idempotency and rate limiting, CORS and security headers, health and
// metrics endpoints, and then mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. CounselorIdentity: resolve X-Counselor-ID before anything keys on it
//  4. RedactingLogger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per counselor/IP, bypass on replay, event stream exempt)
//  10. CORS, gzip and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc *Services, events handlers.EventSource, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Counselor identity (header or upstream context value)
	r.Use(middleware.CounselorIdentity())

	// 4) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, clientID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// 9) Token-bucket rate limiter per counselor/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByCounselorOrIP()).
		Exempt(joinPath(apiBase, eventsPath))
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{
		"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderCounselorID, middleware.HeaderIdempotencyKey,
	}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Compression; the event stream must flush unbuffered.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{joinPath(apiBase, eventsPath), "/metrics"}),
	))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: handlers ← services
	d := svc.deps()
	if events != nil {
		d.Events = events
	}
	d.Idempotency = idempotencyShim{db: db, ttl: cfg.IdempotencyTTL}
	h := handlers.New(d)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Personality & reference data
		api.POST("/personality/calculate", h.CalculatePersonality)
		api.GET("/keywords/categories", h.ListCategories)
		api.GET("/keywords/categories/:id", h.GetCategory)
		api.GET("/keywords/search", h.SearchKeywords)
		api.GET("/types/intermediate", h.ListIntermediateTypes)
		api.GET("/characters", h.ListCharacters)
		api.GET("/characters/:id", h.GetCharacter)

		// Consultations
		api.POST("/consultations", h.StartConsultation)
		api.GET("/consultations/:code", h.GetConsultation)
		api.POST("/consultations/:code/reconnect", h.ReconnectConsultation)
		api.POST("/consultations/:code/end", h.EndConsultation)

		// Messages
		api.GET("/consultations/:code/messages", h.ListMessages)
		api.POST("/consultations/:code/messages", h.PostMessage)

		// Cards & music
		api.POST("/consultations/:code/card", h.IssueCard)
		api.GET("/consultations/:code/card", h.GetCard)
		api.PUT("/consultations/:code/card/notes", h.UpdateCardNotes)
		api.GET("/consultations/:code/music-recommendations", h.MusicRecommendations)

		// Counselors
		api.GET("/counselors", h.ListCounselors)
		api.GET("/counselors/me", h.GetMe)
		api.PUT("/counselors/me/status", h.UpdateMyStatus)
		api.GET("/counselors/me/stats", h.GetMyStats)
		api.GET("/counselors/me/consultations", h.ListMyConsultations)
		api.GET("/counselors/me/requests", h.ListMyRequests)
		api.GET(eventsPath, h.CounselorEvents)

		// Requests
		api.POST("/requests/:id/accept", h.AcceptRequest)
		api.POST("/requests/:id/reject", h.RejectRequest)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath joins an API base and a route path the way route groups do.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
