// Package services – MatchingService
//
// This file implements the counselor matching search. For a waiting,
// unassigned consultation it picks the eligible counselor with the fewest
// open consultations (ties broken by lowest id), records a pending
// ConsultationRequest, and pushes a notification after the row is committed.
//
// Matching never blocks and never fails because nobody is available: the
// consultation simply stays waiting, the miss is logged and counted, and the
// sweeper or the next counselor going on call retries.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/observability"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Matcher proposes a counselor for a consultation. It returns a nil request
// when no proposal was made.
type Matcher interface {
	Match(ctx context.Context, consultationID uint) (*domain.ConsultationRequest, error)
}

// MatchingService finds counselors for waiting consultations.
type MatchingService struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Log      zerolog.Logger

	// MaxAttempts caps how many requests a consultation may accumulate;
	// 0 disables the cap.
	MaxAttempts int

	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

func (s *MatchingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Match runs one matching attempt for consultationID. It is a no-op for
// consultations that are no longer waiting, already have a counselor, or
// already have a pending request.
//
// Counselors that rejected or let expire an earlier request for the same
// consultation are excluded from the search.
func (s *MatchingService) Match(ctx context.Context, consultationID uint) (*domain.ConsultationRequest, error) {
	tr := otel.Tracer("services/MatchingService")
	ctx, span := tr.Start(ctx, "Match",
		trace.WithAttributes(attribute.Int64("consultation.id", int64(consultationID))),
	)
	defer span.End()

	var (
		req *domain.ConsultationRequest
		c   *domain.Consultation
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = repo.GetConsultation(ctx, tx, consultationID)
		if err != nil {
			if isNotFound(err) {
				return ErrConsultationNotFound
			}
			return err
		}
		if c.Status != domain.ConsultationWaiting || c.CounselorID != nil {
			return nil
		}

		pending, err := repo.HasPendingRequest(ctx, tx, c.ID)
		if err != nil || pending {
			return err
		}

		if s.MaxAttempts > 0 {
			n, err := repo.CountRequestsForConsultation(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if n >= int64(s.MaxAttempts) {
				s.Log.Warn().
					Str("consultation_code", c.Code).
					Int64("attempts", n).
					Msg("match attempts exhausted; consultation stays waiting")
				return nil
			}
		}

		exclude, err := repo.DeclinedCounselorIDs(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		co, load, err := repo.FindAvailableCounselor(ctx, tx, exclude)
		if err != nil {
			if isNotFound(err) {
				observability.NoCandidateMatches.Inc()
				s.Log.Warn().
					Str("consultation_code", c.Code).
					Int("excluded", len(exclude)).
					Msg("no available counselor")
				return nil
			}
			return err
		}

		req, err = repo.CreateRequest(ctx, tx, c.ID, co.ID, s.now())
		if err != nil {
			return err
		}
		req.Consultation = *c
		req.Counselor = *co
		span.SetAttributes(
			attribute.Int64("counselor.id", int64(co.ID)),
			attribute.Int64("counselor.load", load),
		)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if req == nil {
		return nil, nil
	}

	observability.ConsultationRequests.WithLabelValues(observability.OutcomeCreated).Inc()
	s.Log.Info().
		Str("consultation_code", c.Code).
		Uint("counselor_id", req.CounselorID).
		Uint("request_id", req.ID).
		Msg("consultation request created")

	publish(ctx, s.Notifier, s.Log, notify.Event{
		Type:             notify.EventNewRequest,
		CounselorID:      req.CounselorID,
		RequestID:        req.ID,
		ConsultationID:   c.ID,
		ConsultationCode: c.Code,
		UserNickname:     c.UserNickname,
		CharacterName:    c.CharacterType.Name,
		At:               req.RequestedAt,
	})
	return req, nil
}

// MatchWaiting retries matching for up to limit unassigned waiting
// consultations, oldest first, and returns how many requests were created.
// Individual failures are logged and do not stop the batch.
func (s *MatchingService) MatchWaiting(ctx context.Context, limit int) (int, error) {
	tr := otel.Tracer("services/MatchingService")
	ctx, span := tr.Start(ctx, "MatchWaiting",
		trace.WithAttributes(attribute.Int("limit", limit)),
	)
	defer span.End()

	waiting, err := repo.ListUnassignedWaiting(ctx, s.DB, limit)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, c := range waiting {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		req, err := s.Match(ctx, c.ID)
		if err != nil {
			s.Log.Warn().Err(err).Str("consultation_code", c.Code).Msg("rematch failed")
			continue
		}
		if req != nil {
			created++
		}
	}
	span.SetAttributes(attribute.Int("requests.created", created))
	return created, nil
}

// publish pushes e through n. Delivery failures are logged and counted but
// never returned; the request row is the durable record.
func publish(ctx context.Context, n notify.Notifier, log zerolog.Logger, e notify.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, e); err != nil {
		observability.NotificationFailures.Inc()
		log.Warn().Err(err).
			Str("event", e.Type).
			Uint("counselor_id", e.CounselorID).
			Str("consultation_code", e.ConsultationCode).
			Msg("counselor notification failed")
	}
}
