// Package services – RequestService
//
// This file implements the ConsultationRequest lifecycle: listing pending
// requests for a counselor, accepting, rejecting, and expiring stale ones.
//
// Accept runs in a single transaction. The request is moved out of "pending"
// with a conditional update, so of two concurrent accepts exactly one wins
// and the other observes ErrRequestNotPending. Capacity and status are
// re-checked at accept time; a concurrent assignment that slips between the
// check and the commit may push a counselor one session over capacity, which
// is treated as a soft limit.
//
// Reject and expiry trigger a best-effort re-match after commit. Failures of
// that re-match are logged and never surface to the caller.
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
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

// Response messages recorded on requests closed by the system.
const (
	MsgSiblingAccepted = "Another counselor accepted this consultation."
	MsgRequestExpired  = "No response within the time limit."
	MsgDefaultReject   = "Declined by counselor."
)

// RequestView is a request with the display fields a counselor dashboard
// needs, so no second lookup is required.
type RequestView struct {
	domain.ConsultationRequest
	ConsultationCode string `json:"consultation_code"`
	UserNickname     string `json:"user_nickname"`
	CharacterName    string `json:"character_name"`
	CounselorName    string `json:"counselor_name"`
}

func newRequestView(r *domain.ConsultationRequest) *RequestView {
	return &RequestView{
		ConsultationRequest: *r,
		ConsultationCode:    r.Consultation.Code,
		UserNickname:        r.Consultation.UserNickname,
		CharacterName:       r.Consultation.CharacterType.Name,
		CounselorName:       r.Counselor.Name,
	}
}

// RequestService drives the request state machine.
type RequestService struct {
	DB       *gorm.DB
	Matcher  Matcher
	Notifier notify.Notifier
	Log      zerolog.Logger

	// Expiry is how long a request may stay pending.
	Expiry time.Duration

	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

func (s *RequestService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ListPending returns the counselor's pending requests, newest first.
func (s *RequestService) ListPending(ctx context.Context, counselorID uint) ([]RequestView, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "ListPending",
		trace.WithAttributes(attribute.Int64("counselor.id", int64(counselorID))),
	)
	defer span.End()

	if _, err := repo.GetCounselor(ctx, s.DB, counselorID); err != nil {
		if isNotFound(err) {
			return nil, ErrCounselorNotFound
		}
		return nil, err
	}
	rows, err := repo.ListPendingRequests(ctx, s.DB, counselorID)
	if err != nil {
		return nil, err
	}
	out := make([]RequestView, 0, len(rows))
	for i := range rows {
		out = append(out, *newRequestView(&rows[i]))
	}
	return out, nil
}

// loadOwned fetches a pending request owned by counselorID, distinguishing
// missing, foreign and already-processed requests.
func loadOwned(ctx context.Context, tx *gorm.DB, counselorID, requestID uint) (*domain.ConsultationRequest, error) {
	r, err := repo.GetRequest(ctx, tx, requestID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrRequestNotFound, requestID)
		}
		return nil, err
	}
	if r.CounselorID != counselorID {
		return nil, ErrNotRequestOwner
	}
	if r.IsTerminal() {
		return nil, fmt.Errorf("%w: status %s", ErrRequestNotPending, r.Status)
	}
	return r, nil
}

// Accept commits the pairing proposed by requestID.
//
// In one transaction it marks the request accepted, assigns the counselor
// and activates the consultation, marks the counselor busy, rejects every
// other pending request for the consultation, and records a system message.
func (s *RequestService) Accept(ctx context.Context, counselorID, requestID uint, message string) (*RequestView, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Accept",
		trace.WithAttributes(
			attribute.Int64("counselor.id", int64(counselorID)),
			attribute.Int64("request.id", int64(requestID)),
		),
	)
	defer span.End()

	now := s.now()
	var (
		view      *RequestView
		cancelled []domain.ConsultationRequest
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := loadOwned(ctx, tx, counselorID, requestID)
		if err != nil {
			return err
		}

		co := r.Counselor
		if !co.IsActive || !co.IsApproved {
			return ErrCounselorNotApproved
		}
		if co.Status != domain.CounselorOnline && co.Status != domain.CounselorWaitingForCall {
			return fmt.Errorf("%w: status %s", ErrCounselorUnavailable, co.Status)
		}
		load, err := repo.CountOpenConsultations(ctx, tx, co.ID)
		if err != nil {
			return err
		}
		if load >= int64(co.MaxConcurrentSessions) {
			return fmt.Errorf("%w: %d/%d", ErrCapacityExceeded, load, co.MaxConcurrentSessions)
		}

		ok, err := repo.RespondRequest(ctx, tx, r.ID, domain.RequestAccepted, strings.TrimSpace(message), now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotPending
		}

		ok, err = repo.TransitionConsultation(ctx, tx, r.ConsultationID,
			[]string{domain.ConsultationWaiting},
			map[string]any{"status": domain.ConsultationActive, "counselor_id": co.ID})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConsultationNotWaiting
		}

		if err := repo.UpdateCounselorStatus(ctx, tx, co.ID, domain.CounselorBusy, now); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).
			Where("consultation_id = ? AND id <> ? AND status = ?", r.ConsultationID, r.ID, domain.RequestPending).
			Find(&cancelled).Error; err != nil {
			return err
		}
		if _, err := repo.RejectSiblingRequests(ctx, tx, r.ConsultationID, r.ID, MsgSiblingAccepted, now); err != nil {
			return err
		}

		if _, err := repo.CreateMessage(tx.WithContext(ctx), r.ConsultationID, domain.SenderSystem, nil,
			fmt.Sprintf("%s joined the consultation.", co.Name), domain.MessageSystem); err != nil {
			return err
		}

		fresh, err := repo.GetRequest(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		view = newRequestView(fresh)
		return nil
	})
	if err != nil {
		if KindOf(err) == KindConflict {
			observability.ConsultationRequests.WithLabelValues(observability.OutcomeConflict).Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	observability.ConsultationRequests.WithLabelValues(observability.OutcomeAccepted).Inc()
	s.Log.Info().
		Str("consultation_code", view.ConsultationCode).
		Uint("counselor_id", counselorID).
		Uint("request_id", requestID).
		Int("siblings_rejected", len(cancelled)).
		Msg("consultation request accepted")

	for _, sib := range cancelled {
		publish(ctx, s.Notifier, s.Log, notify.Event{
			Type:             notify.EventRequestCancelled,
			CounselorID:      sib.CounselorID,
			RequestID:        sib.ID,
			ConsultationID:   sib.ConsultationID,
			ConsultationCode: view.ConsultationCode,
			Message:          MsgSiblingAccepted,
			At:               now,
		})
	}
	return view, nil
}

// Reject declines requestID and then tries to find another counselor.
func (s *RequestService) Reject(ctx context.Context, counselorID, requestID uint, message string) (*RequestView, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Reject",
		trace.WithAttributes(
			attribute.Int64("counselor.id", int64(counselorID)),
			attribute.Int64("request.id", int64(requestID)),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		message = MsgDefaultReject
	}

	now := s.now()
	var view *RequestView
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := loadOwned(ctx, tx, counselorID, requestID)
		if err != nil {
			return err
		}
		ok, err := repo.RespondRequest(ctx, tx, r.ID, domain.RequestRejected, message, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotPending
		}
		fresh, err := repo.GetRequest(ctx, tx, r.ID)
		if err != nil {
			return err
		}
		view = newRequestView(fresh)
		return nil
	})
	if err != nil {
		if KindOf(err) == KindConflict {
			observability.ConsultationRequests.WithLabelValues(observability.OutcomeConflict).Inc()
		}
		span.RecordError(err)
		return nil, err
	}

	observability.ConsultationRequests.WithLabelValues(observability.OutcomeRejected).Inc()
	s.Log.Info().
		Str("consultation_code", view.ConsultationCode).
		Uint("counselor_id", counselorID).
		Uint("request_id", requestID).
		Msg("consultation request rejected")

	s.rematch(ctx, view.ConsultationID, view.ConsultationCode)
	return view, nil
}

// ExpireStale expires every request pending for longer than Expiry and
// re-matches the affected consultations that are still waiting. It returns
// the number of requests expired.
func (s *RequestService) ExpireStale(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "ExpireStale",
		trace.WithAttributes(attribute.String("expiry", s.Expiry.String())),
	)
	defer span.End()

	now := s.now()
	stale, err := repo.ListStaleRequests(ctx, s.DB, now.Add(-s.Expiry))
	if err != nil {
		return 0, err
	}

	expired := 0
	touched := map[uint]struct{}{}
	for _, r := range stale {
		ok, err := repo.RespondRequest(ctx, s.DB, r.ID, domain.RequestExpired, MsgRequestExpired, now)
		if err != nil {
			return expired, err
		}
		if !ok {
			// answered between the scan and the update
			continue
		}
		expired++
		touched[r.ConsultationID] = struct{}{}
		observability.ConsultationRequests.WithLabelValues(observability.OutcomeExpired).Inc()
		publish(ctx, s.Notifier, s.Log, notify.Event{
			Type:           notify.EventRequestExpired,
			CounselorID:    r.CounselorID,
			RequestID:      r.ID,
			ConsultationID: r.ConsultationID,
			Message:        MsgRequestExpired,
			At:             now,
		})
	}

	ids := make([]uint, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		s.rematch(ctx, id, "")
	}

	span.SetAttributes(attribute.Int("requests.expired", expired))
	if expired > 0 {
		s.Log.Info().Int("expired", expired).Msg("expired stale consultation requests")
	}
	return expired, nil
}

// rematch runs the matcher and swallows its failures.
func (s *RequestService) rematch(ctx context.Context, consultationID uint, code string) {
	if s.Matcher == nil {
		return
	}
	req, err := s.Matcher.Match(ctx, consultationID)
	if err != nil {
		s.Log.Warn().Err(err).
			Uint("consultation_id", consultationID).
			Str("consultation_code", code).
			Msg("rematch failed")
		return
	}
	if req == nil {
		s.Log.Debug().Uint("consultation_id", consultationID).Msg("rematch made no proposal")
	}
}
