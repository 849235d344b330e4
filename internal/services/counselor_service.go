// Package services – CounselorService
//
// This file implements counselor self-service: profile lookup, status
// changes, listings for operators, consultation history and statistics.
// Going to "waiting_for_call" triggers a matching pass over consultations
// that are still waiting for a counselor.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WaitingMatcher matches a batch of waiting consultations.
type WaitingMatcher interface {
	MatchWaiting(ctx context.Context, limit int) (int, error)
}

var _ WaitingMatcher = (*MatchingService)(nil)

// CounselorStats is the dashboard summary of a counselor.
type CounselorStats struct {
	CounselorID            uint       `json:"counselor_id"`
	TotalConsultations     int64      `json:"total_consultations"`
	ActiveConsultations    int64      `json:"active_consultations"`
	CompletedConsultations int64      `json:"completed_consultations"`
	AverageSessionMinutes  float64    `json:"average_session_minutes"`
	LastConsultationAt     *time.Time `json:"last_consultation_at"`
}

// CounselorService serves counselor operations.
type CounselorService struct {
	DB      *gorm.DB
	Matcher WaitingMatcher
	Log     zerolog.Logger

	// MatchBatch bounds the matching pass run when a counselor goes on call.
	MatchBatch int

	// Now is the clock; nil means time.Now in UTC.
	Now func() time.Time
}

func (s *CounselorService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Get returns the counselor with id.
func (s *CounselorService) Get(ctx context.Context, id uint) (*domain.Counselor, error) {
	c, err := repo.GetCounselor(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrCounselorNotFound, id)
		}
		return nil, err
	}
	return c, nil
}

// UpdateStatus sets the counselor's status and refreshes last_active_at.
func (s *CounselorService) UpdateStatus(ctx context.Context, id uint, status string) (*domain.Counselor, error) {
	tr := otel.Tracer("services/CounselorService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.Int64("counselor.id", int64(id)),
			attribute.String("counselor.status", status),
		),
	)
	defer span.End()

	if !domain.ValidCounselorStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if err := repo.UpdateCounselorStatus(ctx, s.DB, id, status, s.now()); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrCounselorNotFound, id)
		}
		span.RecordError(err)
		return nil, err
	}
	s.Log.Info().Uint("counselor_id", id).Str("status", status).Msg("counselor status changed")

	if status == domain.CounselorWaitingForCall && s.Matcher != nil {
		batch := s.MatchBatch
		if batch <= 0 {
			batch = 50
		}
		if n, err := s.Matcher.MatchWaiting(ctx, batch); err != nil {
			s.Log.Warn().Err(err).Uint("counselor_id", id).Msg("matching after status change failed")
		} else if n > 0 {
			s.Log.Debug().Int("proposed", n).Msg("requests proposed after status change")
		}
	}
	return s.Get(ctx, id)
}

// List returns counselors matching f.
func (s *CounselorService) List(ctx context.Context, f repo.CounselorFilter) ([]domain.Counselor, error) {
	if f.Status != "" && !domain.ValidCounselorStatus(f.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return repo.ListCounselors(ctx, s.DB, f)
}

// Consultations returns the counselor's consultations, optionally filtered
// by status.
func (s *CounselorService) Consultations(ctx context.Context, id uint, statuses ...string) ([]ConsultationView, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := repo.ListConsultationsByCounselor(ctx, s.DB, id, statuses...)
	if err != nil {
		return nil, err
	}
	out := make([]ConsultationView, 0, len(rows))
	for i := range rows {
		out = append(out, *newConsultationView(&rows[i]))
	}
	return out, nil
}

// Stats summarizes the counselor's consultation history.
func (s *CounselorService) Stats(ctx context.Context, id uint) (*CounselorStats, error) {
	tr := otel.Tracer("services/CounselorService")
	ctx, span := tr.Start(ctx, "Stats",
		trace.WithAttributes(attribute.Int64("counselor.id", int64(id))),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	st, err := repo.CounselorConsultationStats(ctx, s.DB, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &CounselorStats{
		CounselorID:            id,
		TotalConsultations:     st.TotalConsultations,
		ActiveConsultations:    st.OpenConsultations,
		CompletedConsultations: st.CompletedConsultations,
		AverageSessionMinutes:  st.AverageSessionMinutes,
		LastConsultationAt:     st.LastConsultationAt,
	}, nil
}
