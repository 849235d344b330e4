// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation) and counselor dashboards.
// Each function is context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// MessagesStats returns aggregate metadata for messages within a
// consultation: the total number of rows and the latest CreatedAt.
//
// When the consultation has no messages, the returned count is 0 and
// latest is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, consultationID uint) (count int64, latest *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ConsultationMessage{}).Where("consultation_id = ?", consultationID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// CounselorStats summarizes a counselor's consultation history.
type CounselorStats struct {
	TotalConsultations     int64
	CompletedConsultations int64
	OpenConsultations      int64
	AverageSessionMinutes  float64
	LastConsultationAt     *time.Time
}

// CounselorConsultationStats computes CounselorStats for counselorID. The
// average is taken over completed consultations that have a CompletedAt.
// Durations are summed in Go to stay portable between SQLite and Postgres.
func CounselorConsultationStats(ctx context.Context, db *gorm.DB, counselorID uint) (CounselorStats, error) {
	var st CounselorStats
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Consultation{}).Where("counselor_id = ?", counselorID)
	}

	if err := base().Count(&st.TotalConsultations).Error; err != nil {
		return st, err
	}
	if st.TotalConsultations == 0 {
		return st, nil
	}
	if err := base().Where("status IN ?", openStatuses).Count(&st.OpenConsultations).Error; err != nil {
		return st, err
	}

	var done []struct {
		CreatedAt   time.Time
		CompletedAt *time.Time
	}
	if err := base().
		Select("created_at, completed_at").
		Where("status = ?", domain.ConsultationCompleted).
		Scan(&done).Error; err != nil {
		return st, err
	}
	st.CompletedConsultations = int64(len(done))
	var (
		sum time.Duration
		n   int
	)
	for _, d := range done {
		if d.CompletedAt == nil {
			continue
		}
		sum += d.CompletedAt.Sub(d.CreatedAt)
		n++
	}
	if n > 0 {
		st.AverageSessionMinutes = sum.Minutes() / float64(n)
	}

	var last struct {
		CreatedAt time.Time
	}
	if err := base().Select("created_at").Order("created_at DESC").Limit(1).Scan(&last).Error; err != nil {
		return st, err
	}
	st.LastConsultationAt = &last.CreatedAt
	return st, nil
}
