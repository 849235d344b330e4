package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// CreateRequest inserts a pending request for (consultationID, counselorID).
func CreateRequest(ctx context.Context, db *gorm.DB, consultationID, counselorID uint, at time.Time) (*domain.ConsultationRequest, error) {
	r := &domain.ConsultationRequest{
		ConsultationID: consultationID,
		CounselorID:    counselorID,
		Status:         domain.RequestPending,
		RequestedAt:    at,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

func withRequestRefs(db *gorm.DB) *gorm.DB {
	return db.Preload("Consultation").Preload("Consultation.CharacterType").Preload("Counselor")
}

// GetRequest fetches a request with its consultation (and character type)
// and counselor preloaded.
func GetRequest(ctx context.Context, db *gorm.DB, id uint) (*domain.ConsultationRequest, error) {
	var r domain.ConsultationRequest
	if err := withRequestRefs(db.WithContext(ctx)).First(&r, id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListPendingRequests returns the counselor's pending requests, newest first.
func ListPendingRequests(ctx context.Context, db *gorm.DB, counselorID uint) ([]domain.ConsultationRequest, error) {
	var out []domain.ConsultationRequest
	err := withRequestRefs(db.WithContext(ctx)).
		Where("counselor_id = ? AND status = ?", counselorID, domain.RequestPending).
		Order("requested_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// RespondRequest moves request id from pending to status. The update is
// conditional on the row still being pending, so of two racing callers at
// most one observes true.
func RespondRequest(ctx context.Context, db *gorm.DB, id uint, status, message string, at time.Time) (bool, error) {
	fields := map[string]any{"status": status, "responded_at": at}
	if message != "" {
		fields["response_message"] = message
	}
	res := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Where("id = ? AND status = ?", id, domain.RequestPending).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RejectSiblingRequests rejects every other pending request of a
// consultation and returns how many rows changed.
func RejectSiblingRequests(ctx context.Context, db *gorm.DB, consultationID, exceptID uint, message string, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Where("consultation_id = ? AND id <> ? AND status = ?", consultationID, exceptID, domain.RequestPending).
		Updates(map[string]any{
			"status":           domain.RequestRejected,
			"responded_at":     at,
			"response_message": message,
		})
	return res.RowsAffected, res.Error
}

// ListStaleRequests returns pending requests created before cutoff.
func ListStaleRequests(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.ConsultationRequest, error) {
	var out []domain.ConsultationRequest
	err := db.WithContext(ctx).
		Where("status = ? AND requested_at < ?", domain.RequestPending, cutoff).
		Order("requested_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CountRequestsForConsultation returns how many requests were ever created
// for a consultation.
func CountRequestsForConsultation(ctx context.Context, db *gorm.DB, consultationID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Where("consultation_id = ?", consultationID).
		Count(&n).Error
	return n, err
}

// DeclinedCounselorIDs returns the counselors that rejected or let expire a
// request for the consultation.
func DeclinedCounselorIDs(ctx context.Context, db *gorm.DB, consultationID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Distinct("counselor_id").
		Where("consultation_id = ? AND status IN ?", consultationID,
			[]string{domain.RequestRejected, domain.RequestExpired}).
		Pluck("counselor_id", &ids).Error
	return ids, err
}

// HasPendingRequest reports whether the consultation already has a request
// awaiting an answer.
func HasPendingRequest(ctx context.Context, db *gorm.DB, consultationID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ConsultationRequest{}).
		Where("consultation_id = ? AND status = ?", consultationID, domain.RequestPending).
		Count(&n).Error
	return n > 0, err
}
