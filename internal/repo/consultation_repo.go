// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Consultation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a consultation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Status changes are conditional updates: they report whether a row was
//     actually transitioned so callers can detect lost races.
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateConsultation(ctx, db, c) -> error
//   - CodeExists(ctx, db, code) -> (bool, error)
//   - GetConsultation(ctx, db, id) -> *domain.Consultation, error
//   - GetConsultationByCode(ctx, db, code) -> *domain.Consultation, error
//   - TransitionConsultation(ctx, db, id, from, fields) -> (bool, error)
//   - ListConsultationsByCounselor(ctx, db, counselorID, statuses) -> []domain.Consultation, error
//   - ListUnassignedWaiting(ctx, db, limit) -> []domain.Consultation, error
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateConsultation inserts c. CreatedAt is set to UTC when zero.
func CreateConsultation(ctx context.Context, db *gorm.DB, c *domain.Consultation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = domain.ConsultationWaiting
	}
	return db.WithContext(ctx).Create(c).Error
}

// CodeExists reports whether a consultation already uses code.
func CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("code = ?", code).
		Count(&n).Error
	return n > 0, err
}

func withConsultationRefs(db *gorm.DB) *gorm.DB {
	return db.Preload("CharacterType").Preload("Counselor")
}

// GetConsultation fetches a consultation by primary key with its character
// type and counselor preloaded.
func GetConsultation(ctx context.Context, db *gorm.DB, id uint) (*domain.Consultation, error) {
	var c domain.Consultation
	if err := withConsultationRefs(db.WithContext(ctx)).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConsultationByCode fetches a consultation by its public code with its
// character type and counselor preloaded.
func GetConsultationByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Consultation, error) {
	var c domain.Consultation
	err := withConsultationRefs(db.WithContext(ctx)).
		Where("code = ?", code).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// TransitionConsultation applies fields to consultation id only if its
// current status is one of from. It returns false when no row matched,
// meaning the consultation is missing or was moved by someone else.
func TransitionConsultation(ctx context.Context, db *gorm.DB, id uint, from []string, fields map[string]any) (bool, error) {
	fields["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// UpdateConsultationNickname changes the user nickname.
func UpdateConsultationNickname(ctx context.Context, db *gorm.DB, id uint, nickname string) error {
	res := db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("id = ?", id).
		Updates(map[string]any{"user_nickname": nickname, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkCardIssued flips is_card_issued on a consultation.
func MarkCardIssued(ctx context.Context, db *gorm.DB, id uint) error {
	return db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("id = ?", id).
		Update("is_card_issued", true).Error
}

// ListConsultationsByCounselor returns the counselor's consultations whose
// status is in statuses (all statuses when empty), newest first.
func ListConsultationsByCounselor(ctx context.Context, db *gorm.DB, counselorID uint, statuses ...string) ([]domain.Consultation, error) {
	var out []domain.Consultation
	q := db.WithContext(ctx).
		Preload("CharacterType").
		Where("counselor_id = ?", counselorID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

// CountOpenConsultations returns how many waiting or active consultations
// are assigned to counselorID.
func CountOpenConsultations(ctx context.Context, db *gorm.DB, counselorID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Where("counselor_id = ? AND status IN ?", counselorID,
			[]string{domain.ConsultationWaiting, domain.ConsultationActive}).
		Count(&n).Error
	return n, err
}

// ListUnassignedWaiting returns waiting consultations that have no counselor
// and no pending request, oldest first. limit <= 0 means no limit.
func ListUnassignedWaiting(ctx context.Context, db *gorm.DB, limit int) ([]domain.Consultation, error) {
	var out []domain.Consultation
	q := db.WithContext(ctx).
		Where("status = ? AND counselor_id IS NULL", domain.ConsultationWaiting).
		Where("NOT EXISTS (SELECT 1 FROM consultation_requests r WHERE r.consultation_id = consultations.id AND r.status = ?)",
			domain.RequestPending).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
