// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for
// ConsultationMessage rows.
//
// Unlike the other repositories, these helpers take a *gorm.DB that the
// caller has already bound to a context (db.WithContext(ctx)), which lets
// them participate in an enclosing transaction unchanged.
package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// CreateMessage inserts a message for consultationID. senderID is nil for
// system messages.
func CreateMessage(db *gorm.DB, consultationID uint, senderType string, senderID *uint, content, messageType string) (*domain.ConsultationMessage, error) {
	m := &domain.ConsultationMessage{
		ConsultationID: consultationID,
		SenderType:     senderType,
		SenderID:       senderID,
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      time.Now().UTC(),
	}
	return m, db.Create(m).Error
}

// CountMessages returns the number of messages in a consultation.
func CountMessages(db *gorm.DB, consultationID uint) (int64, error) {
	var total int64
	err := db.Model(&domain.ConsultationMessage{}).
		Where("consultation_id = ?", consultationID).
		Count(&total).Error
	return total, err
}

// ListMessagesPage returns messages oldest first.
func ListMessagesPage(db *gorm.DB, consultationID uint, offset, limit int) ([]domain.ConsultationMessage, error) {
	var out []domain.ConsultationMessage
	err := db.
		Where("consultation_id = ?", consultationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRecentTextMessages returns up to limit text messages newest first.
func ListRecentTextMessages(db *gorm.DB, consultationID uint, limit int) ([]domain.ConsultationMessage, error) {
	var out []domain.ConsultationMessage
	q := db.
		Where("consultation_id = ? AND message_type = ?", consultationID, domain.MessageText).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
