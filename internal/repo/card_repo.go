package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// CreateCard inserts a card. The unique index on consultation_id rejects a
// second card for the same consultation.
func CreateCard(ctx context.Context, db *gorm.DB, card *domain.ConsultationCard) error {
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(card).Error
}

// GetCardByConsultation returns the card of a consultation or ErrNotFound.
func GetCardByConsultation(ctx context.Context, db *gorm.DB, consultationID uint) (*domain.ConsultationCard, error) {
	var card domain.ConsultationCard
	err := db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateCardNotes replaces the counselor notes on a card.
func UpdateCardNotes(ctx context.Context, db *gorm.DB, cardID uint, notes string) error {
	res := db.WithContext(ctx).
		Model(&domain.ConsultationCard{}).
		Where("id = ?", cardID).
		Updates(map[string]any{"counselor_notes": notes, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
