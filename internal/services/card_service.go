// Package services – CardService
//
// This file implements the consultation card, a keepsake snapshot issued at
// most once per completed consultation. The snapshot is denormalized at issue
// time so later catalog edits do not change an issued card. Only the
// counselor assigned to the consultation may edit the card's notes.
package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CardService issues and edits consultation cards.
type CardService struct {
	DB *gorm.DB
}

// Issue creates the card for the completed consultation with code.
//
// Semantics and validation:
//   - The consultation must exist; otherwise ErrConsultationNotFound.
//   - It must be completed; otherwise ErrConsultationNotCompleted.
//   - A second card yields ErrCardAlreadyIssued, including when a concurrent
//     caller won the unique index race.
func (s *CardService) Issue(ctx context.Context, code, notes string) (*domain.ConsultationCard, error) {
	tr := otel.Tracer("services/CardService")
	ctx, span := tr.Start(ctx, "Issue",
		trace.WithAttributes(attribute.String("consultation.code", code)),
	)
	defer span.End()

	var card *domain.ConsultationCard
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetConsultationByCode(ctx, tx, code)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
			}
			return err
		}
		if c.Status != domain.ConsultationCompleted {
			return fmt.Errorf("%w: %s", ErrConsultationNotCompleted, c.Status)
		}
		if c.IsCardIssued {
			return ErrCardAlreadyIssued
		}

		data := domain.CardData{
			Nickname:      c.UserNickname,
			CharacterName: c.CharacterType.Name,
			Animal:        c.CharacterType.Animal,
			Hashtags:      append([]string(nil), c.CharacterType.Hashtags...),
			StartedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		}
		if c.Counselor != nil {
			data.CounselorName = c.Counselor.Name
		}
		if c.CompletedAt != nil {
			data.CompletedAt = c.CompletedAt.UTC().Format(time.RFC3339)
		}

		card = &domain.ConsultationCard{
			ConsultationID: c.ID,
			CardData:       datatypes.NewJSONType(data),
			CounselorNotes: notes,
		}
		if err := repo.CreateCard(ctx, tx, card); err != nil {
			if isDuplicate(err) {
				return ErrCardAlreadyIssued
			}
			return err
		}
		return repo.MarkCardIssued(ctx, tx, c.ID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return card, nil
}

// Get returns the card of the consultation with code.
func (s *CardService) Get(ctx context.Context, code string) (*domain.ConsultationCard, error) {
	c, err := repo.GetConsultationByCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
		}
		return nil, err
	}
	card, err := repo.GetCardByConsultation(ctx, s.DB, c.ID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return card, nil
}

// UpdateNotes replaces the counselor notes on a card. Only the counselor
// assigned to the consultation may do so.
func (s *CardService) UpdateNotes(ctx context.Context, counselorID uint, code, notes string) (*domain.ConsultationCard, error) {
	tr := otel.Tracer("services/CardService")
	ctx, span := tr.Start(ctx, "UpdateNotes",
		trace.WithAttributes(
			attribute.String("consultation.code", code),
			attribute.Int64("counselor.id", int64(counselorID)),
		),
	)
	defer span.End()

	var card *domain.ConsultationCard
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetConsultationByCode(ctx, tx, code)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
			}
			return err
		}
		if c.CounselorID == nil || *c.CounselorID != counselorID {
			return ErrNotAssignedCounselor
		}
		card, err = repo.GetCardByConsultation(ctx, tx, c.ID)
		if err != nil {
			if isNotFound(err) {
				return ErrCardNotFound
			}
			return err
		}
		if err := repo.UpdateCardNotes(ctx, tx, card.ID, notes); err != nil {
			return err
		}
		card.CounselorNotes = notes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}
