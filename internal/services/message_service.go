// Package services – MessageService
//
// This file implements MessageService, which owns the chat lines exchanged
// inside a consultation. It validates content, checks that the consultation
// still accepts messages and that a counselor sender is the assigned one,
// and serves paginated history.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the consultation code and pagination parameters where applicable.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SendInput describes one message.
type SendInput struct {
	SenderType string // user|counselor
	SenderID   *uint  // counselor id for counselor messages
	Content    string
}

// MessageService persists and lists consultation messages.
type MessageService struct {
	DB *gorm.DB

	// MaxContentRunes caps message length; 0 disables the check.
	MaxContentRunes int
}

// Send validates and stores a text message in the consultation with code.
func (s *MessageService) Send(ctx context.Context, code string, in SendInput) (*domain.ConsultationMessage, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("consultation.code", code),
			attribute.String("sender.type", in.SenderType),
		),
	)
	defer span.End()

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrMessageTooLong
	}

	var msg *domain.ConsultationMessage
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetConsultationByCode(ctx, tx, code)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
			}
			return err
		}
		if c.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrConsultationClosed, c.Status)
		}

		var senderID *uint
		switch in.SenderType {
		case domain.SenderUser:
		case domain.SenderCounselor:
			if in.SenderID == nil || c.CounselorID == nil || *c.CounselorID != *in.SenderID {
				return ErrNotAssignedCounselor
			}
			senderID = in.SenderID
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSender, in.SenderType)
		}

		msg, err = repo.CreateMessage(tx.WithContext(ctx), c.ID, in.SenderType, senderID, content, domain.MessageText)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return msg, nil
}

// ListPage returns paginated messages for a consultation, oldest first.
func (s *MessageService) ListPage(ctx context.Context, code string, page, pageSize int) ([]domain.ConsultationMessage, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("consultation.code", code),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	c, err := repo.GetConsultationByCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(s.DB.WithContext(ctx), c.ID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ConsultationMessage{}, 0, nil
	}

	items, err := repo.ListMessagesPage(s.DB.WithContext(ctx), c.ID, offset, pageSize)
	return items, total, err
}

// Stats returns the message count and newest message time for the
// consultation with code; handlers derive weak ETags from it.
func (s *MessageService) Stats(ctx context.Context, code string) (int64, *time.Time, error) {
	c, err := repo.GetConsultationByCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return 0, nil, fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
		}
		return 0, nil, err
	}
	return repo.MessagesStats(ctx, s.DB, c.ID)
}
