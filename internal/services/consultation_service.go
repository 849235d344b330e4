// Package services – ConsultationService
//
// This file implements the consultation session lifecycle: start, lookup by
// code, reconnect and end. Starting a session assigns a character type,
// allocates a unique 9-character code, persists the consultation in
// "waiting" state and then asks the Matcher for a counselor. Matching is best
// effort; a session without a counselor is a normal state.
//
// Service-level errors (e.g., ErrConsultationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CodeLength is the length of a consultation code.
	CodeLength = 9
	// NicknameMaxRunes caps user nicknames.
	NicknameMaxRunes = 100

	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// StartInput describes a new consultation.
type StartInput struct {
	Nickname string
	// CharacterTypePreference is honored only when QuickMatch is false.
	CharacterTypePreference *uint
	// QuickMatch picks a random character type; nil means true.
	QuickMatch *bool
}

// ConsultationView is a consultation with its display fields resolved.
type ConsultationView struct {
	domain.Consultation
	CharacterName   string `json:"character_name"`
	CharacterAnimal string `json:"character_animal"`
	CharacterGroup  string `json:"character_group"`
	CounselorName   string `json:"counselor_name,omitempty"`
}

func newConsultationView(c *domain.Consultation) *ConsultationView {
	v := &ConsultationView{
		Consultation:    *c,
		CharacterName:   c.CharacterType.Name,
		CharacterAnimal: c.CharacterType.Animal,
		CharacterGroup:  c.CharacterType.GroupName,
	}
	if c.Counselor != nil {
		v.CounselorName = c.Counselor.Name
	}
	return v
}

// ConsultationService manages consultation sessions.
type ConsultationService struct {
	DB       *gorm.DB
	Matcher  Matcher
	Notifier notify.Notifier
	Log      zerolog.Logger

	// NewCode generates a candidate code; nil uses RandomCode.
	NewCode func() string
	// Pick returns an index in [0, n); nil uses math/rand.
	Pick func(n int) int
	// MaxCodeAttempts bounds code generation retries.
	MaxCodeAttempts int
}

// RandomCode returns a random [A-Z0-9]{9} string.
func RandomCode() string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// ValidCode reports whether code has the consultation code shape.
func ValidCode(code string) bool {
	return codeRE.MatchString(code)
}

var codeRE = regexp.MustCompile(`^[A-Z0-9]{9}$`)

// Start creates a waiting consultation and triggers matching.
func (s *ConsultationService) Start(ctx context.Context, in StartInput) (*ConsultationView, error) {
	tr := otel.Tracer("services/ConsultationService")
	ctx, span := tr.Start(ctx, "Start",
		trace.WithAttributes(attribute.Bool("quick_match", in.QuickMatch == nil || *in.QuickMatch)),
	)
	defer span.End()

	nick, err := validNickname(in.Nickname)
	if err != nil {
		return nil, err
	}

	characterID, err := s.chooseCharacter(ctx, in)
	if err != nil {
		return nil, err
	}

	c, err := s.create(ctx, nick, characterID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("consultation.code", c.Code))
	s.Log.Info().
		Str("consultation_code", c.Code).
		Uint("character_type_id", characterID).
		Msg("consultation started")

	if s.Matcher != nil {
		if _, err := s.Matcher.Match(ctx, c.ID); err != nil {
			s.Log.Warn().Err(err).Str("consultation_code", c.Code).Msg("initial match failed")
		}
	}

	fresh, err := repo.GetConsultation(ctx, s.DB, c.ID)
	if err != nil {
		return nil, err
	}
	return newConsultationView(fresh), nil
}

func (s *ConsultationService) chooseCharacter(ctx context.Context, in StartInput) (uint, error) {
	quick := in.QuickMatch == nil || *in.QuickMatch
	if !quick && in.CharacterTypePreference != nil {
		ft, err := repo.GetFinalType(ctx, s.DB, *in.CharacterTypePreference)
		if err != nil {
			if isNotFound(err) {
				return 0, fmt.Errorf("%w: %d", ErrCharacterNotFound, *in.CharacterTypePreference)
			}
			return 0, err
		}
		return ft.ID, nil
	}

	ids, err := repo.ListFinalTypeIDs(ctx, s.DB)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("%w: catalog is empty", ErrCharacterNotFound)
	}
	pick := s.Pick
	if pick == nil {
		pick = rand.IntN
	}
	return ids[pick(len(ids))], nil
}

// create inserts the consultation, retrying on code collisions.
func (s *ConsultationService) create(ctx context.Context, nickname string, characterID uint) (*domain.Consultation, error) {
	gen := s.NewCode
	if gen == nil {
		gen = RandomCode
	}
	attempts := s.MaxCodeAttempts
	if attempts <= 0 {
		attempts = 10
	}
	for i := 0; i < attempts; i++ {
		code := gen()
		taken, err := repo.CodeExists(ctx, s.DB, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}
		c := &domain.Consultation{
			Code:            code,
			UserNickname:    nickname,
			CharacterTypeID: characterID,
			Status:          domain.ConsultationWaiting,
		}
		if err := repo.CreateConsultation(ctx, s.DB, c); err != nil {
			if isDuplicate(err) {
				continue
			}
			return nil, err
		}
		return c, nil
	}
	return nil, ErrDuplicateCode
}

// Get returns the consultation with the given code.
func (s *ConsultationService) Get(ctx context.Context, code string) (*ConsultationView, error) {
	c, err := s.load(ctx, s.DB, code)
	if err != nil {
		return nil, err
	}
	return newConsultationView(c), nil
}

func (s *ConsultationService) load(ctx context.Context, db *gorm.DB, code string) (*domain.Consultation, error) {
	c, err := repo.GetConsultationByCode(ctx, db, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
		}
		return nil, err
	}
	return c, nil
}

// Reconnect resumes a consultation, optionally renaming the user. A waiting
// consultation becomes active. Completed and terminated consultations are
// rejected with ErrConsultationClosed.
func (s *ConsultationService) Reconnect(ctx context.Context, code string, nickname *string) (*ConsultationView, error) {
	tr := otel.Tracer("services/ConsultationService")
	ctx, span := tr.Start(ctx, "Reconnect",
		trace.WithAttributes(attribute.String("consultation.code", code)),
	)
	defer span.End()

	var id uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := s.load(ctx, tx, code)
		if err != nil {
			return err
		}
		if c.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrConsultationClosed, c.Status)
		}
		id = c.ID

		if nickname != nil && strings.TrimSpace(*nickname) != "" {
			nick, err := validNickname(*nickname)
			if err != nil {
				return err
			}
			if err := repo.UpdateConsultationNickname(ctx, tx, c.ID, nick); err != nil {
				return err
			}
		}
		if c.Status == domain.ConsultationWaiting {
			if _, err := repo.TransitionConsultation(ctx, tx, c.ID,
				[]string{domain.ConsultationWaiting},
				map[string]any{"status": domain.ConsultationActive}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c, err := repo.GetConsultation(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	return newConsultationView(c), nil
}

// End completes a waiting or active consultation.
func (s *ConsultationService) End(ctx context.Context, code string) (*ConsultationView, error) {
	tr := otel.Tracer("services/ConsultationService")
	ctx, span := tr.Start(ctx, "End",
		trace.WithAttributes(attribute.String("consultation.code", code)),
	)
	defer span.End()

	var c *domain.Consultation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		c, err = s.load(ctx, tx, code)
		if err != nil {
			return err
		}
		if c.IsTerminal() {
			return fmt.Errorf("%w: %s", ErrConsultationClosed, c.Status)
		}
		ok, err := repo.TransitionConsultation(ctx, tx, c.ID,
			[]string{domain.ConsultationWaiting, domain.ConsultationActive},
			map[string]any{"status": domain.ConsultationCompleted, "completed_at": time.Now().UTC()})
		if err != nil {
			return err
		}
		if !ok {
			return ErrConsultationClosed
		}
		_, err = repo.CreateMessage(tx.WithContext(ctx), c.ID, domain.SenderSystem, nil,
			"The consultation has ended.", domain.MessageSystem)
		return err
	})
	if err != nil {
		return nil, err
	}

	if c.CounselorID != nil {
		publish(ctx, s.Notifier, s.Log, notify.Event{
			Type:             notify.EventConsultationEnded,
			CounselorID:      *c.CounselorID,
			ConsultationID:   c.ID,
			ConsultationCode: c.Code,
			UserNickname:     c.UserNickname,
			At:               time.Now().UTC(),
		})
	}
	s.Log.Info().Str("consultation_code", c.Code).Msg("consultation completed")

	fresh, err := repo.GetConsultation(ctx, s.DB, c.ID)
	if err != nil {
		return nil, err
	}
	return newConsultationView(fresh), nil
}

// validNickname trims and collapses whitespace and enforces 1-100 runes.
func validNickname(s string) (string, error) {
	s = normalizeSpaces(s)
	if s == "" || utf8.RuneCountInString(s) > NicknameMaxRunes {
		return "", ErrInvalidNickname
	}
	return s, nil
}

// normalizeSpaces trims whitespace and collapses multiple spaces to one.
func normalizeSpaces(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
