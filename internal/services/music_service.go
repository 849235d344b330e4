// Package services – MusicService
//
// This file implements background-music recommendations for a live
// consultation. The most recent text messages (system lines excluded) are
// concatenated in chronological order, capped at MusicTextMaxRunes with the
// newest text kept, and sent to the external analyze API.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/music"
	"github.com/tbourn/go-counsel-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MusicTextMaxRunes = 1000
	MusicTextMinRunes = 10
	DefaultMusicTake  = 3
	MaxMusicTake      = 10

	// musicScanLimit bounds how many messages are read to fill the window.
	musicScanLimit = 500
)

// Recommender is the outbound music API.
type Recommender interface {
	Recommend(ctx context.Context, message string, take int) (*music.Response, error)
}

var _ Recommender = (*music.Client)(nil)

// MusicRecommendations is the result of MusicService.Recommend.
type MusicRecommendations struct {
	ConsultationCode     string        `json:"consultation_code"`
	AnalyzedTextLength   int           `json:"analyzed_text_length"`
	Recommendations      []music.Track `json:"recommendations"`
	TotalRecommendations int           `json:"total_recommendations"`
}

// MusicService recommends music for ongoing consultations.
type MusicService struct {
	DB     *gorm.DB
	Client Recommender
	Log    zerolog.Logger
}

// Recommend returns up to take tracks for the consultation with code.
// take of 0 means DefaultMusicTake.
func (s *MusicService) Recommend(ctx context.Context, code string, take int) (*MusicRecommendations, error) {
	tr := otel.Tracer("services/MusicService")
	ctx, span := tr.Start(ctx, "Recommend",
		trace.WithAttributes(
			attribute.String("consultation.code", code),
			attribute.Int("take", take),
		),
	)
	defer span.End()

	if take == 0 {
		take = DefaultMusicTake
	}
	if take < 1 || take > MaxMusicTake {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTake, take)
	}

	c, err := repo.GetConsultationByCode(ctx, s.DB, code)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrConsultationNotFound, code)
		}
		return nil, err
	}
	if c.IsTerminal() {
		return nil, fmt.Errorf("%w: %s", ErrConsultationClosed, c.Status)
	}

	msgs, err := repo.ListRecentTextMessages(s.DB.WithContext(ctx), c.ID, musicScanLimit)
	if err != nil {
		return nil, err
	}
	text := RecentText(msgs, MusicTextMaxRunes)
	n := utf8.RuneCountInString(text)
	if n < MusicTextMinRunes {
		return nil, ErrNotEnoughText
	}
	span.SetAttributes(attribute.Int("text.length", n))

	if s.Client == nil {
		return nil, fmt.Errorf("%w: no client configured", ErrMusicUnavailable)
	}
	res, err := s.Client.Recommend(ctx, text, take)
	if err != nil {
		span.RecordError(err)
		s.Log.Error().Err(err).Str("consultation_code", c.Code).Msg("music api call failed")
		return nil, fmt.Errorf("%w: %v", ErrMusicUnavailable, err)
	}

	tracks := res.Musics
	if tracks == nil {
		tracks = []music.Track{}
	}
	return &MusicRecommendations{
		ConsultationCode:     c.Code,
		AnalyzedTextLength:   n,
		Recommendations:      tracks,
		TotalRecommendations: len(tracks),
	}, nil
}

// RecentText joins newestFirst in chronological order with single spaces,
// keeping at most maxRunes runes. When the window is full the oldest message
// that still fits partially is cut at its head.
func RecentText(newestFirst []domain.ConsultationMessage, maxRunes int) string {
	var parts []string
	used := 0
	for _, m := range newestFirst {
		if m.MessageType != domain.MessageText {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		sep := 0
		if len(parts) > 0 {
			sep = 1
		}
		room := maxRunes - used - sep
		if room <= 0 {
			break
		}
		r := []rune(content)
		if len(r) > room {
			parts = append(parts, string(r[len(r)-room:]))
			break
		}
		parts = append(parts, content)
		used += len(r) + sep
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
