// Package services – TypeService
//
// This file implements TypeService, which runs the personality calculation:
// it loads a consistent snapshot of the reference catalog inside one read
// transaction, hands it to the pure scoring engine, and resolves the final
// type row for presentation.
//
// Fallbacks (no stored combination for the top pair) never fail the request;
// they are flagged on the result, counted in Prometheus, and logged at warn.
package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/observability"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/scoring"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Calculation is the presentation shape of one scoring run.
type Calculation struct {
	PrimaryType   scoring.TypeScore `json:"primaryType"`
	SecondaryType scoring.TypeScore `json:"secondaryType"`
	FinalType     *domain.FinalType `json:"finalType"`
	Fallback      bool              `json:"fallback"`
	AllTypeScores map[uint]float64  `json:"allTypeScores"`
	Debug         *scoring.Trace    `json:"debug,omitempty"`
}

// TypeService computes personality types from keyword selections.
type TypeService struct {
	DB     *gorm.DB
	Engine scoring.Engine
	Log    zerolog.Logger
}

// NewTypeService builds a TypeService with a per-category selection cap.
func NewTypeService(db *gorm.DB, maxPerCategory int, log zerolog.Logger) *TypeService {
	return &TypeService{
		DB:     db,
		Engine: scoring.Engine{MaxPerCategory: maxPerCategory},
		Log:    log,
	}
}

// Calculate scores sel and resolves the final type. Validation failures
// are returned wrapped around the scoring sentinels.
func (s *TypeService) Calculate(ctx context.Context, sel scoring.Selections, debug bool) (*Calculation, error) {
	tr := otel.Tracer("services/TypeService")
	ctx, span := tr.Start(ctx, "Calculate",
		trace.WithAttributes(
			attribute.Int("selection.categories", len(sel)),
			attribute.Bool("debug", debug),
		),
	)
	defer span.End()

	// Shape checks that need no data run before touching the DB.
	if len(sel) == 0 {
		return nil, scoring.ErrNoSelections
	}

	var (
		res *scoring.Result
		ft  *domain.FinalType
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err := LoadTable(ctx, tx, sel)
		if err != nil {
			return err
		}
		res, err = s.Engine.Score(sel, table, debug)
		if err != nil {
			return err
		}
		ft, err = repo.GetFinalType(ctx, tx, res.FinalTypeID)
		if err != nil {
			return fmt.Errorf("load final type %d: %w", res.FinalTypeID, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("type.primary", int64(res.Primary.ID)),
		attribute.Int64("type.secondary", int64(res.Secondary.ID)),
		attribute.Int64("type.final", int64(res.FinalTypeID)),
		attribute.Bool("type.fallback", res.Fallback),
	)
	if res.Fallback {
		observability.FinalTypeFallbacks.Inc()
		s.Log.Warn().
			Uint("primary_type", res.Primary.ID).
			Uint("secondary_type", res.Secondary.ID).
			Uint("final_type", res.FinalTypeID).
			Msg("no type combination stored; using default final type")
	}

	return &Calculation{
		PrimaryType:   res.Primary,
		SecondaryType: res.Secondary,
		FinalType:     ft,
		Fallback:      res.Fallback,
		AllTypeScores: res.AllScores,
		Debug:         res.Trace,
	}, nil
}

// LoadTable reads the slice of the catalog needed to score sel. Only the
// selected keywords are loaded; ids that do not exist are left out of
// Table.Keywords so the engine rejects them.
func LoadTable(ctx context.Context, db *gorm.DB, sel scoring.Selections) (*scoring.Table, error) {
	var ids []uint
	seen := map[uint]struct{}{}
	for _, list := range sel {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	kws, err := repo.FindSubKeywords(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	t := &scoring.Table{
		Keywords:     make(map[uint][]scoring.Contribution, len(kws)),
		Weights:      map[int]float64{},
		Combinations: map[scoring.Pair]uint{},
	}
	for _, k := range kws {
		t.Keywords[k.ID] = nil
	}

	scores, err := repo.ListKeywordScores(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for _, sc := range scores {
		t.Keywords[sc.SubKeywordID] = append(t.Keywords[sc.SubKeywordID],
			scoring.Contribution{TypeID: sc.IntermediateTypeID, Score: sc.Score})
	}

	types, err := repo.ListIntermediateTypes(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, ty := range types {
		t.Types = append(t.Types, scoring.TypeRef{ID: ty.ID, Name: ty.Name})
	}

	weights, err := repo.ListCalculationWeights(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, w := range weights {
		t.Weights[w.SelectionOrder] = w.Weight
	}

	combos, err := repo.ListTypeCombinations(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, c := range combos {
		t.Combinations[scoring.Pair{Primary: c.PrimaryTypeID, Secondary: c.SecondaryTypeID}] = c.FinalTypeID
	}

	if t.FinalTypeIDs, err = repo.ListFinalTypeIDs(ctx, db); err != nil {
		return nil, err
	}
	return t, nil
}
