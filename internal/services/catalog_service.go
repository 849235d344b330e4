// Package services – CatalogService
//
// This file implements read access to the reference catalog: categories with
// their keywords, intermediate types, final types ("characters") and keyword
// search over an in-memory index built at startup.
package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// KeywordView is a selectable sub keyword with its main keyword name.
type KeywordView struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MainKeywordID   uint   `json:"main_keyword_id"`
	MainKeywordName string `json:"main_keyword_name"`
}

// CategoryView is a category with its keywords in display order.
type CategoryView struct {
	domain.Category
	Keywords []KeywordView `json:"keywords"`
}

// KeywordHit is one keyword search result.
type KeywordHit struct {
	KeywordView
	Score float64 `json:"score"`
}

// CatalogService serves the immutable reference data.
type CatalogService struct {
	DB    *gorm.DB
	Index search.Index
}

// BuildKeywordIndex indexes every sub keyword by its own and its main
// keyword's name.
func BuildKeywordIndex(ctx context.Context, db *gorm.DB, opts ...search.Option) (search.Index, error) {
	kws, err := repo.ListAllSubKeywords(ctx, db)
	if err != nil {
		return nil, err
	}
	docs := make([]search.Document, 0, len(kws))
	for _, k := range kws {
		docs = append(docs, search.Document{ID: k.ID, Text: k.Name + " " + k.MainKeyword.Name})
	}
	return search.NewIndex(docs, opts...), nil
}

// Categories returns every category with its keywords.
func (s *CatalogService) Categories(ctx context.Context) ([]CategoryView, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Categories")
	defer span.End()

	cats, err := repo.ListCategories(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryView, 0, len(cats))
	for _, c := range cats {
		v, err := s.categoryView(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Category returns one category with its keywords.
func (s *CatalogService) Category(ctx context.Context, id uint) (*CategoryView, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Category",
		trace.WithAttributes(attribute.Int64("category.id", int64(id))),
	)
	defer span.End()

	c, err := repo.GetCategory(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrCategoryNotFound, id)
		}
		return nil, err
	}
	return s.categoryView(ctx, *c)
}

func (s *CatalogService) categoryView(ctx context.Context, c domain.Category) (*CategoryView, error) {
	mains, err := repo.ListMainKeywords(ctx, s.DB, c.ID)
	if err != nil {
		return nil, err
	}
	v := &CategoryView{Category: c, Keywords: []KeywordView{}}
	for _, m := range mains {
		for _, sub := range m.SubKeywords {
			v.Keywords = append(v.Keywords, KeywordView{
				ID: sub.ID, Name: sub.Name, MainKeywordID: m.ID, MainKeywordName: m.Name,
			})
		}
	}
	return v, nil
}

// SearchKeywords returns up to limit keywords matching q.
func (s *CatalogService) SearchKeywords(ctx context.Context, q string, limit int) ([]KeywordHit, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "SearchKeywords",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("limit", limit)),
	)
	defer span.End()

	if s.Index == nil {
		return []KeywordHit{}, nil
	}
	res := s.Index.TopK(q, limit)
	if len(res) == 0 {
		return []KeywordHit{}, nil
	}
	ids := make([]uint, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}

	var kws []domain.SubKeyword
	if err := s.DB.WithContext(ctx).Preload("MainKeyword").Where("id IN ?", ids).Find(&kws).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.SubKeyword, len(kws))
	for _, k := range kws {
		byID[k.ID] = k
	}

	out := make([]KeywordHit, 0, len(res))
	for _, r := range res {
		k, ok := byID[r.ID]
		if !ok {
			continue
		}
		out = append(out, KeywordHit{
			KeywordView: KeywordView{ID: k.ID, Name: k.Name, MainKeywordID: k.MainKeywordID, MainKeywordName: k.MainKeyword.Name},
			Score:       r.Score,
		})
	}
	return out, nil
}

// IntermediateTypes lists the scoring buckets in display order.
func (s *CatalogService) IntermediateTypes(ctx context.Context) ([]domain.IntermediateType, error) {
	return repo.ListIntermediateTypes(ctx, s.DB)
}

// Characters lists every final type.
func (s *CatalogService) Characters(ctx context.Context) ([]domain.FinalType, error) {
	return repo.ListFinalTypes(ctx, s.DB)
}

// Character returns one final type.
func (s *CatalogService) Character(ctx context.Context, id uint) (*domain.FinalType, error) {
	ft, err := repo.GetFinalType(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCharacterNotFound, id)
		}
		return nil, err
	}
	return ft, nil
}
