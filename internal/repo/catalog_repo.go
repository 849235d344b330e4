// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read-only accessors for the reference
// catalog: categories, keywords, intermediate and final types, weights,
// keyword scores, and type combinations.
//
// The catalog is immutable at runtime. Callers that need a consistent view
// across several reads (the scoring engine) should pass a transaction handle.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

func byDisplayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC, id ASC")
}

// ListCategories returns all categories in display order.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := byDisplayOrder(db.WithContext(ctx)).Find(&out).Error
	return out, err
}

// GetCategory fetches a category by id or returns ErrNotFound.
func GetCategory(ctx context.Context, db *gorm.DB, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListMainKeywords returns the main keywords of a category with their sub
// keywords preloaded, both levels ordered by display order.
func ListMainKeywords(ctx context.Context, db *gorm.DB, categoryID uint) ([]domain.MainKeyword, error) {
	var out []domain.MainKeyword
	err := byDisplayOrder(db.WithContext(ctx)).
		Where("category_id = ?", categoryID).
		Preload("SubKeywords", byDisplayOrder).
		Find(&out).Error
	return out, err
}

// ListAllSubKeywords returns every sub keyword with its main keyword
// preloaded. Used to build the in-memory keyword search index.
func ListAllSubKeywords(ctx context.Context, db *gorm.DB) ([]domain.SubKeyword, error) {
	var out []domain.SubKeyword
	err := db.WithContext(ctx).
		Preload("MainKeyword").
		Order("id ASC").
		Find(&out).Error
	return out, err
}

// FindSubKeywords returns the sub keywords whose ids are in ids. Missing ids
// are silently absent from the result.
func FindSubKeywords(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.SubKeyword, error) {
	var out []domain.SubKeyword
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&out).Error
	return out, err
}

// ListIntermediateTypes returns all intermediate types in display order.
func ListIntermediateTypes(ctx context.Context, db *gorm.DB) ([]domain.IntermediateType, error) {
	var out []domain.IntermediateType
	err := byDisplayOrder(db.WithContext(ctx)).Find(&out).Error
	return out, err
}

// ListKeywordScores returns the score rows for the given keywords.
func ListKeywordScores(ctx context.Context, db *gorm.DB, keywordIDs []uint) ([]domain.KeywordTypeScore, error) {
	var out []domain.KeywordTypeScore
	if len(keywordIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Where("sub_keyword_id IN ?", keywordIDs).
		Order("sub_keyword_id ASC, intermediate_type_id ASC").
		Find(&out).Error
	return out, err
}

// ListCalculationWeights returns the configured selection-order weights.
func ListCalculationWeights(ctx context.Context, db *gorm.DB) ([]domain.CalculationWeight, error) {
	var out []domain.CalculationWeight
	err := db.WithContext(ctx).Order("selection_order ASC").Find(&out).Error
	return out, err
}

// ListTypeCombinations returns every stored type pair.
func ListTypeCombinations(ctx context.Context, db *gorm.DB) ([]domain.TypeCombination, error) {
	var out []domain.TypeCombination
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// ListFinalTypes returns all final types ordered by id.
func ListFinalTypes(ctx context.Context, db *gorm.DB) ([]domain.FinalType, error) {
	var out []domain.FinalType
	err := db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// ListFinalTypeIDs returns the ids of all final types in ascending order.
func ListFinalTypeIDs(ctx context.Context, db *gorm.DB) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).Model(&domain.FinalType{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// GetFinalType fetches a final type by id or returns ErrNotFound.
func GetFinalType(ctx context.Context, db *gorm.DB, id uint) (*domain.FinalType, error) {
	var ft domain.FinalType
	if err := db.WithContext(ctx).First(&ft, id).Error; err != nil {
		return nil, err
	}
	return &ft, nil
}
