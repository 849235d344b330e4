package repo

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// Seed is the on-disk shape of the reference catalog and bootstrap
// counselors. Every section is optional.
type Seed struct {
	Categories []struct {
		ID           uint   `yaml:"id"`
		Name         string `yaml:"name"`
		EnglishName  string `yaml:"english_name"`
		Description  string `yaml:"description"`
		Instruction  string `yaml:"instruction"`
		DisplayOrder int    `yaml:"display_order"`
	} `yaml:"categories"`

	MainKeywords []struct {
		ID           uint   `yaml:"id"`
		CategoryID   uint   `yaml:"category_id"`
		Name         string `yaml:"name"`
		SearchVolume int    `yaml:"search_volume"`
		DisplayOrder int    `yaml:"display_order"`
	} `yaml:"main_keywords"`

	SubKeywords []struct {
		ID            uint   `yaml:"id"`
		MainKeywordID uint   `yaml:"main_keyword_id"`
		Name          string `yaml:"name"`
		DisplayOrder  int    `yaml:"display_order"`
	} `yaml:"sub_keywords"`

	IntermediateTypes []struct {
		ID              uint   `yaml:"id"`
		Name            string `yaml:"name"`
		Description     string `yaml:"description"`
		Characteristics string `yaml:"characteristics"`
		DisplayOrder    int    `yaml:"display_order"`
	} `yaml:"intermediate_types"`

	KeywordScores []struct {
		SubKeywordID       uint `yaml:"sub_keyword_id"`
		IntermediateTypeID uint `yaml:"intermediate_type_id"`
		Score              int  `yaml:"score"`
	} `yaml:"keyword_scores"`

	Weights []struct {
		SelectionOrder int     `yaml:"selection_order"`
		Weight         float64 `yaml:"weight"`
	} `yaml:"weights"`

	FinalTypes []struct {
		ID                 uint           `yaml:"id"`
		Name               string         `yaml:"name"`
		Animal             string         `yaml:"animal"`
		GroupName          string         `yaml:"group_name"`
		OneLiner           string         `yaml:"one_liner"`
		Overview           string         `yaml:"overview"`
		Greeting           string         `yaml:"greeting"`
		Hashtags           []string       `yaml:"hashtags"`
		Strengths          []domain.Trait `yaml:"strengths"`
		Weaknesses         []domain.Trait `yaml:"weaknesses"`
		RelationshipStyle  string         `yaml:"relationship_style"`
		BehaviorPattern    string         `yaml:"behavior_pattern"`
		ImageFilename      string         `yaml:"image_filename"`
		ImageFilenameRight string         `yaml:"image_filename_right"`
		StrengthIcons      []string       `yaml:"strength_icons"`
		WeaknessIcons      []string       `yaml:"weakness_icons"`
	} `yaml:"final_types"`

	Combinations []struct {
		Primary   uint `yaml:"primary"`
		Secondary uint `yaml:"secondary"`
		FinalType uint `yaml:"final_type"`
	} `yaml:"combinations"`

	Counselors []struct {
		Username              string   `yaml:"username"`
		Name                  string   `yaml:"name"`
		Specialties           []string `yaml:"specialties"`
		IsApproved            bool     `yaml:"is_approved"`
		MaxConcurrentSessions int      `yaml:"max_concurrent_sessions"`
	} `yaml:"counselors"`
}

// SeedSummary reports how many rows of each kind were upserted.
type SeedSummary struct {
	Categories, Keywords, Types, Scores, FinalTypes, Combinations, Counselors int
}

// DecodeSeed parses a YAML seed document.
func DecodeSeed(r io.Reader) (*Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	return &s, nil
}

// LoadSeed decodes r and upserts its contents in a single transaction.
// Re-running the same seed is a no-op apart from refreshed columns.
func LoadSeed(ctx context.Context, db *gorm.DB, r io.Reader) (SeedSummary, error) {
	s, err := DecodeSeed(r)
	if err != nil {
		return SeedSummary{}, err
	}
	return ApplySeed(ctx, db, s)
}

// ApplySeed upserts an already decoded seed.
func ApplySeed(ctx context.Context, db *gorm.DB, s *Seed) (SeedSummary, error) {
	var sum SeedSummary
	upsert := clause.OnConflict{UpdateAll: true}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range s.Categories {
			row := domain.Category{ID: c.ID, Name: c.Name, EnglishName: c.EnglishName,
				Description: c.Description, Instruction: c.Instruction, DisplayOrder: c.DisplayOrder}
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("category %d: %w", c.ID, err)
			}
			sum.Categories++
		}
		for _, m := range s.MainKeywords {
			row := domain.MainKeyword{ID: m.ID, CategoryID: m.CategoryID, Name: m.Name,
				SearchVolume: m.SearchVolume, DisplayOrder: m.DisplayOrder}
			if err := tx.Clauses(upsert).Omit("Category", "SubKeywords").Create(&row).Error; err != nil {
				return fmt.Errorf("main keyword %d: %w", m.ID, err)
			}
		}
		for _, k := range s.SubKeywords {
			row := domain.SubKeyword{ID: k.ID, MainKeywordID: k.MainKeywordID, Name: k.Name, DisplayOrder: k.DisplayOrder}
			if err := tx.Clauses(upsert).Omit("MainKeyword").Create(&row).Error; err != nil {
				return fmt.Errorf("sub keyword %d: %w", k.ID, err)
			}
			sum.Keywords++
		}
		for _, t := range s.IntermediateTypes {
			row := domain.IntermediateType{ID: t.ID, Name: t.Name, Description: t.Description,
				Characteristics: t.Characteristics, DisplayOrder: t.DisplayOrder}
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("intermediate type %d: %w", t.ID, err)
			}
			sum.Types++
		}
		for _, sc := range s.KeywordScores {
			row := domain.KeywordTypeScore{SubKeywordID: sc.SubKeywordID, IntermediateTypeID: sc.IntermediateTypeID, Score: sc.Score}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sub_keyword_id"}, {Name: "intermediate_type_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"score"}),
			}).Omit("SubKeyword", "IntermediateType").Create(&row).Error
			if err != nil {
				return fmt.Errorf("score %d/%d: %w", sc.SubKeywordID, sc.IntermediateTypeID, err)
			}
			sum.Scores++
		}
		for _, w := range s.Weights {
			row := domain.CalculationWeight{SelectionOrder: w.SelectionOrder, Weight: w.Weight}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "selection_order"}},
				DoUpdates: clause.AssignmentColumns([]string{"weight"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("weight %d: %w", w.SelectionOrder, err)
			}
		}
		for _, f := range s.FinalTypes {
			row := domain.FinalType{
				ID: f.ID, Name: f.Name, Animal: f.Animal, GroupName: f.GroupName,
				OneLiner: f.OneLiner, Overview: f.Overview, Greeting: f.Greeting,
				Hashtags: f.Hashtags, Strengths: f.Strengths, Weaknesses: f.Weaknesses,
				RelationshipStyle: f.RelationshipStyle, BehaviorPattern: f.BehaviorPattern,
				ImageFilename: f.ImageFilename, ImageFilenameRight: f.ImageFilenameRight,
				StrengthIcons: f.StrengthIcons, WeaknessIcons: f.WeaknessIcons,
			}
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return fmt.Errorf("final type %d: %w", f.ID, err)
			}
			sum.FinalTypes++
		}
		for _, c := range s.Combinations {
			row := domain.TypeCombination{PrimaryTypeID: c.Primary, SecondaryTypeID: c.Secondary, FinalTypeID: c.FinalType}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "primary_type_id"}, {Name: "secondary_type_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"final_type_id"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("combination %d/%d: %w", c.Primary, c.Secondary, err)
			}
			sum.Combinations++
		}
		for _, c := range s.Counselors {
			maxSessions := c.MaxConcurrentSessions
			if maxSessions <= 0 {
				maxSessions = 3
			}
			row := domain.Counselor{Username: c.Username, Name: c.Name, Specialties: c.Specialties,
				Status: domain.CounselorOffline, IsActive: true, IsApproved: c.IsApproved, MaxConcurrentSessions: maxSessions}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "username"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "specialties", "is_approved", "max_concurrent_sessions"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("counselor %s: %w", c.Username, err)
			}
			sum.Counselors++
		}
		return nil
	})
	return sum, err
}
