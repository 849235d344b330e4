// Package domain defines the persistence models for the keyword catalog,
// personality types, consultations, counselors, and matching requests. These
// types are mapped with GORM and form the core data layer of the counseling
// backend.
package domain

import (
	"gorm.io/datatypes"
)

// Category is a top-level grouping of keywords shown to the user
// (e.g. "Mind", "Daily Life", "Leisure").
type Category struct {
	ID           uint   `json:"id"           gorm:"primaryKey"`
	Name         string `json:"name"         gorm:"type:varchar(50);not null"`
	EnglishName  string `json:"english_name" gorm:"type:varchar(50)"`
	Description  string `json:"description"  gorm:"type:text"`
	Instruction  string `json:"instruction"  gorm:"type:text"`
	DisplayOrder int    `json:"display_order" gorm:"not null;default:0"`

	MainKeywords []MainKeyword `json:"-" gorm:"foreignKey:CategoryID"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// MainKeyword groups SubKeywords inside a Category.
type MainKeyword struct {
	ID           uint   `json:"id"            gorm:"primaryKey"`
	CategoryID   uint   `json:"category_id"   gorm:"not null;index"`
	Name         string `json:"name"          gorm:"type:varchar(100);not null"`
	SearchVolume int    `json:"search_volume" gorm:"not null;default:0"`
	DisplayOrder int    `json:"display_order" gorm:"not null;default:0"`

	Category    Category     `json:"-" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	SubKeywords []SubKeyword `json:"-" gorm:"foreignKey:MainKeywordID"`
}

// TableName returns the database table name for MainKeyword.
func (MainKeyword) TableName() string { return "main_keywords" }

// SubKeyword is the unit a user selects. It is scored against every
// IntermediateType through KeywordTypeScore rows.
type SubKeyword struct {
	ID            uint   `json:"id"              gorm:"primaryKey"`
	MainKeywordID uint   `json:"main_keyword_id" gorm:"not null;index"`
	Name          string `json:"name"            gorm:"type:varchar(100);not null"`
	DisplayOrder  int    `json:"display_order"   gorm:"not null;default:0"`

	MainKeyword MainKeyword `json:"-" gorm:"foreignKey:MainKeywordID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for SubKeyword.
func (SubKeyword) TableName() string { return "sub_keywords" }

// IntermediateType is one of the latent scoring buckets (16 in the shipped
// catalog).
type IntermediateType struct {
	ID              uint   `json:"id"              gorm:"primaryKey"`
	Name            string `json:"name"            gorm:"type:varchar(100);not null"`
	Description     string `json:"description"     gorm:"type:text"`
	Characteristics string `json:"characteristics" gorm:"type:text"`
	DisplayOrder    int    `json:"display_order"   gorm:"not null;default:0"`
}

// TableName returns the database table name for IntermediateType.
func (IntermediateType) TableName() string { return "intermediate_types" }

// KeywordTypeScore is the raw integer contribution of a SubKeyword toward an
// IntermediateType. Rows with score 0 may be omitted.
type KeywordTypeScore struct {
	ID                 uint `json:"id"                   gorm:"primaryKey"`
	SubKeywordID       uint `json:"sub_keyword_id"       gorm:"not null;uniqueIndex:ux_keyword_type,priority:1"`
	IntermediateTypeID uint `json:"intermediate_type_id" gorm:"not null;uniqueIndex:ux_keyword_type,priority:2;index"`
	Score              int  `json:"score"                gorm:"not null"`

	SubKeyword       SubKeyword       `json:"-" gorm:"foreignKey:SubKeywordID;references:ID;constraint:OnDelete:CASCADE"`
	IntermediateType IntermediateType `json:"-" gorm:"foreignKey:IntermediateTypeID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for KeywordTypeScore.
func (KeywordTypeScore) TableName() string { return "keyword_type_scores" }

// CalculationWeight maps a selection position inside a category (1-based) to
// a multiplicative weight.
type CalculationWeight struct {
	ID             uint    `json:"id"              gorm:"primaryKey"`
	SelectionOrder int     `json:"selection_order" gorm:"not null;uniqueIndex"`
	Weight         float64 `json:"weight"          gorm:"not null"`
}

// TableName returns the database table name for CalculationWeight.
func (CalculationWeight) TableName() string { return "calculation_weights" }

// TypeCombination maps an intermediate-type pair to a FinalType. Only one
// direction of each pair is stored.
type TypeCombination struct {
	ID              uint `json:"id"                gorm:"primaryKey"`
	PrimaryTypeID   uint `json:"primary_type_id"   gorm:"not null;uniqueIndex:ux_type_pair,priority:1"`
	SecondaryTypeID uint `json:"secondary_type_id" gorm:"not null;uniqueIndex:ux_type_pair,priority:2"`
	FinalTypeID     uint `json:"final_type_id"     gorm:"not null;index"`
}

// TableName returns the database table name for TypeCombination.
func (TypeCombination) TableName() string { return "type_combinations" }

// Trait is a titled strength or weakness of a FinalType.
type Trait struct {
	Title       string `json:"title"       yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// FinalType is the persona returned to the user at the end of the quiz
// (32 in the shipped catalog). List-valued fields are stored as JSON.
type FinalType struct {
	ID                 uint                        `json:"id"                   gorm:"primaryKey"`
	Name               string                      `json:"name"                 gorm:"type:varchar(100);not null"`
	Animal             string                      `json:"animal"               gorm:"type:varchar(50)"`
	GroupName          string                      `json:"group_name"           gorm:"type:varchar(50)"`
	OneLiner           string                      `json:"one_liner"            gorm:"type:text"`
	Overview           string                      `json:"overview"             gorm:"type:text"`
	Greeting           string                      `json:"greeting"             gorm:"type:text"`
	Hashtags           datatypes.JSONSlice[string] `json:"hashtags"`
	Strengths          datatypes.JSONSlice[Trait]  `json:"strengths"`
	Weaknesses         datatypes.JSONSlice[Trait]  `json:"weaknesses"`
	RelationshipStyle  string                      `json:"relationship_style"   gorm:"type:text"`
	BehaviorPattern    string                      `json:"behavior_pattern"     gorm:"type:text"`
	ImageFilename      string                      `json:"image_filename"       gorm:"type:varchar(255)"`
	ImageFilenameRight string                      `json:"image_filename_right" gorm:"type:varchar(255)"`
	StrengthIcons      datatypes.JSONSlice[string] `json:"strength_icons"`
	WeaknessIcons      datatypes.JSONSlice[string] `json:"weakness_icons"`
}

// TableName returns the database table name for FinalType.
func (FinalType) TableName() string { return "final_types" }
