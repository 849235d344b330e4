// Reference data and personality HTTP handlers.
//
// This file exposes the read-only catalog and the scoring endpoint:
//   - GET  /keywords/categories        (categories with keywords, display order)
//   - GET  /keywords/categories/{id}   (one category)
//   - GET  /keywords/search            (token search over keyword names)
//   - GET  /types/intermediate         (intermediate types)
//   - GET  /characters, /characters/{id}
//   - POST /personality/calculate      (score keyword selections)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/scoring"
	"github.com/tbourn/go-counsel-backend/internal/services"
	"github.com/tbourn/go-counsel-backend/internal/utils"
)

// CalculateRequest is the payload for POST /personality/calculate.
type CalculateRequest struct {
	// Selections maps category id to 1-3 selected sub keyword ids.
	Selections map[string][]uint `json:"selections" binding:"required"`
	// Debug includes the per-keyword contribution trace.
	Debug bool `json:"debug"`
}

// CategoriesResponse wraps the category list.
type CategoriesResponse struct {
	Categories []services.CategoryView `json:"categories"`
}

// KeywordSearchResponse wraps keyword search hits.
type KeywordSearchResponse struct {
	Query   string                `json:"query"`
	Results []services.KeywordHit `json:"results"`
}

// IntermediateTypesResponse wraps the intermediate type list.
type IntermediateTypesResponse struct {
	Types []domain.IntermediateType `json:"types"`
}

// CharactersResponse wraps the final type list.
type CharactersResponse struct {
	Characters []domain.FinalType `json:"characters"`
}

// CalculatePersonality godoc
// @ID          calculatePersonality
// @Summary     Calculate a personality type
// @Description Scores the selected keywords per category, picks the top two intermediate types
// @Description and resolves the final character. With debug=true the weighted trace is returned.
// @Tags        Personality
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.CalculateRequest  true  "Keyword selections"
// @Success     200   {object}  services.Calculation
// @Failure     400   {object}  handlers.ErrorResponse  "Invalid selection or unknown keyword"
// @Failure     500   {object}  handlers.ErrorResponse  "Internal error"
// @Router      /personality/calculate [post]
func (h *Handlers) CalculatePersonality(c *gin.Context) {
	if !available(c, h.typeSvc) {
		return
	}
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "selections required")
		return
	}
	sel, err := scoring.ParseSelections(req.Selections)
	if err != nil {
		failErr(c, err)
		return
	}
	res, err := h.typeSvc.Calculate(c.Request.Context(), sel, req.Debug)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListCategories godoc
// @ID          listCategories
// @Summary     List keyword categories
// @Description Returns every category with its sub keywords ordered by main keyword, then keyword display order.
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.CategoriesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /keywords/categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	cats, err := h.catalogSvc.Categories(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CategoriesResponse{Categories: cats})
}

// GetCategory godoc
// @ID          getCategory
// @Summary     Get a keyword category
// @Tags        Catalog
// @Produce     json
// @Param       id   path      int  true  "Category ID"  minimum(1)
// @Success     200  {object}  services.CategoryView
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Category not found"
// @Router      /keywords/categories/{id} [get]
func (h *Handlers) GetCategory(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	cat, err := h.catalogSvc.Category(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cat)
}

// SearchKeywords godoc
// @ID          searchKeywords
// @Summary     Search keywords
// @Description Ranks sub keywords by token overlap with q over their own and their main keyword's name.
// @Tags        Catalog
// @Produce     json
// @Param       q      query     string  true   "Search text"  example(hiking)
// @Param       limit  query     int     false  "Max results"  minimum(1) maximum(50) default(10)
// @Success     200    {object}  handlers.KeywordSearchResponse
// @Failure     400    {object}  handlers.ErrorResponse  "Missing query"
// @Router      /keywords/search [get]
func (h *Handlers) SearchKeywords(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q required")
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 10)
	if limit < 1 || limit > 50 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "limit must be between 1 and 50")
		return
	}
	hits, err := h.catalogSvc.SearchKeywords(c.Request.Context(), q, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if hits == nil {
		hits = []services.KeywordHit{}
	}
	ok(c, http.StatusOK, KeywordSearchResponse{Query: q, Results: hits})
}

// ListIntermediateTypes godoc
// @ID          listIntermediateTypes
// @Summary     List intermediate types
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.IntermediateTypesResponse
// @Router      /types/intermediate [get]
func (h *Handlers) ListIntermediateTypes(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	types, err := h.catalogSvc.IntermediateTypes(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, IntermediateTypesResponse{Types: types})
}

// ListCharacters godoc
// @ID          listCharacters
// @Summary     List character types
// @Tags        Catalog
// @Produce     json
// @Success     200  {object}  handlers.CharactersResponse
// @Router      /characters [get]
func (h *Handlers) ListCharacters(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	chars, err := h.catalogSvc.Characters(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CharactersResponse{Characters: chars})
}

// GetCharacter godoc
// @ID          getCharacter
// @Summary     Get a character type
// @Tags        Catalog
// @Produce     json
// @Param       id   path      int  true  "Character type ID"  minimum(1)
// @Success     200  {object}  domain.FinalType
// @Failure     404  {object}  handlers.ErrorResponse  "Character not found"
// @Router      /characters/{id} [get]
func (h *Handlers) GetCharacter(c *gin.Context) {
	if !available(c, h.catalogSvc) {
		return
	}
	id, valid := idParam(c, "id")
	if !valid {
		return
	}
	ch, err := h.catalogSvc.Character(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}
