// Package scoring turns ordered keyword selections into a ranked pair of
// intermediate types and a resolved final type.
//
// The engine is a pure function of its inputs: a Selections value and a
// Table snapshot of the reference data. It performs no I/O, holds no
// mutable state, and is safe for concurrent use. Loading the Table from the
// database is the caller's job (see services.TypeService).
//
// Algorithm:
//  1. Every intermediate type starts at 0.
//  2. For each category (ascending id), the keyword at 1-based position i
//     adds raw*weight(i) to every type it has a score row for. Missing
//     weights fall back to DefaultWeights; positions past the weight table
//     weigh 0.
//  3. Types are ranked by total descending; equal totals keep ascending
//     type id order.
//  4. The top two are looked up in the combination table in both
//     directions. When neither direction is stored the lowest-id final type
//     is used and Result.Fallback is set.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Validation errors. All of them describe structurally invalid input and are
// never retried.
var (
	ErrNoSelections      = errors.New("no keyword selections")
	ErrEmptyCategory     = errors.New("category has no selections")
	ErrTooManySelections = errors.New("too many selections in category")
	ErrUnknownKeyword    = errors.New("unknown keyword")
	ErrInvalidCategory   = errors.New("invalid category id")
	ErrDuplicateKeyword  = errors.New("keyword selected more than once")
)

// Reference-data errors. These indicate a broken catalog, not bad input.
var (
	ErrNotEnoughTypes = errors.New("at least two intermediate types are required")
	ErrNoFinalTypes   = errors.New("no final types defined")
)

// DefaultWeights applies when the weight table is empty.
var DefaultWeights = map[int]float64{1: 0.4, 2: 0.3, 3: 0.2}

// DefaultMaxPerCategory mirrors the three-pick limit of the quiz UI.
const DefaultMaxPerCategory = 3

// CategoryID identifies a keyword category. On the wire categories are
// addressed by their decimal id as a JSON object key ("1", "2", ...).
type CategoryID uint

// String renders the wire form of the id.
func (c CategoryID) String() string { return strconv.FormatUint(uint64(c), 10) }

// Selections maps a category to its keyword ids in priority order.
type Selections map[CategoryID][]uint

// ParseSelections converts the wire shape into Selections, rejecting keys
// that are not positive integers.
func ParseSelections(raw map[string][]uint) (Selections, error) {
	out := make(Selections, len(raw))
	for k, ids := range raw {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, k)
		}
		out[CategoryID(n)] = ids
	}
	return out, nil
}

// categories returns the selection keys in ascending order.
func (s Selections) categories() []CategoryID {
	keys := make([]CategoryID, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Contribution is one raw score row of a keyword toward a type.
type Contribution struct {
	TypeID uint
	Score  int
}

// TypeRef names an intermediate type.
type TypeRef struct {
	ID   uint
	Name string
}

// Pair is an ordered (primary, secondary) intermediate type pair.
type Pair struct {
	Primary, Secondary uint
}

// Table is a read-only snapshot of the reference data the engine needs.
// Keywords must contain an entry (possibly empty) for every keyword id that
// exists; ids absent from the map are rejected as unknown.
type Table struct {
	Types        []TypeRef
	Weights      map[int]float64
	Keywords     map[uint][]Contribution
	Combinations map[Pair]uint
	FinalTypeIDs []uint
}

// TypeScore is one ranked intermediate type.
type TypeScore struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TraceEntry records one weighted contribution.
type TraceEntry struct {
	Category  CategoryID `json:"category"`
	Position  int        `json:"position"`
	KeywordID uint       `json:"keyword_id"`
	TypeID    uint       `json:"type_id"`
	Raw       int        `json:"raw_score"`
	Weight    float64    `json:"weight"`
	Weighted  float64    `json:"weighted_score"`
}

// Trace is the optional debug side channel. It never affects the Result.
type Trace struct {
	Weights map[int]float64 `json:"weights"`
	Entries []TraceEntry    `json:"entries"`
	Ranking []TypeScore     `json:"ranking"`
}

// Result is the outcome of one scoring run. Scores are rounded to one
// decimal place; ranking used the unrounded totals.
type Result struct {
	Primary     TypeScore
	Secondary   TypeScore
	FinalTypeID uint
	Fallback    bool
	AllScores   map[uint]float64
	Trace       *Trace
}

// Engine scores selections against a Table. The zero value enforces no
// per-category limit.
type Engine struct {
	// MaxPerCategory caps the number of selections per category; 0 disables
	// the check.
	MaxPerCategory int
}

// Validate checks the shape of sel and that every keyword exists in t. A
// keyword may be selected once across all categories.
func (e Engine) Validate(sel Selections, t *Table) error {
	if len(sel) == 0 {
		return ErrNoSelections
	}
	seen := make(map[uint]CategoryID)
	for _, cat := range sel.categories() {
		ids := sel[cat]
		if len(ids) == 0 {
			return fmt.Errorf("%w: %s", ErrEmptyCategory, cat)
		}
		if e.MaxPerCategory > 0 && len(ids) > e.MaxPerCategory {
			return fmt.Errorf("%w: category %s has %d, max %d", ErrTooManySelections, cat, len(ids), e.MaxPerCategory)
		}
		for _, id := range ids {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("%w: %d in categories %s and %s", ErrDuplicateKeyword, id, prev, cat)
			}
			seen[id] = cat
			if _, ok := t.Keywords[id]; !ok {
				return fmt.Errorf("%w: %d", ErrUnknownKeyword, id)
			}
		}
	}
	return nil
}

// Score runs the full algorithm. With debug set the returned Result carries
// a Trace.
func (e Engine) Score(sel Selections, t *Table, debug bool) (*Result, error) {
	if err := e.Validate(sel, t); err != nil {
		return nil, err
	}
	if len(t.Types) < 2 {
		return nil, ErrNotEnoughTypes
	}

	weights := t.Weights
	if len(weights) == 0 {
		weights = DefaultWeights
	}

	totals := make(map[uint]float64, len(t.Types))
	for _, ty := range t.Types {
		totals[ty.ID] = 0
	}

	var trace *Trace
	if debug {
		trace = &Trace{Weights: copyWeights(weights)}
	}

	for _, cat := range sel.categories() {
		for i, kw := range sel[cat] {
			pos := i + 1
			w := weights[pos]
			for _, c := range t.Keywords[kw] {
				if _, known := totals[c.TypeID]; !known {
					continue
				}
				contrib := float64(c.Score) * w
				totals[c.TypeID] += contrib
				if trace != nil {
					trace.Entries = append(trace.Entries, TraceEntry{
						Category: cat, Position: pos, KeywordID: kw, TypeID: c.TypeID,
						Raw: c.Score, Weight: w, Weighted: contrib,
					})
				}
			}
		}
	}

	ranked := rank(t.Types, totals)
	primary, secondary := ranked[0], ranked[1]

	finalID, fallback, err := ResolveFinal(t, primary.ID, secondary.ID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Primary:     rounded(primary),
		Secondary:   rounded(secondary),
		FinalTypeID: finalID,
		Fallback:    fallback,
		AllScores:   make(map[uint]float64, len(totals)),
	}
	for id, v := range totals {
		res.AllScores[id] = round1(v)
	}
	if trace != nil {
		trace.Ranking = make([]TypeScore, len(ranked))
		for i, r := range ranked {
			trace.Ranking[i] = rounded(r)
		}
		res.Trace = trace
	}
	return res, nil
}

// ResolveFinal maps a type pair to a final type id, trying (primary,
// secondary) and then (secondary, primary). If neither is stored, or the
// stored target does not exist, it returns the lowest final type id and
// fallback=true.
func ResolveFinal(t *Table, primary, secondary uint) (id uint, fallback bool, err error) {
	if len(t.FinalTypeIDs) == 0 {
		return 0, true, ErrNoFinalTypes
	}
	known := func(id uint) bool {
		for _, f := range t.FinalTypeIDs {
			if f == id {
				return true
			}
		}
		return false
	}
	if id, ok := t.Combinations[Pair{primary, secondary}]; ok && known(id) {
		return id, false, nil
	}
	if id, ok := t.Combinations[Pair{secondary, primary}]; ok && known(id) {
		return id, false, nil
	}
	return lowest(t.FinalTypeIDs), true, nil
}

// rank orders types by total descending with ascending id as tie-break.
func rank(types []TypeRef, totals map[uint]float64) []TypeScore {
	out := make([]TypeScore, len(types))
	for i, ty := range types {
		out[i] = TypeScore{ID: ty.ID, Name: ty.Name, Score: totals[ty.ID]}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func lowest(ids []uint) uint {
	m := ids[0]
	for _, id := range ids[1:] {
		if id < m {
			m = id
		}
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func rounded(ts TypeScore) TypeScore {
	ts.Score = round1(ts.Score)
	return ts
}

func copyWeights(w map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
