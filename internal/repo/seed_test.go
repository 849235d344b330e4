package repo

import (
	"context"
	"strings"
	"testing"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

const seedDoc = `
categories:
  - { id: 1, name: "Mind", english_name: "Mind", display_order: 2 }
  - { id: 2, name: "Daily", english_name: "Daily Life", display_order: 1 }
main_keywords:
  - { id: 10, category_id: 1, name: "Calm", display_order: 2 }
  - { id: 11, category_id: 1, name: "Restless", display_order: 1 }
sub_keywords:
  - { id: 100, main_keyword_id: 10, name: "quiet morning", display_order: 2 }
  - { id: 101, main_keyword_id: 10, name: "slow tea", display_order: 1 }
  - { id: 102, main_keyword_id: 11, name: "racing thoughts", display_order: 1 }
intermediate_types:
  - { id: 1, name: "Seeker" }
  - { id: 2, name: "Keeper" }
keyword_scores:
  - { sub_keyword_id: 100, intermediate_type_id: 2, score: 8 }
  - { sub_keyword_id: 102, intermediate_type_id: 1, score: 5 }
weights:
  - { selection_order: 1, weight: 0.5 }
final_types:
  - { id: 7, name: "Fox", animal: "Fox", hashtags: ["#a"], strengths: [{ title: "T", description: "D" }] }
combinations:
  - { primary: 1, secondary: 2, final_type: 7 }
counselors:
  - { username: "c1", name: "Han", specialties: ["stress"], is_approved: true }
`

func TestLoadSeed_UpsertsAndIsIdempotent(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()

	sum, err := LoadSeed(ctx, db, strings.NewReader(seedDoc))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if sum.Categories != 2 || sum.Keywords != 3 || sum.Types != 2 || sum.Scores != 2 || sum.FinalTypes != 1 || sum.Combinations != 1 || sum.Counselors != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	// Second load must not duplicate rows.
	if _, err := LoadSeed(ctx, db, strings.NewReader(seedDoc)); err != nil {
		t.Fatalf("LoadSeed (again): %v", err)
	}
	var n int64
	db.Model(&domain.KeywordTypeScore{}).Count(&n)
	if n != 2 {
		t.Fatalf("expected 2 score rows after re-seed, got %d", n)
	}
	db.Model(&domain.Counselor{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected 1 counselor after re-seed, got %d", n)
	}

	co, err := GetCounselor(ctx, db, 1)
	if err != nil {
		t.Fatalf("GetCounselor: %v", err)
	}
	if !co.IsActive || !co.IsApproved || co.MaxConcurrentSessions != 3 || co.Status != domain.CounselorOffline {
		t.Fatalf("unexpected seeded counselor: %+v", co)
	}
}

func TestDecodeSeed_RejectsUnknownFields(t *testing.T) {
	if _, err := DecodeSeed(strings.NewReader("categories:\n  - { id: 1, colour: red }\n")); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	s, err := DecodeSeed(strings.NewReader(""))
	if err != nil || s == nil {
		t.Fatalf("empty document should decode to empty seed, got %v, %v", s, err)
	}
}

func TestCatalogReads_AfterSeed(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()
	if _, err := LoadSeed(ctx, db, strings.NewReader(seedDoc)); err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}

	cats, err := ListCategories(ctx, db)
	if err != nil || len(cats) != 2 || cats[0].ID != 2 {
		t.Fatalf("expected categories in display order, got %+v err=%v", cats, err)
	}
	if _, err := GetCategory(ctx, db, 99); err == nil {
		t.Fatalf("expected not found for unknown category")
	}

	mains, err := ListMainKeywords(ctx, db, 1)
	if err != nil || len(mains) != 2 {
		t.Fatalf("ListMainKeywords: %+v err=%v", mains, err)
	}
	if mains[0].ID != 11 || mains[1].ID != 10 {
		t.Fatalf("main keywords not in display order: %d, %d", mains[0].ID, mains[1].ID)
	}
	if subs := mains[1].SubKeywords; len(subs) != 2 || subs[0].ID != 101 {
		t.Fatalf("sub keywords not preloaded in display order: %+v", subs)
	}

	all, err := ListAllSubKeywords(ctx, db)
	if err != nil || len(all) != 3 || all[0].MainKeyword.Name != "Calm" {
		t.Fatalf("ListAllSubKeywords: %+v err=%v", all, err)
	}
	found, _ := FindSubKeywords(ctx, db, []uint{100, 999})
	if len(found) != 1 || found[0].ID != 100 {
		t.Fatalf("FindSubKeywords should skip unknown ids: %+v", found)
	}
	scores, _ := ListKeywordScores(ctx, db, []uint{100, 101})
	if len(scores) != 1 || scores[0].Score != 8 {
		t.Fatalf("ListKeywordScores: %+v", scores)
	}
	ws, _ := ListCalculationWeights(ctx, db)
	if len(ws) != 1 || ws[0].Weight != 0.5 {
		t.Fatalf("ListCalculationWeights: %+v", ws)
	}
	combos, _ := ListTypeCombinations(ctx, db)
	if len(combos) != 1 || combos[0].FinalTypeID != 7 {
		t.Fatalf("ListTypeCombinations: %+v", combos)
	}
	types, _ := ListIntermediateTypes(ctx, db)
	if len(types) != 2 {
		t.Fatalf("ListIntermediateTypes: %+v", types)
	}
	ids, _ := ListFinalTypeIDs(ctx, db)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 7 {
		t.Fatalf("ListFinalTypeIDs: %v", ids)
	}
	ft, err := GetFinalType(ctx, db, 7)
	if err != nil || ft.Strengths[0].Title != "T" {
		t.Fatalf("GetFinalType: %+v err=%v", ft, err)
	}
}
