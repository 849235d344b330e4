package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

func TestFindAvailableCounselor_LeastLoaded(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()

	c0 := mkCounselor(t, db, "zero", domain.CounselorWaitingForCall, 3)
	c1 := mkCounselor(t, db, "one", domain.CounselorWaitingForCall, 3)
	c2 := mkCounselor(t, db, "two", domain.CounselorWaitingForCall, 3)

	mkConsultation(t, db, "LOAD00001", domain.ConsultationActive, &c1.ID)
	mkConsultation(t, db, "LOAD00002", domain.ConsultationActive, &c2.ID)
	mkConsultation(t, db, "LOAD00003", domain.ConsultationWaiting, &c2.ID)
	// Completed sessions do not count toward load.
	mkConsultation(t, db, "LOAD00004", domain.ConsultationCompleted, &c0.ID)

	got, load, err := FindAvailableCounselor(ctx, db, nil)
	if err != nil {
		t.Fatalf("FindAvailableCounselor: %v", err)
	}
	if got.ID != c0.ID || load != 0 {
		t.Fatalf("expected counselor %d with load 0, got %d with %d", c0.ID, got.ID, load)
	}

	loads, err := CounselorLoads(ctx, db, []uint{c0.ID, c1.ID, c2.ID})
	if err != nil {
		t.Fatalf("CounselorLoads: %v", err)
	}
	if loads[c0.ID] != 0 || loads[c1.ID] != 1 || loads[c2.ID] != 2 {
		t.Fatalf("unexpected loads: %v", loads)
	}
}

func TestFindAvailableCounselor_TieBreakLowestID_AndExclude(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()
	a := mkCounselor(t, db, "a", domain.CounselorWaitingForCall, 2)
	b := mkCounselor(t, db, "b", domain.CounselorWaitingForCall, 2)

	got, _, err := FindAvailableCounselor(ctx, db, nil)
	if err != nil || got.ID != a.ID {
		t.Fatalf("expected lowest id %d, got %+v err=%v", a.ID, got, err)
	}
	got, _, err = FindAvailableCounselor(ctx, db, []uint{a.ID})
	if err != nil || got.ID != b.ID {
		t.Fatalf("expected %d after exclusion, got %+v err=%v", b.ID, got, err)
	}
	if _, _, err := FindAvailableCounselor(ctx, db, []uint{a.ID, b.ID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when all excluded, got %v", err)
	}
}

func TestFindAvailableCounselor_Eligibility(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()

	full := mkCounselor(t, db, "full", domain.CounselorWaitingForCall, 1)
	mkConsultation(t, db, "FULL00001", domain.ConsultationActive, &full.ID)
	mkCounselor(t, db, "online", domain.CounselorOnline, 3)
	unapproved := mkCounselor(t, db, "unapproved", domain.CounselorWaitingForCall, 3)
	db.Model(unapproved).Update("is_approved", false)
	inactive := mkCounselor(t, db, "inactive", domain.CounselorWaitingForCall, 3)
	db.Model(inactive).Update("is_active", false)

	if _, _, err := FindAvailableCounselor(ctx, db, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no eligible counselor, got %v", err)
	}

	avail, err := ListCounselors(ctx, db, CounselorFilter{AvailableOnly: true})
	if err != nil || len(avail) != 2 {
		// unapproved and inactive are still "available" by status/capacity;
		// approval and activity are separate filters.
		t.Fatalf("expected 2 available-by-capacity, got %d err=%v", len(avail), err)
	}
	strict, _ := ListCounselors(ctx, db, CounselorFilter{AvailableOnly: true, ActiveOnly: true, ApprovedOnly: true})
	if len(strict) != 0 {
		t.Fatalf("expected 0 strictly eligible, got %d", len(strict))
	}
	online, _ := ListCounselors(ctx, db, CounselorFilter{Status: domain.CounselorOnline})
	if len(online) != 1 || online[0].Username != "online" {
		t.Fatalf("status filter mismatch: %+v", online)
	}
}

func TestUpdateCounselorStatus(t *testing.T) {
	db := newSchemaDB(t)
	ctx := context.Background()
	c := mkCounselor(t, db, "st", domain.CounselorOffline, 3)
	at := time.Date(2025, 5, 5, 5, 5, 5, 0, time.UTC)

	if err := UpdateCounselorStatus(ctx, db, c.ID, domain.CounselorWaitingForCall, at); err != nil {
		t.Fatalf("UpdateCounselorStatus: %v", err)
	}
	got, err := GetCounselor(ctx, db, c.ID)
	if err != nil {
		t.Fatalf("GetCounselor: %v", err)
	}
	if got.Status != domain.CounselorWaitingForCall || got.LastActiveAt == nil || !got.LastActiveAt.Equal(at) {
		t.Fatalf("unexpected counselor: %+v", got)
	}
	if err := UpdateCounselorStatus(ctx, db, 999, domain.CounselorOnline, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
