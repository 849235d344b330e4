package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/notify"
)

func TestMatch_PicksLeastLoadedThenLowestID(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()

	a := addCounselor(t, db, "a", domain.CounselorWaitingForCall, 5)
	b := addCounselor(t, db, "b", domain.CounselorWaitingForCall, 5)
	c := addCounselor(t, db, "c", domain.CounselorWaitingForCall, 5)
	// loads: a=2, b=1, c=0 → c first
	addConsultation(t, db, "LOADA0001", domain.ConsultationActive, &a.ID)
	addConsultation(t, db, "LOADA0002", domain.ConsultationActive, &a.ID)
	addConsultation(t, db, "LOADB0001", domain.ConsultationActive, &b.ID)

	rec := &recorder{}
	m := newMatcher(db, rec, nil)

	cs := addConsultation(t, db, "MATCH0001", domain.ConsultationWaiting, nil)
	req, err := m.Match(ctx, cs.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if req == nil || req.CounselorID != c.ID || req.Status != domain.RequestPending {
		t.Fatalf("expected pending request to c, got %+v", req)
	}

	evs := rec.ofType(notify.EventNewRequest)
	if len(evs) != 1 || evs[0].CounselorID != c.ID || evs[0].ConsultationCode != "MATCH0001" || evs[0].CharacterName == "" {
		t.Fatalf("unexpected notifications: %+v", evs)
	}
}

func TestMatch_TieBreaksOnLowestID(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	first := addCounselor(t, db, "first", domain.CounselorWaitingForCall, 3)
	addCounselor(t, db, "second", domain.CounselorWaitingForCall, 3)

	cs := addConsultation(t, db, "TIEBR0001", domain.ConsultationWaiting, nil)
	req, err := newMatcher(db, nil, nil).Match(ctx, cs.ID)
	if err != nil || req == nil || req.CounselorID != first.ID {
		t.Fatalf("expected first counselor, got %+v err=%v", req, err)
	}
}

func TestMatch_SkipsIneligibleCounselors(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()

	addCounselor(t, db, "online", domain.CounselorOnline, 3)
	full := addCounselor(t, db, "full", domain.CounselorWaitingForCall, 1)
	addConsultation(t, db, "FULL00001", domain.ConsultationActive, &full.ID)
	unapproved := addCounselor(t, db, "unapproved", domain.CounselorWaitingForCall, 3)
	db.Model(unapproved).Update("is_approved", false)

	cs := addConsultation(t, db, "NOONE0001", domain.ConsultationWaiting, nil)
	req, err := newMatcher(db, nil, nil).Match(ctx, cs.ID)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if req != nil {
		t.Fatalf("expected no proposal, got %+v", req)
	}
	if len(pendingFor(t, db, cs.ID)) != 0 {
		t.Fatalf("no request row should exist")
	}
}

func TestMatch_NoopForAssignedOrPending(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	co := addCounselor(t, db, "co", domain.CounselorWaitingForCall, 5)
	m := newMatcher(db, nil, nil)

	assigned := addConsultation(t, db, "ASSIG0001", domain.ConsultationActive, &co.ID)
	if req, err := m.Match(ctx, assigned.ID); err != nil || req != nil {
		t.Fatalf("assigned consultation must not be matched: %+v %v", req, err)
	}

	cs := addConsultation(t, db, "PEND00001", domain.ConsultationWaiting, nil)
	if req, err := m.Match(ctx, cs.ID); err != nil || req == nil {
		t.Fatalf("first match: %+v %v", req, err)
	}
	if req, err := m.Match(ctx, cs.ID); err != nil || req != nil {
		t.Fatalf("second match should be a no-op, got %+v %v", req, err)
	}
	if n := len(pendingFor(t, db, cs.ID)); n != 1 {
		t.Fatalf("pending requests = %d; want 1", n)
	}

	if _, err := m.Match(ctx, 9999); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("expected ErrConsultationNotFound, got %v", err)
	}
}

func TestMatch_ExcludesDeclinedAndHonoursCap(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	a := addCounselor(t, db, "a", domain.CounselorWaitingForCall, 3)
	b := addCounselor(t, db, "b", domain.CounselorWaitingForCall, 3)
	m := newMatcher(db, nil, nil)
	m.MaxAttempts = 2

	cs := addConsultation(t, db, "EXCL00001", domain.ConsultationWaiting, nil)
	req, err := m.Match(ctx, cs.ID)
	if err != nil || req.CounselorID != a.ID {
		t.Fatalf("first proposal should go to a: %+v %v", req, err)
	}
	db.Model(req).Update("status", domain.RequestRejected)

	req, err = m.Match(ctx, cs.ID)
	if err != nil || req == nil || req.CounselorID != b.ID {
		t.Fatalf("second proposal should skip a: %+v %v", req, err)
	}
	db.Model(req).Update("status", domain.RequestExpired)

	// Two attempts used; the cap stops a third even though a new counselor exists.
	addCounselor(t, db, "c", domain.CounselorWaitingForCall, 3)
	req, err = m.Match(ctx, cs.ID)
	if err != nil || req != nil {
		t.Fatalf("cap should stop matching, got %+v %v", req, err)
	}
}

func TestMatchWaiting_OldestFirst(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	co := addCounselor(t, db, "solo", domain.CounselorWaitingForCall, 1)

	older := addConsultation(t, db, "WAIT00001", domain.ConsultationWaiting, nil)
	newer := addConsultation(t, db, "WAIT00002", domain.ConsultationWaiting, nil)

	n, err := newMatcher(db, nil, nil).MatchWaiting(ctx, 10)
	if err != nil {
		t.Fatalf("MatchWaiting: %v", err)
	}
	// Capacity counts assigned consultations only, so both get a proposal.
	if n != 2 {
		t.Fatalf("created = %d; want 2", n)
	}
	if p := pendingFor(t, db, older.ID); len(p) != 1 || p[0].CounselorID != co.ID {
		t.Fatalf("older consultation not matched: %+v", p)
	}
	if p := pendingFor(t, db, newer.ID); len(p) != 1 {
		t.Fatalf("newer consultation not matched: %+v", p)
	}
}

func TestMatch_NotificationFailureDoesNotFail(t *testing.T) {
	db := newSvcDB(t)
	addCounselor(t, db, "co", domain.CounselorWaitingForCall, 3)
	rec := &recorder{err: errors.New("redis down")}
	cs := addConsultation(t, db, "NOTIF0001", domain.ConsultationWaiting, nil)

	req, err := newMatcher(db, rec, nil).Match(context.Background(), cs.ID)
	if err != nil || req == nil {
		t.Fatalf("match must succeed when notify fails: %+v %v", req, err)
	}
	if len(rec.ofType(notify.EventNewRequest)) != 1 {
		t.Fatalf("notification should have been attempted")
	}
}
