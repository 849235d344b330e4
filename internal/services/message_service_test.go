package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// ---------- Send() ----------

func TestMessageService_Send_EmptyContent(t *testing.T) {
	db := newSvcDB(t)
	addConsultation(t, db, "MSGEMPTY1", domain.ConsultationActive, nil)
	s := &MessageService{DB: db}
	_, err := s.Send(context.Background(), "MSGEMPTY1", SendInput{SenderType: domain.SenderUser, Content: "   "})
	if err == nil || err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestMessageService_Send_TooLong(t *testing.T) {
	db := newSvcDB(t)
	addConsultation(t, db, "MSGLONG01", domain.ConsultationActive, nil)
	s := &MessageService{DB: db, MaxContentRunes: 3}
	_, err := s.Send(context.Background(), "MSGLONG01", SendInput{SenderType: domain.SenderUser, Content: "abcd"})
	if err == nil || err != ErrMessageTooLong {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	// rune count, not bytes
	if _, err := s.Send(context.Background(), "MSGLONG01", SendInput{SenderType: domain.SenderUser, Content: "안녕하"}); err != nil {
		t.Fatalf("3 runes should fit: %v", err)
	}
}

func TestMessageService_Send_UserAndCounselor(t *testing.T) {
	db := newSvcDB(t)
	co := addCounselor(t, db, "co", domain.CounselorBusy, 3)
	other := addCounselor(t, db, "other", domain.CounselorBusy, 3)
	addConsultation(t, db, "MSGSEND01", domain.ConsultationActive, &co.ID)
	s := &MessageService{DB: db}
	ctx := context.Background()

	m, err := s.Send(ctx, "MSGSEND01", SendInput{SenderType: domain.SenderUser, Content: "  hi there  "})
	if err != nil {
		t.Fatalf("user send: %v", err)
	}
	if m.Content != "hi there" || m.MessageType != domain.MessageText || m.SenderID != nil {
		t.Fatalf("unexpected message: %+v", m)
	}

	m, err = s.Send(ctx, "MSGSEND01", SendInput{SenderType: domain.SenderCounselor, SenderID: &co.ID, Content: "hello"})
	if err != nil || m.SenderID == nil || *m.SenderID != co.ID {
		t.Fatalf("counselor send: %+v %v", m, err)
	}

	if _, err := s.Send(ctx, "MSGSEND01", SendInput{SenderType: domain.SenderCounselor, SenderID: &other.ID, Content: "x"}); !errors.Is(err, ErrNotAssignedCounselor) {
		t.Fatalf("want ErrNotAssignedCounselor, got %v", err)
	}
	if _, err := s.Send(ctx, "MSGSEND01", SendInput{SenderType: domain.SenderCounselor, Content: "x"}); !errors.Is(err, ErrNotAssignedCounselor) {
		t.Fatalf("missing sender id: want ErrNotAssignedCounselor, got %v", err)
	}
	if _, err := s.Send(ctx, "MSGSEND01", SendInput{SenderType: "robot", Content: "x"}); !errors.Is(err, ErrInvalidSender) {
		t.Fatalf("want ErrInvalidSender, got %v", err)
	}
}

func TestMessageService_Send_ClosedOrMissing(t *testing.T) {
	db := newSvcDB(t)
	addConsultation(t, db, "MSGDONE01", domain.ConsultationCompleted, nil)
	s := &MessageService{DB: db}
	ctx := context.Background()

	if _, err := s.Send(ctx, "MSGDONE01", SendInput{SenderType: domain.SenderUser, Content: "x"}); !errors.Is(err, ErrConsultationClosed) {
		t.Fatalf("want ErrConsultationClosed, got %v", err)
	}
	if _, err := s.Send(ctx, "MISSING00", SendInput{SenderType: domain.SenderUser, Content: "x"}); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("want ErrConsultationNotFound, got %v", err)
	}
}

// ---------- ListPage() ----------

func TestMessageService_ListPage(t *testing.T) {
	db := newSvcDB(t)
	cs := addConsultation(t, db, "MSGPAGE01", domain.ConsultationActive, nil)
	s := &MessageService{DB: db}
	ctx := context.Background()

	items, total, err := s.ListPage(ctx, "MSGPAGE01", 1, 10)
	if err != nil || total != 0 || items == nil || len(items) != 0 {
		t.Fatalf("empty list: items=%v total=%d err=%v", items, total, err)
	}

	for _, c := range []string{"one", "two", "three", "four", "five"} {
		addMessage(t, db, cs.ID, domain.SenderUser, c, domain.MessageText)
	}

	items, total, err = s.ListPage(ctx, "MSGPAGE01", 2, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 5 || len(items) != 2 || items[0].Content != "three" || items[1].Content != "four" {
		got := make([]string, len(items))
		for i, m := range items {
			got[i] = m.Content
		}
		t.Fatalf("page 2 = [%s] total=%d", strings.Join(got, ","), total)
	}

	// out-of-range values fall back to defaults
	items, _, err = s.ListPage(ctx, "MSGPAGE01", 0, 0)
	if err != nil || len(items) != 5 {
		t.Fatalf("defaults: %d items, err=%v", len(items), err)
	}

	if _, _, err := s.ListPage(ctx, "MISSING00", 1, 10); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("want ErrConsultationNotFound, got %v", err)
	}
}

func TestMessageService_Stats(t *testing.T) {
	db := newSvcDB(t)
	cs := addConsultation(t, db, "MSGSTATS1", domain.ConsultationActive, nil)
	s := &MessageService{DB: db}
	ctx := context.Background()

	n, latest, err := s.Stats(ctx, "MSGSTATS1")
	if err != nil || n != 0 || latest != nil {
		t.Fatalf("empty stats: %d %v %v", n, latest, err)
	}
	addMessage(t, db, cs.ID, domain.SenderUser, "hello", domain.MessageText)
	addMessage(t, db, cs.ID, domain.SenderUser, "again", domain.MessageText)
	n, latest, err = s.Stats(ctx, "MSGSTATS1")
	if err != nil || n != 2 || latest == nil {
		t.Fatalf("stats: %d %v %v", n, latest, err)
	}
	if _, _, err := s.Stats(ctx, "MISSING00"); !errors.Is(err, ErrConsultationNotFound) {
		t.Fatalf("want ErrConsultationNotFound, got %v", err)
	}
}
