package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/notify"
	"github.com/tbourn/go-counsel-backend/internal/repo"
)

// ---------- test helpers ----------

// newSvcDB returns a migrated in-memory database seeded with the catalog
// from data/seed.yaml. Bootstrap counselors are left out so every test
// controls its own. A single connection serializes writers the way a
// server database would.
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	f, err := os.Open("../../data/seed.yaml")
	if err != nil {
		t.Fatalf("open seed: %v", err)
	}
	defer f.Close()
	seed, err := repo.DecodeSeed(f)
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	seed.Counselors = nil
	if _, err := repo.ApplySeed(context.Background(), db, seed); err != nil {
		t.Fatalf("apply seed: %v", err)
	}
	return db
}

func addCounselor(t *testing.T, db *gorm.DB, username, status string, maxSessions int) *domain.Counselor {
	t.Helper()
	c := &domain.Counselor{
		Username:              username,
		Name:                  "Counselor " + username,
		Status:                status,
		IsActive:              true,
		IsApproved:            true,
		MaxConcurrentSessions: maxSessions,
	}
	if err := repo.CreateCounselor(context.Background(), db, c); err != nil {
		t.Fatalf("create counselor: %v", err)
	}
	return c
}

func addConsultation(t *testing.T, db *gorm.DB, code, status string, counselorID *uint) *domain.Consultation {
	t.Helper()
	c := &domain.Consultation{Code: code, UserNickname: "nick-" + code, CharacterTypeID: 1, Status: status, CounselorID: counselorID}
	if err := repo.CreateConsultation(context.Background(), db, c); err != nil {
		t.Fatalf("create consultation: %v", err)
	}
	return c
}

func addMessage(t *testing.T, db *gorm.DB, consultationID uint, sender, content, kind string) {
	t.Helper()
	if _, err := repo.CreateMessage(db, consultationID, sender, nil, content, kind); err != nil {
		t.Fatalf("create message: %v", err)
	}
}

func pendingFor(t *testing.T, db *gorm.DB, consultationID uint) []domain.ConsultationRequest {
	t.Helper()
	var out []domain.ConsultationRequest
	if err := db.Where("consultation_id = ? AND status = ?", consultationID, domain.RequestPending).
		Order("id ASC").Find(&out).Error; err != nil {
		t.Fatalf("list pending: %v", err)
	}
	return out
}

func uintp(v uint) *uint { return &v }
func boolp(v bool) *bool { return &v }
func strp(v string) *string { return &v }

// recorder is a notify.Notifier that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) ofType(typ string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// fixedClock returns a controllable clock.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time       { return c.t }
func (c *fixedClock) Add(d time.Duration) { c.t = c.t.Add(d) }

func newMatcher(db *gorm.DB, n notify.Notifier, clock *fixedClock) *MatchingService {
	m := &MatchingService{DB: db, Notifier: n, Log: zerolog.Nop(), MaxAttempts: 5}
	if clock != nil {
		m.Now = clock.Now
	}
	return m
}
