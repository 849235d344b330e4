package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-counsel-backend/internal/domain"
)

// openStatuses are the consultation statuses that count against a
// counselor's capacity.
var openStatuses = []string{domain.ConsultationWaiting, domain.ConsultationActive}

// loadSubquery aggregates open consultations per counselor.
const loadSubquery = `SELECT counselor_id, COUNT(*) AS n FROM consultations
	WHERE counselor_id IS NOT NULL AND status IN ? GROUP BY counselor_id`

// CounselorFilter narrows ListCounselors. Zero values mean "no filter".
type CounselorFilter struct {
	Status        string
	ActiveOnly    bool
	ApprovedOnly  bool
	AvailableOnly bool // waiting_for_call and under capacity
}

// CreateCounselor inserts c.
func CreateCounselor(ctx context.Context, db *gorm.DB, c *domain.Counselor) error {
	return db.WithContext(ctx).Create(c).Error
}

// GetCounselor fetches a counselor by id or returns ErrNotFound.
func GetCounselor(ctx context.Context, db *gorm.DB, id uint) (*domain.Counselor, error) {
	var c domain.Counselor
	if err := db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCounselorStatus sets status and bumps last_active_at.
func UpdateCounselorStatus(ctx context.Context, db *gorm.DB, id uint, status string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Counselor{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "last_active_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListCounselors returns counselors matching f ordered by id.
func ListCounselors(ctx context.Context, db *gorm.DB, f CounselorFilter) ([]domain.Counselor, error) {
	var out []domain.Counselor
	q := db.WithContext(ctx).Model(&domain.Counselor{})
	if f.Status != "" {
		q = q.Where("counselors.status = ?", f.Status)
	}
	if f.ActiveOnly {
		q = q.Where("counselors.is_active = ?", true)
	}
	if f.ApprovedOnly {
		q = q.Where("counselors.is_approved = ?", true)
	}
	if f.AvailableOnly {
		q = q.Joins("LEFT JOIN ("+loadSubquery+") AS open_load ON open_load.counselor_id = counselors.id", openStatuses).
			Where("counselors.status = ?", domain.CounselorWaitingForCall).
			Where("COALESCE(open_load.n, 0) < counselors.max_concurrent_sessions")
	}
	err := q.Order("counselors.id ASC").Find(&out).Error
	return out, err
}

// CounselorLoads returns the open consultation count per counselor id.
// Counselors without open consultations are absent from the map.
func CounselorLoads(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		CounselorID uint
		N           int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Consultation{}).
		Select("counselor_id, COUNT(*) AS n").
		Where("counselor_id IN ? AND status IN ?", ids, openStatuses).
		Group("counselor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.CounselorID] = r.N
	}
	return out, nil
}

// FindAvailableCounselor selects the eligible counselor with the fewest open
// consultations, breaking ties by lowest id. Eligible means active, approved,
// waiting_for_call and strictly under max_concurrent_sessions. Counselors in
// exclude are skipped. It returns ErrNotFound when nobody qualifies, together
// with the chosen counselor's current load otherwise.
func FindAvailableCounselor(ctx context.Context, db *gorm.DB, exclude []uint) (*domain.Counselor, int64, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT counselors.id AS id, COALESCE(open_load.n, 0) AS active_count
FROM counselors
LEFT JOIN (` + loadSubquery + `) AS open_load ON open_load.counselor_id = counselors.id
WHERE counselors.is_active = ? AND counselors.is_approved = ? AND counselors.status = ?
  AND COALESCE(open_load.n, 0) < counselors.max_concurrent_sessions`)
	args := []any{openStatuses, true, true, domain.CounselorWaitingForCall}
	if len(exclude) > 0 {
		sb.WriteString(" AND counselors.id NOT IN ?")
		args = append(args, exclude)
	}
	sb.WriteString(" ORDER BY active_count ASC, counselors.id ASC LIMIT 1")

	var rows []struct {
		ID          uint
		ActiveCount int64
	}
	if err := db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, ErrNotFound
	}
	c, err := GetCounselor(ctx, db, rows[0].ID)
	if err != nil {
		return nil, 0, err
	}
	return c, rows[0].ActiveCount, nil
}
