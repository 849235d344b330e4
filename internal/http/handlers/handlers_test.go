package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-counsel-backend/internal/domain"
	"github.com/tbourn/go-counsel-backend/internal/http/middleware"
	"github.com/tbourn/go-counsel-backend/internal/repo"
	"github.com/tbourn/go-counsel-backend/internal/scoring"
	"github.com/tbourn/go-counsel-backend/internal/services"
)

// ---------- stubs ----------

type stubTypeSvc struct {
	calc func(ctx context.Context, sel scoring.Selections, debug bool) (*services.Calculation, error)
}

func (s stubTypeSvc) Calculate(ctx context.Context, sel scoring.Selections, debug bool) (*services.Calculation, error) {
	return s.calc(ctx, sel, debug)
}

type stubCatalogSvc struct {
	search func(ctx context.Context, q string, limit int) ([]services.KeywordHit, error)
}

func (stubCatalogSvc) Categories(context.Context) ([]services.CategoryView, error) {
	return []services.CategoryView{{Category: domain.Category{ID: 1, Name: "Hobbies"}}}, nil
}
func (stubCatalogSvc) Category(_ context.Context, id uint) (*services.CategoryView, error) {
	if id != 1 {
		return nil, services.ErrCategoryNotFound
	}
	return &services.CategoryView{Category: domain.Category{ID: 1, Name: "Hobbies"}}, nil
}
func (s stubCatalogSvc) SearchKeywords(ctx context.Context, q string, limit int) ([]services.KeywordHit, error) {
	return s.search(ctx, q, limit)
}
func (stubCatalogSvc) IntermediateTypes(context.Context) ([]domain.IntermediateType, error) {
	return []domain.IntermediateType{{ID: 1}, {ID: 2}}, nil
}
func (stubCatalogSvc) Characters(context.Context) ([]domain.FinalType, error) {
	return []domain.FinalType{{ID: 7, Name: "Owl"}}, nil
}
func (stubCatalogSvc) Character(_ context.Context, id uint) (*domain.FinalType, error) {
	if id != 7 {
		return nil, services.ErrCharacterNotFound
	}
	return &domain.FinalType{ID: 7, Name: "Owl"}, nil
}

type stubConsultSvc struct {
	mu      sync.Mutex
	started int
	views   map[string]*services.ConsultationView
}

func newStubConsultSvc() *stubConsultSvc {
	return &stubConsultSvc{views: map[string]*services.ConsultationView{}}
}

func (s *stubConsultSvc) Start(_ context.Context, in services.StartInput) (*services.ConsultationView, error) {
	if in.Nickname == "bad" {
		return nil, services.ErrInvalidNickname
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	code := []string{"AAAAAAAA1", "AAAAAAAA2", "AAAAAAAA3"}[s.started-1]
	v := &services.ConsultationView{
		Consultation:  domain.Consultation{ID: uint(s.started), Code: code, UserNickname: in.Nickname, Status: domain.ConsultationWaiting},
		CharacterName: "Owl",
	}
	s.views[code] = v
	return v, nil
}

func (s *stubConsultSvc) Get(_ context.Context, code string) (*services.ConsultationView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[code]
	if !ok {
		return nil, services.ErrConsultationNotFound
	}
	return v, nil
}

func (s *stubConsultSvc) Reconnect(ctx context.Context, code string, nickname *string) (*services.ConsultationView, error) {
	v, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if nickname != nil {
		v.UserNickname = *nickname
	}
	v.Status = domain.ConsultationActive
	return v, nil
}

func (s *stubConsultSvc) End(ctx context.Context, code string) (*services.ConsultationView, error) {
	v, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if v.IsTerminal() {
		return nil, services.ErrConsultationClosed
	}
	v.Status = domain.ConsultationCompleted
	return v, nil
}

type stubMsgSvc struct {
	send  func(ctx context.Context, code string, in services.SendInput) (*domain.ConsultationMessage, error)
	list  func(ctx context.Context, code string, page, pageSize int) ([]domain.ConsultationMessage, int64, error)
	stats func(ctx context.Context, code string) (int64, *time.Time, error)
}

func (s stubMsgSvc) Send(ctx context.Context, code string, in services.SendInput) (*domain.ConsultationMessage, error) {
	return s.send(ctx, code, in)
}
func (s stubMsgSvc) ListPage(ctx context.Context, code string, page, pageSize int) ([]domain.ConsultationMessage, int64, error) {
	return s.list(ctx, code, page, pageSize)
}
func (s stubMsgSvc) Stats(ctx context.Context, code string) (int64, *time.Time, error) {
	return s.stats(ctx, code)
}

type stubCardSvc struct {
	notes func(ctx context.Context, counselorID uint, code, notes string) (*domain.ConsultationCard, error)
}

func (stubCardSvc) Issue(_ context.Context, code, notes string) (*domain.ConsultationCard, error) {
	if code != "DONE00001" {
		return nil, services.ErrConsultationNotCompleted
	}
	return &domain.ConsultationCard{ID: 1, ConsultationID: 1, CounselorNotes: notes}, nil
}
func (stubCardSvc) Get(context.Context, string) (*domain.ConsultationCard, error) {
	return nil, services.ErrCardNotFound
}
func (s stubCardSvc) UpdateNotes(ctx context.Context, counselorID uint, code, notes string) (*domain.ConsultationCard, error) {
	return s.notes(ctx, counselorID, code, notes)
}

type stubMusicSvc struct {
	recommend func(ctx context.Context, code string, take int) (*services.MusicRecommendations, error)
}

func (s stubMusicSvc) Recommend(ctx context.Context, code string, take int) (*services.MusicRecommendations, error) {
	return s.recommend(ctx, code, take)
}

type stubCounselorSvc struct {
	lastFilter   repo.CounselorFilter
	lastStatuses []string
}

func (s *stubCounselorSvc) Get(_ context.Context, id uint) (*domain.Counselor, error) {
	if id != 2 {
		return nil, services.ErrCounselorNotFound
	}
	return &domain.Counselor{ID: 2, Name: "Kim", Status: domain.CounselorOnline}, nil
}
func (s *stubCounselorSvc) UpdateStatus(_ context.Context, id uint, status string) (*domain.Counselor, error) {
	if !domain.ValidCounselorStatus(status) {
		return nil, services.ErrInvalidStatus
	}
	return &domain.Counselor{ID: id, Status: status}, nil
}
func (s *stubCounselorSvc) List(_ context.Context, f repo.CounselorFilter) ([]domain.Counselor, error) {
	s.lastFilter = f
	return nil, nil
}
func (s *stubCounselorSvc) Consultations(_ context.Context, _ uint, statuses ...string) ([]services.ConsultationView, error) {
	s.lastStatuses = statuses
	return nil, nil
}
func (s *stubCounselorSvc) Stats(_ context.Context, id uint) (*services.CounselorStats, error) {
	return &services.CounselorStats{CounselorID: id, TotalConsultations: 4}, nil
}

type stubRequestSvc struct {
	accept func(ctx context.Context, counselorID, requestID uint, message string) (*services.RequestView, error)
}

func (stubRequestSvc) ListPending(_ context.Context, counselorID uint) ([]services.RequestView, error) {
	return []services.RequestView{{
		ConsultationRequest: domain.ConsultationRequest{ID: 9, CounselorID: counselorID, Status: domain.RequestPending},
		ConsultationCode:    "AAAAAAAA1",
	}}, nil
}
func (s stubRequestSvc) Accept(ctx context.Context, counselorID, requestID uint, message string) (*services.RequestView, error) {
	return s.accept(ctx, counselorID, requestID, message)
}
func (stubRequestSvc) Reject(context.Context, uint, uint, string) (*services.RequestView, error) {
	return nil, services.ErrRequestNotPending
}

type memIdemStore struct {
	mu   sync.Mutex
	rows map[string]string
}

func (m *memIdemStore) Lookup(_ context.Context, clientID, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rows[clientID+"|"+scope+"|"+key]
	return v, ok, nil
}

func (m *memIdemStore) Save(_ context.Context, clientID, scope, key, resourceID string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]string{}
	}
	m.rows[clientID+"|"+scope+"|"+key] = resourceID
	return nil
}

// ---------- plumbing ----------

// newTestRouter mounts h on a Gin engine with the identity and idempotency
// middleware the handlers rely on.
func newTestRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CounselorIdentity())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	r.POST("/personality/calculate", h.CalculatePersonality)
	r.GET("/keywords/categories", h.ListCategories)
	r.GET("/keywords/categories/:id", h.GetCategory)
	r.GET("/keywords/search", h.SearchKeywords)
	r.GET("/types/intermediate", h.ListIntermediateTypes)
	r.GET("/characters", h.ListCharacters)
	r.GET("/characters/:id", h.GetCharacter)

	r.POST("/consultations", h.StartConsultation)
	r.GET("/consultations/:code", h.GetConsultation)
	r.POST("/consultations/:code/reconnect", h.ReconnectConsultation)
	r.POST("/consultations/:code/end", h.EndConsultation)
	r.POST("/consultations/:code/messages", h.PostMessage)
	r.GET("/consultations/:code/messages", h.ListMessages)
	r.POST("/consultations/:code/card", h.IssueCard)
	r.GET("/consultations/:code/card", h.GetCard)
	r.PUT("/consultations/:code/card/notes", h.UpdateCardNotes)
	r.GET("/consultations/:code/music-recommendations", h.MusicRecommendations)

	r.GET("/counselors", h.ListCounselors)
	r.GET("/counselors/me", h.GetMe)
	r.PUT("/counselors/me/status", h.UpdateMyStatus)
	r.GET("/counselors/me/stats", h.GetMyStats)
	r.GET("/counselors/me/consultations", h.ListMyConsultations)
	r.GET("/counselors/me/requests", h.ListMyRequests)
	r.GET("/counselors/me/events", h.CounselorEvents)
	r.POST("/requests/:id/accept", h.AcceptRequest)
	r.POST("/requests/:id/reject", h.RejectRequest)
	return r
}

func do(r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return er
}

var asCounselor2 = map[string]string{middleware.HeaderCounselorID: "2"}

// ---------- helpers ----------

func Test_clampPagination_and_newPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=-3&page_size=9999", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 100 {
		t.Fatalf("clamp: got %d,%d want 1,100", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=&page_size=0", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 1 {
		t.Fatalf("clamp defaults: got %d,%d", p, ps)
	}
	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if p, ps := clampPagination(c); p != 1 || ps != 20 {
		t.Fatalf("clamp empty: got %d,%d", p, ps)
	}

	pg := newPagination(2, 10, 25)
	if pg.TotalPages != 3 || !pg.HasNext {
		t.Fatalf("pagination: %+v", pg)
	}
	if pg := newPagination(1, 10, 0); pg.TotalPages != 0 || pg.HasNext {
		t.Fatalf("empty pagination: %+v", pg)
	}
}

func Test_sanitizeContent(t *testing.T) {
	if got := sanitizeContent("  line1\r\n\r\n\r\n\r\nline2\rline3  "); got != "line1\n\nline2\nline3" {
		t.Fatalf("sanitizeContent: got %q", got)
	}
	if sanitizeContent(" \r\n\t ") != "" {
		t.Fatalf("sanitizeContent should trim to empty")
	}
}

func Test_UnwiredService_503(t *testing.T) {
	r := newTestRouter(New(Deps{}))
	w := do(r, http.MethodGet, "/keywords/categories", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeUnavailable {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---------- catalog & personality ----------

func Test_CalculatePersonality(t *testing.T) {
	var gotDebug bool
	h := New(Deps{Personality: stubTypeSvc{calc: func(_ context.Context, sel scoring.Selections, debug bool) (*services.Calculation, error) {
		gotDebug = debug
		if len(sel) == 0 {
			return nil, scoring.ErrNoSelections
		}
		return &services.Calculation{PrimaryType: scoring.TypeScore{ID: 1}}, nil
	}}})
	r := newTestRouter(h)

	w := do(r, http.MethodPost, "/personality/calculate", map[string]any{
		"selections": map[string][]uint{"1": {10, 11}},
		"debug":      true,
	}, nil)
	if w.Code != http.StatusOK || !gotDebug {
		t.Fatalf("status=%d debug=%v body=%s", w.Code, gotDebug, w.Body.String())
	}

	// non-numeric category id
	w = do(r, http.MethodPost, "/personality/calculate", map[string]any{
		"selections": map[string][]uint{"hobbies": {10}},
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad category status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeInvalidSelection {
		t.Fatalf("code=%q", er.Code)
	}

	// missing body
	w = do(r, http.MethodPost, "/personality/calculate", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing body status=%d", w.Code)
	}
}

func Test_Catalog_Endpoints(t *testing.T) {
	var gotLimit int
	h := New(Deps{Catalog: stubCatalogSvc{search: func(_ context.Context, q string, limit int) ([]services.KeywordHit, error) {
		gotLimit = limit
		return nil, nil
	}}})
	r := newTestRouter(h)

	if w := do(r, http.MethodGet, "/keywords/categories", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("categories status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/keywords/categories/abc", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/keywords/categories/5", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing category status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/characters/7", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("character status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/types/intermediate", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("types status=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/keywords/search", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing q status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/keywords/search?q=run&limit=99", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("limit status=%d", w.Code)
	}
	w := do(r, http.MethodGet, "/keywords/search?q=run", nil, nil)
	if w.Code != http.StatusOK || gotLimit != 10 {
		t.Fatalf("search status=%d limit=%d", w.Code, gotLimit)
	}
	var res KeywordSearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Query != "run" || res.Results == nil {
		t.Fatalf("unexpected search body: %s", w.Body.String())
	}
}

// ---------- consultations ----------

func Test_StartConsultation_IdempotentReplay(t *testing.T) {
	svc := newStubConsultSvc()
	r := newTestRouter(New(Deps{Consultations: svc, Idempotency: &memIdemStore{}}))

	hdr := map[string]string{middleware.HeaderIdempotencyKey: "start-1"}
	w1 := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "Sunny"}, hdr)
	if w1.Code != http.StatusCreated {
		t.Fatalf("first status=%d body=%s", w1.Code, w1.Body.String())
	}
	w2 := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "Sunny"}, hdr)
	if w2.Code != http.StatusOK {
		t.Fatalf("replay status=%d", w2.Code)
	}
	if w2.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("missing replay header")
	}
	var v1, v2 services.ConsultationView
	_ = json.Unmarshal(w1.Body.Bytes(), &v1)
	_ = json.Unmarshal(w2.Body.Bytes(), &v2)
	if v1.Code == "" || v1.Code != v2.Code || svc.started != 1 {
		t.Fatalf("replay created a new consultation: %q vs %q (started=%d)", v1.Code, v2.Code, svc.started)
	}

	// different key, new consultation
	w3 := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "Sunny"},
		map[string]string{middleware.HeaderIdempotencyKey: "start-2"})
	if w3.Code != http.StatusCreated || svc.started != 2 {
		t.Fatalf("second key status=%d started=%d", w3.Code, svc.started)
	}
}

func Test_StartConsultation_Validation(t *testing.T) {
	r := newTestRouter(New(Deps{Consultations: newStubConsultSvc()}))

	if w := do(r, http.MethodPost, "/consultations", map[string]any{}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing nickname status=%d", w.Code)
	}
	w := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "bad"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("service validation status=%d", w.Code)
	}
	if w := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "x"},
		map[string]string{middleware.HeaderIdempotencyKey: "has space"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad idem key status=%d", w.Code)
	}
}

func Test_Consultation_Lifecycle(t *testing.T) {
	svc := newStubConsultSvc()
	r := newTestRouter(New(Deps{Consultations: svc}))

	w := do(r, http.MethodPost, "/consultations", map[string]any{"nickname": "Sunny"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("start status=%d", w.Code)
	}

	// lower-case codes are normalized
	if w := do(r, http.MethodGet, "/consultations/aaaaaaaa1", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("get status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/consultations/SHORT", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed code status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/consultations/ZZZZZZZZZ", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown code status=%d", w.Code)
	}

	w = do(r, http.MethodPost, "/consultations/AAAAAAAA1/reconnect", map[string]any{"nickname": "Sunny2"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reconnect status=%d", w.Code)
	}
	var v services.ConsultationView
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if v.UserNickname != "Sunny2" || v.Status != domain.ConsultationActive {
		t.Fatalf("reconnect view: %+v", v)
	}
	if w := do(r, http.MethodPost, "/consultations/AAAAAAAA1/reconnect", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("reconnect without body status=%d", w.Code)
	}

	if w := do(r, http.MethodPost, "/consultations/AAAAAAAA1/end", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("end status=%d", w.Code)
	}
	w = do(r, http.MethodPost, "/consultations/AAAAAAAA1/end", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("second end status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeConsultationClosed {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---------- messages ----------

func Test_PostMessage_SenderFromIdentity(t *testing.T) {
	var got services.SendInput
	var gotCode string
	h := New(Deps{Messages: stubMsgSvc{send: func(_ context.Context, code string, in services.SendInput) (*domain.ConsultationMessage, error) {
		got, gotCode = in, code
		if in.SenderType == domain.SenderCounselor && *in.SenderID != 2 {
			return nil, services.ErrNotAssignedCounselor
		}
		return &domain.ConsultationMessage{ID: 1, SenderType: in.SenderType, Content: in.Content}, nil
	}}})
	r := newTestRouter(h)

	w := do(r, http.MethodPost, "/consultations/abcdefgh1/messages", map[string]any{"content": " hi\r\nthere "}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("user status=%d body=%s", w.Code, w.Body.String())
	}
	if got.SenderType != domain.SenderUser || got.SenderID != nil || got.Content != "hi\nthere" || gotCode != "ABCDEFGH1" {
		t.Fatalf("user input: %+v code=%q", got, gotCode)
	}

	w = do(r, http.MethodPost, "/consultations/ABCDEFGH1/messages", map[string]any{"content": "hello"}, asCounselor2)
	if w.Code != http.StatusCreated || got.SenderType != domain.SenderCounselor {
		t.Fatalf("counselor status=%d input=%+v", w.Code, got)
	}

	w = do(r, http.MethodPost, "/consultations/ABCDEFGH1/messages", map[string]any{"content": "hello"},
		map[string]string{middleware.HeaderCounselorID: "3"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("unassigned counselor status=%d", w.Code)
	}

	if w := do(r, http.MethodPost, "/consultations/ABCDEFGH1/messages", map[string]any{"content": " \r\n "}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("blank content status=%d", w.Code)
	}
	if w := do(r, http.MethodPost, "/consultations/ABCDEFGH1/messages", map[string]any{"content": "x"},
		map[string]string{middleware.HeaderCounselorID: "abc"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad counselor header status=%d", w.Code)
	}
}

func Test_ListMessages_ETag(t *testing.T) {
	latest := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	h := New(Deps{Messages: stubMsgSvc{
		list: func(_ context.Context, _ string, page, pageSize int) ([]domain.ConsultationMessage, int64, error) {
			calls++
			return []domain.ConsultationMessage{{ID: 1, Content: "hi"}}, 1, nil
		},
		stats: func(context.Context, string) (int64, *time.Time, error) { return 1, &latest, nil },
	}})
	r := newTestRouter(h)

	w := do(r, http.MethodGet, "/consultations/ABCDEFGH1/messages?page_size=5", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	var res ListMessagesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Messages) != 1 || res.Pagination.PageSize != 5 || res.Pagination.Total != 1 {
		t.Fatalf("unexpected body: %+v", res)
	}

	w = do(r, http.MethodGet, "/consultations/ABCDEFGH1/messages?page_size=5", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified || calls != 1 {
		t.Fatalf("conditional status=%d calls=%d", w.Code, calls)
	}

	// different page size yields a different tag
	w = do(r, http.MethodGet, "/consultations/ABCDEFGH1/messages", nil, map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("other page status=%d", w.Code)
	}
}

// ---------- cards & music ----------

func Test_Cards(t *testing.T) {
	h := New(Deps{Cards: stubCardSvc{notes: func(_ context.Context, counselorID uint, _ string, notes string) (*domain.ConsultationCard, error) {
		if counselorID != 2 {
			return nil, services.ErrNotAssignedCounselor
		}
		return &domain.ConsultationCard{ID: 1, CounselorNotes: notes}, nil
	}}})
	r := newTestRouter(h)

	w := do(r, http.MethodPost, "/consultations/DONE00001/card", map[string]any{"notes": "well done"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("issue status=%d body=%s", w.Code, w.Body.String())
	}
	var cr CardResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cr)
	if cr.Card == nil || cr.Card.CounselorNotes != "well done" {
		t.Fatalf("issue body: %s", w.Body.String())
	}
	if w := do(r, http.MethodPost, "/consultations/OPEN00001/card", nil, nil); w.Code != http.StatusConflict {
		t.Fatalf("issue open status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/consultations/DONE00001/card", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("get status=%d", w.Code)
	}

	if w := do(r, http.MethodPut, "/consultations/DONE00001/card/notes", map[string]any{"notes": "x"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous notes status=%d", w.Code)
	}
	if w := do(r, http.MethodPut, "/consultations/DONE00001/card/notes", map[string]any{"notes": "x"},
		map[string]string{middleware.HeaderCounselorID: "5"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign notes status=%d", w.Code)
	}
	if w := do(r, http.MethodPut, "/consultations/DONE00001/card/notes", map[string]any{"notes": "ok"}, asCounselor2); w.Code != http.StatusOK {
		t.Fatalf("notes status=%d", w.Code)
	}
}

func Test_MusicRecommendations(t *testing.T) {
	var gotTake int
	h := New(Deps{Music: stubMusicSvc{recommend: func(_ context.Context, code string, take int) (*services.MusicRecommendations, error) {
		gotTake = take
		if code == "DOWN00001" {
			return nil, services.ErrMusicUnavailable
		}
		if take > services.MaxMusicTake {
			return nil, services.ErrInvalidTake
		}
		return &services.MusicRecommendations{ConsultationCode: code}, nil
	}}})
	r := newTestRouter(h)

	if w := do(r, http.MethodGet, "/consultations/ABCDEFGH1/music-recommendations", nil, nil); w.Code != http.StatusOK || gotTake != 0 {
		t.Fatalf("default status=%d take=%d", w.Code, gotTake)
	}
	if w := do(r, http.MethodGet, "/consultations/ABCDEFGH1/music-recommendations?take=x", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad take status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/consultations/ABCDEFGH1/music-recommendations?take=11", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("large take status=%d", w.Code)
	}
	w := do(r, http.MethodGet, "/consultations/DOWN00001/music-recommendations?take=2", nil, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("upstream status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeUnavailable {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---------- counselors & requests ----------

func Test_Counselor_SelfService(t *testing.T) {
	co := &stubCounselorSvc{}
	r := newTestRouter(New(Deps{Counselors: co}))

	if w := do(r, http.MethodGet, "/counselors/me", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/counselors/me", nil, asCounselor2); w.Code != http.StatusOK {
		t.Fatalf("me status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/counselors/me", nil, map[string]string{middleware.HeaderCounselorID: "8"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown counselor status=%d", w.Code)
	}

	w := do(r, http.MethodPut, "/counselors/me/status", map[string]any{"status": " Waiting_For_Call "}, asCounselor2)
	if w.Code != http.StatusOK {
		t.Fatalf("status update=%d body=%s", w.Code, w.Body.String())
	}
	var c domain.Counselor
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.Status != domain.CounselorWaitingForCall {
		t.Fatalf("status=%q", c.Status)
	}
	if w := do(r, http.MethodPut, "/counselors/me/status", map[string]any{"status": "sleeping"}, asCounselor2); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/counselors/me/stats", nil, asCounselor2); w.Code != http.StatusOK {
		t.Fatalf("stats status=%d", w.Code)
	}

	w = do(r, http.MethodGet, "/counselors/me/consultations?status=active,%20WAITING", nil, asCounselor2)
	if w.Code != http.StatusOK || len(co.lastStatuses) != 2 || co.lastStatuses[1] != domain.ConsultationWaiting {
		t.Fatalf("consultations status=%d statuses=%v", w.Code, co.lastStatuses)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"consultations":[]`)) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
	if w := do(r, http.MethodGet, "/counselors/me/consultations?status=archived", nil, asCounselor2); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status filter=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/counselors?status=online&available_only=true", nil, nil); w.Code != http.StatusOK {
		t.Fatalf("list status=%d", w.Code)
	}
	if co.lastFilter.Status != "online" || !co.lastFilter.AvailableOnly || co.lastFilter.ActiveOnly {
		t.Fatalf("filter=%+v", co.lastFilter)
	}
	if w := do(r, http.MethodGet, "/counselors?active=maybe", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad bool status=%d", w.Code)
	}
}

func Test_Requests(t *testing.T) {
	var gotCounselor, gotRequest uint
	var gotMsg string
	h := New(Deps{Requests: stubRequestSvc{accept: func(_ context.Context, counselorID, requestID uint, message string) (*services.RequestView, error) {
		gotCounselor, gotRequest, gotMsg = counselorID, requestID, message
		if requestID == 13 {
			return nil, services.ErrCapacityExceeded
		}
		return &services.RequestView{ConsultationRequest: domain.ConsultationRequest{ID: requestID, Status: domain.RequestAccepted}}, nil
	}}})
	r := newTestRouter(h)

	w := do(r, http.MethodGet, "/counselors/me/requests", nil, asCounselor2)
	if w.Code != http.StatusOK {
		t.Fatalf("pending status=%d", w.Code)
	}
	var pr PendingRequestsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &pr)
	if len(pr.Requests) != 1 || pr.Requests[0].ConsultationCode != "AAAAAAAA1" {
		t.Fatalf("pending body: %s", w.Body.String())
	}

	w = do(r, http.MethodPost, "/requests/9/accept", map[string]any{"message": "joining"}, asCounselor2)
	if w.Code != http.StatusOK || gotCounselor != 2 || gotRequest != 9 || gotMsg != "joining" {
		t.Fatalf("accept status=%d got=%d/%d/%q", w.Code, gotCounselor, gotRequest, gotMsg)
	}
	if w := do(r, http.MethodPost, "/requests/9/accept", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous accept=%d", w.Code)
	}
	if w := do(r, http.MethodPost, "/requests/0/accept", nil, asCounselor2); w.Code != http.StatusBadRequest {
		t.Fatalf("zero id accept=%d", w.Code)
	}
	w = do(r, http.MethodPost, "/requests/13/accept", nil, asCounselor2)
	if w.Code != http.StatusConflict {
		t.Fatalf("capacity status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeCapacityExceeded {
		t.Fatalf("code=%q", er.Code)
	}

	w = do(r, http.MethodPost, "/requests/9/reject", nil, asCounselor2)
	if w.Code != http.StatusConflict {
		t.Fatalf("reject status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeRequestNotPending {
		t.Fatalf("code=%q", er.Code)
	}
}
