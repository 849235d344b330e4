package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	clientID, scope, key string
}

func idemRouter(opts IdempotencyOptions, lookup IdempotencyLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CounselorIdentity())
	r.Use(IdempotencyValidator(opts, lookup))
	h := func(c *gin.Context) {
		key, _ := GetIdempotencyKey(c)
		c.JSON(http.StatusOK, gin.H{"key": key, "replay": IsReplay(c), "bypass": IsRateBypass(c)})
	}
	r.POST("/consultations", h)
	r.GET("/consultations/:code", h)
	return r
}

func decodeFlags(t *testing.T, w *httptest.ResponseRecorder) (key string, replay, bypass bool) {
	t.Helper()
	var body struct {
		Key    string `json:"key"`
		Replay bool   `json:"replay"`
		Bypass bool   `json:"bypass"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v (%s)", err, w.Body.String())
	}
	return body.Key, body.Replay, body.Bypass
}

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected no key")
	}
	if IsReplay(c) {
		t.Fatalf("expected no replay")
	}
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key should be ignored")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag should be ignored")
	}
	// No matched route: scope falls back to the raw path.
	if got := IdempotencyScope(c); got != "POST /x" {
		t.Fatalf("scope = %q", got)
	}
}

func TestIdempotencyValidator_NoHeaderSkipsLookup(t *testing.T) {
	called := false
	r := idemRouter(IdempotencyOptions{}, func(context.Context, string, string, string, time.Time) (bool, error) {
		called = true
		return true, nil
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/consultations", nil))
	if w.Code != http.StatusOK || called {
		t.Fatalf("status=%d lookup called=%v", w.Code, called)
	}
	if key, replay, _ := decodeFlags(t, w); key != "" || replay {
		t.Fatalf("unexpected key=%q replay=%v", key, replay)
	}
}

func TestIdempotencyValidator_IgnoredOnSafeMethods(t *testing.T) {
	r := idemRouter(IdempotencyOptions{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/consultations/ABC123XYZ", nil)
	req.Header.Set(HeaderIdempotencyKey, "bad key with spaces")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET with key should pass through; got %d", w.Code)
	}
	if key, _, _ := decodeFlags(t, w); key != "" {
		t.Fatalf("key should not be stashed on GET, got %q", key)
	}
}

func TestIdempotencyValidator_RejectsInvalidKeys(t *testing.T) {
	r := idemRouter(IdempotencyOptions{MaxLen: 8, Pattern: regexp.MustCompile(`^[a-z]+$`)}, nil)

	for _, key := range []string{"abcdefghi", "ABC", "a b"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/consultations", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: got %d %s", key, w.Code, w.Body.String())
		}
	}
}

func TestIdempotencyValidator_LookupMissAndHit(t *testing.T) {
	var calls []lookupCall
	hit := false
	r := idemRouter(IdempotencyOptions{}, func(_ context.Context, clientID, scope, key string, now time.Time) (bool, error) {
		if now.IsZero() {
			t.Errorf("lookup got zero time")
		}
		calls = append(calls, lookupCall{clientID, scope, key})
		return hit, nil
	})

	send := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/consultations", nil)
		req.Header.Set(HeaderIdempotencyKey, "start-1")
		req.Header.Set(HeaderCounselorID, "7")
		r.ServeHTTP(w, req)
		return w
	}

	key, replay, bypass := decodeFlags(t, send())
	if key != "start-1" || replay || bypass {
		t.Fatalf("miss: key=%q replay=%v bypass=%v", key, replay, bypass)
	}

	hit = true
	_, replay, bypass = decodeFlags(t, send())
	if !replay || !bypass {
		t.Fatalf("hit: replay=%v bypass=%v", replay, bypass)
	}

	want := lookupCall{"counselor:7", "POST /consultations", "start-1"}
	if len(calls) != 2 || calls[0] != want {
		t.Fatalf("lookup calls = %+v; want %+v", calls, want)
	}
}
