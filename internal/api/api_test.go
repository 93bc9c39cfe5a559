package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/health"
	"github.com/plano-ai/plano/internal/infra/interpret"
	"github.com/plano-ai/plano/internal/infra/sqlite"
)

// monday 2025-07-07 10:00 UTC
var monday = time.Date(2025, 7, 7, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	ts      *httptest.Server
	notices *engagement.NotificationService
}

func newTestServer(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	notices := engagement.NewNotificationService(db)
	backend := interpret.Fixture{}

	plans, err := planner.NewPlanService(db, backend, notices)
	if err != nil {
		t.Fatalf("plans: %v", err)
	}
	progress, err := engagement.NewProgressService(db, notices, engagement.ProgressConfig{Location: time.UTC})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	book := logbook.New(plans, progress, backend, logbook.Config{Location: time.UTC})

	checker := health.NewChecker(db, dir)
	checker.RunOnce(context.Background())

	srv := NewServer(Services{
		Plans:         plans,
		Progress:      progress,
		Logbook:       book,
		Notifications: notices,
		Health:        checker,
	})
	srv.now = func() time.Time { return monday }
	srv.EnableMetrics()

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{srv: srv, ts: ts, notices: notices}
}

func (e testEnv) do(t *testing.T, method, path string, body interface{}, header ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func (e testEnv) upload(t *testing.T, name string, data []byte) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", name)
	fw.Write(data)
	mw.Close()

	resp, err := e.ts.Client().Post(e.ts.URL+"/api/plan/import", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func wantStatus(t *testing.T, resp *http.Response, body []byte, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s status = %d, want %d (body %s)", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Health & metrics
// ═══════════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	resp, body := e.do(t, http.MethodGet, "/health", nil)
	wantStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), `"ok"`) {
		t.Errorf("body = %s", body)
	}

	resp, body = e.do(t, http.MethodGet, "/api/health/checks", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var statuses []health.Status
	json.Unmarshal(body, &statuses)
	if len(statuses) != 2 {
		t.Errorf("checks = %d, want 2", len(statuses))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodGet, "/health", nil)
	resp, body := e.do(t, http.MethodGet, "/metrics", nil)
	wantStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), "plano_http_requests_total") {
		t.Error("metrics output missing plano_http_requests_total")
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newTestServer(t)
	resp, body := e.do(t, http.MethodOptions, "/api/logs", nil)
	wantStatus(t, resp, body, http.StatusOK)
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Plan
// ═══════════════════════════════════════════════════════════════════════════

func TestPlan_Lifecycle(t *testing.T) {
	e := newTestServer(t)

	resp, body := e.do(t, http.MethodGet, "/api/plan", nil)
	wantStatus(t, resp, body, http.StatusNotFound)

	resp, body = e.do(t, http.MethodPut, "/api/plan", planner.SamplePlan())
	wantStatus(t, resp, body, http.StatusOK)

	resp, body = e.do(t, http.MethodGet, "/api/plan", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var plan domain.WeekPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if !plan.IsComplete() || len(plan[domain.Monday].Meals) != 3 {
		t.Errorf("plan monday meals = %d, complete = %v", len(plan[domain.Monday].Meals), plan.IsComplete())
	}

	day := domain.DayPlan{Day: domain.Tuesday, Meals: []domain.Meal{{ID: "t1", Name: "Lanche", Time: "15:00"}}}
	resp, body = e.do(t, http.MethodPut, "/api/plan/tuesday", day)
	wantStatus(t, resp, body, http.StatusOK)

	resp, body = e.do(t, http.MethodGet, "/api/plan/today", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var today todayResponse
	json.Unmarshal(body, &today)
	if today.Plan.Day != domain.Monday || today.Summary.Planned != 3 || today.Summary.NextMeal == nil || today.Summary.NextMeal.ID != "m2" {
		t.Errorf("today = %+v", today)
	}

	resp, body = e.do(t, http.MethodDelete, "/api/plan", nil)
	wantStatus(t, resp, body, http.StatusNoContent)
	resp, body = e.do(t, http.MethodGet, "/api/plan", nil)
	wantStatus(t, resp, body, http.StatusNotFound)
}

func TestPlan_RejectsUnknownDays(t *testing.T) {
	e := newTestServer(t)

	resp, body := e.do(t, http.MethodPut, "/api/plan", map[string]any{"funday": map[string]any{"meals": []any{}}})
	wantStatus(t, resp, body, http.StatusBadRequest)

	resp, body = e.do(t, http.MethodPut, "/api/plan/someday", domain.DayPlan{})
	wantStatus(t, resp, body, http.StatusBadRequest)

	req, _ := http.NewRequest(http.MethodPut, e.ts.URL+"/api/plan", strings.NewReader("{not json"))
	r, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d", r.StatusCode)
	}
}

func TestPlan_MixedCaseDayKeys(t *testing.T) {
	e := newTestServer(t)

	body := map[string]any{
		"Monday": map[string]any{"meals": []any{
			map[string]any{"id": "m1", "name": "Café", "time": "07:00", "items": []any{}},
		}},
		"TUESDAY": map[string]any{"meals": []any{}},
	}
	resp, data := e.do(t, http.MethodPut, "/api/plan", body)
	wantStatus(t, resp, data, http.StatusOK)

	var plan domain.WeekPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if !plan.IsComplete() || len(plan) != 7 {
		t.Errorf("plan has %d days, want 7 canonical days", len(plan))
	}
	mon := plan[domain.Monday]
	if mon.Day != domain.Monday || len(mon.Meals) != 1 || mon.Meals[0].ID != "m1" {
		t.Errorf("monday = %+v, want the submitted meal", mon)
	}

	dup := map[string]any{
		"monday": map[string]any{"meals": []any{}},
		"Monday": map[string]any{"meals": []any{}},
	}
	resp, data = e.do(t, http.MethodPut, "/api/plan", dup)
	wantStatus(t, resp, data, http.StatusBadRequest)
}

func TestPlan_Import(t *testing.T) {
	e := newTestServer(t)

	resp, body := e.upload(t, "plano.pdf", []byte("%PDF-1.4 fake"))
	wantStatus(t, resp, body, http.StatusOK)
	var plan domain.WeekPlan
	json.Unmarshal(body, &plan)
	if len(plan) != 7 || len(plan[domain.Monday].Meals) != 4 {
		t.Errorf("imported monday meals = %d", len(plan[domain.Monday].Meals))
	}

	resp, body = e.do(t, http.MethodGet, "/api/plan/raw", nil)
	wantStatus(t, resp, body, http.StatusOK)
	if !strings.Contains(string(body), `"Seg"`) {
		t.Errorf("raw plan = %s", body)
	}

	resp, body = e.upload(t, "notes.txt", []byte("just text"))
	wantStatus(t, resp, body, http.StatusUnsupportedMediaType)
}

// ═══════════════════════════════════════════════════════════════════════════
// Logs & progress
// ═══════════════════════════════════════════════════════════════════════════

func TestLogs_RecordAndProgress(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodPut, "/api/plan", planner.SamplePlan())

	req := map[string]any{"mealId": "m1", "day": "monday", "itemsEaten": []string{"i1", "i2", "i3"}}
	resp, body := e.do(t, http.MethodPost, "/api/logs", req, "Idempotency-Key", "abc-1")
	wantStatus(t, resp, body, http.StatusCreated)
	var res logbook.RecordResult
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Log.ID != "abc-1" || res.Log.Score != 100 || res.Verdict.Title != "Excelente!" {
		t.Errorf("result = %+v", res)
	}

	resp, body = e.do(t, http.MethodPost, "/api/logs", req, "Idempotency-Key", "abc-1")
	wantStatus(t, resp, body, http.StatusConflict)

	resp, body = e.do(t, http.MethodPost, "/api/logs", map[string]any{"mealId": "nope", "day": "monday"})
	wantStatus(t, resp, body, http.StatusNotFound)

	resp, body = e.do(t, http.MethodPost, "/api/logs", map[string]any{"mealId": "m2", "day": "monday", "analyze": true})
	wantStatus(t, resp, body, http.StatusBadRequest)

	resp, body = e.do(t, http.MethodGet, "/api/progress", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var prog progressResponse
	json.Unmarshal(body, &prog)
	if prog.Stats.TotalLogs != 1 || prog.Stats.TotalPoints != 100 {
		t.Errorf("stats = %+v", prog.Stats)
	}
	if len(prog.Badges) != 4 || prog.Badges[0].ID != domain.BadgeFirstMeal || !prog.Badges[0].Unlocked {
		t.Errorf("badges = %+v", prog.Badges)
	}

	resp, body = e.do(t, http.MethodGet, "/api/logs?limit=5", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var logs []domain.MealLog
	json.Unmarshal(body, &logs)
	if len(logs) != 1 {
		t.Errorf("logs = %d", len(logs))
	}

	resp, body = e.do(t, http.MethodDelete, "/api/progress", nil)
	wantStatus(t, resp, body, http.StatusNoContent)
	_, body = e.do(t, http.MethodGet, "/api/progress", nil)
	json.Unmarshal(body, &prog)
	if prog.Stats != (domain.UserStats{}) {
		t.Errorf("stats after clear = %+v", prog.Stats)
	}
}

func TestLogs_PhotoAnalysis(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodPut, "/api/plan", planner.SamplePlan())

	photo := "data:image/png;base64,iVBORw0KGgo="
	req := map[string]any{"mealId": "m2", "day": "monday", "analyze": true, "photos": []string{photo, photo, photo}}
	resp, body := e.do(t, http.MethodPost, "/api/logs", req)
	wantStatus(t, resp, body, http.StatusCreated)
	var res logbook.RecordResult
	json.Unmarshal(body, &res)
	// fixture: 65 + 8*3 = 89
	if res.Log.Score != 89 || res.Log.Analysis == nil || res.Log.Analysis.Adherence != "Alta" {
		t.Errorf("log = %+v", res.Log)
	}
}

func TestProgress_Summaries(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodPut, "/api/plan", planner.SamplePlan())

	resp, body := e.do(t, http.MethodGet, "/api/progress/daily", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var daily engagement.DaySummary
	json.Unmarshal(body, &daily)
	if daily.Day != domain.Monday || daily.Planned != 3 || daily.Logged != 0 {
		t.Errorf("daily = %+v", daily)
	}

	resp, body = e.do(t, http.MethodGet, "/api/progress/weekly", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var weekly []engagement.DayScore
	json.Unmarshal(body, &weekly)
	if len(weekly) != 7 || weekly[6].Date != "2025-07-07" || weekly[6].Label != "seg" {
		t.Errorf("weekly = %+v", weekly)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notifications
// ═══════════════════════════════════════════════════════════════════════════

func TestNotifications(t *testing.T) {
	e := newTestServer(t)
	e.do(t, http.MethodPut, "/api/plan", planner.SamplePlan())

	resp, body := e.do(t, http.MethodGet, "/api/notifications?pending=true", nil)
	wantStatus(t, resp, body, http.StatusOK)
	var list []domain.Notification
	json.Unmarshal(body, &list)
	if len(list) != 1 || list[0].Type != domain.NotifyPlanSaved {
		t.Fatalf("notifications = %+v", list)
	}

	resp, body = e.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/shown", list[0].ID), nil)
	wantStatus(t, resp, body, http.StatusNoContent)

	_, body = e.do(t, http.MethodGet, "/api/notifications?pending=true", nil)
	json.Unmarshal(body, &list)
	if len(list) != 0 {
		t.Errorf("pending after shown = %d", len(list))
	}

	resp, body = e.do(t, http.MethodPost, "/api/notifications/999/shown", nil)
	wantStatus(t, resp, body, http.StatusNotFound)
	resp, body = e.do(t, http.MethodPost, "/api/notifications/abc/shown", nil)
	wantStatus(t, resp, body, http.StatusBadRequest)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrUnknownDay, http.StatusBadRequest},
		{domain.ErrMealNotFound, http.StatusNotFound},
		{domain.ErrNoPlan, http.StatusNotFound},
		{domain.ErrDuplicateLog, http.StatusConflict},
		{domain.ErrUnsupportedDocument, http.StatusUnsupportedMediaType},
		{fmt.Errorf("%w: down", domain.ErrServiceUnavailable), http.StatusBadGateway},
		{domain.ErrBadServiceResponse, http.StatusBadGateway},
		{domain.ErrStore, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
