package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/handler"
	"github.com/habitflow/internal/service"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	engine  *gin.Engine
	api     *handler.API
	tracker *service.Tracker
	gdb     *gorm.DB
	clock   *datekey.FixedClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	balance := config.DefaultBalance()
	clock := datekey.NewFixedClock(time.Date(2024, 3, 13, 8, 0, 0, 0, time.UTC))
	store := service.NewGormBlobStore(gdb)
	tracker, err := service.NewTracker(context.Background(), store, service.OptionsFromBalance(balance, clock))
	if err != nil {
		t.Fatalf("failed to build tracker: %v", err)
	}

	api := handler.NewAPI(gdb, tracker, store, balance)
	return &testServer{
		engine:  SetupRouter(api, "test-secret"),
		api:     api,
		tracker: tracker,
		gdb:     gdb,
		clock:   clock,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	s.engine.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestHabitLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/habits", map[string]any{"name": "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodPost, "/api/habits", map[string]any{"name": "俯卧撑", "type": "count", "goal": 20, "icon": "💪"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decode[struct {
		Habit db.Habit `json:"habit"`
	}](t, rr)
	if created.Habit.ID == "" || created.Habit.Goal != 20 || created.Habit.Unit != "次" {
		t.Fatalf("unexpected habit %#v", created.Habit)
	}

	rr = srv.do(t, http.MethodPost, "/api/habits/"+created.Habit.ID+"/toggle", map[string]any{"increment": 5})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	toggled := decode[struct {
		Result   service.ToggleResult  `json:"result"`
		Progress service.LevelProgress `json:"progress"`
	}](t, rr)
	if !toggled.Result.Completed || toggled.Result.TodayProgress != 5 || toggled.Progress.XP != 10 {
		t.Fatalf("unexpected toggle %#v", toggled)
	}

	rr = srv.do(t, http.MethodPost, "/api/habits/3/toggle", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected toggle without body to succeed, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodPost, "/api/habits/3/progress", map[string]any{"amount": 5})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for progress on a check habit, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = srv.do(t, http.MethodGet, "/api/stats/weekly?lang=en", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	weekly := decode[struct {
		Days []service.DayStat `json:"days"`
	}](t, rr)
	if len(weekly.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(weekly.Days))
	}
	today := weekly.Days[6]
	if today.Label != "Wed" || today.CompletionRate != 50 {
		t.Fatalf("unexpected today stat %#v", today)
	}

	rr = srv.do(t, http.MethodDelete, "/api/habits/"+created.Habit.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	for _, entry := range srv.tracker.Snapshot().Logs {
		if entry.HabitID == created.Habit.ID {
			t.Fatalf("log for deleted habit survived: %#v", entry)
		}
	}

	rr = srv.do(t, http.MethodDelete, "/api/habits/"+created.Habit.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodPost, "/api/habits/missing/toggle", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown habit, got %d", rr.Code)
	}
}

func TestHeatmapAndOverview(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 7; i++ {
		if _, err := srv.tracker.LogProgress(context.Background(), "1", 1); err != nil {
			t.Fatalf("log progress failed: %v", err)
		}
	}

	rr := srv.do(t, http.MethodGet, "/api/stats/heatmap?days=14", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	heatmap := decode[struct {
		Cells []service.HeatmapCell `json:"cells"`
	}](t, rr)
	if len(heatmap.Cells) != 14 {
		t.Fatalf("expected 14 cells, got %d", len(heatmap.Cells))
	}
	last := heatmap.Cells[13]
	if last.Count != 7 || last.Intensity != 4 {
		t.Fatalf("expected clipped intensity, got %#v", last)
	}

	rr = srv.do(t, http.MethodGet, "/api/stats/overview", nil)
	overview := decode[struct {
		Overview service.Overview `json:"overview"`
	}](t, rr)
	if overview.Overview.HabitCount != 3 || overview.Overview.TodayCompleted != 1 || overview.Overview.TodayRate != 33 {
		t.Fatalf("unexpected overview %#v", overview.Overview)
	}
}

func TestProfileEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPut, "/api/profile", map[string]any{"name": "小林"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodGet, "/api/profile", nil)
	payload := decode[struct {
		Profile  db.UserProfile        `json:"profile"`
		Progress service.LevelProgress `json:"progress"`
	}](t, rr)
	if payload.Profile.Name != "小林" || payload.Progress.NextThreshold != 100 {
		t.Fatalf("unexpected profile payload %#v", payload)
	}

	rr = srv.do(t, http.MethodGet, "/api/palette", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "bg-red-500") {
		t.Fatalf("unexpected palette response %d %s", rr.Code, rr.Body.String())
	}
}

func TestCoachEndpointsWithoutKey(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/coach/advice", nil)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	srv.api.Board().Wait()

	rr = srv.do(t, http.MethodGet, "/api/coach/advice", nil)
	advice := decode[struct {
		Advice service.AdviceView `json:"advice"`
		HTML   string             `json:"advice_html"`
	}](t, rr)
	if advice.Advice.Text != service.AdviceMissingKeyMessage || advice.Advice.Pending {
		t.Fatalf("unexpected advice %#v", advice)
	}
	if !strings.Contains(advice.HTML, "<p>") {
		t.Fatalf("expected rendered html, got %q", advice.HTML)
	}

	srv.do(t, http.MethodPost, "/api/coach/suggestions", nil)
	srv.api.Board().Wait()
	rr = srv.do(t, http.MethodGet, "/api/coach/suggestions", nil)
	suggestions := decode[struct {
		Suggestions service.SuggestionsView `json:"suggestions"`
	}](t, rr)
	if suggestions.Suggestions.Items == nil || len(suggestions.Suggestions.Items) != 0 {
		t.Fatalf("expected empty suggestions, got %#v", suggestions)
	}

	rr = srv.do(t, http.MethodGet, "/api/coach/quote", nil)
	quote := decode[map[string]string](t, rr)
	if quote["quote"] != service.FallbackQuote || quote["date"] != "2024-03-13" {
		t.Fatalf("unexpected quote %#v", quote)
	}
}

func TestAISettingsMasksKeys(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPut, "/api/settings/ai", map[string]any{
		"aiProvider":   "openai",
		"openaiApiKey": "sk-1234567890abcd",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	// 不提交 Key 时保留原值
	rr = srv.do(t, http.MethodPut, "/api/settings/ai", map[string]any{"aiProvider": "openai", "coachPrompt": "简短"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodGet, "/api/settings/ai", nil)
	body := rr.Body.String()
	if strings.Contains(body, "sk-1234567890abcd") {
		t.Fatalf("api key leaked: %s", body)
	}
	settings := decode[struct {
		Settings map[string]any `json:"settings"`
	}](t, rr)
	if settings.Settings["openaiApiKey"] != "sk-**********abcd" || settings.Settings["activeKeyProvided"] != true {
		t.Fatalf("unexpected settings %#v", settings.Settings)
	}
}

func TestPasscodeGate(t *testing.T) {
	srv := newTestServer(t)
	if err := db.EnsureOwner(srv.gdb, "2468"); err != nil {
		t.Fatalf("ensure owner failed: %v", err)
	}

	rr := srv.do(t, http.MethodGet, "/api/state", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodPost, "/api/session", map[string]any{"passcode": "0000"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong passcode, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodPost, "/api/session", map[string]any{"passcode": "2468"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for correct passcode, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}

	rr = srv.do(t, http.MethodGet, "/api/state", nil, cookies...)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with session, got %d", rr.Code)
	}

	rr = srv.do(t, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("health check should stay open, got %d", rr.Code)
	}
}
