package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
)

type failingBlobStore struct {
	*MemoryBlobStore
	fail bool
}

func (f *failingBlobStore) PutAll(ctx context.Context, entries map[string]string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryBlobStore.PutAll(ctx, entries)
}

func sequentialIDs() func() string {
	next := 0
	return func() string {
		next++
		return fmt.Sprintf("id-%d", next)
	}
}

func newTestTracker(t *testing.T, store BlobStore) (*Tracker, *datekey.FixedClock) {
	t.Helper()
	clock := datekey.NewFixedClock(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	tracker, err := NewTracker(context.Background(), store, TrackerOptions{Clock: clock, NewID: sequentialIDs()})
	if err != nil {
		t.Fatalf("new tracker failed: %v", err)
	}
	return tracker, clock
}

func assertNoDanglingLogs(t *testing.T, state State) {
	t.Helper()
	known := make(map[string]bool, len(state.Habits))
	for _, habit := range state.Habits {
		known[habit.ID] = true
	}
	for _, entry := range state.Logs {
		if !known[entry.HabitID] {
			t.Fatalf("log %s references missing habit %s", entry.ID, entry.HabitID)
		}
	}
}

func TestTrackerStartsWithDefaults(t *testing.T) {
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())
	state := tracker.Snapshot()
	if len(state.Habits) != 3 {
		t.Fatalf("expected seed habits, got %d", len(state.Habits))
	}
	if state.User.Level != 1 || state.User.XP != 0 {
		t.Fatalf("unexpected default profile %#v", state.User)
	}
	if tracker.Today() != "2024-03-10" {
		t.Fatalf("unexpected today %s", tracker.Today())
	}
}

func TestTrackerToggleAndUndo(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	tracker, _ := newTestTracker(t, store)

	result, err := tracker.Toggle(ctx, "3", 0)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !result.Completed || result.XPDelta != 10 || result.Streak != 1 || result.TodayProgress != 1 {
		t.Fatalf("unexpected toggle result %#v", result)
	}
	if result.Profile.XP != 10 {
		t.Fatalf("expected xp 10, got %d", result.Profile.XP)
	}

	state := tracker.Snapshot()
	if len(state.Logs) != 1 || state.Logs[0].Date != "2024-03-10" || state.Logs[0].Value != 1 {
		t.Fatalf("unexpected logs %#v", state.Logs)
	}

	undo, err := tracker.Toggle(ctx, "3", 0)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if undo.Completed || undo.XPDelta != -10 || undo.Profile.XP != 0 || undo.Streak != 0 {
		t.Fatalf("unexpected undo result %#v", undo)
	}
	if logs := tracker.Snapshot().Logs; len(logs) != 0 {
		t.Fatalf("expected logs cleared, got %#v", logs)
	}

	// 新会话读取到的状态与内存一致
	reloaded, _ := newTestTracker(t, store)
	if got := reloaded.Snapshot(); len(got.Logs) != 0 || got.User.XP != 0 {
		t.Fatalf("persisted state mismatch %#v", got)
	}
}

func TestTrackerToggleCountUsesGoalOrIncrement(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())

	result, err := tracker.Toggle(ctx, "1", 0)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if result.TodayProgress != 4 {
		t.Fatalf("expected goal value 4, got %d", result.TodayProgress)
	}

	if _, err := tracker.Toggle(ctx, "1", 0); err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	result, err = tracker.Toggle(ctx, "1", 2)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if result.TodayProgress != 2 {
		t.Fatalf("expected explicit increment 2, got %d", result.TodayProgress)
	}
}

func TestTrackerToggleLevelUp(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	if err := store.PutAll(ctx, map[string]string{db.BlobKeyUser: `{"name":"User","xp":95,"level":1}`}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	tracker, _ := newTestTracker(t, store)

	result, err := tracker.Toggle(ctx, "3", 0)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if !result.LeveledUp || result.Profile.XP != 105 || result.Profile.Level != 2 {
		t.Fatalf("expected level up to 2 with xp 105, got %#v", result)
	}

	result, err = tracker.Toggle(ctx, "3", 0)
	if err != nil {
		t.Fatalf("undo failed: %v", err)
	}
	if result.Profile.XP != 95 || result.Profile.Level != 1 {
		t.Fatalf("expected xp 95 level 1 after undo, got %#v", result.Profile)
	}
}

func TestTrackerToggleUnknownHabit(t *testing.T) {
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())
	if _, err := tracker.Toggle(context.Background(), "nope", 0); !errors.Is(err, ErrHabitNotFound) {
		t.Fatalf("expected ErrHabitNotFound, got %v", err)
	}
}

func TestTrackerStreakAcrossDays(t *testing.T) {
	ctx := context.Background()
	tracker, clock := newTestTracker(t, NewMemoryBlobStore())

	for i := 0; i < 3; i++ {
		if _, err := tracker.Toggle(ctx, "3", 0); err != nil {
			t.Fatalf("toggle day %d failed: %v", i, err)
		}
		clock.AdvanceDays(1)
	}

	// 第四天尚未打卡，连胜仍按宽限规则保留
	summaries := SummarizeHabits(tracker.Snapshot().Habits, tracker.Snapshot().Logs, tracker.Today(), StreakCalculator{})
	if summaries[2].CurrentStreak != 3 {
		t.Fatalf("expected streak 3 on grace day, got %d", summaries[2].CurrentStreak)
	}

	result, err := tracker.Toggle(ctx, "3", 0)
	if err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if result.Streak != 4 || result.Profile.XP != 40 {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestTrackerLogProgressAwardsOnce(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())

	first, err := tracker.LogProgress(ctx, "2", 10)
	if err != nil {
		t.Fatalf("log progress failed: %v", err)
	}
	if first.XPDelta != 10 || first.TodayProgress != 10 {
		t.Fatalf("unexpected first progress %#v", first)
	}

	second, err := tracker.LogProgress(ctx, "2", 15)
	if err != nil {
		t.Fatalf("log progress failed: %v", err)
	}
	if second.XPDelta != 0 || second.TodayProgress != 25 || second.Profile.XP != 10 {
		t.Fatalf("unexpected second progress %#v", second)
	}

	if logs := tracker.Snapshot().Logs; len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
}

func TestTrackerLogProgressRejectsCheckHabit(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())

	for i := 0; i < 7; i++ {
		if _, err := tracker.LogProgress(ctx, "3", 5); !errors.Is(err, ErrProgressNotSupported) {
			t.Fatalf("expected ErrProgressNotSupported, got %v", err)
		}
	}

	state := tracker.Snapshot()
	if len(state.Logs) != 0 || state.User.XP != 0 {
		t.Fatalf("expected no logs and no xp, got %d logs and %d xp", len(state.Logs), state.User.XP)
	}
	if cells := Heatmap(state.Logs, tracker.Today(), 1); cells[0].Count != 0 {
		t.Fatalf("expected empty heatmap for today, got %#v", cells[0])
	}

	// 切换仍然可用，且每天最多一条记录
	if _, err := tracker.Toggle(ctx, "3", 0); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if _, err := tracker.LogProgress(ctx, "3", 5); !errors.Is(err, ErrProgressNotSupported) {
		t.Fatalf("expected ErrProgressNotSupported after toggle, got %v", err)
	}
	if logs := tracker.Snapshot().Logs; len(logs) != 1 {
		t.Fatalf("expected a single completion row, got %d", len(logs))
	}
}

func TestTrackerCreateHabit(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())

	habit, ok, err := tracker.CreateHabit(ctx, HabitDraft{
		Name:  "  <b>晨跑</b>  ",
		Type:  "check",
		Goal:  5,
		Color: "bg-unknown",
	})
	if err != nil || !ok {
		t.Fatalf("create failed ok=%v err=%v", ok, err)
	}
	if habit.ID != "id-1" || habit.Name != "晨跑" {
		t.Fatalf("unexpected habit %#v", habit)
	}
	if habit.Goal != 1 || habit.Unit != "次" || habit.Icon != "💧" || habit.Color != "bg-red-500" {
		t.Fatalf("unexpected normalization %#v", habit)
	}
	if habit.CreatedAt != time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC).UnixMilli() {
		t.Fatalf("unexpected createdAt %d", habit.CreatedAt)
	}
	if got := len(tracker.Snapshot().Habits); got != 4 {
		t.Fatalf("expected 4 habits, got %d", got)
	}

	timer, ok, err := tracker.CreateHabit(ctx, HabitDraft{Name: "专注", Type: "timer", Goal: 25})
	if err != nil || !ok {
		t.Fatalf("create timer failed ok=%v err=%v", ok, err)
	}
	if timer.Goal != 25 || timer.Unit != "分钟" {
		t.Fatalf("unexpected timer habit %#v", timer)
	}
}

func TestTrackerCreateHabitEmptyNameIsNoop(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	tracker, _ := newTestTracker(t, store)

	_, ok, err := tracker.CreateHabit(ctx, HabitDraft{Name: "   "})
	if err != nil || ok {
		t.Fatalf("expected silent rejection, ok=%v err=%v", ok, err)
	}
	if got := len(tracker.Snapshot().Habits); got != 3 {
		t.Fatalf("expected habits unchanged, got %d", got)
	}
	if _, found, _ := store.Get(ctx, db.BlobKeyHabits); found {
		t.Fatalf("expected no write for rejected habit")
	}
}

func TestTrackerDeleteHabitCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryBlobStore()
	tracker, clock := newTestTracker(t, store)

	for _, id := range []string{"1", "2", "3"} {
		if _, err := tracker.Toggle(ctx, id, 0); err != nil {
			t.Fatalf("toggle %s failed: %v", id, err)
		}
	}
	clock.AdvanceDays(1)
	if _, err := tracker.Toggle(ctx, "2", 0); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}

	removed, err := tracker.DeleteHabit(ctx, "2")
	if err != nil || !removed {
		t.Fatalf("delete failed removed=%v err=%v", removed, err)
	}

	state := tracker.Snapshot()
	if len(state.Habits) != 2 || len(state.Logs) != 2 {
		t.Fatalf("unexpected state after delete %#v", state)
	}
	assertNoDanglingLogs(t, state)

	reloaded, _ := newTestTracker(t, store)
	assertNoDanglingLogs(t, reloaded.Snapshot())
	if len(reloaded.Snapshot().Logs) != 2 {
		t.Fatalf("expected persisted logs to be cascaded")
	}

	removed, err = tracker.DeleteHabit(ctx, "2")
	if err != nil || removed {
		t.Fatalf("expected second delete to be a no-op, removed=%v err=%v", removed, err)
	}
}

func TestTrackerFailedSaveLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &failingBlobStore{MemoryBlobStore: NewMemoryBlobStore()}
	tracker, _ := newTestTracker(t, store)

	if _, err := tracker.Toggle(ctx, "3", 0); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	before := tracker.Snapshot()

	store.fail = true
	if _, err := tracker.Toggle(ctx, "3", 0); err == nil {
		t.Fatalf("expected save error")
	}
	if _, err := tracker.DeleteHabit(ctx, "3"); err == nil {
		t.Fatalf("expected save error on delete")
	}

	after := tracker.Snapshot()
	if len(after.Logs) != len(before.Logs) || after.User != before.User || len(after.Habits) != len(before.Habits) {
		t.Fatalf("state changed after failed save: before %#v after %#v", before, after)
	}
}

func TestTrackerRenameProfile(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())

	profile, err := tracker.RenameProfile(ctx, "  阿华  ")
	if err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	if profile.Name != "阿华" {
		t.Fatalf("unexpected name %q", profile.Name)
	}

	profile, err = tracker.RenameProfile(ctx, "   ")
	if err != nil || profile.Name != "阿华" {
		t.Fatalf("expected empty rename to be ignored, got %q err=%v", profile.Name, err)
	}
}

func TestTrackerReset(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker(t, NewMemoryBlobStore())
	if _, err := tracker.Toggle(ctx, "3", 0); err != nil {
		t.Fatalf("toggle failed: %v", err)
	}
	if err := tracker.Reset(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	state := tracker.Snapshot()
	if len(state.Logs) != 0 || state.User.XP != 0 || len(state.Habits) != 3 {
		t.Fatalf("unexpected state after reset %#v", state)
	}
}

func TestToggleCompletionIsPure(t *testing.T) {
	habit := db.Habit{ID: "h", Type: db.HabitTypeCheck}
	logs := []db.HabitLog{{ID: "old", HabitID: "h", Date: "2024-03-09", Value: 1}}
	profile := db.UserProfile{XP: 0, Level: 1}

	next, updated, completed := ToggleCompletion(habit, logs, profile, "2024-03-10", 0, db.HabitLog{ID: "new"}, DefaultProgression())
	if !completed || len(next) != 2 || updated.XP != 10 {
		t.Fatalf("unexpected toggle %#v %#v", next, updated)
	}
	if len(logs) != 1 || profile.XP != 0 {
		t.Fatalf("inputs mutated")
	}
	if next[1].HabitID != "h" || next[1].Date != "2024-03-10" || next[1].Value != 1 {
		t.Fatalf("unexpected new log %#v", next[1])
	}
}
