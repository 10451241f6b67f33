package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/view"
	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrHabitNotFound 在指定习惯不存在时返回
	ErrHabitNotFound = errors.New("habit not found")
	// ErrHabitNameRequired 在习惯名称为空时返回，调用方据此判断为无操作
	ErrHabitNameRequired = errors.New("habit name is required")
	// ErrProgressNotSupported 在对 check 习惯累加进度时返回，check 习惯只能切换
	ErrProgressNotSupported = errors.New("habit does not accept progress increments")
)

const (
	maxHabitNameRunes        = 60
	maxHabitDescriptionRunes = 200
	maxProfileNameRunes      = 40
)

// HabitDraft 定义创建习惯时可配置的字段，均为用户原始输入
type HabitDraft struct {
	Name        string
	Description string
	Icon        string
	Color       string
	Frequency   string
	Type        string
	Goal        int
	Unit        string
}

// ToggleResult 描述一次打卡或撤销的结果
type ToggleResult struct {
	Habit         db.Habit       `json:"habit"`
	Completed     bool           `json:"completed"`
	XPDelta       int            `json:"xp_delta"`
	LeveledUp     bool           `json:"leveled_up"`
	Profile       db.UserProfile `json:"profile"`
	Streak        int            `json:"streak"`
	TodayProgress int            `json:"today_progress"`
}

// TrackerOptions 配置 Tracker 的可替换依赖
type TrackerOptions struct {
	Clock       datekey.Clock
	Progression Progression
	Streaks     StreakCalculator
	NewID       func() string
}

// OptionsFromBalance 把数值配置转换为 Tracker 选项
func OptionsFromBalance(balance config.Balance, clock datekey.Clock) TrackerOptions {
	return TrackerOptions{
		Clock:       clock,
		Progression: NewProgression(balance.Progression.LevelThresholds, balance.Progression.XPPerCompletion),
		Streaks:     StreakCalculator{LookbackCap: balance.Streak.LookbackCapDays},
	}
}

// Tracker 是单用户会话：持有内存状态与持久化端口，按顺序处理每一个用户事件。
// 每次变更先构造新状态、整体写入存储，成功后才替换内存状态。
type Tracker struct {
	mu          sync.Mutex
	store       BlobStore
	clock       datekey.Clock
	progression Progression
	streaks     StreakCalculator
	newID       func() string
	sanitizer   *bluemonday.Policy
	state       State
}

// NewTracker 从存储加载状态并构造 Tracker
func NewTracker(ctx context.Context, store BlobStore, opts TrackerOptions) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}

	t := &Tracker{
		store:       store,
		clock:       opts.Clock,
		progression: opts.Progression,
		streaks:     opts.Streaks,
		newID:       opts.NewID,
		sanitizer:   bluemonday.StrictPolicy(),
	}
	if t.clock == nil {
		t.clock = datekey.SystemClock{}
	}
	if len(t.progression.Table) == 0 {
		t.progression = DefaultProgression()
	}
	if t.newID == nil {
		t.newID = newTimeOrderedID
	}

	state, err := LoadState(ctx, store, DefaultState(t.clock.Now()), t.progression)
	if err != nil {
		return nil, fmt.Errorf("load tracker state: %w", err)
	}
	t.state = state
	return t, nil
}

func newTimeOrderedID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Snapshot 返回当前状态的拷贝
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Today 返回当前日历日
func (t *Tracker) Today() datekey.Key {
	return datekey.Today(t.clock)
}

// Progression 返回等级数值配置
func (t *Tracker) Progression() Progression {
	return t.progression
}

// Streaks 返回连胜计算器
func (t *Tracker) Streaks() StreakCalculator {
	return t.streaks
}

// Habit 根据 ID 查找习惯
func (t *Tracker) Habit(id string) (db.Habit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := indexOfHabit(t.state.Habits, id)
	if idx < 0 {
		return db.Habit{}, false
	}
	return t.state.Habits[idx], true
}

// CreateHabit 新建习惯；名称为空时返回 ok=false 且不做任何修改
func (t *Tracker) CreateHabit(ctx context.Context, draft HabitDraft) (db.Habit, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	habit, err := t.buildHabit(draft)
	if err != nil {
		if errors.Is(err, ErrHabitNameRequired) {
			return db.Habit{}, false, nil
		}
		return db.Habit{}, false, err
	}

	next := t.state.Clone()
	next.Habits = append(next.Habits, habit)
	if err := t.commit(ctx, next); err != nil {
		return db.Habit{}, false, err
	}
	return habit, true, nil
}

func (t *Tracker) buildHabit(draft HabitDraft) (db.Habit, error) {
	name := t.cleanText(draft.Name, maxHabitNameRunes)
	if name == "" {
		return db.Habit{}, ErrHabitNameRequired
	}

	habitType := normalizeHabitType(draft.Type)
	unit := t.cleanText(draft.Unit, 10)
	if unit == "" {
		unit = defaultUnit(habitType)
	}

	habit := db.Habit{
		ID:          t.newID(),
		Name:        name,
		Description: t.cleanText(draft.Description, maxHabitDescriptionRunes),
		Icon:        view.NormalizeIcon(draft.Icon),
		Color:       view.NormalizeColor(draft.Color),
		Frequency:   normalizeFrequency(draft.Frequency),
		Type:        habitType,
		Goal:        draft.Goal,
		Unit:        unit,
		CreatedAt:   t.clock.Now().UnixMilli(),
	}
	habit.Goal = KindOf(habit).Goal
	return habit, nil
}

// DeleteHabit 删除习惯及其全部打卡记录，两者在同一次写入中生效
func (t *Tracker) DeleteHabit(ctx context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	habits, logs, found := RemoveHabit(t.state.Habits, t.state.Logs, id)
	if !found {
		return false, nil
	}

	next := t.state.Clone()
	next.Habits = habits
	next.Logs = logs
	if err := t.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveHabit 返回移除习惯及其记录后的新切片，不修改入参
func RemoveHabit(habits []db.Habit, logs []db.HabitLog, id string) ([]db.Habit, []db.HabitLog, bool) {
	idx := indexOfHabit(habits, id)
	if idx < 0 {
		return habits, logs, false
	}

	nextHabits := slices.Delete(slices.Clone(habits), idx, idx+1)
	nextLogs := make([]db.HabitLog, 0, len(logs))
	for _, log := range logs {
		if log.HabitID != id {
			nextLogs = append(nextLogs, log)
		}
	}
	return nextHabits, nextLogs, true
}

// Toggle 切换习惯今天的完成状态：已完成则撤销当天全部记录并扣经验，否则写入一条记录并加经验
func (t *Tracker) Toggle(ctx context.Context, habitID string, increment int) (ToggleResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOfHabit(t.state.Habits, habitID)
	if idx < 0 {
		return ToggleResult{}, ErrHabitNotFound
	}
	habit := t.state.Habits[idx]
	now := t.clock.Now()
	today := datekey.FromTime(now)

	entry := db.HabitLog{
		ID:        t.newID(),
		HabitID:   habit.ID,
		Date:      today,
		Timestamp: now.UnixMilli(),
	}
	before := t.state.User
	logs, profile, completed := ToggleCompletion(habit, t.state.Logs, before, today, increment, entry, t.progression)

	next := t.state.Clone()
	next.Logs = logs
	next.User = profile
	if err := t.commit(ctx, next); err != nil {
		return ToggleResult{}, err
	}

	return t.result(habit, completed, before, profile, today), nil
}

// ToggleCompletion 是打卡切换的纯函数形式。
// entry 提供新记录的 ID 与时间戳，其 Value 由习惯类型决定。
func ToggleCompletion(habit db.Habit, logs []db.HabitLog, profile db.UserProfile, today datekey.Key, increment int, entry db.HabitLog, progression Progression) ([]db.HabitLog, db.UserProfile, bool) {
	if isSatisfiedOn(habit.ID, logs, today) {
		kept := make([]db.HabitLog, 0, len(logs))
		for _, log := range logs {
			if log.HabitID == habit.ID && log.Date == today {
				continue
			}
			kept = append(kept, log)
		}
		return kept, progression.ApplyUndo(profile), false
	}

	entry.HabitID = habit.ID
	entry.Date = today
	entry.Value = KindOf(habit).Magnitude(increment)

	next := append(slices.Clone(logs), entry)
	return next, progression.ApplyCompletion(profile), true
}

// LogProgress 为 count/timer 习惯累加进度，check 习惯返回 ErrProgressNotSupported。
// 只有当天从未完成变为完成时才加经验，重复累加不会重复计分。
func (t *Tracker) LogProgress(ctx context.Context, habitID string, amount int) (ToggleResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := indexOfHabit(t.state.Habits, habitID)
	if idx < 0 {
		return ToggleResult{}, ErrHabitNotFound
	}
	habit := t.state.Habits[idx]
	kind := KindOf(habit)
	if !kind.Accumulates() {
		return ToggleResult{}, ErrProgressNotSupported
	}
	now := t.clock.Now()
	today := datekey.FromTime(now)

	before := t.state.User
	wasSatisfied := isSatisfiedOn(habit.ID, t.state.Logs, today)
	entry := db.HabitLog{
		ID:        t.newID(),
		HabitID:   habit.ID,
		Date:      today,
		Timestamp: now.UnixMilli(),
		Value:     kind.Magnitude(amount),
	}

	next := t.state.Clone()
	next.Logs = append(next.Logs, entry)
	if !wasSatisfied {
		next.User = t.progression.ApplyCompletion(next.User)
	}
	if err := t.commit(ctx, next); err != nil {
		return ToggleResult{}, err
	}

	return t.result(habit, true, before, next.User, today), nil
}

// result 在 commit 之后调用，此时 t.state 已是新状态；before 为变更前的档案
func (t *Tracker) result(habit db.Habit, completed bool, before, after db.UserProfile, today datekey.Key) ToggleResult {
	return ToggleResult{
		Habit:         habit,
		Completed:     completed,
		XPDelta:       after.XP - before.XP,
		LeveledUp:     after.Level > before.Level,
		Profile:       after,
		Streak:        t.streaks.Current(habit.ID, t.state.Logs, today),
		TodayProgress: progressOn(habit.ID, t.state.Logs, today),
	}
}

// RenameProfile 修改显示名称，空名称不做修改
func (t *Tracker) RenameProfile(ctx context.Context, name string) (db.UserProfile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cleaned := t.cleanText(name, maxProfileNameRunes)
	if cleaned == "" || cleaned == t.state.User.Name {
		return t.state.User, nil
	}

	next := t.state.Clone()
	next.User.Name = cleaned
	if err := t.commit(ctx, next); err != nil {
		return db.UserProfile{}, err
	}
	return next.User, nil
}

// Reset 恢复默认状态并写入存储
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.commit(ctx, DefaultState(t.clock.Now()))
}

// commit 整体写入三个快照，写入成功后替换内存状态。调用方需持有锁。
func (t *Tracker) commit(ctx context.Context, next State) error {
	entries, err := EncodeState(next)
	if err != nil {
		return err
	}
	if err := t.store.PutAll(ctx, entries); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	t.state = next
	return nil
}

func (t *Tracker) cleanText(raw string, limit int) string {
	// StrictPolicy 会转义实体，这里只需要去掉标签
	cleaned := strings.TrimSpace(html.UnescapeString(t.sanitizer.Sanitize(raw)))
	return strings.TrimSpace(truncateRunes(cleaned, limit))
}

func indexOfHabit(habits []db.Habit, id string) int {
	return slices.IndexFunc(habits, func(h db.Habit) bool { return h.ID == id })
}
