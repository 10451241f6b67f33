package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// State 是会话持有的全部可持久化数据
type State struct {
	Habits []db.Habit     `json:"habits"`
	Logs   []db.HabitLog  `json:"logs"`
	User   db.UserProfile `json:"user"`
}

// Clone 返回深拷贝，调用方可以随意修改
func (s State) Clone() State {
	return State{
		Habits: slices.Clone(s.Habits),
		Logs:   slices.Clone(s.Logs),
		User:   s.User,
	}
}

// DefaultState 返回首次启动时的状态
func DefaultState(now time.Time) State {
	return State{
		Habits: db.DefaultHabits(now.UnixMilli()),
		Logs:   []db.HabitLog{},
		User:   db.DefaultProfile(),
	}
}

// BlobStore 是持久化端口：按字符串键读写整份快照。
// PutAll 要么全部写入，要么全部不写。
type BlobStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	PutAll(ctx context.Context, entries map[string]string) error
}

// GormBlobStore 把快照保存在 state_blobs 表
type GormBlobStore struct {
	db *gorm.DB
}

// NewGormBlobStore 构造 GormBlobStore
func NewGormBlobStore(gdb *gorm.DB) *GormBlobStore {
	return &GormBlobStore{db: gdb}
}

func (s *GormBlobStore) Get(ctx context.Context, key string) (string, bool, error) {
	var record db.StateBlob
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("load state blob %s: %w", key, err)
	}
	return record.Value, true, nil
}

func (s *GormBlobStore) PutAll(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	keys := slices.Sorted(maps.Keys(entries))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			if err := upsertBlob(tx, key, entries[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state blobs: %w", err)
	}
	return nil
}

func upsertBlob(tx *gorm.DB, key, value string) error {
	blob := db.StateBlob{Key: key, Value: value}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&blob).Error; err != nil {
		return fmt.Errorf("upsert blob %s: %w", key, err)
	}
	return nil
}

// MemoryBlobStore 是进程内实现，用于测试与演练
type MemoryBlobStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{data: map[string]string{}}
}

func (m *MemoryBlobStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *MemoryBlobStore) PutAll(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range entries {
		m.data[key] = value
	}
	return nil
}

// EncodeState 把状态编码为三个独立的 JSON 快照
func EncodeState(state State) (map[string]string, error) {
	entries := make(map[string]string, 3)

	habits := state.Habits
	if habits == nil {
		habits = []db.Habit{}
	}
	logs := state.Logs
	if logs == nil {
		logs = []db.HabitLog{}
	}

	for key, value := range map[string]any{
		db.BlobKeyHabits: habits,
		db.BlobKeyLogs:   logs,
		db.BlobKeyUser:   state.User,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		entries[key] = string(raw)
	}
	return entries, nil
}

// LoadState 读取三个快照；缺失或损坏的快照替换为默认值，只有存储本身出错才返回错误。
func LoadState(ctx context.Context, store BlobStore, defaults State, progression Progression) (State, error) {
	state := defaults.Clone()

	if raw, found, err := store.Get(ctx, db.BlobKeyHabits); err != nil {
		return State{}, err
	} else if found {
		var habits []db.Habit
		if decodeBlob(db.BlobKeyHabits, raw, &habits) && habits != nil {
			state.Habits = habits
		}
	}

	if raw, found, err := store.Get(ctx, db.BlobKeyLogs); err != nil {
		return State{}, err
	} else if found {
		var logs []db.HabitLog
		if decodeBlob(db.BlobKeyLogs, raw, &logs) && logs != nil {
			state.Logs = logs
		}
	}

	if raw, found, err := store.Get(ctx, db.BlobKeyUser); err != nil {
		return State{}, err
	} else if found {
		var profile db.UserProfile
		if decodeBlob(db.BlobKeyUser, raw, &profile) {
			state.User = profile
		}
	}

	if strings.TrimSpace(state.User.Name) == "" {
		state.User.Name = db.DefaultProfile().Name
	}
	state.User = progression.Normalize(state.User)
	state.Logs = dropOrphanLogs(state.Habits, state.Logs)

	return state, nil
}

func decodeBlob(key, raw string, dst any) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Printf("[STATE] blob %s is corrupt, falling back to defaults: %v", key, err)
		return false
	}
	return true
}

// dropOrphanLogs 丢弃引用不存在习惯或日期非法的记录
func dropOrphanLogs(habits []db.Habit, logs []db.HabitLog) []db.HabitLog {
	known := make(map[string]struct{}, len(habits))
	for _, habit := range habits {
		known[habit.ID] = struct{}{}
	}

	kept := make([]db.HabitLog, 0, len(logs))
	for _, entry := range logs {
		if _, ok := known[entry.HabitID]; !ok {
			continue
		}
		date, err := datekey.Parse(string(entry.Date))
		if err != nil {
			continue
		}
		entry.Date = date
		kept = append(kept, entry)
	}
	if dropped := len(logs) - len(kept); dropped > 0 {
		log.Printf("[STATE] dropped %d log(s) with unknown habit or malformed date", dropped)
	}
	return kept
}
