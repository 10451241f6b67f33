package service

import (
	"strings"

	"github.com/habitflow/internal/db"
)

// CompletionKind 是打卡方式的标签联合：Check、Count(goal, unit)、Timer(goal, unit)
// 所有“一次打卡记多少”的判断都集中在 Magnitude，不在各处分散判断类型
type CompletionKind struct {
	Type db.HabitType
	Goal int
	Unit string
}

// KindOf 从习惯定义中取出打卡方式，并修正非法的目标值
func KindOf(habit db.Habit) CompletionKind {
	kind := CompletionKind{
		Type: normalizeHabitType(string(habit.Type)),
		Goal: habit.Goal,
		Unit: habit.Unit,
	}
	if kind.Type == db.HabitTypeCheck || kind.Goal < 1 {
		kind.Goal = 1
	}
	return kind
}

// Magnitude 返回一次打卡写入日志的数值。
// check 恒为 1；count/timer 优先使用显式增量，未提供时按目标值记一次完成
func (k CompletionKind) Magnitude(increment int) int {
	if k.Type == db.HabitTypeCheck {
		return 1
	}
	if increment > 0 {
		return increment
	}
	return max(1, k.Goal)
}

// Accumulates 表示该类型是否支持分多次累加
func (k CompletionKind) Accumulates() bool {
	return k.Type != db.HabitTypeCheck
}

func normalizeHabitType(raw string) db.HabitType {
	switch db.HabitType(strings.ToLower(strings.TrimSpace(raw))) {
	case db.HabitTypeCount:
		return db.HabitTypeCount
	case db.HabitTypeTimer:
		return db.HabitTypeTimer
	default:
		return db.HabitTypeCheck
	}
}

func normalizeFrequency(raw string) db.Frequency {
	if db.Frequency(strings.ToLower(strings.TrimSpace(raw))) == db.FrequencyWeekly {
		return db.FrequencyWeekly
	}
	return db.FrequencyDaily
}

func defaultUnit(kind db.HabitType) string {
	switch kind {
	case db.HabitTypeTimer:
		return "分钟"
	default:
		return "次"
	}
}
