package service

import (
	"slices"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
)

// DefaultStreakLookbackCap 限制向前回溯的最大天数，防止异常数据导致长时间循环
const DefaultStreakLookbackCap = 3660

// StreakCalculator 计算连胜，LookbackCap<=0 时使用默认上限
type StreakCalculator struct {
	LookbackCap int
}

// CurrentStreak 使用默认上限计算当前连胜
func CurrentStreak(habitID string, logs []db.HabitLog, today datekey.Key) int {
	return StreakCalculator{}.Current(habitID, logs, today)
}

// Current 返回截止到今天（或昨天）的连续完成天数。
// 今天尚未完成时从昨天开始数：当天没过完之前不算断签。
func (c StreakCalculator) Current(habitID string, logs []db.HabitLog, today datekey.Key) int {
	days := satisfiedDays(habitID, logs)
	if len(days) == 0 || !today.Valid() {
		return 0
	}

	limit := c.LookbackCap
	if limit <= 0 {
		limit = DefaultStreakLookbackCap
	}

	oldest := oldestKey(days)
	cursor := today
	if _, ok := days[cursor]; !ok {
		cursor = cursor.Previous()
	}

	streak := 0
	for streak < limit && cursor != "" && !cursor.Before(oldest) {
		if _, ok := days[cursor]; !ok {
			break
		}
		streak++
		cursor = cursor.Previous()
	}
	return streak
}

// Longest 返回历史上最长的连续完成天数
func (c StreakCalculator) Longest(habitID string, logs []db.HabitLog) int {
	days := satisfiedDays(habitID, logs)
	if len(days) == 0 {
		return 0
	}

	keys := make([]datekey.Key, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	longest := 1
	current := 1
	for i := 1; i < len(keys); i++ {
		delta, ok := datekey.DaysBetween(keys[i-1], keys[i])
		if ok && delta == 1 {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 1
		}
	}
	return longest
}

// satisfiedDays 汇总某习惯存在 value>0 记录的日期，忽略格式错误的日期
func satisfiedDays(habitID string, logs []db.HabitLog) map[datekey.Key]struct{} {
	days := make(map[datekey.Key]struct{})
	for _, log := range logs {
		if log.HabitID != habitID || !log.Satisfied() || !log.Date.Valid() {
			continue
		}
		days[log.Date] = struct{}{}
	}
	return days
}

func oldestKey(days map[datekey.Key]struct{}) datekey.Key {
	var oldest datekey.Key
	for key := range days {
		if oldest == "" || key.Before(oldest) {
			oldest = key
		}
	}
	return oldest
}

// isSatisfiedOn 判断习惯在某日是否完成
func isSatisfiedOn(habitID string, logs []db.HabitLog, day datekey.Key) bool {
	for _, log := range logs {
		if log.HabitID == habitID && log.Date == day && log.Satisfied() {
			return true
		}
	}
	return false
}

// progressOn 汇总习惯某日的累计数值
func progressOn(habitID string, logs []db.HabitLog, day datekey.Key) int {
	total := 0
	for _, log := range logs {
		if log.HabitID == habitID && log.Date == day && log.Value > 0 {
			total += log.Value
		}
	}
	return total
}
