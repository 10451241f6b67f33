package service

import (
	"math"
	"slices"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/locale"
)

const (
	// DefaultHeatmapWindowDays 约 14 周
	DefaultHeatmapWindowDays = 98
	// MaxHeatmapIntensity 热力图强度上限
	MaxHeatmapIntensity = 4
	weeklyStatDays      = 7
)

// DayStat 汇总某一天的完成情况
type DayStat struct {
	Date              datekey.Key `json:"date"`
	Label             string      `json:"label"`
	CompletedHabitIDs []string    `json:"completed_habit_ids"`
	CompletedHabits   int         `json:"completed_habits"`
	TotalHabits       int         `json:"total_habits"`
	CompletionRate    int         `json:"completion_rate"`
}

// HeatmapCell 表示热力图中的单日数据
type HeatmapCell struct {
	Date      datekey.Key `json:"date"`
	Count     int         `json:"count"`
	Intensity int         `json:"intensity"`
}

// WeeklyStats 返回以 today 结尾的 7 天完成率，按时间升序
func WeeklyStats(logs []db.HabitLog, totalHabitCount int, today datekey.Key, language string) []DayStat {
	return TrendStats(logs, totalHabitCount, today, weeklyStatDays, language)
}

// TrendStats 是 WeeklyStats 的通用形式，days 为统计天数
func TrendStats(logs []db.HabitLog, totalHabitCount int, today datekey.Key, days int, language string) []DayStat {
	window := datekey.Window(today, days)
	completed := make(map[datekey.Key]map[string]struct{}, len(window))
	for _, day := range window {
		completed[day] = make(map[string]struct{})
	}

	for _, log := range logs {
		if !log.Satisfied() {
			continue
		}
		if set, ok := completed[log.Date]; ok {
			set[log.HabitID] = struct{}{}
		}
	}

	stats := make([]DayStat, 0, len(window))
	for _, day := range window {
		ids := make([]string, 0, len(completed[day]))
		for id := range completed[day] {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		stats = append(stats, DayStat{
			Date:              day,
			Label:             locale.WeekdayLabel(language, day.Weekday()),
			CompletedHabitIDs: ids,
			CompletedHabits:   len(ids),
			TotalHabits:       max(0, totalHabitCount),
			CompletionRate:    completionRate(len(ids), totalHabitCount),
		})
	}
	return stats
}

// completionRate 四舍五入到整数百分比，总数为 0 时记为 0
func completionRate(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// Heatmap 统计以 today 结尾的窗口内每日记录条数，强度截断到 0-4
func Heatmap(logs []db.HabitLog, today datekey.Key, windowDays int) []HeatmapCell {
	if windowDays <= 0 {
		windowDays = DefaultHeatmapWindowDays
	}
	window := datekey.Window(today, windowDays)

	counts := make(map[datekey.Key]int, len(window))
	for _, day := range window {
		counts[day] = 0
	}
	for _, log := range logs {
		if _, ok := counts[log.Date]; ok {
			counts[log.Date]++
		}
	}

	cells := make([]HeatmapCell, 0, len(window))
	for _, day := range window {
		count := counts[day]
		cells = append(cells, HeatmapCell{
			Date:      day,
			Count:     count,
			Intensity: min(MaxHeatmapIntensity, count),
		})
	}
	return cells
}

// HabitSummary 汇总单个习惯的展示数据
type HabitSummary struct {
	Habit          db.Habit `json:"habit"`
	CurrentStreak  int      `json:"current_streak"`
	LongestStreak  int      `json:"longest_streak"`
	TodayProgress  int      `json:"today_progress"`
	CompletedToday bool     `json:"completed_today"`
	GoalMet        bool     `json:"goal_met"`
	WeekDays       []string `json:"week_days"`
	WeekCompleted  []bool   `json:"week_completed"`
}

// SummarizeHabits 计算每个习惯的连胜、今日进度与本周打卡情况
func SummarizeHabits(habits []db.Habit, logs []db.HabitLog, today datekey.Key, streaks StreakCalculator) []HabitSummary {
	week := datekey.WeekDays(today)
	weekLabels := make([]string, 0, len(week))
	for _, day := range week {
		weekLabels = append(weekLabels, day.String())
	}

	summaries := make([]HabitSummary, 0, len(habits))
	for _, habit := range habits {
		kind := KindOf(habit)
		progress := progressOn(habit.ID, logs, today)

		weekDone := make([]bool, 0, len(week))
		for _, day := range week {
			weekDone = append(weekDone, isSatisfiedOn(habit.ID, logs, day))
		}

		summaries = append(summaries, HabitSummary{
			Habit:          habit,
			CurrentStreak:  streaks.Current(habit.ID, logs, today),
			LongestStreak:  streaks.Longest(habit.ID, logs),
			TodayProgress:  progress,
			CompletedToday: progress > 0,
			GoalMet:        progress >= kind.Goal,
			WeekDays:       weekLabels,
			WeekCompleted:  weekDone,
		})
	}
	return summaries
}

// Overview 汇总首页概览数据
type Overview struct {
	HabitCount     int `json:"habit_count"`
	LogCount       int `json:"log_count"`
	ActiveDays     int `json:"active_days"`
	TodayCompleted int `json:"today_completed"`
	TodayRate      int `json:"today_rate"`
	BestStreak     int `json:"best_streak"`
}

// BuildOverview 计算概览，ActiveDays 只统计热力图窗口内
func BuildOverview(state State, today datekey.Key, windowDays int, streaks StreakCalculator) Overview {
	overview := Overview{
		HabitCount: len(state.Habits),
		LogCount:   len(state.Logs),
	}

	for _, cell := range Heatmap(state.Logs, today, windowDays) {
		if cell.Count > 0 {
			overview.ActiveDays++
		}
	}

	for _, habit := range state.Habits {
		if isSatisfiedOn(habit.ID, state.Logs, today) {
			overview.TodayCompleted++
		}
		overview.BestStreak = max(overview.BestStreak, streaks.Current(habit.ID, state.Logs, today))
	}
	overview.TodayRate = completionRate(overview.TodayCompleted, overview.HabitCount)

	return overview
}
