package db

import "github.com/habitflow/internal/datekey"

// HabitType 区分打卡方式
type HabitType string

const (
	HabitTypeCheck HabitType = "check"
	HabitTypeCount HabitType = "count"
	HabitTypeTimer HabitType = "timer"
)

// Frequency 描述习惯周期，目前只影响展示
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Habit 定义了习惯模型
// ID 创建后不可变；除删除外不会再修改
// Goal 对 check 类型恒为 1，count/timer 为每日目标量，Unit 为其单位
// CreatedAt 为毫秒时间戳，与持久化快照保持一致
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Frequency   Frequency `json:"frequency"`
	Type        HabitType `json:"type"`
	Goal        int       `json:"goal"`
	Unit        string    `json:"unit"`
	CreatedAt   int64     `json:"createdAt"`
}

// HabitLog 记录一次打卡
// Date 是打卡归属的日历日，不一定等于 Timestamp 所在的日期
// 同一习惯同一天可以有多条记录（count 类型多次累加），Value>0 即视为当日完成
type HabitLog struct {
	ID        string      `json:"id"`
	HabitID   string      `json:"habitId"`
	Date      datekey.Key `json:"date"`
	Timestamp int64       `json:"timestamp"`
	Value     int         `json:"value"`
}

// Satisfied 判断该条记录是否算作完成
func (l HabitLog) Satisfied() bool {
	return l.Value > 0
}

// DefaultHabits 返回首次启动时的示例习惯
func DefaultHabits(createdAt int64) []Habit {
	return []Habit{
		{
			ID:          "1",
			Name:        "晨间饮水",
			Description: "补充水分，唤醒身体",
			Icon:        "💧",
			Color:       "bg-blue-500",
			Frequency:   FrequencyDaily,
			Type:        HabitTypeCount,
			Goal:        4,
			Unit:        "杯",
			CreatedAt:   createdAt,
		},
		{
			ID:          "2",
			Name:        "深度阅读",
			Description: "专注阅读，远离干扰",
			Icon:        "📚",
			Color:       "bg-indigo-500",
			Frequency:   FrequencyDaily,
			Type:        HabitTypeTimer,
			Goal:        30,
			Unit:        "分钟",
			CreatedAt:   createdAt,
		},
		{
			ID:          "3",
			Name:        "冥想",
			Description: "保持正念",
			Icon:        "🧘",
			Color:       "bg-purple-500",
			Frequency:   FrequencyDaily,
			Type:        HabitTypeCheck,
			Goal:        1,
			Unit:        "次",
			CreatedAt:   createdAt,
		},
	}
}
