// Package datekey 提供以本地日历日为粒度的日期键与日期运算。
// 所有打卡、连胜与统计都以 Key 作为分桶单位，和具体时刻无关。
package datekey

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout 是 Key 的文本格式
const Layout = "2006-01-02"

// ErrInvalidDateKey 在日期键无法解析时返回
var ErrInvalidDateKey = errors.New("invalid date key")

// Key 表示一个本地日历日，例如 2024-05-01
type Key string

// FromTime 按 t 自身的时区取日历日
func FromTime(t time.Time) Key {
	return Key(t.Format(Layout))
}

// Today 返回时钟当前时刻所在的日历日，时区取时钟返回值自带的时区
func Today(clock Clock) Key {
	if clock == nil {
		clock = SystemClock{}
	}
	return FromTime(clock.Now())
}

// Parse 校验并解析日期键，返回该日 UTC 零点
func Parse(raw string) (Key, error) {
	trimmed := strings.TrimSpace(raw)
	t, err := time.Parse(Layout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDateKey, raw)
	}
	return FromTime(t), nil
}

// Time 返回日期键对应日的 UTC 零点；格式错误时返回零值与 false
func (k Key) Time() (time.Time, bool) {
	t, err := time.Parse(Layout, string(k))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Valid 判断日期键格式是否正确
func (k Key) Valid() bool {
	_, ok := k.Time()
	return ok
}

func (k Key) String() string {
	return string(k)
}

// Weekday 返回该日是星期几，格式错误时返回 Sunday
func (k Key) Weekday() time.Weekday {
	t, ok := k.Time()
	if !ok {
		return time.Sunday
	}
	return t.Weekday()
}

// AddDays 按日历偏移 n 天。
// 运算在 UTC 日期上进行，跨月、跨年与夏令时切换都不会漂移。
func (k Key) AddDays(n int) Key {
	t, ok := k.Time()
	if !ok {
		return ""
	}
	return FromTime(t.AddDate(0, 0, n))
}

// Previous 返回前一天
func (k Key) Previous() Key {
	return k.AddDays(-1)
}

// Before 判断 k 是否早于 other，依赖固定宽度格式的字典序
func (k Key) Before(other Key) bool {
	return k < other
}

// DaysBetween 返回 from 到 to 相差的天数，to 更早时为负数
func DaysBetween(from, to Key) (int, bool) {
	a, ok := from.Time()
	if !ok {
		return 0, false
	}
	b, ok := to.Time()
	if !ok {
		return 0, false
	}
	return int(b.Sub(a).Hours() / 24), true
}

// WeekDays 返回 today 所在周的周一到周日，周一固定排在首位
func WeekDays(today Key) []Key {
	weekday := int(today.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := today.AddDays(-weekday + 1)

	days := make([]Key, 0, 7)
	for i := 0; i < 7; i++ {
		days = append(days, monday.AddDays(i))
	}
	return days
}

// CurrentWeekDays 返回时钟所在周的周一到周日
func CurrentWeekDays(clock Clock) []Key {
	return WeekDays(Today(clock))
}

// Window 返回以 end 结尾、长度为 days 的连续日期，按时间升序
func Window(end Key, days int) []Key {
	if days <= 0 || !end.Valid() {
		return nil
	}
	keys := make([]Key, 0, days)
	start := end.AddDays(-(days - 1))
	for i := 0; i < days; i++ {
		keys = append(keys, start.AddDays(i))
	}
	return keys
}

// InLastDays 判断 k 是否落在以 today 结尾的 n 天窗口内（含 today）
func InLastDays(k, today Key, n int) bool {
	if n <= 0 {
		return false
	}
	diff, ok := DaysBetween(k, today)
	if !ok {
		return false
	}
	return diff >= 0 && diff < n
}
