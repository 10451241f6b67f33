package service

import (
	"math"
	"slices"

	"github.com/habitflow/internal/db"
)

const (
	// DefaultXPPerCompletion 每次完成获得的经验
	DefaultXPPerCompletion = 10
	// MaxLevelSentinel 充当阈值表末尾之后的“下一级”门槛
	MaxLevelSentinel = 99999
)

// LevelTable 是升序的经验阈值表，T[i] 为达到 i+1 级所需的经验，T[0] 恒为 0
type LevelTable []int

// DefaultLevelTable 返回内置阈值表
func DefaultLevelTable() LevelTable {
	return LevelTable{0, 100, 250, 500, 1000, 2000, 5000}
}

// LevelFor 返回经验对应的等级：阈值表中不大于 xp 的项数，最低为 1
func (t LevelTable) LevelFor(xp int) int {
	level := 0
	for _, threshold := range t {
		if threshold > xp {
			break
		}
		level++
	}
	return max(1, level)
}

// Bounds 返回某等级的起始经验与下一级门槛
func (t LevelTable) Bounds(level int) (floor, next int) {
	if level < 1 {
		level = 1
	}
	if level-1 < len(t) {
		floor = t[level-1]
	}
	next = MaxLevelSentinel
	if level < len(t) {
		next = t[level]
	}
	return floor, next
}

// ProgressPercent 返回当前等级内的进度百分比，范围 [0,100]
func (t LevelTable) ProgressPercent(xp, level int) float64 {
	floor, next := t.Bounds(level)
	span := next - floor
	if span <= 0 {
		return 100
	}
	percent := float64(xp-floor) / float64(span) * 100
	return math.Min(100, math.Max(0, percent))
}

// Progression 把完成/撤销转换为经验与等级变化
type Progression struct {
	Table           LevelTable
	XPPerCompletion int
}

// DefaultProgression 返回默认数值
func DefaultProgression() Progression {
	return Progression{Table: DefaultLevelTable(), XPPerCompletion: DefaultXPPerCompletion}
}

// NewProgression 从配置构造，非法的阈值表回退为默认表
func NewProgression(thresholds []int, xpPerCompletion int) Progression {
	p := DefaultProgression()
	if strictlyAscendingFromZero(thresholds) {
		p.Table = LevelTable(slices.Clone(thresholds))
	}
	if xpPerCompletion > 0 {
		p.XPPerCompletion = xpPerCompletion
	}
	return p
}

// strictlyAscendingFromZero 要求阈值从 0 开始且严格递增，重复阈值会让某一级的区间为零
func strictlyAscendingFromZero(thresholds []int) bool {
	if len(thresholds) == 0 || thresholds[0] != 0 {
		return false
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return false
		}
	}
	return true
}

func (p Progression) table() LevelTable {
	if len(p.Table) == 0 {
		return DefaultLevelTable()
	}
	return p.Table
}

func (p Progression) step() int {
	if p.XPPerCompletion <= 0 {
		return DefaultXPPerCompletion
	}
	return p.XPPerCompletion
}

// ApplyCompletion 增加经验并重新计算等级
func (p Progression) ApplyCompletion(profile db.UserProfile) db.UserProfile {
	profile.XP = max(0, profile.XP) + p.step()
	profile.Level = p.table().LevelFor(profile.XP)
	return profile
}

// ApplyUndo 扣除经验（不低于 0），等级按阈值表对称地重新推导
func (p Progression) ApplyUndo(profile db.UserProfile) db.UserProfile {
	profile.XP = max(0, profile.XP-p.step())
	profile.Level = p.table().LevelFor(profile.XP)
	return profile
}

// Normalize 修正持久化档案中的非法经验与等级
func (p Progression) Normalize(profile db.UserProfile) db.UserProfile {
	profile.XP = max(0, profile.XP)
	profile.Level = p.table().LevelFor(profile.XP)
	return profile
}

// LevelProgress 描述展示用的等级进度
type LevelProgress struct {
	Level         int     `json:"level"`
	XP            int     `json:"xp"`
	LevelFloor    int     `json:"level_floor"`
	NextThreshold int     `json:"next_threshold"`
	Percent       float64 `json:"percent"`
	MaxLevel      bool    `json:"max_level"`
}

// Describe 计算档案当前等级的进度
func (p Progression) Describe(profile db.UserProfile) LevelProgress {
	table := p.table()
	level := table.LevelFor(profile.XP)
	floor, next := table.Bounds(level)
	return LevelProgress{
		Level:         level,
		XP:            profile.XP,
		LevelFloor:    floor,
		NextThreshold: next,
		Percent:       table.ProgressPercent(profile.XP, level),
		MaxLevel:      level >= len(table),
	}
}
