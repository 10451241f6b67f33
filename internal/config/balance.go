package config

import (
	"errors"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultXPPerCompletion   = 10
	defaultHeatmapWindowDays = 98
	defaultWeeklyDays        = 7
	defaultLookbackCapDays   = 3660
)

var defaultLevelThresholds = []int{0, 100, 250, 500, 1000, 2000, 5000}

// Balance 描述成长数值，可由 YAML 文件覆盖
type Balance struct {
	Progression Progression `yaml:"progression" json:"progression"`
	Stats       StatsConfig `yaml:"stats" json:"stats"`
	Streak      StreakRules `yaml:"streak" json:"streak"`
}

type Progression struct {
	XPPerCompletion int   `yaml:"xp_per_completion" json:"xp_per_completion"`
	LevelThresholds []int `yaml:"level_thresholds" json:"level_thresholds"`
}

type StatsConfig struct {
	HeatmapWindowDays int `yaml:"heatmap_window_days" json:"heatmap_window_days"`
	WeeklyDays        int `yaml:"weekly_days" json:"weekly_days"`
}

type StreakRules struct {
	LookbackCapDays int `yaml:"lookback_cap_days" json:"lookback_cap_days"`
}

// DefaultBalance 返回内置数值
func DefaultBalance() Balance {
	var b Balance
	b.ApplyDefaults()
	return b
}

// ApplyDefaults 为缺省或非法的配置项填充默认值
func (b *Balance) ApplyDefaults() {
	if b.Progression.XPPerCompletion <= 0 {
		b.Progression.XPPerCompletion = defaultXPPerCompletion
	}
	if !validThresholds(b.Progression.LevelThresholds) {
		b.Progression.LevelThresholds = slices.Clone(defaultLevelThresholds)
	}
	if b.Stats.HeatmapWindowDays <= 0 {
		b.Stats.HeatmapWindowDays = defaultHeatmapWindowDays
	}
	if b.Stats.WeeklyDays <= 0 {
		b.Stats.WeeklyDays = defaultWeeklyDays
	}
	if b.Streak.LookbackCapDays <= 0 {
		b.Streak.LookbackCapDays = defaultLookbackCapDays
	}
}

// 阈值表必须以 0 开头且严格递增
func validThresholds(thresholds []int) bool {
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

// LoadBalance 读取 YAML 数值文件；路径为空或文件不存在时返回默认值
func LoadBalance(path string) (Balance, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultBalance(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultBalance(), nil
		}
		return Balance{}, err
	}

	var balance Balance
	if err := yaml.Unmarshal(b, &balance); err != nil {
		return Balance{}, err
	}
	balance.ApplyDefaults()
	return balance, nil
}
