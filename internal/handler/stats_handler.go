package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/service"
)

const maxStatsWindowDays = 366

// WeeklyStats 返回最近一周的每日完成率
func (a *API) WeeklyStats(c *gin.Context) {
	state := a.tracker.Snapshot()
	days := parseIntQuery(c, "days", a.balance.Stats.WeeklyDays, maxStatsWindowDays)

	c.JSON(http.StatusOK, gin.H{
		"days": service.TrendStats(state.Logs, len(state.Habits), a.tracker.Today(), days, a.language(c)),
	})
}

// HeatmapStats 返回热力图数据
func (a *API) HeatmapStats(c *gin.Context) {
	state := a.tracker.Snapshot()
	days := parseIntQuery(c, "days", a.balance.Stats.HeatmapWindowDays, maxStatsWindowDays)
	today := a.tracker.Today()

	c.JSON(http.StatusOK, gin.H{
		"start": today.AddDays(-(days - 1)),
		"end":   today,
		"cells": service.Heatmap(state.Logs, today, days),
	})
}

// OverviewStats 返回概览
func (a *API) OverviewStats(c *gin.Context) {
	state := a.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"overview": service.BuildOverview(state, a.tracker.Today(), a.balance.Stats.HeatmapWindowDays, a.tracker.Streaks()),
	})
}
