package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/service"
)

type habitPayload struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Frequency   string `json:"frequency"`
	Type        string `json:"type"`
	Goal        int    `json:"goal"`
	Unit        string `json:"unit"`
}

func (p habitPayload) toDraft() service.HabitDraft {
	return service.HabitDraft{
		Name:        p.Name,
		Description: p.Description,
		Icon:        p.Icon,
		Color:       p.Color,
		Frequency:   p.Frequency,
		Type:        p.Type,
		Goal:        p.Goal,
		Unit:        p.Unit,
	}
}

type togglePayload struct {
	Increment int `json:"increment"`
}

type progressPayload struct {
	Amount int `json:"amount"`
}

// GetState 返回完整快照
func (a *API) GetState(c *gin.Context) {
	state := a.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"habits": state.Habits,
		"logs":   state.Logs,
		"user":   state.User,
		"today":  a.tracker.Today(),
	})
}

// ListHabits 返回习惯列表及每个习惯的连胜与今日进度
func (a *API) ListHabits(c *gin.Context) {
	state := a.tracker.Snapshot()
	today := a.tracker.Today()
	c.JSON(http.StatusOK, gin.H{
		"habits":    state.Habits,
		"summaries": service.SummarizeHabits(state.Habits, state.Logs, today, a.tracker.Streaks()),
		"today":     today,
	})
}

// CreateHabit 新建习惯，名称为空时返回 400 且不做任何修改
func (a *API) CreateHabit(c *gin.Context) {
	var payload habitPayload
	if !bindJSON(c, &payload, a.msg(c, "Invalid habit payload", "请填写有效的习惯信息")) {
		return
	}

	habit, ok, err := a.tracker.CreateHabit(c.Request.Context(), payload.toDraft())
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to create habit", "创建习惯失败"))
		return
	}
	if !ok {
		respondError(c, http.StatusBadRequest, a.msg(c, "Habit name is required", "习惯名称不能为空"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"habit": habit})
}

// DeleteHabit 删除习惯及其全部打卡记录
func (a *API) DeleteHabit(c *gin.Context) {
	removed, err := a.tracker.DeleteHabit(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to delete habit", "删除习惯失败"))
		return
	}
	if !removed {
		respondError(c, http.StatusNotFound, a.msg(c, "Habit not found", "习惯不存在"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleHabit 切换今天的完成状态
func (a *API) ToggleHabit(c *gin.Context) {
	var payload togglePayload
	if !bindOptionalJSON(c, &payload, a.msg(c, "Invalid toggle payload", "请求格式错误")) {
		return
	}

	result, err := a.tracker.Toggle(c.Request.Context(), c.Param("id"), payload.Increment)
	a.respondToggle(c, result, err)
}

// LogHabitProgress 为计数或计时习惯累加进度
func (a *API) LogHabitProgress(c *gin.Context) {
	var payload progressPayload
	if !bindJSON(c, &payload, a.msg(c, "Invalid progress payload", "请求格式错误")) {
		return
	}

	result, err := a.tracker.LogProgress(c.Request.Context(), c.Param("id"), payload.Amount)
	a.respondToggle(c, result, err)
}

func (a *API) respondToggle(c *gin.Context, result service.ToggleResult, err error) {
	if err != nil {
		if errors.Is(err, service.ErrHabitNotFound) {
			respondError(c, http.StatusNotFound, a.msg(c, "Habit not found", "习惯不存在"))
			return
		}
		if errors.Is(err, service.ErrProgressNotSupported) {
			respondError(c, http.StatusBadRequest, a.msg(c, "Check habits can only be toggled", "打卡型习惯只能切换完成状态"))
			return
		}
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to save progress", "保存打卡失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":   result,
		"progress": a.tracker.Progression().Describe(result.Profile),
	})
}
