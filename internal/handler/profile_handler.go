package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/view"
)

type profilePayload struct {
	Name string `json:"name"`
}

// GetProfile 返回用户档案及等级进度
func (a *API) GetProfile(c *gin.Context) {
	profile := a.tracker.Snapshot().User
	c.JSON(http.StatusOK, gin.H{
		"profile":  profile,
		"progress": a.tracker.Progression().Describe(profile),
	})
}

// UpdateProfile 修改显示名称，空名称保持不变
func (a *API) UpdateProfile(c *gin.Context) {
	var payload profilePayload
	if !bindJSON(c, &payload, a.msg(c, "Invalid profile payload", "请填写有效的名称")) {
		return
	}

	profile, err := a.tracker.RenameProfile(c.Request.Context(), payload.Name)
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to save profile", "保存档案失败"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":  profile,
		"progress": a.tracker.Progression().Describe(profile),
	})
}

// GetPalette 返回可选图标与颜色
func (a *API) GetPalette(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"icons":  view.HabitIconOptions(),
		"colors": view.HabitColorOptions(),
	})
}
