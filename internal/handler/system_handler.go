package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/service"
)

// HealthCheck 提供监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "up",
	})
}

type aiSettingsRequest struct {
	AIProvider     string  `json:"aiProvider"`
	OpenAIAPIKey   *string `json:"openaiApiKey"`
	DeepSeekAPIKey *string `json:"deepseekApiKey"`
	CoachPrompt    string  `json:"coachPrompt"`
}

type aiTestRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
}

// GetAISettings 返回当前 AI 设置，Key 只回显掩码。
func (a *API) GetAISettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to load settings", "获取系统设置失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": aiSettingsPayload(settings)})
}

// UpdateAISettings 保存 AI 设置。未提交的 Key 保持原值。
func (a *API) UpdateAISettings(c *gin.Context) {
	var payload aiSettingsRequest
	if !bindJSON(c, &payload, a.msg(c, "Invalid settings payload", "请填写完整的系统设置")) {
		return
	}

	current, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to load settings", "获取系统设置失败"))
		return
	}

	input := service.SystemSettingsInput{
		AIProvider:     payload.AIProvider,
		OpenAIAPIKey:   current.OpenAIAPIKey,
		DeepSeekAPIKey: current.DeepSeekAPIKey,
		CoachPrompt:    payload.CoachPrompt,
	}
	if payload.OpenAIAPIKey != nil {
		input.OpenAIAPIKey = *payload.OpenAIAPIKey
	}
	if payload.DeepSeekAPIKey != nil {
		input.DeepSeekAPIKey = *payload.DeepSeekAPIKey
	}

	settings, err := a.system.UpdateSettings(input)
	if err != nil {
		respondError(c, http.StatusInternalServerError, a.msg(c, "Failed to save settings", "保存系统设置失败"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  a.msg(c, "Settings saved", "系统设置已保存"),
		"settings": aiSettingsPayload(settings),
	})
}

func aiSettingsPayload(settings service.SystemSettings) gin.H {
	return gin.H{
		"aiProvider":        settings.AIProvider,
		"openaiApiKey":      service.MaskAPIKey(settings.OpenAIAPIKey),
		"deepseekApiKey":    service.MaskAPIKey(settings.DeepSeekAPIKey),
		"coachPrompt":       settings.CoachPrompt,
		"activeKeyProvided": strings.TrimSpace(settings.ActiveAPIKey()) != "",
	}
}

// TestAIConnection 测试不同 AI 平台 API Key 的连通性。
func (a *API) TestAIConnection(c *gin.Context) {
	var payload aiTestRequest
	if !bindJSON(c, &payload, a.msg(c, "Invalid AI settings", "请填写有效的 AI 配置信息")) {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, payload.APIKey); err != nil {
		switch {
		case errors.Is(err, service.ErrAIAPIKeyMissing):
			respondError(c, http.StatusBadRequest, a.msg(c, "A valid API key is required", "请填写有效的 AI API Key"))
		default:
			respondError(c, http.StatusBadGateway, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": a.msg(c, "AI connection OK", "AI 接口连接正常")})
}
