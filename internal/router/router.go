package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, MaxAge: 30 * 24 * 60 * 60})
	r.Use(sessions.Sessions("habitflow_session", store))
	r.Use(api.LocaleMiddleware())

	r.GET("/healthz", api.HealthCheck)

	r.POST("/api/session", api.CreateSession)
	r.DELETE("/api/session", api.DeleteSession)

	auth := r.Group("/api")
	auth.Use(api.AuthRequired())
	{
		auth.GET("/state", api.GetState)

		auth.GET("/habits", api.ListHabits)
		auth.POST("/habits", api.CreateHabit)
		auth.DELETE("/habits/:id", api.DeleteHabit)
		auth.POST("/habits/:id/toggle", api.ToggleHabit)
		auth.POST("/habits/:id/progress", api.LogHabitProgress)

		auth.GET("/stats/weekly", api.WeeklyStats)
		auth.GET("/stats/heatmap", api.HeatmapStats)
		auth.GET("/stats/overview", api.OverviewStats)

		auth.GET("/profile", api.GetProfile)
		auth.PUT("/profile", api.UpdateProfile)
		auth.GET("/palette", api.GetPalette)

		auth.POST("/coach/advice", api.RequestAdvice)
		auth.GET("/coach/advice", api.GetAdvice)
		auth.POST("/coach/suggestions", api.RequestSuggestions)
		auth.GET("/coach/suggestions", api.GetSuggestions)
		auth.GET("/coach/quote", api.GetDailyQuote)

		auth.GET("/settings/ai", api.GetAISettings)
		auth.PUT("/settings/ai", api.UpdateAISettings)
		auth.POST("/settings/ai/test", api.TestAIConnection)
	}

	return r
}
