package handler

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

// renderMarkdown 把模型输出转为安全的 HTML，模型偶尔会无视“纯文本”要求
func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(sanitizer.SanitizeBytes(buf.Bytes()))), nil
}

// RequestAdvice 在后台生成建议，立即返回本次请求代号
func (a *API) RequestAdvice(c *gin.Context) {
	generation := a.board.RequestAdvice(a.tracker.Snapshot(), a.tracker.Today())
	c.JSON(http.StatusAccepted, gin.H{"generation": generation})
}

// GetAdvice 返回最近一次建议
func (a *API) GetAdvice(c *gin.Context) {
	advice := a.board.Advice()
	rendered := ""
	if advice.Text != "" {
		var err error
		rendered, err = renderMarkdown(advice.Text)
		if err != nil {
			c.Error(err)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"advice":      advice,
		"advice_html": rendered,
	})
}

// RequestSuggestions 在后台生成习惯推荐
func (a *API) RequestSuggestions(c *gin.Context) {
	generation := a.board.RequestSuggestions(a.tracker.Snapshot().Habits)
	c.JSON(http.StatusAccepted, gin.H{"generation": generation})
}

// GetSuggestions 返回最近一次推荐
func (a *API) GetSuggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": a.board.Suggestions()})
}

// GetDailyQuote 返回今日名言，同一天内使用缓存
func (a *API) GetDailyQuote(c *gin.Context) {
	today := a.tracker.Today()
	c.JSON(http.StatusOK, gin.H{
		"date":  today,
		"quote": a.coach.DailyQuote(c.Request.Context(), today),
	})
}
