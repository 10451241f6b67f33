package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
)

const (
	defaultOpenAICoachModel   = "gpt-4o-mini"
	defaultDeepSeekCoachModel = "deepseek-chat"
	defaultAdviceMaxTokens    = 300
	defaultSuggestMaxTokens   = 400
	defaultQuoteMaxTokens     = 80
	defaultCoachTemperature   = 0.7
	recentActivityDays        = 7

	defaultCoachSystemPrompt = "你是一个充满活力、积极向上的个人成长教练。"

	// AdviceMissingKeyMessage 在未配置 API Key 时返回
	AdviceMissingKeyMessage = "请配置 API Key 以使用智能助手功能。"
	// AdviceUnavailableMessage 在调用失败时返回
	AdviceUnavailableMessage = "暂时无法连接到智能教练，请稍后再试。但请记住，坚持就是胜利！"
	// AdviceEmptyMessage 在模型返回空内容时使用
	AdviceEmptyMessage = "继续保持！每一步都算数。"
	// FallbackQuote 在无法获取名言时使用，不写入缓存
	FallbackQuote = "千里之行，始于足下。"
)

// Suggestion 是教练推荐的新习惯
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type dailyQuoteRecord struct {
	Date  datekey.Key `json:"date"`
	Quote string      `json:"quote"`
}

// CoachService 生成建议、推荐习惯与每日名言。所有方法在失败时返回兜底内容而不是错误。
type CoachService struct {
	client *aiChatClient
	store  BlobStore
}

// NewCoachService 构造 CoachService，store 用于缓存每日名言
func NewCoachService(settings *SystemSettingService, store BlobStore) *CoachService {
	return &CoachService{
		client: newAIChatClient(settings, defaultOpenAICoachModel, defaultDeepSeekCoachModel),
		store:  store,
	}
}

// SetHTTPClient 覆盖默认 HTTP 客户端，主要用于测试。
func (s *CoachService) SetHTTPClient(client httpDoer) {
	s.client.SetHTTPClient(client)
}

// SetOpenAIBaseURL 覆盖默认的 OpenAI API 地址。
func (s *CoachService) SetOpenAIBaseURL(base string) {
	s.client.SetOpenAIBaseURL(base)
}

// SetDeepSeekBaseURL 覆盖默认的 DeepSeek API 地址。
func (s *CoachService) SetDeepSeekBaseURL(base string) {
	s.client.SetDeepSeekBaseURL(base)
}

// GenerateAdvice 根据等级、习惯与近期打卡情况生成一段鼓励性建议
func (s *CoachService) GenerateAdvice(ctx context.Context, habits []db.Habit, logs []db.HabitLog, profile db.UserProfile, today datekey.Key) string {
	result, err := s.client.complete(ctx, "ADVICE", aiChatRequest{
		UserPrompt:  buildAdvicePrompt(habits, logs, profile, today),
		MaxTokens:   defaultAdviceMaxTokens,
		Temperature: defaultCoachTemperature,
	})
	if err != nil {
		if errors.Is(err, ErrAIAPIKeyMissing) {
			return AdviceMissingKeyMessage
		}
		return AdviceUnavailableMessage
	}

	advice := strings.TrimSpace(result.Content)
	if advice == "" {
		return AdviceEmptyMessage
	}
	return advice
}

func buildAdvicePrompt(habits []db.Habit, logs []db.HabitLog, profile db.UserProfile, today datekey.Key) string {
	recent := 0
	for _, entry := range logs {
		if datekey.InLastDays(entry.Date, today, recentActivityDays) {
			recent++
		}
	}

	var builder strings.Builder
	builder.WriteString("请根据以下用户的习惯数据，给出一段简短、个性化且鼓舞人心的中文建议（不超过100字）。\n\n")
	builder.WriteString("用户档案:\n")
	fmt.Fprintf(&builder, "- 当前等级: %d\n", profile.Level)
	fmt.Fprintf(&builder, "- 总经验值: %d\n\n", profile.XP)
	fmt.Fprintf(&builder, "习惯列表: %s\n\n", strings.Join(habitNames(habits), ", "))
	builder.WriteString("数据概览:\n")
	fmt.Fprintf(&builder, "- 历史总打卡次数: %d\n", len(logs))
	fmt.Fprintf(&builder, "- 过去%d天打卡次数: %d\n\n", recentActivityDays, recent)
	builder.WriteString("请分析他们的表现，如果有进步则表扬，如果停滞则温和鼓励。可以引用一句简短的名言。")
	return builder.String()
}

// SuggestHabits 推荐能平衡现有习惯的新习惯，失败时返回空切片
func (s *CoachService) SuggestHabits(ctx context.Context, habits []db.Habit) []Suggestion {
	prompt := fmt.Sprintf(`用户目前正在养成的习惯有：%s。
请根据这些习惯，推荐3个能够补充或平衡用户生活的新习惯。
请严格按照以下JSON数组格式返回，不要包含Markdown标记：
[{"name": "习惯名称", "description": "简短描述", "icon": "单个Emoji图标"}]`, strings.Join(habitNames(habits), ", "))

	result, err := s.client.complete(ctx, "SUGGEST", aiChatRequest{
		UserPrompt:  prompt,
		MaxTokens:   defaultSuggestMaxTokens,
		Temperature: defaultCoachTemperature,
	})
	if err != nil {
		return []Suggestion{}
	}
	return parseSuggestions(result.Content, habits)
}

// parseSuggestions 解析模型输出，去掉空名称以及与现有习惯重名的条目
func parseSuggestions(raw string, existing []db.Habit) []Suggestion {
	payload := stripCodeFence(raw)
	if start, end := strings.Index(payload, "["), strings.LastIndex(payload, "]"); start >= 0 && end > start {
		payload = payload[start : end+1]
	}

	var decoded []Suggestion
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		log.Printf("[COACH SUGGEST] decode suggestions failed: %v", err)
		return []Suggestion{}
	}

	seen := make(map[string]struct{}, len(existing)+len(decoded))
	for _, habit := range existing {
		seen[strings.ToLower(strings.TrimSpace(habit.Name))] = struct{}{}
	}

	result := make([]Suggestion, 0, len(decoded))
	for _, item := range decoded {
		item.Name = strings.TrimSpace(item.Name)
		item.Description = strings.TrimSpace(item.Description)
		item.Icon = strings.TrimSpace(item.Icon)
		key := strings.ToLower(item.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// DailyQuote 返回当天的名言，同一天只请求一次模型
func (s *CoachService) DailyQuote(ctx context.Context, today datekey.Key) string {
	if cached, ok := s.cachedQuote(ctx, today); ok {
		return cached
	}

	result, err := s.client.complete(ctx, "QUOTE", aiChatRequest{
		UserPrompt:  "请给出一句关于坚持与成长的简短中文名言，注明作者，不超过40字，直接输出纯文本。",
		MaxTokens:   defaultQuoteMaxTokens,
		Temperature: defaultCoachTemperature,
	})
	quote := ""
	if err == nil {
		quote = strings.TrimSpace(result.Content)
	}
	if quote == "" {
		return FallbackQuote
	}

	raw, err := json.Marshal(dailyQuoteRecord{Date: today, Quote: quote})
	if err == nil && s.store != nil {
		if err := s.store.PutAll(ctx, map[string]string{db.BlobKeyDailyQuote: string(raw)}); err != nil {
			log.Printf("[COACH QUOTE] cache daily quote failed: %v", err)
		}
	}
	return quote
}

func (s *CoachService) cachedQuote(ctx context.Context, today datekey.Key) (string, bool) {
	if s.store == nil {
		return "", false
	}
	raw, found, err := s.store.Get(ctx, db.BlobKeyDailyQuote)
	if err != nil || !found {
		return "", false
	}
	var record dailyQuoteRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return "", false
	}
	if record.Date != today || strings.TrimSpace(record.Quote) == "" {
		return "", false
	}
	return record.Quote, true
}

func habitNames(habits []db.Habit) []string {
	names := make([]string, 0, len(habits))
	for _, habit := range habits {
		names = append(names, habit.Name)
	}
	return names
}
