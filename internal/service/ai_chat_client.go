package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type aiChatRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

type aiChatResponse struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// settingsSource 提供当前的 AI 平台配置
type settingsSource interface {
	GetSettings() (SystemSettings, error)
}

// aiEndpoint 是解析后的单个平台调用参数
type aiEndpoint struct {
	label  string
	base   string
	model  string
	apiKey string
}

type aiChatClient struct {
	settings        settingsSource
	http            httpDoer
	openAIBaseURL   string
	openAIModel     string
	deepSeekBaseURL string
	deepSeekModel   string
}

func newAIChatClient(settings settingsSource, openAIModel, deepSeekModel string) *aiChatClient {
	return &aiChatClient{
		settings:        settings,
		http:            &http.Client{Timeout: 60 * time.Second},
		openAIBaseURL:   "https://api.openai.com/v1",
		openAIModel:     strings.TrimSpace(openAIModel),
		deepSeekBaseURL: "https://api.deepseek.com/v1",
		deepSeekModel:   strings.TrimSpace(deepSeekModel),
	}
}

func (c *aiChatClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
		return
	}
	c.http = client
}

func (c *aiChatClient) SetOpenAIBaseURL(base string) {
	c.openAIBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *aiChatClient) SetDeepSeekBaseURL(base string) {
	c.deepSeekBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// resolve 根据设置选择平台，未配置 Key 时返回 ErrAIAPIKeyMissing
func (c *aiChatClient) resolve(settings SystemSettings) (aiEndpoint, error) {
	endpoint := aiEndpoint{
		label:  "OpenAI",
		base:   c.openAIBaseURL,
		model:  c.openAIModel,
		apiKey: strings.TrimSpace(settings.OpenAIAPIKey),
	}
	if normalizeAIProvider(settings.AIProvider) == AIProviderDeepSeek {
		endpoint = aiEndpoint{
			label:  "DeepSeek",
			base:   c.deepSeekBaseURL,
			model:  c.deepSeekModel,
			apiKey: strings.TrimSpace(settings.DeepSeekAPIKey),
		}
	}
	if endpoint.apiKey == "" {
		return aiEndpoint{}, ErrAIAPIKeyMissing
	}
	return endpoint, nil
}

// complete 读取最新设置后发起一次对话补全；systemPrompt 为空时使用设置中的教练提示词
func (c *aiChatClient) complete(ctx context.Context, kind string, req aiChatRequest) (aiChatResponse, error) {
	settings, err := c.settings.GetSettings()
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取系统设置失败: %w", err)
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		req.SystemPrompt = settings.CoachPrompt
	}

	endpoint, err := c.resolve(settings)
	if err != nil {
		return aiChatResponse{}, err
	}

	logAIExchange(kind, "prompt", req.UserPrompt)
	result, err := c.post(ctx, endpoint, req)
	if err != nil {
		logAIExchange(kind, "error", err.Error())
		return aiChatResponse{}, err
	}
	logAIExchange(kind, "response", result.Content)
	return result, nil
}

func (c *aiChatClient) post(ctx context.Context, endpoint aiEndpoint, req aiChatRequest) (aiChatResponse, error) {
	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	payload := chatCompletionRequest{
		Model: endpoint.model,
		Messages: []chatMessage{
			{Role: "system", Content: strings.TrimSpace(req.SystemPrompt)},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   max(req.MaxTokens, 0),
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("构造请求失败: %w", err)
	}

	url := strings.TrimRight(endpoint.base, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("创建 %s 请求失败: %w", endpoint.label, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+endpoint.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "habitflow-coach/1.0")

	resp, err := client.Do(httpReq)
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("请求 %s 接口失败: %w", endpoint.label, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return aiChatResponse{}, fmt.Errorf("读取 %s 响应失败: %w", endpoint.label, err)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return aiChatResponse{}, fmt.Errorf("解析 %s 响应失败: %w", endpoint.label, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		errMsg := strings.TrimSpace(completion.Error.Message)
		if errMsg == "" {
			errMsg = resp.Status
		}
		return aiChatResponse{}, fmt.Errorf("%s 接口返回错误：%s", endpoint.label, errMsg)
	}

	if len(completion.Choices) == 0 {
		return aiChatResponse{}, fmt.Errorf("%s 接口未返回结果", endpoint.label)
	}

	return aiChatResponse{
		Content:          strings.TrimSpace(completion.Choices[0].Message.Content),
		PromptTokens:     completion.Usage.PromptTokens,
		CompletionTokens: completion.Usage.CompletionTokens,
	}, nil
}
