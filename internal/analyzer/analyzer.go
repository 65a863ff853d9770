package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/YKarmar/RoleMatch/internal/types"
)

// Generator 调用大模型，返回原始文本
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLM客户端配置
type LLMConfig struct {
	APIBase   string `json:"api_base"`
	APIKey    string `json:"api_key"`
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
}

// LLM请求和响应结构
type LLMRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLMResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenAI 兼容的 /chat/completions 客户端
type ChatClient struct {
	llmConfig  LLMConfig
	httpClient *http.Client
}

// 创建 chat completions 客户端
func NewChatClient(config LLMConfig) *ChatClient {
	return &ChatClient{
		llmConfig: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// 调用LLM API，温度固定为0
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := LLMRequest{
		Model:       c.llmConfig.Model,
		Temperature: 0,
		MaxTokens:   c.llmConfig.MaxTokens,
		Messages: []Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.llmConfig.APIBase, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.llmConfig.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("LLM API error (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var llmResp LLMResponse
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(llmResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return llmResp.Choices[0].Message.Content, nil
}

// 招聘信息抽取器：组装提示词 → 调用模型 → 解析
type Extractor struct {
	gen     Generator
	country string
}

func NewExtractor(gen Generator, country string) *Extractor {
	return &Extractor{gen: gen, country: country}
}

// Extract 从原始文本中抽取招聘信息
func (e *Extractor) Extract(ctx context.Context, rawText, styleReference string) ([]types.JobRecord, error) {
	prompt := BuildPrompt(rawText, styleReference, e.country)

	started := time.Now()
	response, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("LLM extraction failed: %w", err)
	}

	jobs, err := ParseResponse(response)
	if err != nil {
		slog.Warn("extraction response rejected", "chars", len(response), "err", err)
		return nil, err
	}

	slog.Info("extraction finished", "jobs", len(jobs), "input_chars", len(rawText), "elapsed", time.Since(started).Round(time.Millisecond))
	return jobs, nil
}
