package context

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/tasktalk/pkg/llm"
)

// PromptData is the data passed to the system prompt template.
type PromptData struct {
	Time   string
	UserID string
	Tools  []string
}

// Engine assembles token-budgeted prompts for the LLM.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
	prompt    *template.Template
	now       func() time.Time
}

// New creates a context engine with the specified token budget.
// model is used to select the appropriate tokenizer (e.g. "gpt-4").
// maxTokens is the model's context window size.
// reserve is the number of tokens to reserve for the model's response.
// promptPath optionally points at a system prompt template; empty uses DefaultPrompt.
func New(model string, maxTokens, reserve int, promptPath string) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}

	text := DefaultPrompt
	if promptPath != "" {
		data, err := os.ReadFile(promptPath)
		if err != nil {
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		text = string(data)
	}
	tmpl, err := template.New("system").Funcs(template.FuncMap{"join": strings.Join}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse system prompt: %w", err)
	}

	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
		prompt:    tmpl,
		now:       time.Now,
	}, nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// SystemPrompt renders the system prompt template.
func (e *Engine) SystemPrompt(userID string, toolNames []string) (string, error) {
	var buf bytes.Buffer
	err := e.prompt.Execute(&buf, PromptData{
		Time:   e.now().Format(time.RFC3339),
		UserID: userID,
		Tools:  toolNames,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}

// BuildPrompt assembles system prompt, history and the new user message.
// History is oldest first; when it does not fit the token budget the oldest
// turns are dropped. The system prompt and the new message are always kept.
func (e *Engine) BuildPrompt(userID string, history []llm.Message, message string, toolNames []string) ([]llm.Message, error) {
	sysPrompt, err := e.SystemPrompt(userID, toolNames)
	if err != nil {
		return nil, err
	}

	budget := e.maxTokens - e.reserve - e.countTokens(sysPrompt) - e.countTokens(message)

	// Walk history newest first so the most recent turns win the budget.
	keep := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		n := e.countTokens(history[i].Content)
		if used+n > budget {
			break
		}
		used += n
		keep = i
	}

	messages := make([]llm.Message, 0, 2+len(history)-keep)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sysPrompt})
	messages = append(messages, history[keep:]...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})
	return messages, nil
}
