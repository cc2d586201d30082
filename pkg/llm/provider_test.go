package llm

import (
	"context"
	"encoding/json"
	"testing"
)

// MockProvider is a test double that satisfies the Provider interface.
type MockProvider struct {
	CompleteFunc func(ctx context.Context, messages []Message, tools []Tool) (*Response, error)
}

func (m *MockProvider) Complete(ctx context.Context, messages []Message, tools []Tool) (*Response, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, tools)
	}
	return &Response{Content: "mock response"}, nil
}

func TestProviderInterface(t *testing.T) {
	var provider Provider = &MockProvider{}
	resp, err := provider.Complete(context.Background(), []Message{{Role: RoleUser, Content: "test"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content == "" {
		t.Error("expected non-empty response")
	}
}

func TestConfigConfigured(t *testing.T) {
	cases := []struct {
		name string
		cfg  *Config
		want bool
	}{
		{"nil", nil, false},
		{"no key", &Config{BaseURL: "http://x", Model: "m"}, false},
		{"placeholder key", &Config{BaseURL: "http://x", Model: "m", APIKey: "sk-your-key-here"}, false},
		{"no model", &Config{BaseURL: "http://x", APIKey: "sk-real"}, false},
		{"ok", &Config{BaseURL: "http://x", Model: "m", APIKey: "sk-real"}, true},
	}
	for _, tc := range cases {
		if got := tc.cfg.Configured(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestArgumentsObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"title":"buy milk"}`, `{"title":"buy milk"}`},
		{`"{\"title\":\"buy milk\"}"`, `{"title":"buy milk"}`},
		{``, `{}`},
		{`""`, `{}`},
		{`null`, `{}`},
	}
	for _, tc := range cases {
		fc := FunctionCall{Name: "add_task", Arguments: json.RawMessage(tc.in)}
		got, err := fc.ArgumentsObject()
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Errorf("%q: expected %s, got %s", tc.in, tc.want, got)
		}
	}

	bad := FunctionCall{Arguments: json.RawMessage(`"{not json"`)}
	if _, err := bad.ArgumentsObject(); err == nil {
		t.Error("expected error for malformed arguments")
	}
}
