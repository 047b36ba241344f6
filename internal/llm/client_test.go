package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"

	"github.com/sfaret/stipslite/internal/config"
)

func TestNewClientGemini(t *testing.T) {
	cfg := config.LLMConfig{Provider: "gemini", APIKey: "test-key"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	g, ok := client.(*Gemini)
	if !ok {
		t.Fatalf("expected *Gemini, got %T", client)
	}
	if g.model != "gemini-2.0-flash" {
		t.Errorf("model = %q, want default", g.model)
	}
}

func TestNewClientAzure(t *testing.T) {
	cfg := config.LLMConfig{
		Provider:   "azure",
		APIKey:     "test-key",
		Endpoint:   "https://example.openai.azure.com",
		Deployment: "gpt-4o-mini",
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Azure); !ok {
		t.Errorf("expected *Azure, got %T", client)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", APIKey: "test-key", Model: "claude-haiku-4-5-20251001"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.LLMConfig{Provider: "ollama", Model: "llama3.2"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LLMConfig
	}{
		{"empty provider", config.LLMConfig{}},
		{"unknown provider", config.LLMConfig{Provider: "gpt"}},
		{"gemini without key", config.LLMConfig{Provider: "gemini"}},
		{"anthropic without key", config.LLMConfig{Provider: "anthropic"}},
		{"azure without endpoint", config.LLMConfig{Provider: "azure", APIKey: "k", Deployment: "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClient(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func testSchema() *Schema {
	return &Schema{
		Type:       "object",
		Properties: map[string]*Schema{"answer": {Type: "string"}},
		Required:   []string{"answer"},
	}
}

func TestOllamaSendsFormat(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"response":          `{"answer":"42"}`,
			"prompt_eval_count": 10,
			"eval_count":        5,
		})
	}))
	defer ts.Close()

	o := NewOllama(ts.URL, "llama3.2")
	resp, err := o.Complete(context.Background(), Request{Prompt: "what?", Schema: testSchema()})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"answer":"42"}` {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.TokensUsed != 15 {
		t.Errorf("tokens = %d, want 15", resp.TokensUsed)
	}
	format, ok := got["format"].(map[string]any)
	if !ok {
		t.Fatalf("format not sent: %v", got)
	}
	if format["type"] != "object" {
		t.Errorf("format.type = %v, want object", format["type"])
	}
	if got["prompt"] != "what?" {
		t.Errorf("prompt = %v, want unmodified prompt", got["prompt"])
	}
}

func TestOllamaStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := NewOllama(ts.URL, "missing").Complete(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestAnthropicAppendsSchemaHint(t *testing.T) {
	var got struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": `{"answer":"ok"}`}},
			"usage":   map[string]int{"input_tokens": 3, "output_tokens": 4},
		})
	}))
	defer ts.Close()

	a := NewAnthropic("test-key", "claude-haiku-4-5-20251001")
	a.baseURL = ts.URL

	resp, err := a.Complete(context.Background(), Request{Prompt: "question", Schema: testSchema()})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != `{"answer":"ok"}` || resp.TokensUsed != 7 {
		t.Errorf("resp = %+v", resp)
	}
	if len(got.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(got.Messages))
	}
	msg := got.Messages[0].Content
	if !strings.HasPrefix(msg, "question") || !strings.Contains(msg, `"required":["answer"]`) {
		t.Errorf("schema hint missing from prompt: %q", msg)
	}
}

func TestWithSchemaHintNoSchema(t *testing.T) {
	if got := withSchemaHint(Request{Prompt: "plain"}); got != "plain" {
		t.Errorf("withSchemaHint = %q, want plain", got)
	}
}

func TestToGenaiSchema(t *testing.T) {
	s := &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"results": {Type: "array", Items: &Schema{Type: "string"}},
		},
		Required: []string{"results"},
	}
	g := toGenaiSchema(s)
	if g.Type != "OBJECT" {
		t.Errorf("type = %q, want OBJECT", g.Type)
	}
	r := g.Properties["results"]
	if r == nil || r.Type != "ARRAY" || r.Items == nil || r.Items.Type != "STRING" {
		t.Errorf("results schema = %+v", r)
	}
}

func TestPromptsContainQuery(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		key    string
	}{
		{"InternetSearchPrompt", InternetSearchPrompt("how do tides work"), `"answer"`},
		{"PrintLocationSearchPrompt", PrintLocationSearchPrompt("how do tides work"), `"results"`},
		{"TaskSearchPrompt", TaskSearchPrompt("how do tides work"), `"results"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.prompt, "how do tides work") {
				t.Errorf("%s does not interpolate the query", tt.name)
			}
			if !strings.Contains(tt.prompt, tt.key) {
				t.Errorf("%s does not describe output key %s", tt.name, tt.key)
			}
		})
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), Request{Prompt: "test prompt"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.Calls))
	}
	if mock.LastPrompt() != "test prompt" {
		t.Errorf("last prompt = %q, want %q", mock.LastPrompt(), "test prompt")
	}
}

func TestMockClientCancelled(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "x"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := mock.Complete(ctx, Request{Prompt: "p"}); err == nil {
		t.Error("expected context error")
	}
}

func TestAzureChatOptionsJSONMode(t *testing.T) {
	schema := &Schema{Type: "object", Properties: map[string]*Schema{"answer": {Type: "string"}}, Required: []string{"answer"}}

	opts := chatOptions("gpt-4o", Request{Prompt: "q", Schema: schema})
	if _, ok := opts.ResponseFormat.(*azopenai.ChatCompletionsJSONResponseFormat); !ok {
		t.Errorf("ResponseFormat = %T, want JSON response format", opts.ResponseFormat)
	}
	if opts.DeploymentName == nil || *opts.DeploymentName != "gpt-4o" {
		t.Errorf("DeploymentName = %v", opts.DeploymentName)
	}

	plain := chatOptions("gpt-4o", Request{Prompt: "q"})
	if plain.ResponseFormat != nil {
		t.Errorf("ResponseFormat without schema = %T, want nil", plain.ResponseFormat)
	}
}
