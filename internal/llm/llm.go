package llm

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultOllamaModel = "ministral-3:latest"
	defaultOllamaHost  = "http://localhost:11434"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOpenAIBase  = "https://api.openai.com/v1"
	// Prompts stay well below the model window so the page-tagged context never gets truncated
	// by the server.
	maxAnswerChars = 120_000
)

const defaultLLMHTTPTimeout = 3 * time.Minute

// Config describes how to build an LLM client. Empty fields fall back to the environment.
type Config struct {
	Model      string
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

// Client answers questions about a document from page-tagged context.
type Client interface {
	Answer(ctx context.Context, title, question, content string) (string, error)
	Name() string
}

// NewFromEnv builds an OpenAI-compatible client when an API key is available and an Ollama
// client otherwise.
func NewFromEnv(cfg Config) (Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey != "" {
		return newOpenAI(cfg, apiKey), nil
	}

	host := cfg.Endpoint
	if host == "" {
		if env := os.Getenv("OLLAMA_HOST"); env != "" {
			host = env
		} else {
			host = defaultOllamaHost
		}
	}
	model := cfg.Model
	if model == "" {
		if env := os.Getenv("OLLAMA_MODEL"); env != "" {
			model = env
		} else {
			model = defaultOllamaModel
		}
	}
	return &ollamaClient{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: pickHTTPClient(cfg.HTTPClient),
	}, nil
}

func newOpenAI(cfg Config, apiKey string) *openAIClient {
	base := cfg.Endpoint
	if base == "" {
		if env := os.Getenv("OPENAI_BASE_URL"); env != "" {
			base = env
		} else {
			base = defaultOpenAIBase
		}
	}
	model := cfg.Model
	if model == "" {
		if env := os.Getenv("OPENAI_MODEL"); env != "" {
			model = env
		} else {
			model = defaultOpenAIModel
		}
	}
	return &openAIClient{
		apiKey: apiKey,
		model:  model,
		base:   strings.TrimRight(base, "/"),
		client: pickHTTPClient(cfg.HTTPClient),
	}
}

func pickHTTPClient(custom *http.Client) *http.Client {
	if custom != nil {
		return custom
	}
	// Local models often need more than a minute; callers cancel through their context.
	return &http.Client{Timeout: defaultLLMHTTPTimeout}
}
