package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"
)

const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"

	TransportHTTP      = "http"
	TransportWebSocket = "ws"
)

// Config aggregates the server's settings.
type Config struct {
	Server ServerConfig
	AI     AIConfig
}

// Load reads the server configuration from the environment.
func Load() (*Config, error) {
	var server ServerConfig
	if err := envconfig.Process("", &server); err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if _, err := server.Addr(); err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	LogLevel       string   `envconfig:"LOG_LEVEL" default:"info"`
}

// Addr turns PORT into a listen address. ":8080" and "127.0.0.1:8080" are
// accepted verbatim.
func (c ServerConfig) Addr() (string, error) {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// AIConfig describes the model that answers /chat.
type AIConfig struct {
	Provider     string          `envconfig:"AI_PROVIDER" default:"gemini"`
	Model        string          `envconfig:"MODEL_NAME" default:"gemini-2.5-flash"`
	GoogleAPIKey string          `envconfig:"GOOGLE_API_KEY"`
	APIKey       string          `envconfig:"ARK_API_KEY"`
	AccessKey    string          `envconfig:"ARK_ACCESS_KEY"`
	SecretKey    string          `envconfig:"ARK_SECRET_KEY"`
	BaseURL      string          `envconfig:"ARK_BASE_URL" default:"https://ark.cn-beijing.volces.com/api/v3"`
	Region       string          `envconfig:"ARK_REGION" default:"cn-beijing"`
	Temperature  *float64        `envconfig:"AI_TEMPERATURE"`
	TopP         *float64        `envconfig:"AI_TOP_P"`
	MaxTokens    *int            `envconfig:"AI_MAX_TOKENS"`
	SystemPrompt string          `envconfig:"AI_SYSTEM_PROMPT" default:"You are a helpful assistant."`
	HistoryLimit int             `envconfig:"AI_HISTORY_LIMIT" default:"0"`
	Timeout      time.Duration   `envconfig:"AI_TIMEOUT" default:"2m"`
	Documents    DocumentsConfig `ignored:"true"`
}

// DocumentsConfig enables answers grounded in local documents. Path may name
// a file or a directory; empty disables retrieval.
type DocumentsConfig struct {
	Path         string `envconfig:"AI_DOCUMENTS_PATH"`
	TopK         int    `envconfig:"AI_RETRIEVE_TOP_K" default:"3"`
	ChunkSize    int    `envconfig:"AI_CHUNK_SIZE" default:"1000"`
	ChunkOverlap int    `envconfig:"AI_CHUNK_OVERLAP" default:"200"`
}

// Enabled reports whether a document source is configured.
func (c DocumentsConfig) Enabled() bool {
	return c.Path != ""
}

// Validate checks the retrieval and chunking bounds.
func (c DocumentsConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("invalid AI_RETRIEVE_TOP_K value %d", c.TopK)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("invalid AI_CHUNK_SIZE value %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("invalid AI_CHUNK_OVERLAP value %d: must be in [0, AI_CHUNK_SIZE)", c.ChunkOverlap)
	}
	return nil
}

func loadAIConfig() (AIConfig, error) {
	var cfg AIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AIConfig{}, fmt.Errorf("load ai config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Documents); err != nil {
		return AIConfig{}, fmt.Errorf("load documents config: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch cfg.Provider {
	case ProviderGemini, ProviderArk:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", cfg.Provider)
	}
	if cfg.HistoryLimit < 0 {
		return AIConfig{}, fmt.Errorf("invalid AI_HISTORY_LIMIT value %d", cfg.HistoryLimit)
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Documents.Path = strings.TrimSpace(cfg.Documents.Path)
	if err := cfg.Documents.Validate(); err != nil {
		return AIConfig{}, err
	}
	return cfg, nil
}

// Enabled reports whether the selected provider has credentials.
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderGemini:
		return c.GoogleAPIKey != ""
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	default:
		return false
	}
}

// NewChatModel builds the eino model for the selected provider.
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials or model missing", c.Provider)
	}

	temperature := float32Ptr(c.Temperature)
	topP := float32Ptr(c.TopP)

	switch c.Provider {
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: temperature,
			TopP:        topP,
		})
	default:
		return nil, fmt.Errorf("unsupported provider %q", c.Provider)
	}
}

// ClientConfig describes how the chat CLI reaches the server.
type ClientConfig struct {
	Endpoint     string `envconfig:"CHAT_ENDPOINT" default:"http://localhost:8080/chat"`
	SessionID    string `envconfig:"CHAT_SESSION_ID" default:"user1"`
	Transport    string `envconfig:"CHAT_TRANSPORT" default:"http"`
	DiscardStale bool   `envconfig:"CHAT_DISCARD_STALE" default:"false"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadClient reads the CLI configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load client config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that may also come from flags.
func (c *ClientConfig) Validate() error {
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	c.SessionID = strings.TrimSpace(c.SessionID)
	c.Transport = strings.ToLower(strings.TrimSpace(c.Transport))

	if c.Endpoint == "" {
		return fmt.Errorf("CHAT_ENDPOINT is required")
	}
	if c.SessionID == "" {
		return fmt.Errorf("CHAT_SESSION_ID is required")
	}
	switch c.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		return fmt.Errorf("invalid CHAT_TRANSPORT value %q", c.Transport)
	}
	return nil
}

func float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}
