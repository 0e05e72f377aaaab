package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

// ErrEmptyReply is returned when the model answers with nothing usable.
var ErrEmptyReply = errors.New("model returned no message")

const groundedQuery = `Use ONLY the context below to answer the question.
If the answer is not in the context, say "I don't know".

Context:
{context}

Question:
{query}`

// Option tweaks how NewServiceWithModel assembles the chain.
type Option func(*options)

type options struct {
	retriever retriever.Retriever
}

// WithRetriever grounds every answer in the documents r returns for the
// user's question.
func WithRetriever(r retriever.Retriever) Option {
	return func(o *options) {
		o.retriever = r
	}
}

// Service answers chat turns through an eino prompt chain.
type Service struct {
	cfg    config.AIConfig
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger *zap.Logger
}

// NewService builds the provider model described by cfg and wraps it. When a
// documents path is configured the files are loaded, chunked and indexed so
// answers stay within their content.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	var opts []Option
	if cfg.Documents.Enabled() {
		docs, err := LoadDocuments(ctx, cfg.Documents.Path)
		if err != nil {
			return nil, err
		}
		chunks := SplitDocuments(docs, cfg.Documents.ChunkSize, cfg.Documents.ChunkOverlap)
		if logger != nil {
			logger.Info("indexed documents",
				zap.String("path", cfg.Documents.Path),
				zap.Int("documents", len(docs)),
				zap.Int("chunks", len(chunks)),
			)
		}
		opts = append(opts, WithRetriever(NewKeywordRetriever(chunks, cfg.Documents.TopK)))
	}
	return NewServiceWithModel(ctx, chatModel, cfg, logger, opts...)
}

// NewServiceWithModel compiles the chain around an existing model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, cfg config.AIConfig, logger *zap.Logger, opts ...Option) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	chain := compose.NewChain[map[string]any, *schema.Message]()
	if o.retriever != nil {
		chain.AppendParallel(compose.NewParallel().
			AddRetriever("documents", o.retriever, compose.WithInputKey("query")).
			AddPassthrough("vars"))
		chain.AppendLambda(compose.InvokableLambda(attachContext))
		chain.AppendChatTemplate(prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage(groundedQuery),
		))
	} else {
		chain.AppendChatTemplate(prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		))
	}
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    cfg,
		chain:  runnable,
		logger: logger.Named("ai"),
	}, nil
}

// Reply generates the bot answer to text given the earlier turns of the
// same session.
func (s *Service) Reply(ctx context.Context, sessionID string, history []chat.Entry, text string) (string, error) {
	input := map[string]any{
		"system":  s.cfg.SystemPrompt,
		"history": BuildHistory(history, s.cfg.HistoryLimit),
		"query":   text,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil {
		return "", ErrEmptyReply
	}

	s.logger.Debug("generated reply",
		zap.String("session_id", sessionID),
		zap.Int("history", len(history)),
		zap.Int("length", len(response.Content)),
	)
	return response.Content, nil
}

// attachContext folds the retrieved chunks into the prompt variables.
func attachContext(_ context.Context, in map[string]any) (map[string]any, error) {
	vars, ok := in["vars"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected prompt variables %T", in["vars"])
	}
	docs, _ := in["documents"].([]*schema.Document)

	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	out["context"] = FormatContext(docs)
	return out, nil
}

// BuildHistory converts stored entries into model messages, keeping only the
// newest limit entries. A limit of zero keeps everything.
func BuildHistory(entries []chat.Entry, limit int) []*schema.Message {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return lo.FilterMap(entries, func(entry chat.Entry, _ int) (*schema.Message, bool) {
		switch entry.Sender {
		case chat.User:
			return schema.UserMessage(entry.Content), true
		case chat.Bot:
			return schema.AssistantMessage(entry.Content, nil), true
		default:
			return nil, false
		}
	})
}
