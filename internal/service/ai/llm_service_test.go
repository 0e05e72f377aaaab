package ai

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chatwidget/internal/config"
	"github.com/zhouzirui/chatwidget/internal/model/chat"
)

type fakeModel struct {
	mu    sync.Mutex
	seen  []*schema.Message
	reply string
	err   error
}

func (m *fakeModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func TestBuildHistory(t *testing.T) {
	req := require.New(t)
	entries := []chat.Entry{
		{Sender: chat.User, Content: "one"},
		{Sender: chat.Bot, Content: "two"},
		{Sender: "system", Content: "ignored"},
		{Sender: chat.User, Content: "three"},
	}

	all := BuildHistory(entries, 0)
	req.Len(all, 3)
	req.Equal(schema.User, all[0].Role)
	req.Equal(schema.Assistant, all[1].Role)
	req.Equal("three", all[2].Content)

	tail := BuildHistory(entries, 2)
	req.Len(tail, 1)
	req.Equal("three", tail[0].Content)

	req.Empty(BuildHistory(nil, 5))
}

func TestReplyRunsPromptChain(t *testing.T) {
	req := require.New(t)
	fake := &fakeModel{reply: "hi there"}
	cfg := config.AIConfig{SystemPrompt: "be brief"}

	svc, err := NewServiceWithModel(context.Background(), fake, cfg, nil)
	req.NoError(err)

	history := []chat.Entry{
		{Sender: chat.User, Content: "earlier"},
		{Sender: chat.Bot, Content: "answer"},
	}
	reply, err := svc.Reply(context.Background(), "user1", history, "hello")
	req.NoError(err)
	req.Equal("hi there", reply)

	req.Len(fake.seen, 4)
	req.Equal(schema.System, fake.seen[0].Role)
	req.Equal("be brief", fake.seen[0].Content)
	req.Equal("earlier", fake.seen[1].Content)
	req.Equal(schema.Assistant, fake.seen[2].Role)
	req.Equal(schema.User, fake.seen[3].Role)
	req.Equal("hello", fake.seen[3].Content)
}

func TestReplyPropagatesModelError(t *testing.T) {
	boom := errors.New("quota exceeded")
	svc, err := NewServiceWithModel(context.Background(), &fakeModel{err: boom}, config.AIConfig{}, nil)
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), "user1", nil, "hello")
	require.ErrorContains(t, err, boom.Error())
}

func TestNewServiceWithModelRequiresModel(t *testing.T) {
	_, err := NewServiceWithModel(context.Background(), nil, config.AIConfig{}, nil)
	require.Error(t, err)
}

func TestReplyGroundsAnswerInRetrievedDocuments(t *testing.T) {
	req := require.New(t)
	fake := &fakeModel{reply: "Tuesdays"}
	chunks := []*schema.Document{
		{ID: "hours", Content: "The office is open on Tuesdays from nine to five."},
		{ID: "parking", Content: "Parking is available behind the building."},
	}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{SystemPrompt: "be brief"}, nil,
		WithRetriever(NewKeywordRetriever(chunks, 1)))
	req.NoError(err)

	history := []chat.Entry{{Sender: chat.User, Content: "hi"}}
	reply, err := svc.Reply(context.Background(), "user1", history, "When is the office open?")
	req.NoError(err)
	req.Equal("Tuesdays", reply)

	req.Len(fake.seen, 3)
	req.Equal("be brief", fake.seen[0].Content)
	req.Equal("hi", fake.seen[1].Content)
	prompt := fake.seen[2].Content
	req.Equal(schema.User, fake.seen[2].Role)
	req.Contains(prompt, "Use ONLY the context below")
	req.Contains(prompt, `say "I don't know"`)
	req.Contains(prompt, "open on Tuesdays")
	req.NotContains(prompt, "Parking")
	req.Contains(prompt, "Question:\nWhen is the office open?")
}

func TestReplyWithoutMatchingDocumentsSendsEmptyContext(t *testing.T) {
	req := require.New(t)
	fake := &fakeModel{reply: "I don't know"}
	chunks := []*schema.Document{{ID: "a", Content: "Parking is behind the building."}}
	svc, err := NewServiceWithModel(context.Background(), fake, config.AIConfig{}, nil,
		WithRetriever(NewKeywordRetriever(chunks, 3)))
	req.NoError(err)

	_, err = svc.Reply(context.Background(), "user1", nil, "Who won the match?")
	req.NoError(err)

	prompt := fake.seen[len(fake.seen)-1].Content
	req.Contains(prompt, "Context:\n\n\nQuestion:")
	req.NotContains(prompt, "Parking")
}

func TestNewServiceLoadsConfiguredDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "faq.txt", "Refunds are processed within five business days.")

	cfg := config.AIConfig{
		Provider:     config.ProviderGemini,
		Model:        "gemini-2.5-flash",
		GoogleAPIKey: "test-key",
		Documents:    config.DocumentsConfig{Path: dir, TopK: 3, ChunkSize: 100, ChunkOverlap: 10},
	}
	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, svc)

	cfg.Documents.Path = filepath.Join(dir, "absent")
	_, err = NewService(context.Background(), cfg, nil)
	require.ErrorIs(t, err, os.ErrNotExist)
}
