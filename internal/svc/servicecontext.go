package svc

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/chat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/config"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/recurrence"
)

// ServiceContext carries the shared dependencies handed to every handler
type ServiceContext struct {
	Config config.Config

	Store    *db.Store
	Provider ai.Provider

	History    *chat.History
	Snapshots  *chat.SnapshotBuilder
	Engine     *chat.Engine
	Executor   *chat.Executor
	Recurrence *recurrence.Materializer
	Sweeper    *chat.Sweeper
}

// NewServiceContext wires the service from config: opens the database, runs
// migrations, selects the completion provider and assembles the chat stack.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	provider, err := newProvider(c)
	if err != nil {
		store.Close()
		return nil, err
	}

	history := chat.NewHistory(store, provider, c.Chat.RecentWindow)
	snapshots := chat.NewSnapshotBuilder(store)
	materializer := recurrence.NewMaterializer(store)

	svcCtx := &ServiceContext{
		Config:     c,
		Store:      store,
		Provider:   provider,
		History:    history,
		Snapshots:  snapshots,
		Engine:     chat.NewEngine(store, provider, history, snapshots, c.AI.MaxQueryRounds, c.AI.MaxTokens),
		Executor:   chat.NewExecutor(store, history, materializer),
		Recurrence: materializer,
	}

	if c.IsSummarizeEnabled() {
		sweeper := chat.NewSweeper(history, c.Chat.SummarizeSpec)
		if err := sweeper.Start(); err != nil {
			store.Close()
			return nil, fmt.Errorf("start summary sweeper: %w", err)
		}
		svcCtx.Sweeper = sweeper
	} else {
		logx.Info("summary sweeper disabled by config")
	}

	return svcCtx, nil
}

// newProvider selects the completion provider from config
func newProvider(c config.Config) (ai.Provider, error) {
	switch c.AI.Provider {
	case "anthropic", "":
		if c.AI.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("AI.AnthropicAPIKey is required for the anthropic provider")
		}
		return ai.NewAnthropicProvider(c.AI.AnthropicAPIKey, c.AI.AnthropicModel), nil
	case "openai":
		if c.AI.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("AI.OpenAIAPIKey is required for the openai provider")
		}
		return ai.NewOpenAIProvider(c.AI.OpenAIAPIKey, c.AI.OpenAIModel), nil
	}
	return nil, fmt.Errorf("unknown AI provider %q", c.AI.Provider)
}

// Close releases background workers and the database
func (s *ServiceContext) Close() {
	if s.Sweeper != nil {
		s.Sweeper.Stop()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			logx.Errorf("close store: %v", err)
		}
	}
}
