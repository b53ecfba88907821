package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/andrewkylim/chatkin-chat-sub002/internal/ai"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/chat"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/db"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/middleware"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/recurrence"
	"github.com/andrewkylim/chatkin-chat-sub002/internal/svc"
)

// scriptedProvider plays back canned model turns in order
type scriptedProvider struct {
	turns []*ai.ModelTurn
	err   error
	calls int
}

func (p *scriptedProvider) ID() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, _ *ai.CompleteRequest) (*ai.ModelTurn, error) {
	if p.err != nil {
		return nil, p.err
	}
	turn := p.turns[p.calls]
	p.calls++
	return turn, nil
}

func newTestRouter(t *testing.T, provider ai.Provider) (chi.Router, *db.Store) {
	t.Helper()
	store, err := db.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	history := chat.NewHistory(store, provider, 50)
	snapshots := chat.NewSnapshotBuilder(store)
	materializer := recurrence.NewMaterializer(store)
	svcCtx := &svc.ServiceContext{
		Store:      store,
		Provider:   provider,
		History:    history,
		Snapshots:  snapshots,
		Engine:     chat.NewEngine(store, provider, history, snapshots, 3, 1024),
		Executor:   chat.NewExecutor(store, history, materializer),
		Recurrence: materializer,
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), "u1")))
		})
	})
	r.Post("/chat", ChatHandler(svcCtx))
	r.Post("/confirm", ConfirmHandler(svcCtx))
	return r, store
}

func doJSON(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func proposeTurn(toolUseID, input string) *ai.ModelTurn {
	return &ai.ModelTurn{ToolCall: &ai.ToolCall{
		ID:    toolUseID,
		Name:  "propose_operations",
		Input: json.RawMessage(input),
	}}
}

func TestChatAcceptsNestedContextAndFlattensActions(t *testing.T) {
	provider := &scriptedProvider{turns: []*ai.ModelTurn{
		proposeTurn("toolu_p1", `{
			"summary": "add a watering task",
			"operations": [{"operation":"create","entity":"task","data":{"title":"Water plants"}}]
		}`),
	}}
	r, store := newTestRouter(t, provider)

	rec := doJSON(t, r, "/chat", map[string]any{
		"message": "remind me to water the plants",
		"context": map[string]any{"scope": "tasks"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := rec.Body.Bytes()
	assert.Equal(t, "actions", gjson.GetBytes(body, "type").String())
	assert.Equal(t, "add a watering task", gjson.GetBytes(body, "summary").String())
	assert.Equal(t, "toolu_p1", gjson.GetBytes(body, "tool_use_id").String())
	actions := gjson.GetBytes(body, "actions")
	require.True(t, actions.IsArray(), "actions is a flat operation array")
	assert.Equal(t, "create", actions.Array()[0].Get("operation").String())

	// The nested context selected the tasks-scope conversation
	conv, err := store.GetOrCreateConversation(context.Background(), "u1", "tasks", "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, conv.MessageCount, "user message persisted under the tasks scope")
}

func TestChatUnknownScopeIsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t, &scriptedProvider{})

	rec := doJSON(t, r, "/chat", map[string]any{
		"message": "hello",
		"context": map[string]any{"scope": "bogus"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = doJSON(t, r, "/chat", map[string]any{
		"message": "hello",
		"context": map[string]any{"scope": "project"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "project scope without a project id")
}

func TestChatProviderQuotaFailureIsServiceUnavailable(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("429 rate limit exceeded")}
	r, _ := newTestRouter(t, provider)

	rec := doJSON(t, r, "/chat", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}
