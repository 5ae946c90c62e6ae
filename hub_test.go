package agentmatrix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/agentmatrix/ai"
	"github.com/poiesic/agentmatrix/ai/mock"
	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/fetch"
	"github.com/poiesic/agentmatrix/governor"
	"github.com/poiesic/agentmatrix/knowledge"
	"github.com/poiesic/agentmatrix/synthesis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Document, error) {
	return &fetch.Document{ContentType: "text/plain", Body: "body of " + rawURL}, nil
}

type testHub struct {
	*Hub
	completer *mock.MockCompleter
	admin     core.Principal
	alice     core.Principal
	bob       core.Principal
}

func newTestHub(t *testing.T, opts ...HubOption) *testHub {
	t.Helper()
	completer := mock.NewMockCompleter()
	opts = append([]HubOption{
		WithProvider(mock.NewMockProviderWithCompleter(completer)),
		WithFetcher(stubFetcher{}),
		WithStoreOptions(knowledge.WithHashRounds(1000)),
		WithSynthesisOptions(synthesis.WithPoolSize(2)),
	}, opts...)

	hub, err := NewHub(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { hub.Close() })

	ctx := context.Background()
	login := func(email string, role core.Role) core.Principal {
		_, err := hub.Store().UpsertUser(ctx, "acme", email, "pw", role)
		require.NoError(t, err)
		p, err := hub.Login(ctx, "acme", email, "pw")
		require.NoError(t, err)
		return p
	}
	return &testHub{
		Hub:       hub,
		completer: completer,
		admin:     login("root@acme.io", core.RoleAdmin),
		alice:     login("alice@acme.io", core.RoleUser),
		bob:       login("bob@acme.io", core.RoleUser),
	}
}

func TestNewHub_UnknownBackend(t *testing.T) {
	_, err := NewHub(t.TempDir(), WithBackend("sqlite"), WithProvider(mock.NewMockProvider()))
	assert.Error(t, err)
}

func TestNewHub_Badger(t *testing.T) {
	h := newTestHub(t, WithBackend(BackendBadger))
	agent, err := h.CreateAgent(context.Background(), h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)
	assert.NotEmpty(t, agent.ID)
}

func TestNewHub_FileLayout(t *testing.T) {
	dir := t.TempDir()
	hub, err := NewHub(dir, WithProvider(mock.NewMockProvider()), WithStoreOptions(knowledge.WithHashRounds(1000)))
	require.NoError(t, err)
	defer hub.Close()

	_, err = hub.Store().UpsertUser(context.Background(), "acme", "a@acme.io", "pw", core.RoleAdmin)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "users.json"))
	assert.NoError(t, err)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestHub(t)
	_, err := h.Login(context.Background(), "acme", "alice@acme.io", "nope")
	assert.ErrorIs(t, err, knowledge.ErrInvalidCredentials)
}

func TestCreateAgent_AdminOnly(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	_, err := h.CreateAgent(ctx, h.alice, "A", core.CategoryPersonal, "x")
	assert.ErrorIs(t, err, ErrForbidden)

	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryPersonal, "x")
	require.NoError(t, err)
	assert.Equal(t, h.admin.UserID, agent.OwnerUserID)
	assert.Equal(t, "acme", agent.TenantID)
}

func TestListAgents_Visibility(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	_, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryPersonal, "x")
	require.NoError(t, err)

	all, err := h.ListAgents(ctx, h.admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	mine, err := h.ListAgents(ctx, h.alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestIngest(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "Compliance", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	res, err := h.Ingest(ctx, h.admin, agent.ID, IngestRequest{
		Docs: []string{"[FILE:policy.md]\nCustomers must be verified."},
		URLs: []string{"https://example.com/kyc"},
	})
	require.NoError(t, err)
	assert.Equal(t, agent.ID, res.AgentID)
	assert.Equal(t, 1, res.MatrixVersion)
	assert.Equal(t, 1, res.Synthesis.Chunks)

	reqs := h.completer.Requests()
	require.Len(t, reqs, 2, "one map call and one reduce call")
	for _, r := range reqs {
		assert.Equal(t, DefaultIngestTemperature, r.Temperature)
		assert.Equal(t, "llama-3.3-70b-versatile", r.Model)
	}
	assert.Contains(t, reqs[0].Messages[1].Content, "Customers must be verified.")
	assert.Contains(t, reqs[0].Messages[1].Content, "body of https://example.com/kyc")

	stored, err := h.Store().GetAgent(ctx, "acme", agent.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Synthesis.Matrix, stored.Matrix)
	assert.Equal(t, Preview(stored.Matrix), res.MatrixPreview)

	temp := 0.7
	res, err = h.Ingest(ctx, h.admin, agent.ID, IngestRequest{Docs: []string{"more"}, Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, 2, res.MatrixVersion)
	assert.Equal(t, 0.7, h.completer.Requests()[2].Temperature)
}

func TestIngest_AccessChecks(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	_, err = h.Ingest(ctx, h.alice, agent.ID, IngestRequest{Docs: []string{"x"}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.Ingest(ctx, h.admin, "missing", IngestRequest{Docs: []string{"x"}})
	assert.ErrorIs(t, err, knowledge.ErrAgentNotFound)

	other := core.Principal{TenantID: "globex", UserID: h.admin.UserID, Role: core.RoleAdmin}
	_, err = h.Ingest(ctx, other, agent.ID, IngestRequest{Docs: []string{"x"}})
	assert.ErrorIs(t, err, knowledge.ErrAgentNotFound)

	assert.Zero(t, h.completer.CallCount())
}

func TestIngest_FailureCommitsNothing(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	h.completer.WithCompleteFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		return "", errors.New("rate limited")
	})
	_, err = h.Ingest(ctx, h.admin, agent.ID, IngestRequest{Docs: []string{"x"}})
	assert.ErrorIs(t, err, synthesis.ErrSynthesisFailed)

	stored, err := h.Store().GetAgent(ctx, "acme", agent.ID)
	require.NoError(t, err)
	assert.Zero(t, stored.MatrixVersion)
	assert.Empty(t, stored.Matrix)
}

func TestIngest_PayloadTooLarge(t *testing.T) {
	budgets := governor.DefaultBudgets()
	budgets.MaxTotalChars = 1000
	h := newTestHub(t, WithBudgets(budgets))
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	_, err = h.Ingest(ctx, h.admin, agent.ID, IngestRequest{Docs: []string{strings.Repeat("x", 3000)}})
	assert.ErrorIs(t, err, governor.ErrPayloadTooLarge)
	assert.Zero(t, h.completer.CallCount())
}

func TestIngest_EmptyCorpusCommitsGap(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	res, err := h.Ingest(ctx, h.admin, agent.ID, IngestRequest{Docs: []string{"   "}})
	require.NoError(t, err)
	assert.Equal(t, synthesis.EmptyCorpusMatrix, res.MatrixPreview)
	assert.Equal(t, 1, res.MatrixVersion)
	assert.Zero(t, h.completer.CallCount())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))
	exact := strings.Repeat("a", 800)
	assert.Equal(t, exact, Preview(exact))
	long := strings.Repeat("é", 801)
	assert.Equal(t, strings.Repeat("é", 800)+"…", Preview(long))
}

func TestChat(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryPersonal, "KYC")
	require.NoError(t, err)

	first, err := h.Chat(ctx, h.admin, ChatRequest{AgentID: agent.ID, Message: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ConversationID)
	assert.Equal(t, agent.ID, first.AgentID)

	req := h.completer.Requests()[0]
	assert.Equal(t, 0.4, req.Temperature)
	assert.Equal(t, 1800, req.MaxTokens)
	assert.Contains(t, req.Messages[0].Content, "Active profile: ADMIN")
	assert.Contains(t, req.Messages[1].Content, "[HISTORY]\nUSER: hello\n")
	assert.Equal(t, req.Messages[1].Content, strings.TrimPrefix(first.Answer, "mock:llama-3.3-70b-versatile:"))

	second, err := h.Chat(ctx, h.admin, ChatRequest{AgentID: agent.ID, ConversationID: first.ConversationID, Message: "again"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)

	history, err := h.History(ctx, h.admin, first.ConversationID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, core.MessageRoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, core.MessageRoleAssistant, history[1].Role)
	assert.Equal(t, first.Answer, history[1].Content)
	assert.Equal(t, "again", history[2].Content)

	convs, err := h.Conversations(ctx, h.admin)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, agent.ID, convs[0].AgentID)
}

func TestChat_HistoryWindow(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)
	h.completer.WithCompleteFunc(func(ctx context.Context, req ai.CompletionRequest) (string, error) {
		return "ok", nil
	})

	res, err := h.Chat(ctx, h.admin, ChatRequest{AgentID: agent.ID, Message: "m0"})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := h.Chat(ctx, h.admin, ChatRequest{AgentID: agent.ID, ConversationID: res.ConversationID, Message: "next"})
		require.NoError(t, err)
	}

	reqs := h.completer.Requests()
	payload := reqs[len(reqs)-1].Messages[1].Content
	historyBlock := payload[strings.Index(payload, "[HISTORY]\n"):strings.Index(payload, "\n\n[CURRENT_QUESTION]")]
	lines := strings.Split(strings.TrimPrefix(historyBlock, "[HISTORY]\n"), "\n")
	assert.Len(t, lines, governor.DefaultMaxHistoryMsgs)
	assert.Equal(t, "USER: next", lines[len(lines)-1])
}

func TestChat_AccessChecks(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()
	agent, err := h.CreateAgent(ctx, h.admin, "A", core.CategoryCorporate, "KYC")
	require.NoError(t, err)

	_, err = h.Chat(ctx, h.alice, ChatRequest{AgentID: agent.ID, Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.Chat(ctx, h.admin, ChatRequest{AgentID: agent.ID, ConversationID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, knowledge.ErrConversationNotFound)

	_, err = h.Chat(ctx, h.admin, ChatRequest{AgentID: "nope", Message: "hi"})
	assert.ErrorIs(t, err, knowledge.ErrAgentNotFound)
	assert.Zero(t, h.completer.CallCount())
}

func TestHistory_AccessChecks(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	conv, err := h.Store().CreateConversation(ctx, "acme", h.alice.UserID, "agent-1")
	require.NoError(t, err)
	_, err = h.Store().AppendMessage(ctx, conv.ID, core.MessageRoleUser, "private")
	require.NoError(t, err)

	msgs, err := h.History(ctx, h.alice, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	msgs, err = h.History(ctx, h.admin, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = h.History(ctx, h.bob, conv.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.History(ctx, core.Principal{TenantID: "globex", UserID: h.alice.UserID, Role: core.RoleUser}, conv.ID)
	assert.ErrorIs(t, err, knowledge.ErrConversationNotFound)
}
