package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/storage"
	"github.com/poiesic/agentmatrix/storage/badger"
	"github.com/poiesic/agentmatrix/storage/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) storage.CollectionStore

func backends() map[string]backendFactory {
	return map[string]backendFactory{
		"file": func(t *testing.T) storage.CollectionStore {
			s, err := file.NewStore(t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"badger": func(t *testing.T) storage.CollectionStore {
			s, err := badger.NewMemoryStore()
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func newTestStore(t *testing.T, backend storage.CollectionStore) *Store {
	t.Helper()
	s, err := NewStore(backend, WithHashRounds(1000))
	require.NoError(t, err)
	return s
}

// forEachBackend runs fn once per collection store implementation.
func forEachBackend(t *testing.T, fn func(t *testing.T, s *Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, newTestStore(t, factory(t)))
		})
	}
}

func TestNewStore_RequiresBackend(t *testing.T) {
	_, err := NewStore(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestCreateAgent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		agent, err := s.CreateAgent(ctx, "acme", "u1", " Compliance ", core.CategoryCorporate, "KYC")
		require.NoError(t, err)
		assert.Len(t, agent.ID, 36)
		assert.Equal(t, "Compliance", agent.Name)
		assert.Zero(t, agent.MatrixVersion)
		assert.Empty(t, agent.Matrix)
		assert.False(t, agent.CreatedAt.IsZero())
		assert.Nil(t, agent.UpdatedAt)

		got, err := s.GetAgent(ctx, "acme", agent.ID)
		require.NoError(t, err)
		assert.Equal(t, agent, got)
	})
}

func TestCreateAgent_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		_, err := s.CreateAgent(context.Background(), "acme", "u1", "", core.CategoryCorporate, "KYC")
		assert.ErrorIs(t, err, core.ErrValidation)

		_, err = s.CreateAgent(context.Background(), "acme", "u1", "n", core.Category("Team"), "KYC")
		assert.ErrorIs(t, err, core.ErrInvalidCategory)
	})
}

func TestGetAgent_TenantIsolation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		agent, err := s.CreateAgent(ctx, "acme", "u1", "A", core.CategoryPersonal, "x")
		require.NoError(t, err)

		_, err = s.GetAgent(ctx, "globex", agent.ID)
		assert.ErrorIs(t, err, ErrAgentNotFound)

		_, err = s.GetAgent(ctx, "acme", "missing")
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})
}

func TestUpdateAgentMatrix_Versioning(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		agent, err := s.CreateAgent(ctx, "acme", "u1", "A", core.CategoryCorporate, "KYC")
		require.NoError(t, err)

		for want := 1; want <= 2; want++ {
			updated, err := s.UpdateAgentMatrix(ctx, "acme", agent.ID, fmt.Sprintf("glossary v%d", want))
			require.NoError(t, err)
			assert.Equal(t, want, updated.MatrixVersion)
			assert.NotNil(t, updated.UpdatedAt)
		}

		got, err := s.GetAgent(ctx, "acme", agent.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.MatrixVersion)
		assert.Equal(t, "glossary v2", got.Matrix)
	})
}

func TestUpdateAgentMatrix_UnknownAgentWritesNothing(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			s := newTestStore(t, backend)
			ctx := context.Background()

			agent, err := s.CreateAgent(ctx, "acme", "u1", "A", core.CategoryCorporate, "KYC")
			require.NoError(t, err)
			_, before, err := backend.LoadCollection(ctx, agentsCollection)
			require.NoError(t, err)

			_, err = s.UpdateAgentMatrix(ctx, "acme", "nope", "matrix")
			assert.ErrorIs(t, err, ErrAgentNotFound)
			_, err = s.UpdateAgentMatrix(ctx, "globex", agent.ID, "matrix")
			assert.ErrorIs(t, err, ErrAgentNotFound, "another tenant cannot reach the agent")

			_, after, err := backend.LoadCollection(ctx, agentsCollection)
			require.NoError(t, err)
			assert.Equal(t, before, after, "the collection revision did not move")
		})
	}
}

func TestUpdateAgentMatrix_ConcurrentNoLostUpdate(t *testing.T) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			// Two stores on one backend stand in for two writers that share no in-process lock.
			s1 := newTestStore(t, backend)
			s2 := newTestStore(t, backend)
			for _, s := range []*Store{s1, s2} {
				require.NoError(t, WithRetry(200, 0)(s))
			}
			ctx := context.Background()

			a, err := s1.CreateAgent(ctx, "acme", "u1", "A", core.CategoryCorporate, "x")
			require.NoError(t, err)
			b, err := s1.CreateAgent(ctx, "acme", "u2", "B", core.CategoryPersonal, "y")
			require.NoError(t, err)

			const perAgent = 10
			var wg sync.WaitGroup
			for i := 0; i < perAgent; i++ {
				for _, target := range []struct {
					s  *Store
					id string
				}{{s1, a.ID}, {s2, a.ID}, {s1, b.ID}, {s2, b.ID}} {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := target.s.UpdateAgentMatrix(ctx, "acme", target.id, "m")
						assert.NoError(t, err)
					}()
				}
			}
			wg.Wait()

			for _, id := range []string{a.ID, b.ID} {
				got, err := s1.GetAgent(ctx, "acme", id)
				require.NoError(t, err)
				assert.Equal(t, 2*perAgent, got.MatrixVersion)
			}
		})
	}
}

func TestListAgents(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		a1, err := s.CreateAgent(ctx, "acme", "alice", "A1", core.CategoryCorporate, "x")
		require.NoError(t, err)
		a2, err := s.CreateAgent(ctx, "acme", "bob", "A2", core.CategoryPersonal, "y")
		require.NoError(t, err)
		a3, err := s.CreateAgent(ctx, "acme", "alice", "A3", core.CategoryPersonal, "z")
		require.NoError(t, err)
		_, err = s.CreateAgent(ctx, "globex", "alice", "G1", core.CategoryCorporate, "w")
		require.NoError(t, err)

		admin, err := s.ListAgents(ctx, "acme", "root", core.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID, a2.ID, a3.ID}, agentIDs(admin))

		owned, err := s.ListAgents(ctx, "acme", "alice", core.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, []string{a1.ID, a3.ID}, agentIDs(owned), "the globex agent owned by the same user id stays hidden")

		none, err := s.ListAgents(ctx, "acme", "carol", core.RoleUser)
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)

		empty, err := s.ListAgents(ctx, "initech", "root", core.RoleAdmin)
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}

func TestListAgents_SeesMatrixUpdates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		a, err := s.CreateAgent(ctx, "acme", "alice", "A", core.CategoryCorporate, "x")
		require.NoError(t, err)
		_, err = s.UpdateAgentMatrix(ctx, "acme", a.ID, "new matrix")
		require.NoError(t, err)

		list, err := s.ListAgents(ctx, "acme", "alice", core.RoleUser)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 1, list[0].MatrixVersion)
	})
}

func TestListAgents_RebuildsMissingIndex(t *testing.T) {
	dir := t.TempDir()
	backend, err := file.NewStore(dir)
	require.NoError(t, err)
	s := newTestStore(t, backend)
	ctx := context.Background()

	a, err := s.CreateAgent(ctx, "acme", "alice", "A", core.CategoryCorporate, "x")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "index", "agents_by_tenant.json")))

	list, err := s.ListAgents(ctx, "acme", "root", core.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, agentIDs(list))

	_, err = os.Stat(filepath.Join(dir, "index", "agents_by_tenant.json"))
	assert.NoError(t, err, "the index was written back")
}

func TestIndexLayout(t *testing.T) {
	dir := t.TempDir()
	backend, err := file.NewStore(dir)
	require.NoError(t, err)
	s := newTestStore(t, backend)
	ctx := context.Background()

	a, err := s.CreateAgent(ctx, "acme", "alice", "A", core.CategoryCorporate, "x")
	require.NoError(t, err)
	c, err := s.CreateConversation(ctx, "acme", "alice", a.ID)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "index", "agents_by_user.json"))
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"alice": [%q]}`, a.ID), string(data))

	data, err = os.ReadFile(filepath.Join(dir, "index", "conversations_by_agent.json"))
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{%q: [%q]}`, a.ID, c.ID), string(data))

	data, err = os.ReadFile(filepath.Join(dir, "agents.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "{\n  \"agents\": [\n    {\n      \"id\": ")
	assert.Contains(t, string(data), `"type": "Corporate"`)
}

func TestConversations(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		c1, err := s.CreateConversation(ctx, "acme", "alice", "agent-1")
		require.NoError(t, err)
		c2, err := s.CreateConversation(ctx, "acme", "bob", "agent-1")
		require.NoError(t, err)
		c3, err := s.CreateConversation(ctx, "acme", "alice", "agent-2")
		require.NoError(t, err)
		_, err = s.CreateConversation(ctx, "globex", "alice", "agent-1")
		require.NoError(t, err)

		got, err := s.GetConversation(ctx, "acme", c2.ID)
		require.NoError(t, err)
		assert.Equal(t, c2, got)

		_, err = s.GetConversation(ctx, "globex", c2.ID)
		assert.ErrorIs(t, err, ErrConversationNotFound)

		byAgent, err := s.ListConversationsByAgent(ctx, "acme", "agent-1")
		require.NoError(t, err)
		assert.Equal(t, []string{c1.ID, c2.ID}, conversationIDs(byAgent))

		byUser, err := s.ListConversationsByUser(ctx, "acme", "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{c1.ID, c3.ID}, conversationIDs(byUser))

		none, err := s.ListConversationsByUser(ctx, "acme", "nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMessages(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		empty, err := s.LoadLastMessages(ctx, "never-used", 12)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		for i := 1; i <= 5; i++ {
			role := core.MessageRoleUser
			if i%2 == 0 {
				role = core.MessageRoleAssistant
			}
			_, err := s.AppendMessage(ctx, "c1", role, fmt.Sprintf("m%d", i))
			require.NoError(t, err)
		}

		all, err := s.LoadMessages(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, all, 5)
		for i, m := range all {
			assert.Equal(t, fmt.Sprintf("m%d", i+1), m.Content)
		}
		assert.Equal(t, core.MessageRoleAssistant, all[1].Role)

		last, err := s.LoadLastMessages(ctx, "c1", 2)
		require.NoError(t, err)
		require.Len(t, last, 2)
		assert.Equal(t, "m4", last[0].Content)
		assert.Equal(t, "m5", last[1].Content)

		last, err = s.LoadLastMessages(ctx, "c1", 0)
		require.NoError(t, err)
		assert.Empty(t, last)

		last, err = s.LoadLastMessages(ctx, "c1", -3)
		require.NoError(t, err)
		assert.Empty(t, last)
	})
}

func TestAppendMessage_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.AppendMessage(ctx, "c1", core.MessageRole("system"), "x")
		assert.ErrorIs(t, err, core.ErrInvalidMessageRole)

		_, err = s.AppendMessage(ctx, "", core.MessageRoleUser, "x")
		assert.ErrorIs(t, err, core.ErrEmptyConversationID)

		_, err = s.AppendMessage(ctx, "../../etc", core.MessageRoleUser, "x")
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestMessageLogLayout(t *testing.T) {
	dir := t.TempDir()
	backend, err := file.NewStore(dir)
	require.NoError(t, err)
	s := newTestStore(t, backend)

	_, err = s.AppendMessage(context.Background(), "abc", core.MessageRoleUser, "olá\nmundo")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "messages", "conv_abc.jsonl"))
	require.NoError(t, err)
	assert.Regexp(t, `^\{"role":"user","content":"olá\\nmundo","created_at":"[0-9T:.-]+"\}\n$`, string(data))
}

func TestMessages_ReadsLegacyLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "messages"), 0o755))
	legacy := `{"role": "user", "content": "oi", "created_at": "2025-01-02T03:04:05.123456"}` + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messages", "conv_old.jsonl"), []byte(legacy), 0o644))

	backend, err := file.NewStore(dir)
	require.NoError(t, err)
	s := newTestStore(t, backend)

	msgs, err := s.LoadLastMessages(context.Background(), "old", 12)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "oi", msgs[0].Content)
	assert.Equal(t, "2025-01-02T03:04:05.123456", msgs[0].CreatedAt.String())
}

func TestUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()

		u, err := s.UpsertUser(ctx, "acme", "ana@acme.io", "pw1", core.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, core.RoleUser, u.Role)
		assert.Nil(t, u.UpdatedAt)
		assert.Contains(t, u.PasswordHash, "$pbkdf2-sha256$")

		authed, err := s.Authenticate(ctx, "acme", "ana@acme.io", "pw1")
		require.NoError(t, err)
		assert.Equal(t, u.ID, authed.ID)

		_, err = s.Authenticate(ctx, "acme", "ana@acme.io", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = s.Authenticate(ctx, "acme", "nobody@acme.io", "pw1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = s.Authenticate(ctx, "globex", "ana@acme.io", "pw1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		again, err := s.UpsertUser(ctx, "acme", "ana@acme.io", "pw2", core.RoleAdmin)
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID, "upsert keeps the identity")
		assert.Equal(t, core.RoleAdmin, again.Role)
		assert.NotNil(t, again.UpdatedAt)

		_, err = s.Authenticate(ctx, "acme", "ana@acme.io", "pw1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		authed, err = s.Authenticate(ctx, "acme", "ana@acme.io", "pw2")
		require.NoError(t, err)
		assert.Equal(t, core.Principal{TenantID: "acme", UserID: u.ID, Role: core.RoleAdmin}, authed.Principal())

		got, err := s.GetUser(ctx, "acme", u.ID)
		require.NoError(t, err)
		assert.Equal(t, "ana@acme.io", got.Email)
		_, err = s.GetUser(ctx, "globex", u.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestUpsertUser_Validation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		_, err := s.UpsertUser(ctx, "", "a@b", "pw", core.RoleUser)
		assert.ErrorIs(t, err, core.ErrEmptyTenant)
		_, err = s.UpsertUser(ctx, "acme", " ", "pw", core.RoleUser)
		assert.ErrorIs(t, err, core.ErrEmptyEmail)
		_, err = s.UpsertUser(ctx, "acme", "a@b", "pw", core.Role("root"))
		assert.ErrorIs(t, err, core.ErrInvalidRole)
		_, err = s.UpsertUser(ctx, "acme", "a@b", "", core.RoleUser)
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestStoreIOFailure(t *testing.T) {
	backend, err := badger.NewMemoryStore()
	require.NoError(t, err)
	s := newTestStore(t, backend)
	require.NoError(t, backend.Close())

	_, err = s.CreateAgent(context.Background(), "acme", "u1", "A", core.CategoryCorporate, "x")
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func agentIDs(agents []*core.Agent) []string {
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	return ids
}

func conversationIDs(convs []*core.Conversation) []string {
	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	return ids
}
