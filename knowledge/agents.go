package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/poiesic/agentmatrix/core"
)

type agentsDoc struct {
	Agents []*core.Agent `json:"agents"`
}

func (d *agentsDoc) normalize() {
	if d.Agents == nil {
		d.Agents = []*core.Agent{}
	}
}

func (d *agentsDoc) find(tenantID, agentID string) *core.Agent {
	for _, a := range d.Agents {
		if a.TenantID == tenantID && a.ID == agentID {
			return a
		}
	}
	return nil
}

// CreateAgent registers a new agent with an empty matrix at version 0.
func (s *Store) CreateAgent(ctx context.Context, tenantID, ownerUserID, name string, category core.Category, specialty string) (*core.Agent, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateNewAgent(tenantID, ownerUserID, name, category); err != nil {
		return nil, err
	}

	agent := &core.Agent{
		ID:          core.NewID(),
		TenantID:    tenantID,
		OwnerUserID: ownerUserID,
		Name:        name,
		Category:    category,
		Specialty:   specialty,
		CreatedAt:   core.Now(),
	}

	l := s.lock(agentsCollection)
	l.Lock()
	defer l.Unlock()

	doc, rev, err := update(ctx, s, agentsCollection, func(doc *agentsDoc) error {
		doc.Agents = append(doc.Agents, agent)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncIndexes(ctx, agentsCollection, rev, agentIndexes(doc.Agents))

	s.logger.Info("agent created", "tenant", tenantID, "agent", agent.ID, "owner", ownerUserID)
	return agent, nil
}

// GetAgent returns the agent with the given id inside the tenant.
func (s *Store) GetAgent(ctx context.Context, tenantID, agentID string) (*core.Agent, error) {
	doc, _, err := loadDoc[agentsDoc](ctx, s.backend, agentsCollection)
	if err != nil {
		return nil, err
	}
	agent := doc.find(tenantID, agentID)
	if agent == nil {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
	}
	return agent, nil
}

// ListAgents returns the agents visible to the caller: all of the tenant's
// agents for an admin, only the owned ones for everyone else.
func (s *Store) ListAgents(ctx context.Context, tenantID, userID string, role core.Role) ([]*core.Agent, error) {
	indexName, key := agentsByOwnerIndex, userID
	if role == core.RoleAdmin {
		indexName, key = agentsByTenantIndex, tenantID
	}

	idx, doc, err := s.agentIndex(ctx, indexName)
	if err != nil {
		return nil, err
	}
	ids := idx[key]
	if len(ids) == 0 {
		return []*core.Agent{}, nil
	}

	byID := make(map[string]*core.Agent, len(doc.Agents))
	for _, a := range doc.Agents {
		if a.TenantID == tenantID {
			byID[a.ID] = a
		}
	}

	out := make([]*core.Agent, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			continue
		}
		if role != core.RoleAdmin && a.OwnerUserID != userID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// UpdateAgentMatrix replaces an agent's matrix and bumps its version by one.
// An unknown agent fails with ErrAgentNotFound and writes nothing.
func (s *Store) UpdateAgentMatrix(ctx context.Context, tenantID, agentID, matrix string) (*core.Agent, error) {
	l := s.lock(agentsCollection)
	l.Lock()
	defer l.Unlock()

	var updated *core.Agent
	doc, rev, err := update(ctx, s, agentsCollection, func(doc *agentsDoc) error {
		agent := doc.find(tenantID, agentID)
		if agent == nil {
			return fmt.Errorf("%w: %s", ErrAgentNotFound, agentID)
		}
		agent.Matrix = matrix
		agent.MatrixVersion++
		agent.UpdatedAt = core.NowPtr()
		updated = agent
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncIndexes(ctx, agentsCollection, rev, agentIndexes(doc.Agents))

	s.logger.Info("agent matrix updated", "tenant", tenantID, "agent", agentID,
		"version", updated.MatrixVersion, "chars", len([]rune(matrix)))
	return updated, nil
}

// agentIndex returns an agent index together with the agents it was resolved against.
// A missing or stale index is rebuilt from the primary collection and written back.
func (s *Store) agentIndex(ctx context.Context, name string) (indexDoc, *agentsDoc, error) {
	doc, rev, err := loadDoc[agentsDoc](ctx, s.backend, agentsCollection)
	if err != nil {
		return nil, nil, err
	}
	idx, ok, err := s.currentIndex(ctx, name, rev)
	if err != nil {
		return nil, nil, err
	}
	if ok {
		return idx, doc, nil
	}

	l := s.lock(agentsCollection)
	l.Lock()
	defer l.Unlock()

	doc, rev, err = loadDoc[agentsDoc](ctx, s.backend, agentsCollection)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("rebuilding index", "index", name, "agents", len(doc.Agents))
	indexes := agentIndexes(doc.Agents)
	s.syncIndexes(ctx, agentsCollection, rev, indexes)
	return pick(indexes, name), doc, nil
}
