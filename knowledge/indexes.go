package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/agentmatrix/core"
	"github.com/poiesic/agentmatrix/storage"
)

// indexDoc maps a key (tenant, owner, agent or user id) to ids in primary collection order.
type indexDoc map[string][]string

func (d *indexDoc) normalize() {
	if *d == nil {
		*d = indexDoc{}
	}
}

// indexStamp vouches that revision Index of an index was built from revision Source of
// its primary collection.
type indexStamp struct {
	Source storage.Revision `json:"source"`
	Index  storage.Revision `json:"index"`
}

// indexRevisions maps an index name to its stamp. An index is trusted only while both
// revisions of its stamp are current.
type indexRevisions map[string]indexStamp

func (d *indexRevisions) normalize() {
	if *d == nil {
		*d = indexRevisions{}
	}
}

// namedIndex is one derived index ready to be written.
type namedIndex struct {
	name string
	idx  indexDoc
}

func buildAgentIndexes(agents []*core.Agent) (byTenant, byOwner indexDoc) {
	byTenant, byOwner = indexDoc{}, indexDoc{}
	for _, a := range agents {
		byTenant[a.TenantID] = append(byTenant[a.TenantID], a.ID)
		byOwner[a.OwnerUserID] = append(byOwner[a.OwnerUserID], a.ID)
	}
	return byTenant, byOwner
}

func agentIndexes(agents []*core.Agent) []namedIndex {
	byTenant, byOwner := buildAgentIndexes(agents)
	return []namedIndex{{agentsByTenantIndex, byTenant}, {agentsByOwnerIndex, byOwner}}
}

func buildConversationIndexes(convs []*core.Conversation) (byAgent, byUser indexDoc) {
	byAgent, byUser = indexDoc{}, indexDoc{}
	for _, c := range convs {
		byAgent[c.AgentID] = append(byAgent[c.AgentID], c.ID)
		byUser[c.UserID] = append(byUser[c.UserID], c.ID)
	}
	return byAgent, byUser
}

func conversationIndexes(convs []*core.Conversation) []namedIndex {
	byAgent, byUser := buildConversationIndexes(convs)
	return []namedIndex{{conversationsByAgentIndex, byAgent}, {conversationsByUserIndex, byUser}}
}

func pick(indexes []namedIndex, name string) indexDoc {
	for _, ni := range indexes {
		if ni.name == name {
			return ni.idx
		}
	}
	return indexDoc{}
}

// syncIndexes writes the indexes derived from revision rev of a primary collection, then
// stamps them. The primary is already committed when this runs, so a failure is only
// logged; the stamps no longer match and readers rebuild.
// Callers hold the primary collection lock.
func (s *Store) syncIndexes(ctx context.Context, primary string, rev storage.Revision, indexes []namedIndex) {
	stamps := make(map[string]indexStamp, len(indexes))
	for _, ni := range indexes {
		indexRev, err := s.replaceIndex(ctx, ni.name, ni.idx)
		if err != nil {
			s.logger.Warn("index write failed, it will be rebuilt on read",
				"index", ni.name, "collection", primary, "err", err)
			return
		}
		stamps[ni.name] = indexStamp{Source: rev, Index: indexRev}
	}

	l := s.lock(indexRevisionsCollection)
	l.Lock()
	defer l.Unlock()
	_, _, err := update(ctx, s, indexRevisionsCollection, func(doc *indexRevisions) error {
		for name, stamp := range stamps {
			(*doc)[name] = stamp
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("index stamp write failed, indexes will be rebuilt on read",
			"collection", primary, "err", err)
	}
}

// replaceIndex overwrites a derived index with a freshly computed one and returns its revision.
func (s *Store) replaceIndex(ctx context.Context, name string, idx indexDoc) (storage.Revision, error) {
	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	_, rev, err := update(ctx, s, name, func(doc *indexDoc) error {
		*doc = idx
		return nil
	})
	return rev, err
}

// currentIndex returns a stored index if its stamp matches revision rev of the primary
// collection and the index's own revision. ok is false when the index is missing,
// unreadable or stale.
func (s *Store) currentIndex(ctx context.Context, name string, rev storage.Revision) (indexDoc, bool, error) {
	if rev == storage.NoRevision {
		return indexDoc{}, true, nil
	}

	revs, _, err := loadDoc[indexRevisions](ctx, s.backend, indexRevisionsCollection)
	if errors.Is(err, storage.ErrSerializationFailed) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stamp, stamped := (*revs)[name]
	if !stamped || stamp.Source != rev {
		return nil, false, nil
	}

	data, indexRev, err := s.backend.LoadCollection(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", name, err)
	}
	if indexRev != stamp.Index {
		return nil, false, nil
	}
	var idx indexDoc
	if err := storage.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("index unreadable", "index", name, "err", err)
		return nil, false, nil
	}
	idx.normalize()
	return idx, true, nil
}
