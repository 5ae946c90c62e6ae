// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package knowledge is the tenant-scoped store of agents, conversations,
// messages and users.
//
// Every mutation is a read-modify-write of a whole collection document held by
// a storage.CollectionStore. Writers to one collection are serialized inside
// the process, and each save carries the revision seen at load time; a save
// that loses a race with another writer is re-run from a fresh load, bounded
// by WithRetry. An agent's MatrixVersion therefore grows by exactly one per
// successful UpdateAgentMatrix even under concurrent updates.
//
// The derived indexes (agents by tenant and by owner, conversations by agent
// and by user) are rebuilt after every write to their primary collection and
// are what ListAgents and the ListConversations methods read. index/revisions
// stamps each index with the primary revision it was built from and its own
// revision. An index whose stamp does not match is rebuilt from the primary
// collection on read, so a failed index write never fails the committed
// primary write and never hides records.
//
// Message logs are append-only. Loading the log of a conversation that never
// received a message yields an empty slice, not an error.
package knowledge
